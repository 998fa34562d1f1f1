package domain

import (
	"context"

	"github.com/harborline/freightway/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *string
	EndAt      *string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, req ListAuditLogRequest, page pagination.Pagination) ([]*AuditLog, error)
}
