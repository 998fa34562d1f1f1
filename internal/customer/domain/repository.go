package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListCustomerFilter struct {
	Name        string
	Email       string
	CreatedFrom *string
	CreatedTo   *string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, req ListCustomerRequest, page pagination.Pagination) ([]*Customer, error)
}
