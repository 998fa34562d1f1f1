package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, container *Container) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Container, error)
	List(ctx context.Context, db *gorm.DB, req ListContainerRequest, page pagination.Pagination) ([]*Container, error)
	Update(ctx context.Context, db *gorm.DB, container *Container) error
	DeleteCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertExpense(ctx context.Context, db *gorm.DB, expense *Expense) error
	FindExpense(ctx context.Context, db *gorm.DB, containerID, expenseID snowflake.ID) (*Expense, error)
	DeleteExpense(ctx context.Context, db *gorm.DB, containerID, expenseID snowflake.ID) error
	ListExpenses(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]Expense, error)

	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *ContainerInvoice) error
	ListInvoices(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]ContainerInvoice, error)

	InsertTrackingEvent(ctx context.Context, db *gorm.DB, event *TrackingEvent) error
	ListTrackingEvents(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]TrackingEvent, error)

	SumExpenses(ctx context.Context, db *gorm.DB, containerID snowflake.ID) (int64, error)
	SumInvoices(ctx context.Context, db *gorm.DB, containerID snowflake.ID) (int64, error)
}
