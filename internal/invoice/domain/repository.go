package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIgnoreDuplicate inserts the invoice unless a non-cancelled
	// invoice already exists for the same (container, user). It reports
	// whether a row was written.
	InsertIgnoreDuplicate(ctx context.Context, db *gorm.DB, invoice *UserInvoice) (bool, error)
	// HasActiveInvoice reports whether a non-cancelled invoice already
	// exists for the (container, user) pair.
	HasActiveInvoice(ctx context.Context, db *gorm.DB, containerID, userID snowflake.ID) (bool, error)
	InsertLineItems(ctx context.Context, db *gorm.DB, items []LineItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*UserInvoice, error)
	ListByContainer(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]UserInvoice, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]UserInvoice, error)

	// NextInvoiceNumber atomically increments and returns the per-year
	// invoice sequence.
	NextInvoiceNumber(ctx context.Context, db *gorm.DB, year int) (int64, error)
}
