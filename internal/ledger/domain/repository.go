package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/pkg/db/pagination"
	"gorm.io/gorm"
)

// EntryFilter is the validated filter set applied to entry reads.
type EntryFilter struct {
	UserID    snowflake.ID
	Type      EntryType
	StartDate *time.Time
	EndDate   *time.Time
}

// EntryTotals aggregates postings under a filter.
type EntryTotals struct {
	TotalDebit  int64
	TotalCredit int64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	// LockUser serializes concurrent postings for one customer within the
	// surrounding transaction. A locked read of the latest entry is not
	// enough: a customer with no entries yet has no row to lock.
	LockUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) error
	// LatestForUpdate reads the newest entry for the customer with a row
	// lock where the dialect supports one.
	LatestForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*LedgerEntry, error)
	Latest(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*LedgerEntry, error)
	List(ctx context.Context, db *gorm.DB, filter EntryFilter, page pagination.Pagination) ([]*LedgerEntry, error)
	Totals(ctx context.Context, db *gorm.DB, filter EntryFilter) (EntryTotals, error)
	// OutstandingBalances returns customers whose running balance is
	// positive, with the time of their most recent debit.
	OutstandingBalances(ctx context.Context, db *gorm.DB) ([]OutstandingCustomer, error)
}
