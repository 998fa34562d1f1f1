package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/pkg/db/pagination"
	"gorm.io/gorm"
)

// PostRequest describes one posting. Reference fields tie the entry back to
// the invoice or payment that produced it.
type PostRequest struct {
	UserID        snowflake.ID
	Amount        int64
	Currency      string
	Description   string
	ReferenceType *ReferenceType
	ReferenceID   *snowflake.ID
}

type ListEntriesRequest struct {
	UserID    string
	Type      string
	StartDate *time.Time
	EndDate   *time.Time
	PageToken string
	PageSize  int32
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Entries        []LedgerEntry `json:"entries"`
	TotalDebit     int64         `json:"total_debit"`
	TotalCredit    int64         `json:"total_credit"`
	CurrentBalance int64         `json:"current_balance"`
}

// AgingSummary groups outstanding customer balances into the configured
// aging buckets.
type AgingSummary struct {
	Buckets []AgingSummaryBucket `json:"buckets"`
}

type AgingSummaryBucket struct {
	Label       string                `json:"label"`
	Outstanding int64                 `json:"outstanding"`
	Customers   []OutstandingCustomer `json:"customers"`
}

type OutstandingCustomer struct {
	UserID      snowflake.ID `gorm:"column:user_id" json:"user_id"`
	Balance     int64        `gorm:"column:balance" json:"balance"`
	LastDebitAt time.Time    `gorm:"column:last_debit_at" json:"last_debit_at"`
	RiskLevel   string       `gorm:"-" json:"risk_level"`
}

// Service posts entries and reads balances. PostDebit and PostCredit accept
// an optional open transaction so callers can commit ledger postings
// atomically with their own writes; pass nil to let the service manage its
// own transaction.
type Service interface {
	PostDebit(ctx context.Context, tx *gorm.DB, req PostRequest) (LedgerEntry, error)
	PostCredit(ctx context.Context, tx *gorm.DB, req PostRequest) (LedgerEntry, error)
	CurrentBalance(ctx context.Context, userID snowflake.ID) (int64, error)
	List(ctx context.Context, req ListEntriesRequest) (ListEntriesResponse, error)
	ReceivablesSummary(ctx context.Context) (AgingSummary, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidType      = errors.New("invalid_entry_type")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
