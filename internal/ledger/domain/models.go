// Package domain contains the append-only customer ledger models. Entries
// are never updated or deleted; corrections are posted as offsetting
// entries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryType represents debit or credit postings.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// ReferenceType names the business record a posting came from.
type ReferenceType string

const (
	ReferenceTypeInvoice ReferenceType = "invoice"
	ReferenceTypePayment ReferenceType = "payment"
)

// LedgerEntry is one posting on a customer account. Amount is always
// positive; Type carries the direction. Balance is the customer's running
// balance after this entry: positive means the customer owes, negative is
// credit held on account.
type LedgerEntry struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID   `gorm:"not null;index:ix_ledger_entries_user_created,priority:1" json:"user_id"`
	Type          EntryType      `gorm:"type:text;not null" json:"type"`
	Amount        int64          `gorm:"not null" json:"amount"`
	Balance       int64          `gorm:"not null" json:"balance"`
	Currency      string         `gorm:"type:text;not null" json:"currency"`
	Description   string         `gorm:"type:text" json:"description"`
	ReferenceType *ReferenceType `gorm:"type:text" json:"reference_type,omitempty"`
	ReferenceID   *snowflake.ID  `gorm:"index" json:"reference_id,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index:ix_ledger_entries_user_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// NextBalance applies the entry direction to a prior balance.
func NextBalance(prior int64, entryType EntryType, amount int64) int64 {
	if entryType == EntryTypeCredit {
		return prior - amount
	}
	return prior + amount
}
