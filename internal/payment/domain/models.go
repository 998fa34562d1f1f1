// Package domain contains the payment record posted when an operator
// captures money received from a customer.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Payment is the captured receipt. The ledger CREDIT entry references it;
// allocation across shipments is not persisted beyond their payment status.
type Payment struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	Amount    int64        `gorm:"not null" json:"amount"`
	Currency  string       `gorm:"type:text;not null" json:"currency"`
	Method    string       `gorm:"type:text;not null" json:"method"`
	Notes     string       `gorm:"type:text" json:"notes"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
