// Package domain contains persistence models for per-customer invoices.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents per-customer invoice states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// LineItemType classifies an invoice line.
type LineItemType string

const (
	LineItemVehiclePrice LineItemType = "VEHICLE_PRICE"
	LineItemInsurance    LineItemType = "INSURANCE"
	LineItemExpenseShare LineItemType = "EXPENSE_SHARE"
	LineItemOther        LineItemType = "OTHER"
)

// UserInvoice is a customer-facing invoice generated from a container.
// A customer holds at most one non-cancelled invoice per container, enforced
// by a partial unique index on (container_id, user_id).
type UserInvoice struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceNumber string        `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	ContainerID   snowflake.ID  `gorm:"not null;index" json:"container_id"`
	UserID        snowflake.ID  `gorm:"not null;index" json:"user_id"`
	Status        InvoiceStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	Subtotal      int64         `gorm:"not null" json:"subtotal"`
	Tax           int64         `gorm:"not null;default:0" json:"tax"`
	Discount      int64         `gorm:"not null;default:0" json:"discount"`
	Total         int64         `gorm:"not null" json:"total"`
	Currency      string        `gorm:"type:text;not null" json:"currency"`
	PaymentMethod *string       `gorm:"type:text" json:"payment_method,omitempty"`
	PaymentRef    *string       `gorm:"type:text" json:"payment_ref,omitempty"`
	Notes         string        `gorm:"type:text" json:"notes"`
	IssuedAt      time.Time     `gorm:"not null" json:"issued_at"`
	DueAt         *time.Time    `gorm:"" json:"due_at,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	LineItems []LineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
}

// TableName sets the database table name.
func (UserInvoice) TableName() string { return "user_invoices" }

// LineItem is a single charge on a user invoice. Amount is always
// Quantity * UnitPrice.
type LineItem struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	ShipmentID  *snowflake.ID `gorm:"index" json:"shipment_id,omitempty"`
	Type        LineItemType  `gorm:"type:text;not null" json:"type"`
	Description string        `gorm:"type:text;not null" json:"description"`
	Quantity    int64         `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   int64         `gorm:"not null" json:"unit_price"`
	Amount      int64         `gorm:"not null" json:"amount"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }

// NumberCounter hands out sequential invoice numbers per calendar year.
type NumberCounter struct {
	Year      int   `gorm:"primaryKey" json:"year"`
	LastValue int64 `gorm:"not null;default:0" json:"last_value"`
}

// TableName sets the database table name.
func (NumberCounter) TableName() string { return "invoice_number_counters" }

// FormatInvoiceNumber renders the public invoice number for a year and
// sequence value.
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%04d-%06d", year, seq)
}
