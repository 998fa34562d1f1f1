// Package domain contains persistence models for vehicle shipments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentStatus represents shipment payment states.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Shipment is a single vehicle shipment owned by a customer. ContainerID is
// nil while the vehicle is on hand and set once it is loaded. PaymentMode
// and Source are typed optional fields rather than free-form bags.
type Shipment struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID  `gorm:"not null;index" json:"user_id"`
	Description    string        `gorm:"type:text;not null" json:"description"`
	VIN            string        `gorm:"type:text" json:"vin"`
	Price          int64         `gorm:"not null" json:"price"`
	InsuranceValue int64         `gorm:"not null;default:0" json:"insurance_value"`
	Currency       string        `gorm:"type:text;not null" json:"currency"`
	ContainerID    *snowflake.ID `gorm:"index" json:"container_id,omitempty"`
	PaymentStatus  PaymentStatus `gorm:"type:text;not null;default:'PENDING'" json:"payment_status"`
	PaymentMode    *string       `gorm:"type:text" json:"payment_mode,omitempty"`
	Source         *string       `gorm:"type:text" json:"source,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Shipment) TableName() string { return "shipments" }
