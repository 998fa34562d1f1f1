// Package domain contains persistence models for shipping containers and
// the records they own: expenses, container-level revenue and tracking events.
package domain

import (
	"regexp"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status represents the shipping lifecycle of a container.
type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusWaitingForLoad   Status = "WAITING_FOR_LOADING"
	StatusLoaded           Status = "LOADED"
	StatusInTransit        Status = "IN_TRANSIT"
	StatusArrivedPort      Status = "ARRIVED_PORT"
	StatusCustomsClearance Status = "CUSTOMS_CLEARANCE"
	StatusReleased         Status = "RELEASED"
	StatusClosed           Status = "CLOSED"
)

// Statuses lists every valid container status in lifecycle order.
var Statuses = []Status{
	StatusCreated,
	StatusWaitingForLoad,
	StatusLoaded,
	StatusInTransit,
	StatusArrivedPort,
	StatusCustomsClearance,
	StatusReleased,
	StatusClosed,
}

// IsValidStatus reports whether s is a known container status. Operators may
// move a container between any two known statuses; only unknown values are
// rejected.
func IsValidStatus(s Status) bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

var containerNumberPattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{7}$`)

// IsValidContainerNumber reports whether the number matches the carrier
// format (four letters followed by seven digits).
func IsValidContainerNumber(number string) bool {
	return containerNumberPattern.MatchString(number)
}

// ClampProgress normalizes a progress value into [0,100].
func ClampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// Container is a shipping unit holding vehicles through its lifecycle.
type Container struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	ContainerNumber string            `gorm:"type:text;not null;uniqueIndex" json:"container_number"`
	Status          Status            `gorm:"type:text;not null;default:'CREATED'" json:"status"`
	MaxCapacity     int               `gorm:"not null" json:"max_capacity"`
	CurrentCount    int               `gorm:"not null;default:0" json:"current_count"`
	Progress        int               `gorm:"not null;default:0" json:"progress"`
	Vessel          string            `gorm:"type:text" json:"vessel"`
	OriginPort      string            `gorm:"type:text" json:"origin_port"`
	DestinationPort string            `gorm:"type:text" json:"destination_port"`
	Currency        string            `gorm:"type:text;not null" json:"currency"`
	DepartedAt      *time.Time        `gorm:"" json:"departed_at,omitempty"`
	ArrivedAt       *time.Time        `gorm:"" json:"arrived_at,omitempty"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Container) TableName() string { return "containers" }

// Expense belongs to exactly one container and is mutated only through
// container operations.
type Expense struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ContainerID snowflake.ID `gorm:"not null;index" json:"container_id"`
	Type        string       `gorm:"type:text;not null" json:"type"`
	Description string       `gorm:"type:text" json:"description"`
	Amount      int64        `gorm:"not null" json:"amount"`
	Currency    string       `gorm:"type:text;not null" json:"currency"`
	IncurredAt  time.Time    `gorm:"not null" json:"incurred_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Expense) TableName() string { return "container_expenses" }

// ContainerInvoiceStatus represents container revenue record states.
type ContainerInvoiceStatus string

const (
	ContainerInvoiceStatusPending ContainerInvoiceStatus = "PENDING"
	ContainerInvoiceStatusPaid    ContainerInvoiceStatus = "PAID"
	ContainerInvoiceStatusVoid    ContainerInvoiceStatus = "VOID"
)

// ContainerInvoice is a container-level revenue record used for P&L
// reporting, distinct from per-customer invoices.
type ContainerInvoice struct {
	ID          snowflake.ID           `gorm:"primaryKey" json:"id"`
	ContainerID snowflake.ID           `gorm:"not null;index" json:"container_id"`
	Amount      int64                  `gorm:"not null" json:"amount"`
	Currency    string                 `gorm:"type:text;not null" json:"currency"`
	Status      ContainerInvoiceStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	IssuedAt    time.Time              `gorm:"not null" json:"issued_at"`
	CreatedAt   time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ContainerInvoice) TableName() string { return "container_invoices" }

// TrackingEvent records a status observation for a container. Source is a
// typed optional field naming where the observation came from (operator,
// carrier feed, import).
type TrackingEvent struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ContainerID snowflake.ID `gorm:"not null;index" json:"container_id"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	Progress    int          `gorm:"not null" json:"progress"`
	Location    string       `gorm:"type:text" json:"location"`
	Source      *string      `gorm:"type:text" json:"source,omitempty"`
	OccurredAt  time.Time    `gorm:"not null" json:"occurred_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (TrackingEvent) TableName() string { return "tracking_events" }
