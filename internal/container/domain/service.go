package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/harborline/freightway/internal/invoice/domain"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	"github.com/harborline/freightway/pkg/db/pagination"
	"github.com/harborline/freightway/pkg/money"
)

type CreateContainerRequest struct {
	ContainerNumber string
	MaxCapacity     int
	Vessel          string
	OriginPort      string
	DestinationPort string
	Currency        string
}

type UpdateContainerRequest struct {
	ID       string
	Status   *Status
	Progress *int
	Location string
	Source   *string
	Vessel   *string
}

type ListContainerRequest struct {
	PageToken string
	PageSize  int32
	Status    Status
}

type ListContainerResponse struct {
	pagination.PageInfo
	Containers []Container `json:"containers"`
}

type AddExpenseRequest struct {
	ContainerID string
	Type        string
	Description string
	Amount      money.Amount
	Currency    string
	IncurredAt  *time.Time
}

type AddContainerInvoiceRequest struct {
	ContainerID string
	Amount      money.Amount
	Currency    string
	IssuedAt    *time.Time
}

// Totals is the on-demand cost aggregation for a container.
type Totals struct {
	Expenses  int64 `json:"expenses"`
	Invoices  int64 `json:"invoices"`
	NetProfit int64 `json:"net_profit"`
}

// Detail is the full container view returned to operators.
type Detail struct {
	Container      Container                   `json:"container"`
	Shipments      []shipmentdomain.Shipment   `json:"shipments"`
	Expenses       []Expense                   `json:"expenses"`
	Invoices       []ContainerInvoice          `json:"invoices"`
	UserInvoices   []invoicedomain.UserInvoice `json:"user_invoices"`
	TrackingEvents []TrackingEvent             `json:"tracking_events"`
	Totals         Totals                      `json:"totals"`
}

type Service interface {
	Create(ctx context.Context, req CreateContainerRequest) (Container, error)
	GetByID(ctx context.Context, id string) (Detail, error)
	List(ctx context.Context, req ListContainerRequest) (ListContainerResponse, error)
	Update(ctx context.Context, req UpdateContainerRequest) (Container, error)
	Delete(ctx context.Context, id string) error
	AddExpense(ctx context.Context, req AddExpenseRequest) (Expense, error)
	DeleteExpense(ctx context.Context, containerID, expenseID string) error
	AddInvoice(ctx context.Context, req AddContainerInvoiceRequest) (ContainerInvoice, error)
	Totals(ctx context.Context, id string) (Totals, error)
}

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
	ErrInvalidContainerNumber = errors.New("invalid_container_number")
	ErrInvalidCapacity        = errors.New("invalid_capacity")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidExpense         = errors.New("invalid_expense")
	ErrNotFound               = errors.New("container_not_found")
	ErrExpenseNotFound        = errors.New("expense_not_found")
	ErrHasShipments           = errors.New("container_has_shipments")
	ErrDuplicateNumber        = errors.New("duplicate_container_number")
)
