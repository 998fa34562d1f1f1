package domain

import (
	"context"
	"errors"

	"github.com/harborline/freightway/pkg/money"
)

type CreateShipmentRequest struct {
	UserID         string
	Description    string
	VIN            string
	Price          money.Amount
	InsuranceValue money.Amount
	Currency       string
	PaymentMode    *string
	Source         *string
}

type AssignRequest struct {
	ShipmentID  string
	ContainerID string
}

type Service interface {
	Create(ctx context.Context, req CreateShipmentRequest) (Shipment, error)
	GetByID(ctx context.Context, id string) (Shipment, error)
	ListByUser(ctx context.Context, userID string) ([]Shipment, error)
	Assign(ctx context.Context, req AssignRequest) (Shipment, error)
	Unassign(ctx context.Context, shipmentID string) (Shipment, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrNotFound        = errors.New("shipment_not_found")
	ErrAlreadyAssigned = errors.New("shipment_already_assigned")
	ErrNotAssigned     = errors.New("shipment_not_assigned")
	ErrContainerFull   = errors.New("container_full")
	ErrContainerClosed = errors.New("container_closed")
)
