package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
)

type RecordPaymentRequest struct {
	UserID        string
	ShipmentIDs   []string
	Amount        int64
	PaymentMethod string
	Notes         string
}

type RecordPaymentResponse struct {
	Payment            Payment                  `json:"payment"`
	LedgerEntry        ledgerdomain.LedgerEntry `json:"ledger_entry"`
	CompletedShipments []snowflake.ID           `json:"completed_shipments"`
	CurrentBalance     int64                    `json:"current_balance"`
}

type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (RecordPaymentResponse, error)
}

var (
	ErrInvalidAmount            = errors.New("invalid_amount")
	ErrInvalidShipmentSelection = errors.New("invalid_shipment_selection")
)
