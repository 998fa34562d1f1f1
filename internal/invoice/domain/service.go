package domain

import (
	"context"
	"errors"
)

type GenerateRequest struct {
	ContainerID string
	SendEmail   bool
}

// GenerateSummary reports what a generation run did. Re-running generation
// for the same container only increments SkippedExisting.
type GenerateSummary struct {
	NewInvoices     int `json:"new_invoices"`
	SkippedExisting int `json:"skipped_existing"`
}

type GenerateResponse struct {
	Summary  GenerateSummary `json:"summary"`
	Invoices []UserInvoice   `json:"invoices"`
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	GetByID(ctx context.Context, id string) (UserInvoice, error)
	ListByUser(ctx context.Context, userID string) ([]UserInvoice, error)
}

var (
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("invoice_not_found")
	ErrNoShipments = errors.New("no_shipments_in_container")
)
