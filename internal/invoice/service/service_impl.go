package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/harborline/freightway/internal/audit/domain"
	"github.com/harborline/freightway/internal/clock"
	containerdomain "github.com/harborline/freightway/internal/container/domain"
	customerdomain "github.com/harborline/freightway/internal/customer/domain"
	invoicedomain "github.com/harborline/freightway/internal/invoice/domain"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	obsmetrics "github.com/harborline/freightway/internal/observability/metrics"
	"github.com/harborline/freightway/internal/providers/email"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	"github.com/harborline/freightway/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const invoiceDueDays = 14

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          invoicedomain.Repository
	ContainerRepo containerdomain.Repository
	ShipmentRepo  shipmentdomain.Repository
	CustomerRepo  customerdomain.Repository
	LedgerSvc     ledgerdomain.Service
	AuditSvc      auditdomain.Service
	Email         email.Provider
	Clock         clock.Clock
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          invoicedomain.Repository
	containerRepo containerdomain.Repository
	shipmentRepo  shipmentdomain.Repository
	customerRepo  customerdomain.Repository
	ledgerSvc     ledgerdomain.Service
	auditSvc      auditdomain.Service
	email         email.Provider
	clock         clock.Clock
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("invoice.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		containerRepo: p.ContainerRepo,
		shipmentRepo:  p.ShipmentRepo,
		customerRepo:  p.CustomerRepo,
		ledgerSvc:     p.LedgerSvc,
		auditSvc:      p.AuditSvc,
		email:         p.Email,
		clock:         p.Clock,
		obsMetrics:    p.ObsMetrics,
	}
}

// Generate creates one invoice per customer with vehicles in the container.
// Container expenses are split evenly across shipments, never across
// customers, so the shares of a customer with two vehicles are twice those
// of a customer with one. Each customer's invoice, line items and ledger
// debit commit in one transaction; a failure for one customer does not roll
// back invoices already committed for others.
func (s *Service) Generate(ctx context.Context, req invoicedomain.GenerateRequest) (invoicedomain.GenerateResponse, error) {
	containerID, err := snowflake.ParseString(strings.TrimSpace(req.ContainerID))
	if err != nil || containerID == 0 {
		return invoicedomain.GenerateResponse{}, invoicedomain.ErrInvalidID
	}

	container, err := s.containerRepo.FindByID(ctx, s.db, containerID)
	if err != nil {
		return invoicedomain.GenerateResponse{}, err
	}
	if container == nil {
		return invoicedomain.GenerateResponse{}, containerdomain.ErrNotFound
	}

	shipments, err := s.shipmentRepo.ListByContainer(ctx, s.db, containerID)
	if err != nil {
		return invoicedomain.GenerateResponse{}, err
	}
	if len(shipments) == 0 {
		return invoicedomain.GenerateResponse{}, invoicedomain.ErrNoShipments
	}

	totalExpenses, err := s.containerRepo.SumExpenses(ctx, s.db, containerID)
	if err != nil {
		return invoicedomain.GenerateResponse{}, err
	}

	shares, err := money.Split(money.FromMinorUnits(totalExpenses), len(shipments))
	if err != nil {
		return invoicedomain.GenerateResponse{}, err
	}

	// Group shipments per customer, preserving load order so expense
	// shares stay attached to the shipment they were split for.
	type customerGroup struct {
		userID    snowflake.ID
		shipments []shipmentdomain.Shipment
		shares    []money.Amount
	}
	groupIndex := make(map[snowflake.ID]*customerGroup)
	groups := make([]*customerGroup, 0)
	for i, shipment := range shipments {
		group, ok := groupIndex[shipment.UserID]
		if !ok {
			group = &customerGroup{userID: shipment.UserID}
			groupIndex[shipment.UserID] = group
			groups = append(groups, group)
		}
		group.shipments = append(group.shipments, shipment)
		group.shares = append(group.shares, shares[i])
	}

	resp := invoicedomain.GenerateResponse{}
	var failures []error
	for _, group := range groups {
		invoice, created, err := s.generateForCustomer(ctx, container, group.userID, group.shipments, group.shares)
		if err != nil {
			failures = append(failures, fmt.Errorf("user %s: %w", group.userID, err))
			continue
		}
		if !created {
			resp.Summary.SkippedExisting++
			if s.obsMetrics != nil {
				s.obsMetrics.RecordInvoiceGenerated(ctx, "skipped")
			}
			continue
		}
		resp.Summary.NewInvoices++
		resp.Invoices = append(resp.Invoices, *invoice)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordInvoiceGenerated(ctx, "created")
		}
		if req.SendEmail {
			s.notify(ctx, invoice)
		}
	}

	s.log.Info("invoice generation finished",
		zap.String("container_id", containerID.String()),
		zap.Int("new_invoices", resp.Summary.NewInvoices),
		zap.Int("skipped_existing", resp.Summary.SkippedExisting),
		zap.Int("failures", len(failures)),
	)

	if len(failures) > 0 {
		return resp, errors.Join(failures...)
	}
	return resp, nil
}

func (s *Service) generateForCustomer(
	ctx context.Context,
	container *containerdomain.Container,
	userID snowflake.ID,
	shipments []shipmentdomain.Shipment,
	shares []money.Amount,
) (*invoicedomain.UserInvoice, bool, error) {
	now := s.clock.Now()
	dueAt := now.AddDate(0, 0, invoiceDueDays)

	var (
		invoice  invoicedomain.UserInvoice
		inserted bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Check for an existing invoice before drawing a sequence number,
		// so reruns over an already-invoiced container leave no gaps in
		// the counter. The ON CONFLICT insert below still settles races.
		exists, err := s.repo.HasActiveInvoice(ctx, tx, container.ID, userID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		seq, err := s.repo.NextInvoiceNumber(ctx, tx, now.Year())
		if err != nil {
			return err
		}

		invoiceID := s.genID.Generate()
		lines := make([]invoicedomain.LineItem, 0, len(shipments)*3)
		for i := range shipments {
			shipment := shipments[i]
			shipmentID := shipment.ID
			lines = append(lines, invoicedomain.LineItem{
				ID:          s.genID.Generate(),
				InvoiceID:   invoiceID,
				ShipmentID:  &shipmentID,
				Type:        invoicedomain.LineItemVehiclePrice,
				Description: shipment.Description,
				Quantity:    1,
				UnitPrice:   shipment.Price,
				Amount:      shipment.Price,
				CreatedAt:   now,
			})
			if shipment.InsuranceValue > 0 {
				lines = append(lines, invoicedomain.LineItem{
					ID:          s.genID.Generate(),
					InvoiceID:   invoiceID,
					ShipmentID:  &shipmentID,
					Type:        invoicedomain.LineItemInsurance,
					Description: "Insurance",
					Quantity:    1,
					UnitPrice:   shipment.InsuranceValue,
					Amount:      shipment.InsuranceValue,
					CreatedAt:   now,
				})
			}
			// Every shipment carries an expense-share line, zero amount
			// included, so invoices itemize the split even when the
			// container recorded no expenses.
			share := shares[i]
			lines = append(lines, invoicedomain.LineItem{
				ID:          s.genID.Generate(),
				InvoiceID:   invoiceID,
				ShipmentID:  &shipmentID,
				Type:        invoicedomain.LineItemExpenseShare,
				Description: "Shared container expenses",
				Quantity:    1,
				UnitPrice:   share.MinorUnits(),
				Amount:      share.MinorUnits(),
				CreatedAt:   now,
			})
		}

		var subtotal int64
		for _, line := range lines {
			subtotal += line.Amount
		}

		invoice = invoicedomain.UserInvoice{
			ID:            invoiceID,
			InvoiceNumber: invoicedomain.FormatInvoiceNumber(now.Year(), seq),
			ContainerID:   container.ID,
			UserID:        userID,
			Status:        invoicedomain.InvoiceStatusDraft,
			Subtotal:      subtotal,
			Tax:           0,
			Discount:      0,
			Total:         subtotal,
			Currency:      container.Currency,
			IssuedAt:      now,
			DueAt:         &dueAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		inserted, err = s.repo.InsertIgnoreDuplicate(ctx, tx, &invoice)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		if err := s.repo.InsertLineItems(ctx, tx, lines); err != nil {
			return err
		}

		refType := ledgerdomain.ReferenceTypeInvoice
		refID := invoiceID
		_, err = s.ledgerSvc.PostDebit(ctx, tx, ledgerdomain.PostRequest{
			UserID:        userID,
			Amount:        invoice.Total,
			Currency:      invoice.Currency,
			Description:   "Invoice " + invoice.InvoiceNumber,
			ReferenceType: &refType,
			ReferenceID:   &refID,
		})
		if err != nil {
			return err
		}

		invoice.LineItems = lines
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		return nil, false, nil
	}

	if err := s.auditSvc.AuditLog(ctx, "system", nil, "invoice.generated", "invoice", strPtr(invoice.ID.String()), map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"container_id":   container.ID.String(),
		"user_id":        userID.String(),
		"total":          invoice.Total,
	}); err != nil {
		s.log.Warn("audit append failed for invoice", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
	}

	return &invoice, true, nil
}

// notify sends the invoice email outside the transaction; delivery failures
// never fail generation.
func (s *Service) notify(ctx context.Context, invoice *invoicedomain.UserInvoice) {
	customer, err := s.customerRepo.FindByID(ctx, s.db, invoice.UserID)
	if err != nil || customer == nil {
		s.log.Warn("skipping invoice email, customer lookup failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return
	}

	msg := email.Message{
		To:      []string{customer.Email},
		Subject: "Invoice " + invoice.InvoiceNumber,
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>Your invoice %s for %s %s is ready.</p>",
			customer.Name,
			invoice.InvoiceNumber,
			money.FromMinorUnits(invoice.Total).String(),
			invoice.Currency,
		),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.log.Warn("invoice email delivery failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.UserInvoice, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return invoicedomain.UserInvoice{}, invoicedomain.ErrInvalidID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return invoicedomain.UserInvoice{}, err
	}
	if invoice == nil {
		return invoicedomain.UserInvoice{}, invoicedomain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]invoicedomain.UserInvoice, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil || parsed == 0 {
		return nil, invoicedomain.ErrInvalidID
	}
	return s.repo.ListByUser(ctx, s.db, parsed)
}

func strPtr(s string) *string { return &s }
