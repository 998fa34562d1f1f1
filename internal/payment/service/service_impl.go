package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/harborline/freightway/internal/audit/domain"
	"github.com/harborline/freightway/internal/clock"
	customerdomain "github.com/harborline/freightway/internal/customer/domain"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	obsmetrics "github.com/harborline/freightway/internal/observability/metrics"
	"github.com/harborline/freightway/internal/payment/domain"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	ShipmentRepo shipmentdomain.Repository
	CustomerRepo customerdomain.Repository
	LedgerSvc    ledgerdomain.Service
	AuditSvc     auditdomain.Service
	Clock        clock.Clock
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	shipmentRepo shipmentdomain.Repository
	customerRepo customerdomain.Repository
	ledgerSvc    ledgerdomain.Service
	auditSvc     auditdomain.Service
	clock        clock.Clock
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		shipmentRepo: p.ShipmentRepo,
		customerRepo: p.CustomerRepo,
		ledgerSvc:    p.LedgerSvc,
		auditSvc:     p.AuditSvc,
		clock:        p.Clock,
		obsMetrics:   p.ObsMetrics,
	}
}

// RecordPayment applies a received amount across the customer's selected
// shipments, oldest first. A shipment flips to COMPLETED only when the
// remaining amount covers its full price; anything beyond the total due
// stays on the ledger as customer credit. The payment row, shipment status
// updates and the single CREDIT posting commit in one transaction.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.RecordPaymentResponse, error) {
	if req.Amount <= 0 {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidAmount
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return domain.RecordPaymentResponse{}, customerdomain.ErrInvalidID
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return domain.RecordPaymentResponse{}, err
	}
	if customer == nil {
		return domain.RecordPaymentResponse{}, customerdomain.ErrNotFound
	}

	if len(req.ShipmentIDs) == 0 {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidShipmentSelection
	}
	shipmentIDs := make([]snowflake.ID, 0, len(req.ShipmentIDs))
	for _, raw := range req.ShipmentIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return domain.RecordPaymentResponse{}, domain.ErrInvalidShipmentSelection
		}
		shipmentIDs = append(shipmentIDs, id)
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = "manual"
	}

	var resp domain.RecordPaymentResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locked read: a double-submitted payment must not see the same
		// shipments as PENDING twice.
		shipments, err := s.shipmentRepo.FindByIDsForUpdate(ctx, tx, shipmentIDs)
		if err != nil {
			return err
		}
		if len(shipments) != len(shipmentIDs) {
			return domain.ErrInvalidShipmentSelection
		}
		for _, shipment := range shipments {
			if shipment.UserID != userID {
				return domain.ErrInvalidShipmentSelection
			}
			switch shipment.PaymentStatus {
			case shipmentdomain.PaymentStatusPending, shipmentdomain.PaymentStatusFailed:
			default:
				return domain.ErrInvalidShipmentSelection
			}
		}

		// FindByIDsForUpdate returns oldest first, which is the allocation order.
		remaining := req.Amount
		completed := make([]snowflake.ID, 0, len(shipments))
		for _, shipment := range shipments {
			if remaining < shipment.Price {
				break
			}
			remaining -= shipment.Price
			if err := s.shipmentRepo.UpdatePaymentStatus(ctx, tx, shipment.ID, shipmentdomain.PaymentStatusCompleted); err != nil {
				return err
			}
			completed = append(completed, shipment.ID)
		}

		now := s.clock.Now()
		payment := domain.Payment{
			ID:        s.genID.Generate(),
			UserID:    userID,
			Amount:    req.Amount,
			Currency:  customer.Currency,
			Method:    method,
			Notes:     strings.TrimSpace(req.Notes),
			CreatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}

		refType := ledgerdomain.ReferenceTypePayment
		refID := payment.ID
		entry, err := s.ledgerSvc.PostCredit(ctx, tx, ledgerdomain.PostRequest{
			UserID:        userID,
			Amount:        req.Amount,
			Currency:      customer.Currency,
			Description:   "Payment received (" + method + ")",
			ReferenceType: &refType,
			ReferenceID:   &refID,
		})
		if err != nil {
			return err
		}

		resp = domain.RecordPaymentResponse{
			Payment:            payment,
			LedgerEntry:        entry,
			CompletedShipments: completed,
			CurrentBalance:     entry.Balance,
		}
		return nil
	})
	if err != nil {
		return domain.RecordPaymentResponse{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayment(ctx, method)
	}

	paymentID := resp.Payment.ID.String()
	if err := s.auditSvc.AuditLog(ctx, "operator", nil, "payment.recorded", "payment", &paymentID, map[string]any{
		"user_id":             userID.String(),
		"amount":              req.Amount,
		"completed_shipments": len(resp.CompletedShipments),
		"balance":             resp.CurrentBalance,
	}); err != nil {
		s.log.Warn("audit append failed for payment", zap.String("payment_id", paymentID), zap.Error(err))
	}

	s.log.Info("payment recorded",
		zap.String("payment_id", paymentID),
		zap.String("user_id", userID.String()),
		zap.Int64("amount", req.Amount),
		zap.Int("completed_shipments", len(resp.CompletedShipments)),
	)
	return resp, nil
}
