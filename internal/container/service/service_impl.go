package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/harborline/freightway/internal/audit/domain"
	"github.com/harborline/freightway/internal/container/domain"
	invoicedomain "github.com/harborline/freightway/internal/invoice/domain"
	obsmetrics "github.com/harborline/freightway/internal/observability/metrics"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	"github.com/harborline/freightway/pkg/db"
	"github.com/harborline/freightway/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	ShipmentRepo shipmentdomain.Repository
	InvoiceRepo  invoicedomain.Repository
	AuditSvc     auditdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	shipmentRepo shipmentdomain.Repository
	invoiceRepo  invoicedomain.Repository
	auditSvc     auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("container.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		shipmentRepo: p.ShipmentRepo,
		invoiceRepo:  p.InvoiceRepo,
		auditSvc:     p.AuditSvc,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateContainerRequest) (domain.Container, error) {
	number := strings.ToUpper(strings.TrimSpace(req.ContainerNumber))
	if !domain.IsValidContainerNumber(number) {
		return domain.Container{}, domain.ErrInvalidContainerNumber
	}
	if req.MaxCapacity < 1 {
		return domain.Container{}, domain.ErrInvalidCapacity
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	container := domain.Container{
		ID:              s.genID.Generate(),
		ContainerNumber: number,
		Status:          domain.StatusCreated,
		MaxCapacity:     req.MaxCapacity,
		CurrentCount:    0,
		Progress:        0,
		Vessel:          strings.TrimSpace(req.Vessel),
		OriginPort:      strings.TrimSpace(req.OriginPort),
		DestinationPort: strings.TrimSpace(req.DestinationPort),
		Currency:        currency,
		Metadata:        datatypes.JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &container); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Container{}, domain.ErrDuplicateNumber
		}
		return domain.Container{}, err
	}
	return container, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Detail, error) {
	containerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || containerID == 0 {
		return domain.Detail{}, domain.ErrInvalidID
	}

	container, err := s.repo.FindByID(ctx, s.db, containerID)
	if err != nil {
		return domain.Detail{}, err
	}
	if container == nil {
		return domain.Detail{}, domain.ErrNotFound
	}

	shipments, err := s.shipmentRepo.ListByContainer(ctx, s.db, containerID)
	if err != nil {
		return domain.Detail{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, s.db, containerID)
	if err != nil {
		return domain.Detail{}, err
	}
	invoices, err := s.repo.ListInvoices(ctx, s.db, containerID)
	if err != nil {
		return domain.Detail{}, err
	}
	userInvoices, err := s.invoiceRepo.ListByContainer(ctx, s.db, containerID)
	if err != nil {
		return domain.Detail{}, err
	}
	events, err := s.repo.ListTrackingEvents(ctx, s.db, containerID)
	if err != nil {
		return domain.Detail{}, err
	}
	totals, err := s.totals(ctx, containerID)
	if err != nil {
		return domain.Detail{}, err
	}

	return domain.Detail{
		Container:      *container,
		Shipments:      shipments,
		Expenses:       expenses,
		Invoices:       invoices,
		UserInvoices:   userInvoices,
		TrackingEvents: events,
		Totals:         totals,
	}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListContainerRequest) (domain.ListContainerResponse, error) {
	if req.Status != "" && !domain.IsValidStatus(req.Status) {
		return domain.ListContainerResponse{}, domain.ErrInvalidStatus
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, req, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListContainerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(container *domain.Container) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        container.ID.String(),
			CreatedAt: container.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	containers := make([]domain.Container, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		containers = append(containers, *item)
	}

	resp := domain.ListContainerResponse{Containers: containers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// Update applies operator edits. A status change appends a tracking event
// in the same transaction as the container write; the audit entry is
// recorded after commit, best effort.
func (s *Service) Update(ctx context.Context, req domain.UpdateContainerRequest) (domain.Container, error) {
	containerID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil || containerID == 0 {
		return domain.Container{}, domain.ErrInvalidID
	}
	if req.Status != nil && !domain.IsValidStatus(*req.Status) {
		return domain.Container{}, domain.ErrInvalidStatus
	}

	var (
		updated   domain.Container
		oldStatus domain.Status
		changed   bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		container, err := s.repo.FindByID(ctx, tx, containerID)
		if err != nil {
			return err
		}
		if container == nil {
			return domain.ErrNotFound
		}

		now := time.Now().UTC()
		oldStatus = container.Status

		if req.Vessel != nil {
			container.Vessel = strings.TrimSpace(*req.Vessel)
		}
		if req.Progress != nil {
			container.Progress = domain.ClampProgress(*req.Progress)
		}
		if req.Status != nil && *req.Status != container.Status {
			changed = true
			container.Status = *req.Status
			switch *req.Status {
			case domain.StatusInTransit:
				if container.DepartedAt == nil {
					container.DepartedAt = &now
				}
			case domain.StatusArrivedPort:
				if container.ArrivedAt == nil {
					container.ArrivedAt = &now
				}
			}

			event := domain.TrackingEvent{
				ID:          s.genID.Generate(),
				ContainerID: containerID,
				Status:      container.Status,
				Progress:    container.Progress,
				Location:    strings.TrimSpace(req.Location),
				Source:      req.Source,
				OccurredAt:  now,
				CreatedAt:   now,
			}
			if err := s.repo.InsertTrackingEvent(ctx, tx, &event); err != nil {
				return err
			}
		}

		container.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, container); err != nil {
			return err
		}
		updated = *container
		return nil
	})
	if err != nil {
		return domain.Container{}, err
	}

	if changed {
		if s.obsMetrics != nil {
			s.obsMetrics.RecordStatusChange(ctx, string(updated.Status))
		}
		targetID := containerID.String()
		if err := s.auditSvc.AuditLog(ctx, "operator", nil, "container.status_changed", "container", &targetID, map[string]any{
			"old_status": string(oldStatus),
			"new_status": string(updated.Status),
			"progress":   updated.Progress,
		}); err != nil {
			s.log.Warn("audit append failed for status change", zap.String("container_id", targetID), zap.Error(err))
		}
	}
	return updated, nil
}

// Delete removes an empty container and everything it owns. Occupied
// containers are rejected outright; the guard is a precondition, not a
// transient failure.
func (s *Service) Delete(ctx context.Context, id string) error {
	containerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || containerID == 0 {
		return domain.ErrInvalidID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		container, err := s.repo.FindByID(ctx, tx, containerID)
		if err != nil {
			return err
		}
		if container == nil {
			return domain.ErrNotFound
		}
		if container.CurrentCount > 0 {
			return domain.ErrHasShipments
		}
		return s.repo.DeleteCascade(ctx, tx, containerID)
	})
	if err != nil {
		return err
	}

	targetID := containerID.String()
	if err := s.auditSvc.AuditLog(ctx, "operator", nil, "container.deleted", "container", &targetID, nil); err != nil {
		s.log.Warn("audit append failed for container delete", zap.String("container_id", targetID), zap.Error(err))
	}
	return nil
}

func (s *Service) AddExpense(ctx context.Context, req domain.AddExpenseRequest) (domain.Expense, error) {
	containerID, err := snowflake.ParseString(strings.TrimSpace(req.ContainerID))
	if err != nil || containerID == 0 {
		return domain.Expense{}, domain.ErrInvalidID
	}
	if req.Amount <= 0 || strings.TrimSpace(req.Type) == "" {
		return domain.Expense{}, domain.ErrInvalidExpense
	}

	container, err := s.repo.FindByID(ctx, s.db, containerID)
	if err != nil {
		return domain.Expense{}, err
	}
	if container == nil {
		return domain.Expense{}, domain.ErrNotFound
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = container.Currency
	}

	now := time.Now().UTC()
	incurredAt := now
	if req.IncurredAt != nil {
		incurredAt = req.IncurredAt.UTC()
	}

	expense := domain.Expense{
		ID:          s.genID.Generate(),
		ContainerID: containerID,
		Type:        strings.TrimSpace(req.Type),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount.MinorUnits(),
		Currency:    currency,
		IncurredAt:  incurredAt,
		CreatedAt:   now,
	}
	if err := s.repo.InsertExpense(ctx, s.db, &expense); err != nil {
		return domain.Expense{}, err
	}
	return expense, nil
}

func (s *Service) DeleteExpense(ctx context.Context, containerID, expenseID string) error {
	cID, err := snowflake.ParseString(strings.TrimSpace(containerID))
	if err != nil || cID == 0 {
		return domain.ErrInvalidID
	}
	eID, err := snowflake.ParseString(strings.TrimSpace(expenseID))
	if err != nil || eID == 0 {
		return domain.ErrInvalidID
	}

	expense, err := s.repo.FindExpense(ctx, s.db, cID, eID)
	if err != nil {
		return err
	}
	if expense == nil {
		return domain.ErrExpenseNotFound
	}
	return s.repo.DeleteExpense(ctx, s.db, cID, eID)
}

func (s *Service) AddInvoice(ctx context.Context, req domain.AddContainerInvoiceRequest) (domain.ContainerInvoice, error) {
	containerID, err := snowflake.ParseString(strings.TrimSpace(req.ContainerID))
	if err != nil || containerID == 0 {
		return domain.ContainerInvoice{}, domain.ErrInvalidID
	}
	if req.Amount <= 0 {
		return domain.ContainerInvoice{}, domain.ErrInvalidExpense
	}

	container, err := s.repo.FindByID(ctx, s.db, containerID)
	if err != nil {
		return domain.ContainerInvoice{}, err
	}
	if container == nil {
		return domain.ContainerInvoice{}, domain.ErrNotFound
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = container.Currency
	}

	now := time.Now().UTC()
	issuedAt := now
	if req.IssuedAt != nil {
		issuedAt = req.IssuedAt.UTC()
	}

	invoice := domain.ContainerInvoice{
		ID:          s.genID.Generate(),
		ContainerID: containerID,
		Amount:      req.Amount.MinorUnits(),
		Currency:    currency,
		Status:      domain.ContainerInvoiceStatusPending,
		IssuedAt:    issuedAt,
		CreatedAt:   now,
	}
	if err := s.repo.InsertInvoice(ctx, s.db, &invoice); err != nil {
		return domain.ContainerInvoice{}, err
	}
	return invoice, nil
}

func (s *Service) Totals(ctx context.Context, id string) (domain.Totals, error) {
	containerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || containerID == 0 {
		return domain.Totals{}, domain.ErrInvalidID
	}

	container, err := s.repo.FindByID(ctx, s.db, containerID)
	if err != nil {
		return domain.Totals{}, err
	}
	if container == nil {
		return domain.Totals{}, domain.ErrNotFound
	}
	return s.totals(ctx, containerID)
}

func (s *Service) totals(ctx context.Context, containerID snowflake.ID) (domain.Totals, error) {
	expenses, err := s.repo.SumExpenses(ctx, s.db, containerID)
	if err != nil {
		return domain.Totals{}, err
	}
	invoices, err := s.repo.SumInvoices(ctx, s.db, containerID)
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.Totals{
		Expenses:  expenses,
		Invoices:  invoices,
		NetProfit: invoices - expenses,
	}, nil
}
