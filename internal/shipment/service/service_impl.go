package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	containerdomain "github.com/harborline/freightway/internal/container/domain"
	"github.com/harborline/freightway/internal/shipment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	ContainerRepo containerdomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	containerRepo containerdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("shipment.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		containerRepo: p.ContainerRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateShipmentRequest) (domain.Shipment, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}
	if req.Price <= 0 {
		return domain.Shipment{}, domain.ErrInvalidPrice
	}
	if req.InsuranceValue < 0 {
		return domain.Shipment{}, domain.ErrInvalidPrice
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := time.Now().UTC()
	shipment := domain.Shipment{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Description:    strings.TrimSpace(req.Description),
		VIN:            strings.TrimSpace(req.VIN),
		Price:          int64(req.Price),
		InsuranceValue: int64(req.InsuranceValue),
		Currency:       currency,
		PaymentStatus:  domain.PaymentStatusPending,
		PaymentMode:    req.PaymentMode,
		Source:         req.Source,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &shipment); err != nil {
		return domain.Shipment{}, err
	}
	return shipment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Shipment, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}

	shipment, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Shipment{}, err
	}
	if shipment == nil {
		return domain.Shipment{}, domain.ErrNotFound
	}
	return *shipment, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Shipment, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil || parsed == 0 {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListByUser(ctx, s.db, parsed)
}

// Assign loads a shipment into a container. The container row is locked for
// the duration of the transaction so concurrent assignments cannot push the
// count past capacity.
func (s *Service) Assign(ctx context.Context, req domain.AssignRequest) (domain.Shipment, error) {
	shipmentID, err := snowflake.ParseString(strings.TrimSpace(req.ShipmentID))
	if err != nil || shipmentID == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}
	containerID, err := snowflake.ParseString(strings.TrimSpace(req.ContainerID))
	if err != nil || containerID == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}

	var assigned domain.Shipment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipment, err := s.repo.FindByID(ctx, tx, shipmentID)
		if err != nil {
			return err
		}
		if shipment == nil {
			return domain.ErrNotFound
		}
		if shipment.ContainerID != nil {
			return domain.ErrAlreadyAssigned
		}

		container, err := s.lockContainer(ctx, tx, containerID)
		if err != nil {
			return err
		}
		if container == nil {
			return containerdomain.ErrNotFound
		}
		if container.Status == containerdomain.StatusClosed {
			return domain.ErrContainerClosed
		}
		if container.CurrentCount >= container.MaxCapacity {
			return domain.ErrContainerFull
		}

		shipment.ContainerID = &containerID
		shipment.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, shipment); err != nil {
			return err
		}

		container.CurrentCount++
		container.UpdatedAt = time.Now().UTC()
		if err := s.containerRepo.Update(ctx, tx, container); err != nil {
			return err
		}

		assigned = *shipment
		return nil
	})
	if err != nil {
		return domain.Shipment{}, err
	}

	s.log.Info("shipment assigned",
		zap.String("shipment_id", shipmentID.String()),
		zap.String("container_id", containerID.String()),
	)
	return assigned, nil
}

// Unassign removes a shipment from its container and releases the slot.
func (s *Service) Unassign(ctx context.Context, shipmentID string) (domain.Shipment, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(shipmentID))
	if err != nil || parsed == 0 {
		return domain.Shipment{}, domain.ErrInvalidID
	}

	var released domain.Shipment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shipment, err := s.repo.FindByID(ctx, tx, parsed)
		if err != nil {
			return err
		}
		if shipment == nil {
			return domain.ErrNotFound
		}
		if shipment.ContainerID == nil {
			return domain.ErrNotAssigned
		}

		container, err := s.lockContainer(ctx, tx, *shipment.ContainerID)
		if err != nil {
			return err
		}

		shipment.ContainerID = nil
		shipment.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, shipment); err != nil {
			return err
		}

		if container != nil && container.CurrentCount > 0 {
			container.CurrentCount--
			container.UpdatedAt = time.Now().UTC()
			if err := s.containerRepo.Update(ctx, tx, container); err != nil {
				return err
			}
		}

		released = *shipment
		return nil
	})
	if err != nil {
		return domain.Shipment{}, err
	}
	return released, nil
}

// lockContainer reads the container with a row lock where the dialect
// supports one. sqlite has no SELECT FOR UPDATE; its writes are serialized
// by the database itself.
func (s *Service) lockContainer(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*containerdomain.Container, error) {
	stmt := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var container containerdomain.Container
	err := stmt.First(&container, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}
