package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/internal/shipment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, shipment *domain.Shipment) error {
	return db.WithContext(ctx).Create(shipment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Shipment, error) {
	var shipment domain.Shipment
	err := db.WithContext(ctx).First(&shipment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipment, nil
}

func (r *repo) FindByIDsForUpdate(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Shipment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	stmt := db.WithContext(ctx)
	// sqlite has no SELECT FOR UPDATE; its writes are serialized by the
	// database itself.
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var shipments []domain.Shipment
	err := stmt.
		Where("id IN ?", ids).
		Order("created_at asc, id asc").
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Shipment, error) {
	var shipments []domain.Shipment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc, id asc").
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repo) ListByContainer(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]domain.Shipment, error) {
	var shipments []domain.Shipment
	err := db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("created_at asc, id asc").
		Find(&shipments).Error
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, shipment *domain.Shipment) error {
	return db.WithContext(ctx).Save(shipment).Error
}

func (r *repo) UpdatePaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.PaymentStatus) error {
	return db.WithContext(ctx).
		Model(&domain.Shipment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payment_status": status,
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}
