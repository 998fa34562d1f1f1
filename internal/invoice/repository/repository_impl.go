package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// InsertIgnoreDuplicate relies on the partial unique index
// ux_user_invoices_container_user (container_id, user_id) WHERE status <>
// 'CANCELLED'. Both postgres and sqlite accept the partial conflict target.
func (r *repo) InsertIgnoreDuplicate(ctx context.Context, db *gorm.DB, invoice *domain.UserInvoice) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO user_invoices (
			id, invoice_number, container_id, user_id, status,
			subtotal, tax, discount, total, currency,
			payment_method, payment_ref, notes,
			issued_at, due_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (container_id, user_id) WHERE status <> 'CANCELLED' DO NOTHING`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.ContainerID,
		invoice.UserID,
		invoice.Status,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Discount,
		invoice.Total,
		invoice.Currency,
		invoice.PaymentMethod,
		invoice.PaymentRef,
		invoice.Notes,
		invoice.IssuedAt,
		invoice.DueAt,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) HasActiveInvoice(ctx context.Context, db *gorm.DB, containerID, userID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.UserInvoice{}).
		Where("container_id = ? AND user_id = ? AND status <> ?", containerID, userID, domain.InvoiceStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) InsertLineItems(ctx context.Context, db *gorm.DB, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.UserInvoice, error) {
	var invoice domain.UserInvoice
	err := db.WithContext(ctx).
		Preload("LineItems").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) ListByContainer(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]domain.UserInvoice, error) {
	var invoices []domain.UserInvoice
	err := db.WithContext(ctx).
		Preload("LineItems").
		Where("container_id = ?", containerID).
		Order("created_at asc, id asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.UserInvoice, error) {
	var invoices []domain.UserInvoice
	err := db.WithContext(ctx).
		Preload("LineItems").
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) NextInvoiceNumber(ctx context.Context, db *gorm.DB, year int) (int64, error) {
	var seq int64
	err := db.WithContext(ctx).Raw(
		`INSERT INTO invoice_number_counters (year, last_value)
		VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = invoice_number_counters.last_value + 1
		RETURNING last_value`,
		year,
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
