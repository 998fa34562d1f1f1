package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/internal/container/domain"
	"github.com/harborline/freightway/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, container *domain.Container) error {
	return db.WithContext(ctx).Create(container).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Container, error) {
	var container domain.Container
	err := db.WithContext(ctx).First(&container, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListContainerRequest, page pagination.Pagination) ([]*domain.Container, error) {
	var containers []*domain.Container

	stmt := db.WithContext(ctx).Model(&domain.Container{})
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, cursor.ID)
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&containers).Error
	if err != nil {
		return nil, err
	}
	return containers, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, container *domain.Container) error {
	return db.WithContext(ctx).Save(container).Error
}

// DeleteCascade removes the container and every record it owns. The caller
// wraps this in a transaction after checking the shipment guard.
func (r *repo) DeleteCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	stmt := db.WithContext(ctx)

	if err := stmt.Exec(
		`DELETE FROM invoice_line_items
		WHERE invoice_id IN (SELECT id FROM user_invoices WHERE container_id = ?)`,
		id,
	).Error; err != nil {
		return err
	}
	if err := stmt.Exec(`DELETE FROM user_invoices WHERE container_id = ?`, id).Error; err != nil {
		return err
	}
	if err := stmt.Exec(`DELETE FROM container_invoices WHERE container_id = ?`, id).Error; err != nil {
		return err
	}
	if err := stmt.Exec(`DELETE FROM container_expenses WHERE container_id = ?`, id).Error; err != nil {
		return err
	}
	if err := stmt.Exec(`DELETE FROM tracking_events WHERE container_id = ?`, id).Error; err != nil {
		return err
	}
	return stmt.Exec(`DELETE FROM containers WHERE id = ?`, id).Error
}

func (r *repo) InsertExpense(ctx context.Context, db *gorm.DB, expense *domain.Expense) error {
	return db.WithContext(ctx).Create(expense).Error
}

func (r *repo) FindExpense(ctx context.Context, db *gorm.DB, containerID, expenseID snowflake.ID) (*domain.Expense, error) {
	var expense domain.Expense
	err := db.WithContext(ctx).
		First(&expense, "id = ? AND container_id = ?", expenseID, containerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &expense, nil
}

func (r *repo) DeleteExpense(ctx context.Context, db *gorm.DB, containerID, expenseID snowflake.ID) error {
	return db.WithContext(ctx).
		Exec(`DELETE FROM container_expenses WHERE id = ? AND container_id = ?`, expenseID, containerID).Error
}

func (r *repo) ListExpenses(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]domain.Expense, error) {
	var expenses []domain.Expense
	err := db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("incurred_at asc, id asc").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.ContainerInvoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) ListInvoices(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]domain.ContainerInvoice, error) {
	var invoices []domain.ContainerInvoice
	err := db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("issued_at asc, id asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) InsertTrackingEvent(ctx context.Context, db *gorm.DB, event *domain.TrackingEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) ListTrackingEvents(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]domain.TrackingEvent, error) {
	var events []domain.TrackingEvent
	err := db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("occurred_at desc, id desc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) SumExpenses(ctx context.Context, db *gorm.DB, containerID snowflake.ID) (int64, error) {
	return sumColumn(ctx, db, "container_expenses", containerID)
}

func (r *repo) SumInvoices(ctx context.Context, db *gorm.DB, containerID snowflake.ID) (int64, error) {
	return sumColumn(ctx, db, "container_invoices", containerID)
}

func sumColumn(ctx context.Context, db *gorm.DB, table string, containerID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(amount), 0) FROM `+table+` WHERE container_id = ?`, containerID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
