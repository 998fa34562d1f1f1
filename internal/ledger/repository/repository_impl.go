package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/internal/ledger/domain"
	"github.com/harborline/freightway/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.LedgerEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) LockUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	// Advisory locks exist on postgres only. sqlite serializes writers
	// itself, so skipping the lock there is safe.
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", int64(userID)).Error
}

func (r *repo) LatestForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.LedgerEntry, error) {
	stmt := db.WithContext(ctx)
	// sqlite has no SELECT FOR UPDATE; its writes are serialized by the
	// database itself.
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return latest(stmt, userID)
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.LedgerEntry, error) {
	return latest(db.WithContext(ctx), userID)
}

func latest(stmt *gorm.DB, userID snowflake.ID) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := stmt.
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func applyFilter(stmt *gorm.DB, filter domain.EntryFilter) *gorm.DB {
	if filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.StartDate != nil {
		stmt = stmt.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		stmt = stmt.Where("created_at <= ?", *filter.EndDate)
	}
	return stmt
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.EntryFilter, page pagination.Pagination) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry

	stmt := applyFilter(db.WithContext(ctx).Model(&domain.LedgerEntry{}), filter)

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
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, filter domain.EntryFilter) (domain.EntryTotals, error) {
	var rows []struct {
		Type  domain.EntryType `gorm:"column:type"`
		Total int64            `gorm:"column:total"`
	}
	err := applyFilter(db.WithContext(ctx).Model(&domain.LedgerEntry{}), filter).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return domain.EntryTotals{}, err
	}

	var totals domain.EntryTotals
	for _, row := range rows {
		switch row.Type {
		case domain.EntryTypeDebit:
			totals.TotalDebit = row.Total
		case domain.EntryTypeCredit:
			totals.TotalCredit = row.Total
		}
	}
	return totals, nil
}

func (r *repo) OutstandingBalances(ctx context.Context, db *gorm.DB) ([]domain.OutstandingCustomer, error) {
	var out []domain.OutstandingCustomer
	err := db.WithContext(ctx).Raw(
		`SELECT e.user_id AS user_id,
			e.balance AS balance,
			(SELECT MAX(d.created_at) FROM ledger_entries d
			 WHERE d.user_id = e.user_id AND d.type = 'DEBIT') AS last_debit_at
		FROM ledger_entries e
		WHERE e.id = (
			SELECT x.id FROM ledger_entries x
			WHERE x.user_id = e.user_id
			ORDER BY x.created_at DESC, x.id DESC
			LIMIT 1
		)
		AND e.balance > 0
		ORDER BY e.balance DESC`,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
