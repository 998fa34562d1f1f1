package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/harborline/freightway/internal/clock"
	"github.com/harborline/freightway/internal/config"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	"github.com/harborline/freightway/internal/lock"
	obsmetrics "github.com/harborline/freightway/internal/observability/metrics"
	"github.com/harborline/freightway/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockTTL = 10 * time.Second

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        ledgerdomain.Repository
	Clock       clock.Clock
	Locker      *lock.Locker                    `optional:"true"`
	Receivables *config.ReceivablesConfigHolder `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics             `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        ledgerdomain.Repository
	clock       clock.Clock
	locker      *lock.Locker
	receivables *config.ReceivablesConfigHolder
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		clock:       p.Clock,
		locker:      p.Locker,
		receivables: p.Receivables,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) PostDebit(ctx context.Context, tx *gorm.DB, req ledgerdomain.PostRequest) (ledgerdomain.LedgerEntry, error) {
	return s.post(ctx, tx, ledgerdomain.EntryTypeDebit, req)
}

func (s *Service) PostCredit(ctx context.Context, tx *gorm.DB, req ledgerdomain.PostRequest) (ledgerdomain.LedgerEntry, error) {
	return s.post(ctx, tx, ledgerdomain.EntryTypeCredit, req)
}

// post appends one entry. Postings for a customer are serialized by a
// transaction-scoped advisory lock on the customer id, taken before the
// latest balance is read. The lock covers accounts with no entries yet,
// which a locked read of the latest row cannot. The redis lock, when
// configured, additionally spaces contention out across replicas.
func (s *Service) post(ctx context.Context, tx *gorm.DB, entryType ledgerdomain.EntryType, req ledgerdomain.PostRequest) (ledgerdomain.LedgerEntry, error) {
	if req.UserID == 0 {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return ledgerdomain.LedgerEntry{}, ledgerdomain.ErrInvalidAmount
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	if s.locker != nil {
		key := "ledger:user:" + req.UserID.String()
		token, err := s.locker.Acquire(ctx, key, lockTTL)
		if err != nil {
			return ledgerdomain.LedgerEntry{}, err
		}
		defer func() {
			if err := s.locker.Release(ctx, key, token); err != nil {
				s.log.Warn("ledger lock release failed", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	var entry ledgerdomain.LedgerEntry
	write := func(tx *gorm.DB) error {
		if err := s.repo.LockUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		latest, err := s.repo.LatestForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		var prior int64
		if latest != nil {
			prior = latest.Balance
		}

		entry = ledgerdomain.LedgerEntry{
			ID:            s.genID.Generate(),
			UserID:        req.UserID,
			Type:          entryType,
			Amount:        req.Amount,
			Balance:       ledgerdomain.NextBalance(prior, entryType, req.Amount),
			Currency:      currency,
			Description:   strings.TrimSpace(req.Description),
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
			CreatedAt:     s.clock.Now(),
		}
		return s.repo.Insert(ctx, tx, &entry)
	}

	var err error
	if tx != nil {
		err = write(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(write)
	}
	if err != nil {
		return ledgerdomain.LedgerEntry{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(entryType))
	}
	s.log.Info("ledger entry posted",
		zap.String("user_id", req.UserID.String()),
		zap.String("type", string(entryType)),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance", entry.Balance),
	)
	return entry, nil
}

func (s *Service) CurrentBalance(ctx context.Context, userID snowflake.ID) (int64, error) {
	if userID == 0 {
		return 0, ledgerdomain.ErrInvalidUser
	}
	latest, err := s.repo.Latest(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return latest.Balance, nil
}

func (s *Service) List(ctx context.Context, req ledgerdomain.ListEntriesRequest) (ledgerdomain.ListEntriesResponse, error) {
	filter := ledgerdomain.EntryFilter{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	if strings.TrimSpace(req.UserID) != "" {
		userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
		if err != nil || userID == 0 {
			return ledgerdomain.ListEntriesResponse{}, ledgerdomain.ErrInvalidUser
		}
		filter.UserID = userID
	}

	switch entryType := ledgerdomain.EntryType(strings.ToUpper(strings.TrimSpace(req.Type))); entryType {
	case "", ledgerdomain.EntryTypeDebit, ledgerdomain.EntryTypeCredit:
		filter.Type = entryType
	default:
		return ledgerdomain.ListEntriesResponse{}, ledgerdomain.ErrInvalidType
	}

	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return ledgerdomain.ListEntriesResponse{}, ledgerdomain.ErrInvalidTimeRange
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	entries, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return ledgerdomain.ListEntriesResponse{}, err
	}

	totals, err := s.repo.Totals(ctx, s.db, filter)
	if err != nil {
		return ledgerdomain.ListEntriesResponse{}, err
	}

	var currentBalance int64
	if filter.UserID != 0 {
		currentBalance, err = s.CurrentBalance(ctx, filter.UserID)
		if err != nil {
			return ledgerdomain.ListEntriesResponse{}, err
		}
	}

	pageInfo := pagination.BuildCursorPageInfo(entries, pageSize, func(entry *ledgerdomain.LedgerEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(entries) > int(pageSize) {
		entries = entries[:pageSize]
	}

	items := make([]ledgerdomain.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		items = append(items, *entry)
	}

	resp := ledgerdomain.ListEntriesResponse{
		Entries:        items,
		TotalDebit:     totals.TotalDebit,
		TotalCredit:    totals.TotalCredit,
		CurrentBalance: currentBalance,
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// ReceivablesSummary buckets outstanding balances by the age of each
// customer's most recent debit, using the hot-reloaded receivables config.
func (s *Service) ReceivablesSummary(ctx context.Context) (ledgerdomain.AgingSummary, error) {
	outstanding, err := s.repo.OutstandingBalances(ctx, s.db)
	if err != nil {
		return ledgerdomain.AgingSummary{}, err
	}

	cfg := config.DefaultReceivablesConfig()
	if s.receivables != nil {
		cfg = s.receivables.Get()
	}

	now := s.clock.Now()
	summary := ledgerdomain.AgingSummary{
		Buckets: make([]ledgerdomain.AgingSummaryBucket, len(cfg.AgingBuckets)),
	}
	for i, bucket := range cfg.AgingBuckets {
		summary.Buckets[i] = ledgerdomain.AgingSummaryBucket{Label: bucket.Label}
	}

	for _, customer := range outstanding {
		days := int(now.Sub(customer.LastDebitAt).Hours() / 24)
		customer.RiskLevel = riskLevelFor(cfg, customer.Balance, days)
		for i, bucket := range cfg.AgingBuckets {
			if days < bucket.MinDays {
				continue
			}
			if bucket.MaxDays != nil && days > *bucket.MaxDays {
				continue
			}
			summary.Buckets[i].Outstanding += customer.Balance
			summary.Buckets[i].Customers = append(summary.Buckets[i].Customers, customer)
			break
		}
	}
	return summary, nil
}

// riskLevelFor picks the first configured level whose thresholds the
// customer meets; levels are ordered most severe first.
func riskLevelFor(cfg config.ReceivablesConfig, outstanding int64, days int) string {
	for _, level := range cfg.RiskLevels {
		if outstanding >= level.MinOutstanding && days >= level.MinDays {
			return level.Level
		}
	}
	return "low"
}
