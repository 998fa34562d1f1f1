package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/harborline/freightway/internal/clock"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	ledgerrepository "github.com/harborline/freightway/internal/ledger/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLedgerService(t *testing.T) (ledgerdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	return newLedgerServiceWithClock(t, clock.NewSystem())
}

func newLedgerServiceWithClock(t *testing.T, clk clock.Clock) (ledgerdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerdomain.LedgerEntry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  ledgerrepository.Provide(),
		Clock: clk,
	})
	return svc, db, node
}

func TestPost_RunningBalance(t *testing.T) {
	svc, _, node := newLedgerService(t)
	ctx := context.Background()
	userID := node.Generate()

	debit, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{
		UserID:      userID,
		Amount:      210000,
		Currency:    "USD",
		Description: "Invoice INV-2026-000001",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(210000), debit.Balance)

	credit, err := svc.PostCredit(ctx, nil, ledgerdomain.PostRequest{
		UserID:      userID,
		Amount:      50000,
		Currency:    "USD",
		Description: "Payment received",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(160000), credit.Balance)

	// an overpayment drives the balance negative, meaning credit on account
	over, err := svc.PostCredit(ctx, nil, ledgerdomain.PostRequest{
		UserID:   userID,
		Amount:   200000,
		Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-40000), over.Balance)

	balance, err := svc.CurrentBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(-40000), balance)
}

func TestPost_BalancesIsolatedPerUser(t *testing.T) {
	svc, _, node := newLedgerService(t)
	ctx := context.Background()
	u1 := node.Generate()
	u2 := node.Generate()

	_, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: u1, Amount: 10000, Currency: "USD"})
	require.NoError(t, err)
	entry, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: u2, Amount: 7000, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), entry.Balance)

	balance, err := svc.CurrentBalance(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)
}

func TestPost_RejectsInvalidInput(t *testing.T) {
	svc, _, node := newLedgerService(t)
	ctx := context.Background()

	_, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: node.Generate(), Amount: 0, Currency: "USD"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: node.Generate(), Amount: -500, Currency: "USD"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.PostCredit(ctx, nil, ledgerdomain.PostRequest{UserID: 0, Amount: 100, Currency: "USD"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidUser)
}

func TestCurrentBalance_EmptyAccountIsZero(t *testing.T) {
	svc, _, node := newLedgerService(t)

	balance, err := svc.CurrentBalance(context.Background(), node.Generate())
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestList_TotalsAndFilters(t *testing.T) {
	svc, _, node := newLedgerService(t)
	ctx := context.Background()
	userID := node.Generate()

	_, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 30000, Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 12000, Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.PostCredit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 15000, Currency: "USD"})
	require.NoError(t, err)

	resp, err := svc.List(ctx, ledgerdomain.ListEntriesRequest{UserID: userID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 3)
	assert.Equal(t, int64(42000), resp.TotalDebit)
	assert.Equal(t, int64(15000), resp.TotalCredit)
	assert.Equal(t, int64(27000), resp.CurrentBalance)

	// replay the running balance oldest first
	entries := make([]ledgerdomain.LedgerEntry, len(resp.Entries))
	copy(entries, resp.Entries)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	var running int64
	for _, entry := range entries {
		running = ledgerdomain.NextBalance(running, entry.Type, entry.Amount)
		assert.Equal(t, running, entry.Balance)
	}

	debitsOnly, err := svc.List(ctx, ledgerdomain.ListEntriesRequest{UserID: userID.String(), Type: "debit"})
	require.NoError(t, err)
	assert.Len(t, debitsOnly.Entries, 2)
	for _, entry := range debitsOnly.Entries {
		assert.Equal(t, ledgerdomain.EntryTypeDebit, entry.Type)
	}

	_, err = svc.List(ctx, ledgerdomain.ListEntriesRequest{UserID: userID.String(), Type: "refund"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidType)
}

func TestList_Pagination(t *testing.T) {
	svc, _, node := newLedgerService(t)
	ctx := context.Background()
	userID := node.Generate()

	for i := 0; i < 5; i++ {
		_, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 1000, Currency: "USD"})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, ledgerdomain.ListEntriesRequest{UserID: userID.String(), PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, first.Entries, 2)
	require.NotEmpty(t, first.NextPageToken)

	seen := map[snowflake.ID]bool{}
	for _, entry := range first.Entries {
		seen[entry.ID] = true
	}

	second, err := svc.List(ctx, ledgerdomain.ListEntriesRequest{UserID: userID.String(), PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, second.Entries, 2)
	for _, entry := range second.Entries {
		assert.False(t, seen[entry.ID], "page overlap on entry %s", entry.ID)
	}

	_, err = svc.List(ctx, ledgerdomain.ListEntriesRequest{UserID: userID.String(), PageToken: "not-a-token"})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidPageToken)
}

func TestReceivablesSummary_OnlyPositiveBalances(t *testing.T) {
	svc, _, node := newLedgerService(t)
	ctx := context.Background()

	owing := node.Generate()
	settled := node.Generate()

	_, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: owing, Amount: 80000, Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: settled, Amount: 40000, Currency: "USD"})
	require.NoError(t, err)
	_, err = svc.PostCredit(ctx, nil, ledgerdomain.PostRequest{UserID: settled, Amount: 40000, Currency: "USD"})
	require.NoError(t, err)

	summary, err := svc.ReceivablesSummary(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Buckets)

	// a fresh debit lands in the first bucket; the settled customer is absent
	first := summary.Buckets[0]
	assert.Equal(t, int64(80000), first.Outstanding)
	require.Len(t, first.Customers, 1)
	assert.Equal(t, owing, first.Customers[0].UserID)
	assert.Equal(t, "low", first.Customers[0].RiskLevel)
	for _, bucket := range summary.Buckets[1:] {
		assert.Empty(t, bucket.Customers)
	}
}

func TestPost_FirstEntriesForNewAccountChain(t *testing.T) {
	svc, db, node := newLedgerService(t)
	ctx := context.Background()
	userID := node.Generate()

	// The per-customer lock must be callable inside a transaction even on
	// dialects without advisory locks.
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ledgerrepository.Provide().LockUser(ctx, tx, userID)
	}))

	// An account with no history starts its chain at zero; the next
	// posting must see the first one as its prior balance.
	first, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 40000, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, int64(40000), first.Balance)

	second, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 25000, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, int64(65000), second.Balance)

	balance, err := svc.CurrentBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(65000), balance)
}

func TestReceivablesSummary_AgesByLastDebit(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, _, node := newLedgerServiceWithClock(t, clk)
	ctx := context.Background()

	aged := node.Generate()
	fresh := node.Generate()

	_, err := svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: aged, Amount: 300000, Currency: "USD"})
	require.NoError(t, err)

	clk.Advance(45 * 24 * time.Hour)

	_, err = svc.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: fresh, Amount: 60000, Currency: "USD"})
	require.NoError(t, err)

	summary, err := svc.ReceivablesSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Buckets, 3)

	assert.Equal(t, int64(60000), summary.Buckets[0].Outstanding)
	require.Len(t, summary.Buckets[0].Customers, 1)
	assert.Equal(t, fresh, summary.Buckets[0].Customers[0].UserID)
	assert.Equal(t, "low", summary.Buckets[0].Customers[0].RiskLevel)

	assert.Equal(t, int64(300000), summary.Buckets[1].Outstanding)
	require.Len(t, summary.Buckets[1].Customers, 1)
	assert.Equal(t, aged, summary.Buckets[1].Customers[0].UserID)
	assert.Equal(t, "medium", summary.Buckets[1].Customers[0].RiskLevel)

	assert.Empty(t, summary.Buckets[2].Customers)
}
