package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/harborline/freightway/internal/audit/domain"
	auditrepository "github.com/harborline/freightway/internal/audit/repository"
	auditservice "github.com/harborline/freightway/internal/audit/service"
	"github.com/harborline/freightway/internal/clock"
	customerdomain "github.com/harborline/freightway/internal/customer/domain"
	customerrepository "github.com/harborline/freightway/internal/customer/repository"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	ledgerrepository "github.com/harborline/freightway/internal/ledger/repository"
	ledgerservice "github.com/harborline/freightway/internal/ledger/service"
	"github.com/harborline/freightway/internal/payment/domain"
	paymentrepository "github.com/harborline/freightway/internal/payment/repository"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	shipmentrepository "github.com/harborline/freightway/internal/shipment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    domain.Service
	ledger ledgerdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&shipmentdomain.Shipment{},
		&domain.Payment{},
		&ledgerdomain.LedgerEntry{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  ledgerrepository.Provide(),
		Clock: clock.NewSystem(),
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	svc := NewService(Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Repo:         paymentrepository.Provide(),
		ShipmentRepo: shipmentrepository.Provide(),
		CustomerRepo: customerrepository.Provide(),
		LedgerSvc:    ledgerSvc,
		AuditSvc:     auditSvc,
		Clock:        clock.NewSystem(),
	})

	return &fixture{db: db, node: node, svc: svc, ledger: ledgerSvc}
}

func (f *fixture) createCustomer(t *testing.T) snowflake.ID {
	t.Helper()
	customer := customerdomain.Customer{
		ID:        f.node.Generate(),
		Name:      "Customer",
		Email:     f.node.Generate().String() + "@example.com",
		Currency:  "USD",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&customer).Error)
	return customer.ID
}

func (f *fixture) createShipment(t *testing.T, userID snowflake.ID, price int64, status shipmentdomain.PaymentStatus, createdAt time.Time) snowflake.ID {
	t.Helper()
	shipment := shipmentdomain.Shipment{
		ID:            f.node.Generate(),
		UserID:        userID,
		Description:   "Vehicle",
		Price:         price,
		Currency:      "USD",
		PaymentStatus: status,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, f.db.Create(&shipment).Error)
	return shipment.ID
}

func (f *fixture) paymentStatus(t *testing.T, id snowflake.ID) shipmentdomain.PaymentStatus {
	t.Helper()
	var shipment shipmentdomain.Shipment
	require.NoError(t, f.db.First(&shipment, "id = ?", id).Error)
	return shipment.PaymentStatus
}

func TestRecordPayment_FullCoverCompletesShipments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createCustomer(t)

	base := time.Now().UTC().Add(-time.Hour)
	s1 := f.createShipment(t, userID, 100000, shipmentdomain.PaymentStatusPending, base)
	s2 := f.createShipment(t, userID, 200000, shipmentdomain.PaymentStatusPending, base.Add(time.Minute))

	// prior invoice debit of $300 on the account
	_, err := f.ledger.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 300000, Currency: "USD"})
	require.NoError(t, err)

	resp, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:        userID.String(),
		ShipmentIDs:   []string{s1.String(), s2.String()},
		Amount:        300000,
		PaymentMethod: "wire",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []snowflake.ID{s1, s2}, resp.CompletedShipments)
	assert.Equal(t, int64(0), resp.CurrentBalance)
	assert.Equal(t, ledgerdomain.EntryTypeCredit, resp.LedgerEntry.Type)
	assert.Equal(t, int64(300000), resp.LedgerEntry.Amount)
	assert.Equal(t, "wire", resp.Payment.Method)

	assert.Equal(t, shipmentdomain.PaymentStatusCompleted, f.paymentStatus(t, s1))
	assert.Equal(t, shipmentdomain.PaymentStatusCompleted, f.paymentStatus(t, s2))
}

func TestRecordPayment_PartialAmountLeavesShipmentPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createCustomer(t)

	base := time.Now().UTC().Add(-time.Hour)
	older := f.createShipment(t, userID, 100000, shipmentdomain.PaymentStatusPending, base)
	newer := f.createShipment(t, userID, 200000, shipmentdomain.PaymentStatusPending, base.Add(time.Minute))

	resp, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      userID.String(),
		ShipmentIDs: []string{newer.String(), older.String()},
		Amount:      150000,
	})
	require.NoError(t, err)

	// oldest first: $1000 covers the older shipment, the $500 left cannot
	// cover the newer one
	assert.Equal(t, []snowflake.ID{older}, resp.CompletedShipments)
	assert.Equal(t, shipmentdomain.PaymentStatusCompleted, f.paymentStatus(t, older))
	assert.Equal(t, shipmentdomain.PaymentStatusPending, f.paymentStatus(t, newer))

	// the full received amount still lands on the ledger
	assert.Equal(t, int64(150000), resp.LedgerEntry.Amount)
	assert.Equal(t, int64(-150000), resp.CurrentBalance)
}

func TestRecordPayment_OverpaymentBecomesCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createCustomer(t)

	shipmentID := f.createShipment(t, userID, 300000, shipmentdomain.PaymentStatusPending, time.Now().UTC())
	_, err := f.ledger.PostDebit(ctx, nil, ledgerdomain.PostRequest{UserID: userID, Amount: 300000, Currency: "USD"})
	require.NoError(t, err)

	resp, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      userID.String(),
		ShipmentIDs: []string{shipmentID.String()},
		Amount:      350000,
	})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{shipmentID}, resp.CompletedShipments)
	assert.Equal(t, int64(-50000), resp.CurrentBalance)
}

func TestRecordPayment_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createCustomer(t)
	shipmentID := f.createShipment(t, userID, 100000, shipmentdomain.PaymentStatusPending, time.Now().UTC())

	_, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      userID.String(),
		ShipmentIDs: []string{shipmentID.String()},
		Amount:      0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      userID.String(),
		ShipmentIDs: nil,
		Amount:      100000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidShipmentSelection)

	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      f.node.Generate().String(),
		ShipmentIDs: []string{shipmentID.String()},
		Amount:      100000,
	})
	assert.ErrorIs(t, err, customerdomain.ErrNotFound)
}

func TestRecordPayment_RejectsForeignAndSettledShipments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createCustomer(t)
	otherID := f.createCustomer(t)

	foreign := f.createShipment(t, otherID, 100000, shipmentdomain.PaymentStatusPending, time.Now().UTC())
	_, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      userID.String(),
		ShipmentIDs: []string{foreign.String()},
		Amount:      100000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidShipmentSelection)

	settled := f.createShipment(t, userID, 100000, shipmentdomain.PaymentStatusCompleted, time.Now().UTC())
	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      userID.String(),
		ShipmentIDs: []string{settled.String()},
		Amount:      100000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidShipmentSelection)

	// a failed rejection must not leave a payment or a ledger entry behind
	var payments int64
	require.NoError(t, f.db.Model(&domain.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(0), payments)
	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(0), entries)
}

func TestRecordPayment_RetryAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createCustomer(t)
	shipmentID := f.createShipment(t, userID, 120000, shipmentdomain.PaymentStatusFailed, time.Now().UTC())

	resp, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		UserID:      userID.String(),
		ShipmentIDs: []string{shipmentID.String()},
		Amount:      120000,
	})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{shipmentID}, resp.CompletedShipments)
	assert.Equal(t, shipmentdomain.PaymentStatusCompleted, f.paymentStatus(t, shipmentID))
}

func TestRecordPayment_ResubmittedPaymentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.createCustomer(t)
	shipmentID := f.createShipment(t, userID, 120000, shipmentdomain.PaymentStatusPending, time.Now().UTC().Add(-time.Hour))

	req := domain.RecordPaymentRequest{
		UserID:        userID.String(),
		Amount:        120000,
		ShipmentIDs:   []string{shipmentID.String()},
		PaymentMethod: "wire",
	}

	first, err := f.svc.RecordPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{shipmentID}, first.CompletedShipments)

	// a second submission sees the shipment settled and must not post
	// another credit
	_, err = f.svc.RecordPayment(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidShipmentSelection)

	var payments int64
	require.NoError(t, f.db.Model(&domain.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), payments)

	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)

	assert.Equal(t, shipmentdomain.PaymentStatusCompleted, f.paymentStatus(t, shipmentID))
}
