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
	containerdomain "github.com/harborline/freightway/internal/container/domain"
	containerrepository "github.com/harborline/freightway/internal/container/repository"
	customerdomain "github.com/harborline/freightway/internal/customer/domain"
	customerrepository "github.com/harborline/freightway/internal/customer/repository"
	invoicedomain "github.com/harborline/freightway/internal/invoice/domain"
	invoicerepository "github.com/harborline/freightway/internal/invoice/repository"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	ledgerrepository "github.com/harborline/freightway/internal/ledger/repository"
	ledgerservice "github.com/harborline/freightway/internal/ledger/service"
	"github.com/harborline/freightway/internal/providers/email"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	shipmentrepository "github.com/harborline/freightway/internal/shipment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	svc   invoicedomain.Service
	audit auditdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&containerdomain.Container{},
		&containerdomain.Expense{},
		&containerdomain.ContainerInvoice{},
		&containerdomain.TrackingEvent{},
		&shipmentdomain.Shipment{},
		&invoicedomain.UserInvoice{},
		&invoicedomain.LineItem{},
		&invoicedomain.NumberCounter{},
		&ledgerdomain.LedgerEntry{},
		&auditdomain.AuditLog{},
	))

	// SQLite needs the partial unique index in place for the
	// conflict-ignoring insert to take effect.
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_user_invoices_container_user
		ON user_invoices (container_id, user_id)
		WHERE status <> 'CANCELLED'`,
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  ledgerrepository.Provide(),
		Clock: clock.NewSystem(),
	})

	svc := NewService(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Repo:          invoicerepository.Provide(),
		ContainerRepo: containerrepository.Provide(),
		ShipmentRepo:  shipmentrepository.Provide(),
		CustomerRepo:  customerrepository.Provide(),
		LedgerSvc:     ledgerSvc,
		AuditSvc:      auditSvc,
		Email:         &email.NoOpProvider{},
		Clock:         clock.NewSystem(),
	})

	return &fixture{db: db, node: node, svc: svc, audit: auditSvc}
}

func (f *fixture) createCustomer(t *testing.T, name string) snowflake.ID {
	t.Helper()
	customer := customerdomain.Customer{
		ID:        f.node.Generate(),
		Name:      name,
		Email:     name + "@example.com",
		Currency:  "USD",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&customer).Error)
	return customer.ID
}

func (f *fixture) createContainer(t *testing.T, number string) snowflake.ID {
	t.Helper()
	container := containerdomain.Container{
		ID:              f.node.Generate(),
		ContainerNumber: number,
		Status:          containerdomain.StatusLoaded,
		MaxCapacity:     4,
		Currency:        "USD",
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&container).Error)
	return container.ID
}

func (f *fixture) createShipment(t *testing.T, userID, containerID snowflake.ID, price, insurance int64, createdAt time.Time) snowflake.ID {
	t.Helper()
	shipment := shipmentdomain.Shipment{
		ID:             f.node.Generate(),
		UserID:         userID,
		Description:    "Vehicle",
		Price:          price,
		InsuranceValue: insurance,
		Currency:       "USD",
		ContainerID:    &containerID,
		PaymentStatus:  shipmentdomain.PaymentStatusPending,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, f.db.Create(&shipment).Error)
	return shipment.ID
}

func (f *fixture) createExpense(t *testing.T, containerID snowflake.ID, amount int64) {
	t.Helper()
	expense := containerdomain.Expense{
		ID:          f.node.Generate(),
		ContainerID: containerID,
		Type:        "FREIGHT",
		Amount:      amount,
		Currency:    "USD",
		IncurredAt:  time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&expense).Error)
}

func TestGenerate_SingleCustomerTwoShipments(t *testing.T) {
	f := newFixture(t)
	userID := f.createCustomer(t, "u1")
	containerID := f.createContainer(t, "MSCU1234567")

	base := time.Now().UTC().Add(-time.Hour)
	f.createShipment(t, userID, containerID, 100000, 0, base)
	f.createShipment(t, userID, containerID, 100000, 0, base.Add(time.Minute))
	f.createExpense(t, containerID, 10000)

	resp, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Summary.NewInvoices)
	assert.Equal(t, 0, resp.Summary.SkippedExisting)
	require.Len(t, resp.Invoices, 1)

	invoice := resp.Invoices[0]
	assert.Equal(t, int64(210000), invoice.Subtotal)
	assert.Equal(t, int64(210000), invoice.Total)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, invoice.Subtotal-invoice.Discount+invoice.Tax, invoice.Total)

	var vehicleLines, shareLines int
	var lineSum int64
	for _, line := range invoice.LineItems {
		lineSum += line.Amount
		assert.Equal(t, line.Quantity*line.UnitPrice, line.Amount)
		switch line.Type {
		case invoicedomain.LineItemVehiclePrice:
			vehicleLines++
			assert.Equal(t, int64(100000), line.Amount)
		case invoicedomain.LineItemExpenseShare:
			shareLines++
			assert.Equal(t, int64(5000), line.Amount)
		}
	}
	assert.Equal(t, 2, vehicleLines)
	assert.Equal(t, 2, shareLines)
	assert.Equal(t, invoice.Subtotal, lineSum)

	// one DEBIT posted for the full total
	var entries []ledgerdomain.LedgerEntry
	require.NoError(t, f.db.Where("user_id = ?", userID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, ledgerdomain.EntryTypeDebit, entries[0].Type)
	assert.Equal(t, int64(210000), entries[0].Amount)
	assert.Equal(t, int64(210000), entries[0].Balance)
}

func TestGenerate_ExpenseSplitConservesOddCents(t *testing.T) {
	f := newFixture(t)
	u1 := f.createCustomer(t, "u1")
	u2 := f.createCustomer(t, "u2")
	containerID := f.createContainer(t, "MSCU7654321")

	base := time.Now().UTC().Add(-time.Hour)
	f.createShipment(t, u1, containerID, 100000, 0, base)
	f.createShipment(t, u2, containerID, 100000, 0, base.Add(time.Minute))
	f.createExpense(t, containerID, 10101)

	resp, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Summary.NewInvoices)

	var shareSum int64
	shares := make([]int64, 0, 2)
	for _, invoice := range resp.Invoices {
		for _, line := range invoice.LineItems {
			if line.Type == invoicedomain.LineItemExpenseShare {
				shareSum += line.Amount
				shares = append(shares, line.Amount)
			}
		}
	}
	assert.Equal(t, int64(10101), shareSum)
	assert.ElementsMatch(t, []int64{5051, 5050}, shares)
}

func TestGenerate_SecondRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u1 := f.createCustomer(t, "u1")
	u2 := f.createCustomer(t, "u2")
	containerID := f.createContainer(t, "CMAU0001111")

	base := time.Now().UTC().Add(-time.Hour)
	f.createShipment(t, u1, containerID, 150000, 0, base)
	f.createShipment(t, u2, containerID, 90000, 0, base.Add(time.Minute))

	first, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summary.NewInvoices)

	second, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Summary.NewInvoices)
	assert.Equal(t, 2, second.Summary.SkippedExisting)

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.UserInvoice{}).Where("container_id = ?", containerID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// no extra debits either
	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(2), entries)
}

func TestGenerate_InsuranceLineAdded(t *testing.T) {
	f := newFixture(t)
	userID := f.createCustomer(t, "u1")
	containerID := f.createContainer(t, "OOLU2223334")

	f.createShipment(t, userID, containerID, 80000, 12000, time.Now().UTC())

	resp, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Invoices, 1)

	invoice := resp.Invoices[0]
	assert.Equal(t, int64(92000), invoice.Total)

	var insuranceLines int
	for _, line := range invoice.LineItems {
		if line.Type == invoicedomain.LineItemInsurance {
			insuranceLines++
			assert.Equal(t, int64(12000), line.Amount)
		}
	}
	assert.Equal(t, 1, insuranceLines)
}

func TestGenerate_EmptyContainerRejected(t *testing.T) {
	f := newFixture(t)
	containerID := f.createContainer(t, "HLBU9998887")

	_, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	assert.ErrorIs(t, err, invoicedomain.ErrNoShipments)
}

func TestGenerate_InvoiceNumbersSequential(t *testing.T) {
	f := newFixture(t)
	u1 := f.createCustomer(t, "u1")
	u2 := f.createCustomer(t, "u2")
	containerID := f.createContainer(t, "MAEU5556667")

	base := time.Now().UTC().Add(-time.Hour)
	f.createShipment(t, u1, containerID, 50000, 0, base)
	f.createShipment(t, u2, containerID, 60000, 0, base.Add(time.Minute))

	resp, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Invoices, 2)

	year := time.Now().UTC().Year()
	assert.Equal(t, invoicedomain.FormatInvoiceNumber(year, 1), resp.Invoices[0].InvoiceNumber)
	assert.Equal(t, invoicedomain.FormatInvoiceNumber(year, 2), resp.Invoices[1].InvoiceNumber)
}

func TestGenerate_ZeroExpenseStillItemizesShare(t *testing.T) {
	f := newFixture(t)
	userID := f.createCustomer(t, "u1")
	containerID := f.createContainer(t, "TGHU5556667")

	base := time.Now().UTC().Add(-time.Hour)
	f.createShipment(t, userID, containerID, 70000, 0, base)
	f.createShipment(t, userID, containerID, 50000, 0, base.Add(time.Minute))

	resp, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Invoices, 1)

	invoice := resp.Invoices[0]
	assert.Equal(t, int64(120000), invoice.Total)

	// the split is itemized even when the container recorded no expenses
	var shareLines int
	for _, line := range invoice.LineItems {
		if line.Type == invoicedomain.LineItemExpenseShare {
			shareLines++
			assert.Equal(t, int64(0), line.Amount)
		}
	}
	assert.Equal(t, 2, shareLines)
}

func TestGenerate_RerunDoesNotAdvanceCounter(t *testing.T) {
	f := newFixture(t)
	u1 := f.createCustomer(t, "u1")
	u2 := f.createCustomer(t, "u2")
	containerID := f.createContainer(t, "APZU3334445")

	base := time.Now().UTC().Add(-time.Hour)
	f.createShipment(t, u1, containerID, 100000, 0, base)
	f.createShipment(t, u2, containerID, 90000, 0, base.Add(time.Minute))

	first, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summary.NewInvoices)

	second, err := f.svc.Generate(context.Background(), invoicedomain.GenerateRequest{ContainerID: containerID.String()})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Summary.NewInvoices)
	assert.Equal(t, 2, second.Summary.SkippedExisting)

	// skipped reruns must not draw sequence numbers
	var counter invoicedomain.NumberCounter
	require.NoError(t, f.db.First(&counter).Error)
	assert.Equal(t, int64(2), counter.LastValue)
}
