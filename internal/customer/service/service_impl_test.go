package service

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/harborline/freightway/internal/customer/domain"
	customerrepository "github.com/harborline/freightway/internal/customer/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newCustomerService(t *testing.T) (domain.Service, *snowflake.Node) {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  customerrepository.Provide(),
	})
	return svc, node
}

func TestCreateCustomer(t *testing.T) {
	svc, _ := newCustomerService(t)
	ctx := context.Background()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:     "  Acme Imports ",
		Email:    "billing@acme.example",
		Currency: "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Imports", customer.Name)
	assert.Equal(t, "EUR", customer.Currency)
	assert.NotZero(t, customer.ID)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "", Email: "a@b.c"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "No Email", Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestGetCustomerByID(t *testing.T) {
	svc, node := newCustomerService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Email: "acme@example.com"})
	require.NoError(t, err)

	found, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.GetByID(ctx, node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListCustomers_NameFilter(t *testing.T) {
	svc, _ := newCustomerService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Harbor Freight Co", Email: "h@example.com"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme Imports", Email: "a@example.com"})
	require.NoError(t, err)

	resp, err := svc.List(ctx, domain.ListCustomerRequest{Name: "harbor"})
	require.NoError(t, err)
	require.Len(t, resp.Customers, 1)
	assert.Equal(t, "Harbor Freight Co", resp.Customers[0].Name)

	all, err := svc.List(ctx, domain.ListCustomerRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Customers, 2)
}
