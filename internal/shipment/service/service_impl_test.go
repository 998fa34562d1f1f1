package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	containerdomain "github.com/harborline/freightway/internal/container/domain"
	containerrepository "github.com/harborline/freightway/internal/container/repository"
	"github.com/harborline/freightway/internal/shipment/domain"
	shipmentrepository "github.com/harborline/freightway/internal/shipment/repository"
	"github.com/harborline/freightway/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&containerdomain.Container{},
		&domain.Shipment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          shipmentrepository.Provide(),
		ContainerRepo: containerrepository.Provide(),
	})
	return &fixture{db: db, node: node, svc: svc}
}

func (f *fixture) createContainer(t *testing.T, status containerdomain.Status, maxCapacity int) snowflake.ID {
	t.Helper()
	suffix := f.node.Generate().String()
	container := containerdomain.Container{
		ID:              f.node.Generate(),
		ContainerNumber: "MSCU" + suffix[len(suffix)-7:],
		Status:          status,
		MaxCapacity:     maxCapacity,
		Currency:        "USD",
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&container).Error)
	return container.ID
}

func (f *fixture) createShipment(t *testing.T, userID snowflake.ID) domain.Shipment {
	t.Helper()
	shipment, err := f.svc.Create(context.Background(), domain.CreateShipmentRequest{
		UserID:      userID.String(),
		Description: "2019 Sedan",
		Price:       money.FromMinorUnits(250000),
	})
	require.NoError(t, err)
	return shipment
}

func (f *fixture) containerCount(t *testing.T, id snowflake.ID) int {
	t.Helper()
	var container containerdomain.Container
	require.NoError(t, f.db.First(&container, "id = ?", id).Error)
	return container.CurrentCount
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.node.Generate()

	shipment, err := f.svc.Create(ctx, domain.CreateShipmentRequest{
		UserID:      userID.String(),
		Description: "2021 Pickup",
		Price:       money.FromMinorUnits(400000),
		Currency:    "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", shipment.Currency)
	assert.Equal(t, domain.PaymentStatusPending, shipment.PaymentStatus)
	assert.Nil(t, shipment.ContainerID)

	_, err = f.svc.Create(ctx, domain.CreateShipmentRequest{UserID: userID.String(), Price: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = f.svc.Create(ctx, domain.CreateShipmentRequest{UserID: "abc", Price: money.FromMinorUnits(1000)})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestAssign_IncrementsContainerCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.node.Generate()
	containerID := f.createContainer(t, containerdomain.StatusWaitingForLoad, 2)
	shipment := f.createShipment(t, userID)

	assigned, err := f.svc.Assign(ctx, domain.AssignRequest{
		ShipmentID:  shipment.ID.String(),
		ContainerID: containerID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, assigned.ContainerID)
	assert.Equal(t, containerID, *assigned.ContainerID)
	assert.Equal(t, 1, f.containerCount(t, containerID))
}

func TestAssign_RejectsDoubleAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.node.Generate()
	containerID := f.createContainer(t, containerdomain.StatusWaitingForLoad, 2)
	other := f.createContainer(t, containerdomain.StatusWaitingForLoad, 2)
	shipment := f.createShipment(t, userID)

	_, err := f.svc.Assign(ctx, domain.AssignRequest{ShipmentID: shipment.ID.String(), ContainerID: containerID.String()})
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, domain.AssignRequest{ShipmentID: shipment.ID.String(), ContainerID: other.String()})
	assert.ErrorIs(t, err, domain.ErrAlreadyAssigned)
	assert.Equal(t, 1, f.containerCount(t, containerID))
	assert.Equal(t, 0, f.containerCount(t, other))
}

func TestAssign_FullContainerRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.node.Generate()
	containerID := f.createContainer(t, containerdomain.StatusWaitingForLoad, 1)

	first := f.createShipment(t, userID)
	_, err := f.svc.Assign(ctx, domain.AssignRequest{ShipmentID: first.ID.String(), ContainerID: containerID.String()})
	require.NoError(t, err)

	second := f.createShipment(t, userID)
	_, err = f.svc.Assign(ctx, domain.AssignRequest{ShipmentID: second.ID.String(), ContainerID: containerID.String()})
	assert.ErrorIs(t, err, domain.ErrContainerFull)
	assert.Equal(t, 1, f.containerCount(t, containerID))

	// the rejected shipment stays unassigned
	reloaded, err := f.svc.GetByID(ctx, second.ID.String())
	require.NoError(t, err)
	assert.Nil(t, reloaded.ContainerID)
}

func TestAssign_ClosedContainerRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.node.Generate()
	containerID := f.createContainer(t, containerdomain.StatusClosed, 4)
	shipment := f.createShipment(t, userID)

	_, err := f.svc.Assign(ctx, domain.AssignRequest{ShipmentID: shipment.ID.String(), ContainerID: containerID.String()})
	assert.ErrorIs(t, err, domain.ErrContainerClosed)
	assert.Equal(t, 0, f.containerCount(t, containerID))
}

func TestUnassign_DecrementsContainerCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.node.Generate()
	containerID := f.createContainer(t, containerdomain.StatusWaitingForLoad, 2)
	shipment := f.createShipment(t, userID)

	_, err := f.svc.Assign(ctx, domain.AssignRequest{ShipmentID: shipment.ID.String(), ContainerID: containerID.String()})
	require.NoError(t, err)

	released, err := f.svc.Unassign(ctx, shipment.ID.String())
	require.NoError(t, err)
	assert.Nil(t, released.ContainerID)
	assert.Equal(t, 0, f.containerCount(t, containerID))

	_, err = f.svc.Unassign(ctx, shipment.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotAssigned)
}
