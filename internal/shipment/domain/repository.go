package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, shipment *Shipment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Shipment, error)
	// FindByIDsForUpdate reads the shipments in load order with a row lock
	// where the dialect supports one, so concurrent payments cannot settle
	// the same shipment twice.
	FindByIDsForUpdate(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Shipment, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Shipment, error)
	ListByContainer(ctx context.Context, db *gorm.DB, containerID snowflake.ID) ([]Shipment, error)
	Update(ctx context.Context, db *gorm.DB, shipment *Shipment) error
	UpdatePaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status PaymentStatus) error
}
