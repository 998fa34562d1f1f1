package migration

import (
	auditdomain "github.com/harborline/freightway/internal/audit/domain"
	"github.com/harborline/freightway/internal/config"
	containerdomain "github.com/harborline/freightway/internal/container/domain"
	customerdomain "github.com/harborline/freightway/internal/customer/domain"
	invoicedomain "github.com/harborline/freightway/internal/invoice/domain"
	ledgerdomain "github.com/harborline/freightway/internal/ledger/domain"
	paymentdomain "github.com/harborline/freightway/internal/payment/domain"
	shipmentdomain "github.com/harborline/freightway/internal/shipment/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		return autoMigrate(conn)
	}),
)

// autoMigrate covers the sqlite and mysql development paths, where the
// embedded postgres migrations do not apply.
func autoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
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
		&paymentdomain.Payment{},
		&auditdomain.AuditLog{},
	); err != nil {
		return err
	}

	// AutoMigrate cannot express the partial unique index backing
	// idempotent invoice generation.
	return conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_user_invoices_container_user
		ON user_invoices (container_id, user_id)
		WHERE status <> 'CANCELLED'`,
	).Error
}
