package migration

import (
	"strings"

	accountdomain "github.com/streamcart/streamcart/internal/account/domain"
	auditdomain "github.com/streamcart/streamcart/internal/audit/domain"
	catalogdomain "github.com/streamcart/streamcart/internal/catalog/domain"
	"github.com/streamcart/streamcart/internal/config"
	livesaledomain "github.com/streamcart/streamcart/internal/livesale/domain"
	orderdomain "github.com/streamcart/streamcart/internal/order/domain"
	reservationdomain "github.com/streamcart/streamcart/internal/reservation/domain"
	"github.com/streamcart/streamcart/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql and sqlite deployments lean on gorm's schema sync;
			// only the postgres path carries versioned migrations.
			if err := conn.AutoMigrate(
				&accountdomain.Account{},
				&catalogdomain.Product{},
				&reservationdomain.Reservation{},
				&orderdomain.Order{},
				&orderdomain.OrderGroup{},
				&orderdomain.OrderItem{},
				&livesaledomain.StagedLineItem{},
				&auditdomain.AuditLog{},
			); err != nil {
				return err
			}
		}

		if cfg.DefaultAccountID != 0 {
			return seed.EnsureDefaultAccountWithID(conn, cfg.DefaultAccountID)
		}
		return seed.EnsureDefaultAccount(conn)
	}),
)
