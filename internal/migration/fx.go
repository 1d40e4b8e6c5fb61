package migration

import (
	"github.com/nimbusworks/tenantgate/internal/config"
	dcrdomain "github.com/nimbusworks/tenantgate/internal/dcr/domain"
	procdomain "github.com/nimbusworks/tenantgate/internal/procurement/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL migrations target postgres. Other dialects are
		// for local development and tests, where the gorm schema is enough.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&procdomain.Account{},
				&procdomain.Entitlement{},
				&dcrdomain.Client{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
