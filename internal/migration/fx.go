package migration

import (
	"github.com/mesaops/comanda/internal/config"
	"github.com/mesaops/comanda/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB, cfg.DBType); err != nil {
			return err
		}

		if cfg.SeedDemoData {
			log.Info("seeding demo fixtures")
			return seed.EnsureDemoFixtures(conn)
		}
		return nil
	}),
)
