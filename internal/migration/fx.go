package migration

import (
	"context"

	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, users authdomain.Service, log *zap.Logger) error {
		if err := Run(conn); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("dialect", conn.Dialector.Name()))

		if !cfg.Bootstrap.EnsureAdmin {
			return nil
		}
		return seed.EnsureAdmin(context.Background(), users, cfg.Bootstrap, log.Named("seed"))
	}),
)
