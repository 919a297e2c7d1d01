package migrate

import (
	"context"
	"fmt"

	"github.com/smes-pos/smes-backend/pkg/config"
	"github.com/smes-pos/smes-backend/pkg/db"
	"github.com/smes-pos/smes-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on boot in dev when
// SMES_AUTO_MIGRATE is set. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || client == nil || !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "service_kind": cfg.Service.Kind})
	results, err := Up(ctx, sqlDB, DefaultDir)
	if err != nil {
		return err
	}

	versions := make([]int64, 0, len(results))
	for _, result := range results {
		if result.Source != nil {
			versions = append(versions, result.Source.Version)
		}
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"applied": len(versions), "versions": versions}), "migrations.autorun.complete")
	return nil
}
