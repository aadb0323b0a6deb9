package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

// MaybeRunDev applies pending migrations in dev when RELIEF_AUTO_MIGRATE is on,
// then checks that every dispatch table exists.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "migrate.dev_autorun.start")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	if err := VerifySchema(ctx, client.DB()); err != nil {
		return fmt.Errorf("verify schema: %w", err)
	}

	logg.Info(ctx, "migrate.dev_autorun.done")
	return nil
}
