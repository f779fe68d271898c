// Package migrate runs the embedded schema migrations against a SQL datastore.
package migrate

import (
	"context"
	"fmt"

	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/storage"
)

// MigrationConfig contains the configuration needed for running migrations.
type MigrationConfig = storage.MigrationConfig

// RunMigrationsWithRegistry resolves the provider for cfg.Engine in registry and runs it.
func RunMigrationsWithRegistry(ctx context.Context, registry *storage.MigratorRegistry, cfg MigrationConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.Engine == "memory" {
		cfg.Logger.Info("no migrations to run for `memory` datastore")
		return nil
	}

	provider, exists := registry.GetProvider(cfg.Engine)
	if !exists {
		return fmt.Errorf("no migration provider registered for engine: %s", cfg.Engine)
	}

	return provider.RunMigrations(ctx, cfg)
}

// RunMigrations runs the migrations for cfg using the default registry.
func RunMigrations(ctx context.Context, cfg MigrationConfig) error {
	return RunMigrationsWithRegistry(ctx, GetDefaultRegistry(), cfg)
}

// CurrentVersion reports the schema version of the datastore described by cfg.
func CurrentVersion(ctx context.Context, cfg MigrationConfig) (int64, error) {
	if cfg.Engine == "memory" {
		return 0, nil
	}

	provider, exists := GetDefaultRegistry().GetProvider(cfg.Engine)
	if !exists {
		return 0, fmt.Errorf("no migration provider registered for engine: %s", cfg.Engine)
	}

	return provider.GetCurrentVersion(ctx, cfg)
}
