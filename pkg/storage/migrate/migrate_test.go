package migrate_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/migrate"
)

func TestDefaultRegistryEngines(t *testing.T) {
	require.Equal(t, []string{"mysql", "postgres", "sqlite"}, migrate.GetDefaultRegistry().GetSupportedEngines())
}

func TestRunMigrationsUnknownEngine(t *testing.T) {
	err := migrate.RunMigrations(context.Background(), migrate.MigrationConfig{Engine: "oracle"})
	require.ErrorContains(t, err, "no migration provider registered for engine: oracle")
}

func TestRunMigrationsMemoryIsNoop(t *testing.T) {
	require.NoError(t, migrate.RunMigrations(context.Background(), migrate.MigrationConfig{Engine: "memory"}))
}

func TestSQLiteMigrateCommandRollbacks(t *testing.T) {
	ctx := context.Background()
	uri := filepath.Join(t.TempDir(), "genea.db")

	cfg := migrate.MigrationConfig{
		Engine:  "sqlite",
		URI:     uri,
		Timeout: 5 * time.Second,
	}
	require.NoError(t, migrate.RunMigrations(ctx, cfg))

	version, err := migrate.CurrentVersion(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(4), version)

	for target := uint(3); target >= 1; target-- {
		cfg.TargetVersion = target
		require.NoError(t, migrate.RunMigrations(ctx, cfg))

		version, err := migrate.CurrentVersion(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, int64(target), version)
	}

	cfg.TargetVersion = 0
	require.NoError(t, migrate.RunMigrations(ctx, cfg))
	version, err = migrate.CurrentVersion(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(4), version)
}

type fakeProvider struct {
	ran bool
}

func (f *fakeProvider) GetSupportedEngine() string { return "fake" }

func (f *fakeProvider) RunMigrations(context.Context, storage.MigrationConfig) error {
	f.ran = true
	return nil
}

func (f *fakeProvider) GetCurrentVersion(context.Context, storage.MigrationConfig) (int64, error) {
	return 7, nil
}

func TestRunMigrationsWithRegistry(t *testing.T) {
	registry := storage.NewMigratorRegistry()
	provider := &fakeProvider{}
	registry.RegisterProvider(provider)

	err := migrate.RunMigrationsWithRegistry(context.Background(), registry, migrate.MigrationConfig{Engine: "fake"})
	require.NoError(t, err)
	require.True(t, provider.ran)
}
