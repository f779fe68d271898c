package migrate

import (
	"sync"

	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/mysql"
	"github.com/genea-app/genea/pkg/storage/postgres"
	"github.com/genea-app/genea/pkg/storage/sqlite"
)

var (
	defaultRegistry *storage.MigratorRegistry
	registryOnce    sync.Once
)

func initDefaultRegistry() {
	registryOnce.Do(func() {
		defaultRegistry = storage.NewMigratorRegistry()
		defaultRegistry.RegisterProvider(postgres.NewPostgresMigrationProvider())
		defaultRegistry.RegisterProvider(mysql.NewMySQLMigrationProvider())
		defaultRegistry.RegisterProvider(sqlite.NewSQLiteMigrationProvider())
	})
}

// GetDefaultRegistry returns the registry holding the built-in providers.
func GetDefaultRegistry() *storage.MigratorRegistry {
	initDefaultRegistry()
	return defaultRegistry
}

// RegisterMigrationProvider adds or replaces a provider in the default registry.
func RegisterMigrationProvider(provider storage.MigrationProvider) {
	initDefaultRegistry()
	defaultRegistry.RegisterProvider(provider)
}
