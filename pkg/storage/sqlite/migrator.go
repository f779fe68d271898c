package sqlite

import (
	"github.com/genea-app/genea/assets"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/sqlcommon"
)

// NewSQLiteMigrationProvider returns the goose provider for the sqlite schema.
func NewSQLiteMigrationProvider() *sqlcommon.GooseMigrationProvider {
	return sqlcommon.NewGooseMigrationProvider("sqlite", "sqlite", "sqlite", assets.SQLiteMigrationDir,
		func(config storage.MigrationConfig) (string, error) {
			return PrepareDSN(config.URI)
		})
}
