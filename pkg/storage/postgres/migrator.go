package postgres

import (
	"github.com/genea-app/genea/assets"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/sqlcommon"
)

// NewPostgresMigrationProvider returns the goose provider for the postgres schema.
func NewPostgresMigrationProvider() *sqlcommon.GooseMigrationProvider {
	return sqlcommon.NewGooseMigrationProvider("postgres", "pgx", "postgres", assets.PostgresMigrationDir,
		func(config storage.MigrationConfig) (string, error) {
			return PrepareURI(config.URI, config.Username, config.Password)
		})
}
