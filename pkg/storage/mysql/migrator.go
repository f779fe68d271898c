package mysql

import (
	"github.com/genea-app/genea/assets"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/sqlcommon"
)

// NewMySQLMigrationProvider returns the goose provider for the mysql schema.
func NewMySQLMigrationProvider() *sqlcommon.GooseMigrationProvider {
	return sqlcommon.NewGooseMigrationProvider("mysql", "mysql", "mysql", assets.MySQLMigrationDir,
		func(config storage.MigrationConfig) (string, error) {
			return PrepareDSN(config.URI, config.Username, config.Password)
		})
}
