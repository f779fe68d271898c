package assets

import "embed"

const (
	PostgresMigrationDir = "migrations/postgres"
	MySQLMigrationDir    = "migrations/mysql"
	SQLiteMigrationDir   = "migrations/sqlite"
)

// EmbedMigrations holds the goose migrations for every supported engine.
//
//go:embed migrations/*
var EmbedMigrations embed.FS
