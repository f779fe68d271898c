package sqlcommon

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/genea-app/genea/assets"
	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/storage"
)

// GooseMigrationProvider applies the embedded SQL migrations of one engine.
type GooseMigrationProvider struct {
	engine     string
	driver     string
	dialect    string
	dir        string
	prepareURI func(storage.MigrationConfig) (string, error)
}

var _ storage.MigrationProvider = (*GooseMigrationProvider)(nil)

// NewGooseMigrationProvider builds a provider opening connections with driver
// and reading migrations from dir inside assets.EmbedMigrations.
func NewGooseMigrationProvider(
	engine, driver, dialect, dir string,
	prepareURI func(storage.MigrationConfig) (string, error),
) *GooseMigrationProvider {
	return &GooseMigrationProvider{
		engine:     engine,
		driver:     driver,
		dialect:    dialect,
		dir:        dir,
		prepareURI: prepareURI,
	}
}

func (p *GooseMigrationProvider) GetSupportedEngine() string {
	return p.engine
}

func (p *GooseMigrationProvider) open(ctx context.Context, config storage.MigrationConfig) (*sql.DB, error) {
	if err := goose.SetDialect(p.dialect); err != nil {
		return nil, fmt.Errorf("failed to set %s dialect: %w", p.engine, err)
	}
	goose.SetBaseFS(assets.EmbedMigrations)

	uri, err := p.prepareURI(config)
	if err != nil {
		return nil, err
	}

	db, err := goose.OpenDBWithDriver(p.driver, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", p.engine, err)
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = config.Timeout
	attempt := 1
	err = backoff.Retry(func() error {
		err := db.PingContext(ctx)
		if err != nil {
			log.Info("waiting for database", zap.String("engine", p.engine), zap.Int("attempt", attempt))
			attempt++
		}
		return err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize %s connection: %w", p.engine, err)
	}

	return db, nil
}

// RunMigrations migrates to config.TargetVersion, or to the latest version when it is zero.
func (p *GooseMigrationProvider) RunMigrations(ctx context.Context, config storage.MigrationConfig) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetVerbose(config.Verbose)

	db, err := p.open(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	log := config.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	currentVersion, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get %s db version: %w", p.engine, err)
	}
	log.Info("current schema version", zap.String("engine", p.engine), zap.Int64("version", currentVersion))

	target := int64(config.TargetVersion)
	switch {
	case target == 0:
		err = goose.UpContext(ctx, db, p.dir)
	case target < currentVersion:
		err = goose.DownToContext(ctx, db, p.dir, target)
	case target > currentVersion:
		err = goose.UpToContext(ctx, db, p.dir, target)
	default:
		log.Info("nothing to migrate", zap.String("engine", p.engine))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", p.engine, err)
	}

	log.Info("migration done", zap.String("engine", p.engine))
	return nil
}

func (p *GooseMigrationProvider) GetCurrentVersion(ctx context.Context, config storage.MigrationConfig) (int64, error) {
	db, err := p.open(ctx, config)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return goose.GetDBVersionContext(ctx, db)
}
