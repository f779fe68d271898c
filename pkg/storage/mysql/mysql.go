package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/genea-app/genea/internal/build"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/sqlcommon"
)

const (
	errDuplicateEntry     = 1062
	errNoReferencedRow    = 1216
	errNoReferencedRowTwo = 1452
	errRowIsReferenced    = 1217
	errRowIsReferencedTwo = 1451
)

// Datastore provides a MySQL based implementation of [storage.GeneaDatastore].
type Datastore struct {
	*sqlcommon.Datastore

	db               *sql.DB
	dbStatsCollector prometheus.Collector
}

// Ensures that Datastore implements the GeneaDatastore interface.
var _ storage.GeneaDatastore = (*Datastore)(nil)

// PrepareDSN applies the configured credentials to dsn and forces the
// settings the datastore relies on: parsed UTC times and affected-row counts
// that include rows matched but left unchanged.
func PrepareDSN(dsn, username, password string) (string, error) {
	dsnCfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql connection dsn: %w", err)
	}

	if username != "" {
		dsnCfg.User = username
	}
	if password != "" {
		dsnCfg.Passwd = password
	}

	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC
	dsnCfg.ClientFoundRows = true

	return dsnCfg.FormatDSN(), nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}
	cfg.ApplyPool(db)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err = backoff.Retry(func() error {
		err := db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for database", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	dbInfo := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "mysql")

	return &Datastore{
		Datastore:        sqlcommon.NewDatastore(dbInfo, cfg.Logger),
		db:               db,
		dbStatsCollector: collector,
	}, nil
}

// Close see [storage.GeneaDatastore].Close.
func (s *Datastore) Close() {
	if s.dbStatsCollector != nil {
		prometheus.Unregister(s.dbStatsCollector)
	}
	s.db.Close()
}

// HandleSQLError processes an SQL error and converts it into a
// more appropriate error type based on the nature of the error.
func HandleSQLError(err error, _ ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDuplicateEntry:
			return storage.ErrCollision
		case errNoReferencedRow, errNoReferencedRowTwo, errRowIsReferenced, errRowIsReferencedTwo:
			return storage.ErrInvalidReference
		}
	}

	return fmt.Errorf("sql error: %w", err)
}
