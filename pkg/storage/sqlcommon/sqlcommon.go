// Package sqlcommon implements storage.GeneaDatastore on top of database/sql
// and squirrel. The engine packages supply the connection, placeholder format
// and error translation.
package sqlcommon

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/genea-app/genea/internal/build"
	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/storage"
)

var tracer = otel.Tracer("genea/pkg/storage/sqlcommon")

// Config defines the configuration parameters
// for setting up and managing a sql connection.
type Config struct {
	Username string
	Password string
	Logger   logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	return cfg
}

// ApplyPool copies the pool settings of cfg onto db.
func (cfg *Config) ApplyPool(db *sql.DB) {
	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

type errorHandlerFn func(error, ...interface{}) error

// DBInfo bundles what every query needs: the pool, a statement builder with the
// engine's placeholder format, and the engine's error translation.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn
	engine         string
}

func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler errorHandlerFn, dialect string) *DBInfo {
	if err := goose.SetDialect(dialect); err != nil {
		panic("failed to set database dialect: " + err.Error())
	}

	return &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
		engine:         dialect,
	}
}

// Datastore is the engine-agnostic implementation of [storage.GeneaDatastore].
type Datastore struct {
	dbInfo *DBInfo
	logger logger.Logger
	now    func() time.Time
}

// NewDatastore wraps dbInfo. Engine packages embed the result and add
// connection lifecycle on top.
func NewDatastore(dbInfo *DBInfo, l logger.Logger) *Datastore {
	return &Datastore{
		dbInfo: dbInfo,
		logger: l,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

func (s *Datastore) startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, s.dbInfo.engine+"."+name)
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (s *Datastore) inTx(ctx context.Context, fn func(stbl sq.StatementBuilderType) error) error {
	txn, err := s.dbInfo.db.BeginTx(ctx, nil)
	if err != nil {
		return s.dbInfo.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	if err := fn(s.dbInfo.stbl.RunWith(txn)); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return s.dbInfo.HandleSQLError(err)
	}
	return nil
}

// execAffecting runs b and maps "no rows affected" to storage.ErrNotFound.
func (s *Datastore) execAffecting(ctx context.Context, b interface {
	ExecContext(ctx context.Context) (sql.Result, error)
}) (int64, error) {
	res, err := b.ExecContext(ctx)
	if err != nil {
		return 0, s.dbInfo.HandleSQLError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.dbInfo.HandleSQLError(err)
	}
	if n == 0 {
		return 0, storage.ErrNotFound
	}
	return n, nil
}

// IsReady reports whether this datastore instance is ready to accept connections.
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	return IsReady(ctx, s.dbInfo.db)
}

// IsReady pings db and checks that the schema is at least at the minimum supported revision.
func IsReady(ctx context.Context, db *sql.DB) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// do ping first to ensure we have better error message
	// if error is due to connection issue.
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	revision, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return storage.ReadinessStatus{}, err
	}

	if revision < build.MinimumSupportedDatastoreSchemaRevision {
		return storage.ReadinessStatus{
			Message: "datastore requires migrations: at revision '" +
				strconv.FormatInt(revision, 10) +
				"', but requires '" +
				strconv.FormatInt(build.MinimumSupportedDatastoreSchemaRevision, 10) +
				"'. Run 'genea migrate'.",
			IsReady: false,
		}, nil
	}
	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}

// AddFromUlid restricts sb to rows after (or, descending, before) the
// continuation token and limits it to one row more than the page size.
func AddFromUlid(sb sq.SelectBuilder, opts storage.PaginationOptions, sortDescending bool) (sq.SelectBuilder, error) {
	if err := storage.ValidateContinuationToken(opts.From); err != nil {
		return sb, err
	}

	if opts.From != "" {
		if sortDescending {
			sb = sb.Where(sq.Lt{"id": opts.From})
		} else {
			sb = sb.Where(sq.Gt{"id": opts.From})
		}
	}
	if sortDescending {
		sb = sb.OrderBy("id DESC")
	} else {
		sb = sb.OrderBy("id")
	}
	if opts.PageSize > 0 {
		sb = sb.Limit(uint64(opts.PageSize + 1))
	}
	return sb, nil
}

// trimPage drops the look-ahead row fetched by AddFromUlid and returns the next token.
func trimPage[T any](items []T, idOf func(T) string, opts storage.PaginationOptions) ([]T, string) {
	if opts.PageSize <= 0 || len(items) <= opts.PageSize {
		return items, ""
	}
	items = items[:opts.PageSize]
	return items, idOf(items[len(items)-1])
}
