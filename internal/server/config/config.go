// Package config contains all knobs and defaults used to configure features of
// Genea when running as a standalone server.
package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/genea-app/genea/pkg/license"
	"github.com/genea-app/genea/pkg/suggest"
)

const (
	DefaultMaxUploadSizeInBytes = 20 << 20
	DefaultRequestTimeout       = 30 * time.Second
	DefaultInvitationTTL        = 7 * 24 * time.Hour
	DefaultSuggestionLimit      = suggest.DefaultLimit
	DefaultDuplicateThreshold   = suggest.DefaultDuplicateThreshold
	DefaultNotificationWorkers  = 4
	DefaultNotificationBacklog  = 1024

	DefaultLicenseCacheSize = license.DefaultCacheSize
	DefaultLicenseCacheTTL  = license.DefaultCacheTTL
	DefaultTrialDuration    = license.DefaultTrialDuration
)

var (
	authnMethods     = []string{"none", "preshared", "jwt", "oidc"}
	datastoreEngines = []string{"memory", "postgres", "mysql", "sqlite"}
	mediaBackends    = []string{"local", "s3"}
	logLevels        = []string{"none", "debug", "info", "warn", "error", "panic", "fatal"}
)

type DatastoreMetricsConfig struct {
	// Enabled enables export of the Datastore metrics.
	Enabled bool
}

// DatastoreConfig defines Genea server configurations for datastore specific settings.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'memory', 'postgres', 'mysql', 'sqlite')
	Engine   string
	URI      string
	Username string
	Password string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections to the datastore in the idle connection
	// pool.
	MaxIdleConns int

	// ConnMaxIdleTime is the maximum amount of time a connection to the datastore may be idle.
	ConnMaxIdleTime time.Duration

	// ConnMaxLifetime is the maximum amount of time a connection to the datastore may be reused.
	ConnMaxLifetime time.Duration

	Metrics DatastoreMetricsConfig
}

// HTTPConfig defines Genea server configurations for HTTP server specific settings.
type HTTPConfig struct {
	Addr string
	TLS  *TLSConfig

	// RequestTimeout bounds the handling of a single request. Zero disables it.
	RequestTimeout time.Duration

	// MaxUploadSize is the largest media upload accepted, in bytes.
	MaxUploadSize int64

	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
}

// TLSConfig defines configuration specific to Transport Layer Security (TLS) settings.
// The certificate and key are reloaded when they change on disk.
type TLSConfig struct {
	Enabled  bool
	CertPath string `mapstructure:"cert"`
	KeyPath  string `mapstructure:"key"`
}

// AuthnConfig defines Genea server configurations for authentication specific settings.
type AuthnConfig struct {

	// Method is the authentication method that should be enforced (e.g. 'none', 'preshared',
	// 'jwt', 'oidc')
	Method                   string
	*AuthnOIDCConfig         `mapstructure:"oidc"`
	*AuthnPresharedKeyConfig `mapstructure:"preshared"`
	*AuthnJWTConfig          `mapstructure:"jwt"`
}

// AuthnOIDCConfig defines configurations for the 'oidc' method of authentication.
type AuthnOIDCConfig struct {
	Issuer        string
	IssuerAliases []string
	Audience      string
}

// AuthnPresharedKeyConfig defines configurations for the 'preshared' method of authentication.
type AuthnPresharedKeyConfig struct {
	// Keys define the preshared keys to verify authn tokens against.
	Keys []string
}

// AuthnJWTConfig defines configurations for the 'jwt' method, which verifies
// HS256 access tokens signed with a shared secret.
type AuthnJWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// MediaConfig selects where uploaded media content is stored.
type MediaConfig struct {
	// Backend is 'local' or 's3'.
	Backend string
	Local   LocalMediaConfig
	S3      S3MediaConfig `mapstructure:"s3"`
}

type LocalMediaConfig struct {
	Dir string
}

type S3MediaConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// LicenseConfig configures the license gate.
type LicenseConfig struct {
	// FreeFamilies are the surnames whose families never need a license.
	FreeFamilies []string
	// FreeFamiliesFile optionally names a YAML file with more free surnames.
	FreeFamiliesFile string
	TrialDuration    time.Duration
	CacheSize        int64
	CacheTTL         time.Duration
}

type InvitationConfig struct {
	TTL time.Duration
	// BaseURL is the public URL of the web application; invitation links point below it.
	BaseURL string
}

type SuggestionsConfig struct {
	Limit              int
	DuplicateThreshold float64
}

type NotificationsConfig struct {
	Workers int

	// Backlog is how many notifications may wait for a worker before new ones are dropped.
	Backlog int
}

// LogConfig defines Genea server configurations for log specific settings. For production we
// recommend using the 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string

	// Format of the timestamp in the log output (e.g. 'Unix'(default) or 'ISO8601')
	TimestampFormat string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
	// SlowThreshold, when set, exports only traces at least this slow.
	SlowThreshold time.Duration
}

type OTLPTraceConfig struct {
	Endpoint string
}

// ProfilerConfig defines server configurations specific to pprof profiling.
type ProfilerConfig struct {
	Enabled bool
	Addr    string
}

// MetricConfig defines configurations for serving custom metrics from Genea.
type MetricConfig struct {
	Enabled bool
	Addr    string
}

type Config struct {
	Datastore     DatastoreConfig
	HTTP          HTTPConfig
	Authn         AuthnConfig
	Media         MediaConfig
	License       LicenseConfig
	Invitation    InvitationConfig
	Suggestions   SuggestionsConfig
	Notifications NotificationsConfig
	Log           LogConfig
	Trace         TraceConfig
	Profiler      ProfilerConfig
	Metrics       MetricConfig
}

func (cfg *Config) Verify() error {
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if !slices.Contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Log.TimestampFormat != "Unix" && cfg.Log.TimestampFormat != "ISO8601" {
		return fmt.Errorf("config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']")
	}

	if cfg.HTTP.TLS != nil && cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.CertPath == "" || cfg.HTTP.TLS.KeyPath == "" {
			return errors.New("'http.tls.cert' and 'http.tls.key' configs must be set")
		}
	}

	if cfg.HTTP.RequestTimeout < 0 {
		return errors.New("'http.requestTimeout' must not be negative")
	}

	if cfg.HTTP.MaxUploadSize <= 0 {
		return errors.New("'http.maxUploadSize' must be positive")
	}

	if !slices.Contains(authnMethods, cfg.Authn.Method) {
		return fmt.Errorf("config 'authn.method' must be one of %v", authnMethods)
	}

	switch cfg.Authn.Method {
	case "preshared":
		if cfg.Authn.AuthnPresharedKeyConfig == nil || len(cfg.Authn.AuthnPresharedKeyConfig.Keys) == 0 {
			return errors.New("'authn.preshared.keys' must be set when 'authn.method' is 'preshared'")
		}
	case "jwt":
		if cfg.Authn.AuthnJWTConfig == nil || cfg.Authn.AuthnJWTConfig.Secret == "" {
			return errors.New("'authn.jwt.secret' must be set when 'authn.method' is 'jwt'")
		}
	case "oidc":
		if cfg.Authn.AuthnOIDCConfig == nil || cfg.Authn.AuthnOIDCConfig.Issuer == "" || cfg.Authn.AuthnOIDCConfig.Audience == "" {
			return errors.New("'authn.oidc.issuer' and 'authn.oidc.audience' must be set when 'authn.method' is 'oidc'")
		}
	}

	if !slices.Contains(datastoreEngines, cfg.Datastore.Engine) {
		return fmt.Errorf("config 'datastore.engine' must be one of %v", datastoreEngines)
	}
	if cfg.Datastore.Engine != "memory" && cfg.Datastore.URI == "" {
		return fmt.Errorf("'datastore.uri' must be set for the %s engine", cfg.Datastore.Engine)
	}

	if !slices.Contains(mediaBackends, cfg.Media.Backend) {
		return fmt.Errorf("config 'media.backend' must be one of %v", mediaBackends)
	}
	if cfg.Media.Backend == "local" && cfg.Media.Local.Dir == "" {
		return errors.New("'media.local.dir' must be set when 'media.backend' is 'local'")
	}
	if cfg.Media.Backend == "s3" && cfg.Media.S3.Bucket == "" {
		return errors.New("'media.s3.bucket' must be set when 'media.backend' is 's3'")
	}

	if cfg.License.TrialDuration <= 0 {
		return errors.New("'license.trialDuration' must be positive")
	}
	if cfg.License.CacheTTL < 0 {
		return errors.New("'license.cacheTTL' must not be negative")
	}

	if cfg.Invitation.TTL <= 0 {
		return errors.New("'invitation.ttl' must be positive")
	}

	if cfg.Suggestions.Limit <= 0 {
		return errors.New("'suggestions.limit' must be positive")
	}
	if cfg.Suggestions.DuplicateThreshold <= 0 || cfg.Suggestions.DuplicateThreshold > 1 {
		return errors.New("'suggestions.duplicateThreshold' must be in (0, 1]")
	}

	if cfg.Notifications.Workers <= 0 {
		return errors.New("'notifications.workers' must be positive")
	}

	if cfg.Notifications.Backlog < 0 {
		return errors.New("'notifications.backlog' must not be negative")
	}

	if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
		return errors.New("'trace.sampleRatio' must be in [0, 1]")
	}

	return nil
}

// DefaultConfig is the Genea server default configurations.
func DefaultConfig() *Config {
	return &Config{
		Datastore: DatastoreConfig{
			Engine:       "memory",
			MaxIdleConns: 10,
			MaxOpenConns: 30,
		},
		HTTP: HTTPConfig{
			Addr:               "0.0.0.0:8080",
			TLS:                &TLSConfig{Enabled: false},
			RequestTimeout:     DefaultRequestTimeout,
			MaxUploadSize:      DefaultMaxUploadSizeInBytes,
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedHeaders: []string{"*"},
		},
		Authn: AuthnConfig{
			Method:                  "none",
			AuthnPresharedKeyConfig: &AuthnPresharedKeyConfig{},
			AuthnOIDCConfig:         &AuthnOIDCConfig{},
			AuthnJWTConfig:          &AuthnJWTConfig{Audience: "authenticated"},
		},
		Media: MediaConfig{
			Backend: "local",
			Local:   LocalMediaConfig{Dir: "data/media"},
		},
		License: LicenseConfig{
			FreeFamilies:  append([]string(nil), license.DefaultFreeFamilies...),
			TrialDuration: DefaultTrialDuration,
			CacheSize:     DefaultLicenseCacheSize,
			CacheTTL:      DefaultLicenseCacheTTL,
		},
		Invitation: InvitationConfig{
			TTL:     DefaultInvitationTTL,
			BaseURL: "http://localhost:5173",
		},
		Suggestions: SuggestionsConfig{
			Limit:              DefaultSuggestionLimit,
			DuplicateThreshold: DefaultDuplicateThreshold,
		},
		Notifications: NotificationsConfig{
			Workers: DefaultNotificationWorkers,
			Backlog: DefaultNotificationBacklog,
		},
		Log: LogConfig{
			Format:          "text",
			Level:           "info",
			TimestampFormat: "Unix",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
			},
			SampleRatio: 0.2,
			ServiceName: "genea",
		},
		Profiler: ProfilerConfig{
			Enabled: false,
			Addr:    ":3001",
		},
		Metrics: MetricConfig{
			Enabled: true,
			Addr:    "0.0.0.0:2112",
		},
	}
}

// MustDefaultConfig returns default server config with metrics turned off.
func MustDefaultConfig() *Config {
	config := DefaultConfig()

	config.Metrics.Enabled = false

	return config
}

// MustDefaultConfigWithRandomPorts returns default server config but with a random port for the
// http address and with metrics turned off.
// This function may panic if somehow a random port cannot be chosen.
func MustDefaultConfigWithRandomPorts() *Config {
	config := MustDefaultConfig()

	httpPort, httpPortReleaser := TCPRandomPort()
	defer httpPortReleaser()

	config.HTTP.Addr = fmt.Sprintf("0.0.0.0:%d", httpPort)

	return config
}

// TCPRandomPort tries to find a random TCP Port. If it can't find one, it panics. Else, it returns the port and a function that releases the port.
// It is the responsibility of the caller to call the release function right before trying to listen on the given port.
func TCPRandomPort() (int, func()) {
	l, err := net.Listen("tcp", "")
	if err != nil {
		panic(err)
	}
	return l.Addr().(*net.TCPAddr).Port, func() {
		l.Close()
	}
}
