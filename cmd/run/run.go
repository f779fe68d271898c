// Package run contains the command to run a Genea server.
package run

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	goruntime "runtime"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/certwatcher"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/internal/authn/jwtsecret"
	"github.com/genea-app/genea/internal/authn/oidc"
	"github.com/genea-app/genea/internal/authn/presharedkey"
	"github.com/genea-app/genea/internal/build"
	serverconfig "github.com/genea-app/genea/internal/server/config"
	"github.com/genea-app/genea/pkg/blob"
	"github.com/genea-app/genea/pkg/license"
	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/middleware"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/middleware/logging"
	"github.com/genea-app/genea/pkg/middleware/recovery"
	"github.com/genea-app/genea/pkg/middleware/requestid"
	"github.com/genea-app/genea/pkg/server"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/memory"
	"github.com/genea-app/genea/pkg/storage/mysql"
	"github.com/genea-app/genea/pkg/storage/postgres"
	"github.com/genea-app/genea/pkg/storage/sqlcommon"
	"github.com/genea-app/genea/pkg/storage/sqlite"
	"github.com/genea-app/genea/pkg/storage/storagewrappers"
	"github.com/genea-app/genea/pkg/telemetry"
)

const (
	datastoreEngineFlag = "datastore-engine"
	datastoreURIFlag    = "datastore-uri"

	// requestBodySlack is the room left above the upload limit for multipart
	// framing and the other form fields.
	requestBodySlack = 1 << 20
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Genea server",
		Long:  "Run the Genea server.",
		Run:   run,
		Args:  cobra.NoArgs,
	}

	defaultConfig := serverconfig.DefaultConfig()
	flags := cmd.Flags()

	flags.String("http-addr", defaultConfig.HTTP.Addr, "the host:port address to serve the HTTP server on")

	flags.Bool("http-tls-enabled", defaultConfig.HTTP.TLS.Enabled, "enable/disable transport layer security (TLS)")

	flags.String("http-tls-cert", defaultConfig.HTTP.TLS.CertPath, "the (absolute) file path of the certificate to use for the TLS connection")

	flags.String("http-tls-key", defaultConfig.HTTP.TLS.KeyPath, "the (absolute) file path of the TLS key that should be used for the TLS connection")

	flags.Duration("http-request-timeout", defaultConfig.HTTP.RequestTimeout, "the maximum duration of a single request. 0 disables the timeout")

	flags.Int64("http-max-upload-size", defaultConfig.HTTP.MaxUploadSize, "the largest media upload accepted, in bytes")

	flags.StringSlice("http-cors-allowed-origins", defaultConfig.HTTP.CORSAllowedOrigins, "specifies the CORS allowed origins")

	flags.StringSlice("http-cors-allowed-headers", defaultConfig.HTTP.CORSAllowedHeaders, "specifies the CORS allowed headers")

	flags.String("authn-method", defaultConfig.Authn.Method, "the authentication method to use ('none', 'preshared', 'jwt' or 'oidc')")

	flags.StringSlice("authn-preshared-keys", defaultConfig.Authn.Keys, "one or more preshared keys to use for authentication")

	flags.String("authn-jwt-secret", defaultConfig.Authn.Secret, "the HS256 secret access tokens are signed with")

	flags.String("authn-jwt-issuer", defaultConfig.Authn.AuthnJWTConfig.Issuer, "the expected issuer of the access tokens (optional)")

	flags.String("authn-jwt-audience", defaultConfig.Authn.AuthnJWTConfig.Audience, "the expected audience of the access tokens (optional)")

	flags.String("authn-oidc-audience", defaultConfig.Authn.AuthnOIDCConfig.Audience, "the OIDC audience of the tokens being signed by the authorization server")

	flags.String("authn-oidc-issuer", defaultConfig.Authn.AuthnOIDCConfig.Issuer, "the OIDC issuer (authorization server) signing the tokens, and where the keys will be fetched from")

	flags.StringSlice("authn-oidc-issuer-aliases", defaultConfig.Authn.IssuerAliases, "the OIDC issuer DNS aliases that will be accepted as valid when verifying the `iss` field of the JWTs.")

	flags.String(datastoreEngineFlag, defaultConfig.Datastore.Engine, "the datastore engine that will be used for persistence")

	flags.String(datastoreURIFlag, defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")

	flags.String("datastore-username", "", "the connection username to use to connect to the datastore (overwrites any username provided in the connection uri)")

	flags.String("datastore-password", "", "the connection password to use to connect to the datastore (overwrites any password provided in the connection uri)")

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")

	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")

	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")

	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")

	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics.Enabled, "enable/disable sql metrics")

	flags.String("media-backend", defaultConfig.Media.Backend, "where uploaded media is stored ('local' or 's3')")

	flags.String("media-local-dir", defaultConfig.Media.Local.Dir, "the directory media is stored in when the backend is 'local'")

	flags.String("media-s3-bucket", defaultConfig.Media.S3.Bucket, "the bucket media is stored in when the backend is 's3'")

	flags.String("media-s3-prefix", defaultConfig.Media.S3.Prefix, "a key prefix for every stored object")

	flags.String("media-s3-region", defaultConfig.Media.S3.Region, "the region of the bucket")

	flags.String("media-s3-endpoint", defaultConfig.Media.S3.Endpoint, "a custom endpoint for S3 compatible object stores")

	flags.String("media-s3-access-key-id", defaultConfig.Media.S3.AccessKeyID, "static access key id (the default credential chain is used when empty)")

	flags.String("media-s3-secret-access-key", defaultConfig.Media.S3.SecretAccessKey, "static secret access key")

	flags.Bool("media-s3-use-path-style", defaultConfig.Media.S3.UsePathStyle, "address objects with path style URLs")

	flags.StringSlice("license-free-families", defaultConfig.License.FreeFamilies, "surnames whose families never need a license")

	flags.String("license-free-families-file", defaultConfig.License.FreeFamiliesFile, "a YAML file listing more free family surnames")

	flags.Duration("license-trial-duration", defaultConfig.License.TrialDuration, "the length of a trial license")

	flags.Int64("license-cache-size", defaultConfig.License.CacheSize, "the number of license states kept in memory")

	flags.Duration("license-cache-ttl", defaultConfig.License.CacheTTL, "how long a cached license state is trusted")

	flags.Duration("invitation-ttl", defaultConfig.Invitation.TTL, "how long an invitation can be accepted")

	flags.String("invitation-base-url", defaultConfig.Invitation.BaseURL, "the public URL of the web application invitation links point to")

	flags.Int("suggestions-limit", defaultConfig.Suggestions.Limit, "the maximum number of relationship suggestions returned")

	flags.Float64("suggestions-duplicate-threshold", defaultConfig.Suggestions.DuplicateThreshold, "the similarity above which two persons are reported as possible duplicates")

	flags.Int("notifications-workers", defaultConfig.Notifications.Workers, "the number of goroutines delivering notifications")

	flags.Int("notifications-backlog", defaultConfig.Notifications.Backlog, "the number of notifications that may wait for a worker before new ones are dropped")

	flags.Bool("profiler-enabled", defaultConfig.Profiler.Enabled, "enable/disable pprof profiling")

	flags.String("profiler-addr", defaultConfig.Profiler.Addr, "the host:port address to serve the pprof profiler server on")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to output logs in")

	flags.String("log-timestamp-format", defaultConfig.Log.TimestampFormat, "the timestamp format to use for log messages")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")

	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces.")

	flags.Duration("trace-slow-threshold", defaultConfig.Trace.SlowThreshold, "only export traces at least this slow. 0 exports every sampled trace")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint")

	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")

	// NOTE: if you add a new flag here, update the function below, too

	cmd.PreRun = bindRunFlagsFunc(flags)

	return cmd
}

// ReadConfig returns the Genea server configuration based on the values provided in the server's 'config.yaml' file.
// The 'config.yaml' file is loaded from '/etc/genea', '$HOME/.genea', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*serverconfig.Config, error) {
	config := serverconfig.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load server config: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}

	return config, nil
}

func run(_ *cobra.Command, _ []string) {
	config, err := ReadConfig()
	if err != nil {
		panic(err)
	}

	if err := config.Verify(); err != nil {
		panic(err)
	}

	logger := logger.MustNewLogger(config.Log.Format, config.Log.Level, config.Log.TimestampFormat)
	serverCtx := &ServerContext{Logger: logger}
	if err := serverCtx.Run(context.Background(), config); err != nil {
		panic(err)
	}
}

type ServerContext struct {
	Logger logger.Logger
}

// telemetryConfig returns the function that must be called to shut down tracing.
func (s *ServerContext) telemetryConfig(config *serverconfig.Config) func() error {
	if config.Trace.Enabled {
		s.Logger.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s'", config.Trace.SampleRatio, config.Trace.OTLP.Endpoint))

		tp := telemetry.MustNewTracerProvider(
			telemetry.WithOTLPEndpoint(config.Trace.OTLP.Endpoint),
			telemetry.WithServiceName(config.Trace.ServiceName),
			telemetry.WithSamplingRatio(config.Trace.SampleRatio),
			telemetry.WithSlowTraceThreshold(config.Trace.SlowThreshold),
		)
		return func() error {
			// the batch span processor may take up to 5 seconds to flush
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return tp.Close(ctx)
		}
	}
	otel.SetTracerProvider(telemetry.Noop())
	return func() error {
		return nil
	}
}

func (s *ServerContext) datastoreConfig(config *serverconfig.Config) (storage.GeneaDatastore, error) {
	datastoreOptions := []sqlcommon.DatastoreOption{
		sqlcommon.WithUsername(config.Datastore.Username),
		sqlcommon.WithPassword(config.Datastore.Password),
		sqlcommon.WithLogger(s.Logger),
		sqlcommon.WithMaxOpenConns(config.Datastore.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(config.Datastore.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(config.Datastore.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(config.Datastore.ConnMaxLifetime),
	}

	if config.Datastore.Metrics.Enabled {
		datastoreOptions = append(datastoreOptions, sqlcommon.WithMetrics())
	}

	dsCfg := sqlcommon.NewConfig(datastoreOptions...)

	var datastore storage.GeneaDatastore
	var err error
	switch config.Datastore.Engine {
	case "memory":
		datastore = memory.New()
	case "mysql":
		datastore, err = mysql.New(config.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize mysql datastore: %w", err)
		}
	case "postgres":
		datastore, err = postgres.New(config.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres datastore: %w", err)
		}
	case "sqlite":
		datastore, err = sqlite.New(config.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite datastore: %w", err)
		}
	default:
		return nil, fmt.Errorf("storage engine '%s' is unsupported", config.Datastore.Engine)
	}

	s.Logger.Info(fmt.Sprintf("using '%v' storage engine", config.Datastore.Engine))

	if config.Datastore.Engine == "memory" {
		return datastore, nil
	}

	return storagewrappers.NewInstrumentedDatastore(datastore, config.Datastore.Engine), nil
}

func (s *ServerContext) blobStoreConfig(ctx context.Context, config *serverconfig.Config) (blob.Store, error) {
	switch config.Media.Backend {
	case "local":
		s.Logger.Info(fmt.Sprintf("storing media under '%s'", config.Media.Local.Dir))
		return blob.NewLocalStore(config.Media.Local.Dir)
	case "s3":
		s.Logger.Info(fmt.Sprintf("storing media in the s3 bucket '%s'", config.Media.S3.Bucket))
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          config.Media.S3.Bucket,
			Prefix:          config.Media.S3.Prefix,
			Region:          config.Media.S3.Region,
			Endpoint:        config.Media.S3.Endpoint,
			AccessKeyID:     config.Media.S3.AccessKeyID,
			SecretAccessKey: config.Media.S3.SecretAccessKey,
			UsePathStyle:    config.Media.S3.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("media backend '%s' is unsupported", config.Media.Backend)
	}
}

func (s *ServerContext) licenseConfig(config *serverconfig.Config, datastore storage.GeneaDatastore) (*license.Service, error) {
	freeFamilies := append([]string(nil), config.License.FreeFamilies...)
	if config.License.FreeFamiliesFile != "" {
		fromFile, err := license.LoadFreeFamiliesFile(config.License.FreeFamiliesFile)
		if err != nil {
			return nil, err
		}
		freeFamilies = append(freeFamilies, fromFile...)
	}

	return license.New(datastore,
		license.WithFreeFamilies(freeFamilies...),
		license.WithTrialDuration(config.License.TrialDuration),
		license.WithCache(config.License.CacheSize, config.License.CacheTTL),
		license.WithLogger(s.Logger),
	)
}

func (s *ServerContext) authenticatorConfig(config *serverconfig.Config) (authn.Authenticator, error) {
	var authenticator authn.Authenticator
	var err error

	switch config.Authn.Method {
	case "none":
		s.Logger.Warn("authentication is disabled")
		authenticator = authn.NoopAuthenticator{}
	case "preshared":
		s.Logger.Info("using 'preshared' authentication")
		authenticator, err = presharedkey.NewPresharedKeyAuthenticator(config.Authn.Keys)
	case "jwt":
		s.Logger.Info("using 'jwt' authentication")
		authenticator, err = jwtsecret.NewSecretAuthenticator(config.Authn.Secret, config.Authn.AuthnJWTConfig.Audience, config.Authn.AuthnJWTConfig.Issuer)
	case "oidc":
		s.Logger.Info("using 'oidc' authentication")
		issuers := append([]string{config.Authn.AuthnOIDCConfig.Issuer}, config.Authn.IssuerAliases...)
		authenticator, err = oidc.NewRemoteOidcAuthenticator(issuers, config.Authn.AuthnOIDCConfig.Audience)
	default:
		return nil, fmt.Errorf("unsupported authentication method '%v'", config.Authn.Method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authenticator: %w", err)
	}

	return authenticator, nil
}

// httpHandler wraps the API with the middleware every request goes through.
func (s *ServerContext) httpHandler(config *serverconfig.Config, svr *server.Server) http.Handler {
	handler := svr.Handler()
	handler = middleware.MaxBytesHandler(handler, config.HTTP.MaxUploadSize+requestBodySlack)
	handler = middleware.NewTimeoutHandler(config.HTTP.RequestTimeout, s.Logger).Handler(handler)
	handler = httpmiddleware.MetricsHandler(handler)
	handler = logging.HTTPLoggingHandler(handler, s.Logger)
	handler = requestid.Handler(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedHeaders:   config.HTTP.CORSAllowedHeaders,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost,
			http.MethodHead, http.MethodPatch, http.MethodDelete, http.MethodPut,
		},
	}).Handler(handler)
	handler = recovery.HTTPPanicRecoveryHandler(handler, s.Logger)

	if config.Trace.Enabled {
		handler = otelhttp.NewHandler(handler, build.ProjectName)
	}

	return handler
}

func (s *ServerContext) runHTTPServer(ctx context.Context, config *serverconfig.Config, handler http.Handler) (*http.Server, error) {
	httpServer := &http.Server{
		Addr:              config.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	listener, err := net.Listen("tcp", config.HTTP.Addr)
	if err != nil {
		return nil, err
	}

	if config.HTTP.TLS != nil && config.HTTP.TLS.Enabled {
		httpGetCertificate, err := watchAndLoadCertificateWithCertWatcher(ctx, config.HTTP.TLS.CertPath, config.HTTP.TLS.KeyPath, s.Logger)
		if err != nil {
			listener.Close()
			return nil, err
		}
		listener = tls.NewListener(listener, &tls.Config{
			GetCertificate: httpGetCertificate,
		})

		s.Logger.Info("HTTP TLS is enabled, serving connections using the provided certificate")
	} else {
		s.Logger.Warn("HTTP TLS is disabled, serving connections using insecure plaintext")
	}

	go func() {
		s.Logger.Info(fmt.Sprintf("🚀 starting HTTP server on '%s'...", httpServer.Addr))
		if err := httpServer.Serve(listener); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Fatal("HTTP server closed with unexpected error", zap.Error(err))
			}
		}
		s.Logger.Info("HTTP server shut down.")
	}()
	return httpServer, nil
}

// Run starts every listener configured and blocks until ctx is cancelled or
// the process is signalled, then shuts everything down.
func (s *ServerContext) Run(ctx context.Context, config *serverconfig.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProviderCloser := s.telemetryConfig(config)

	datastore, err := s.datastoreConfig(config)
	if err != nil {
		return err
	}
	defer datastore.Close()

	blobStore, err := s.blobStoreConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("initialize media store: %w", err)
	}

	licenses, err := s.licenseConfig(config, datastore)
	if err != nil {
		return fmt.Errorf("initialize license service: %w", err)
	}
	defer licenses.Close()

	authenticator, err := s.authenticatorConfig(config)
	if err != nil {
		return err
	}
	defer authenticator.Close()

	svr, err := server.NewServerWithOpts(
		server.WithDatastore(datastore),
		server.WithBlobStore(blobStore),
		server.WithLicenseService(licenses),
		server.WithAuthenticator(authenticator),
		server.WithLogger(s.Logger),
		server.WithInvitationTTL(config.Invitation.TTL),
		server.WithBaseURL(config.Invitation.BaseURL),
		server.WithMaxUploadSize(config.HTTP.MaxUploadSize),
		server.WithSuggestionLimit(config.Suggestions.Limit),
		server.WithDuplicateThreshold(config.Suggestions.DuplicateThreshold),
		server.WithNotificationWorkers(config.Notifications.Workers),
		server.WithNotificationBacklog(config.Notifications.Backlog),
	)
	if err != nil {
		return err
	}
	defer svr.Close()

	var profilerServer *http.Server
	if config.Profiler.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		profilerServer = &http.Server{Addr: config.Profiler.Addr, Handler: mux, ReadHeaderTimeout: 30 * time.Second}

		go func() {
			s.Logger.Info(fmt.Sprintf("🔬 starting pprof profiler on '%s'", config.Profiler.Addr))

			if err := profilerServer.ListenAndServe(); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					s.Logger.Fatal("failed to start pprof profiler", zap.Error(err))
				}
			}
			s.Logger.Info("profiler shut down.")
		}()
	}

	var metricsServer *http.Server
	if config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer = &http.Server{Addr: config.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 30 * time.Second}

		go func() {
			s.Logger.Info(fmt.Sprintf("📈 starting prometheus metrics server on '%s'", config.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					s.Logger.Fatal("failed to start prometheus metrics server", zap.Error(err))
				}
			}
			s.Logger.Info("metrics server shut down.")
		}()
	}

	s.Logger.Info(
		"starting genea service...",
		zap.String("version", build.Version),
		zap.String("date", build.Date),
		zap.String("commit", build.Commit),
		zap.String("go-version", goruntime.Version()),
		zap.String("datastore", config.Datastore.Engine),
		zap.String("authn", config.Authn.Method),
		zap.String("media", config.Media.Backend),
	)

	httpServer, err := s.runHTTPServer(ctx, config, s.httpHandler(config, svr))
	if err != nil {
		return err
	}

	// wait for cancellation signal
	<-ctx.Done()
	s.Logger.Info("attempting to shutdown gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.Logger.Info("failed to shutdown the http server", zap.Error(err))
	}

	if profilerServer != nil {
		if err := profilerServer.Shutdown(shutdownCtx); err != nil {
			s.Logger.Info("failed to shutdown the profiler", zap.Error(err))
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.Logger.Info("failed to shutdown the prometheus metrics server", zap.Error(err))
		}
	}

	if err := tracerProviderCloser(); err != nil {
		s.Logger.Error("failed to shutdown tracing", zap.Error(err))
	}

	s.Logger.Info("server exited. goodbye 👋")

	return nil
}

func watchAndLoadCertificateWithCertWatcher(ctx context.Context, certPath, keyPath string, logger logger.Logger) (func(*tls.ClientHelloInfo) (*tls.Certificate, error), error) {
	log.SetLogger(logr.Discard())
	watcher, err := certwatcher.New(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create certwatcher: %w", err)
	}

	if err := watcher.ReadCertificate(); err != nil {
		return nil, fmt.Errorf("failed to load initial certificate: %w", err)
	}
	logger.Info("Initial TLS certificate loaded.", zap.String("certPath", certPath), zap.String("keyPath", keyPath))

	go func() {
		logger.Info("Starting certificate watcher...", zap.String("certPath", certPath), zap.String("keyPath", keyPath))
		if err := watcher.Start(ctx); err != nil {
			logger.Error("Certwatcher encountered an error", zap.Error(err))
		}
	}()

	return watcher.GetCertificate, nil
}
