package run

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/genea-app/genea/cmd/util"
)

// bindRunFlagsFunc binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindRunFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(command *cobra.Command, args []string) {
		util.MustBindPFlag("http.addr", flags.Lookup("http-addr"))
		util.MustBindEnv("http.addr", "GENEA_HTTP_ADDR")

		util.MustBindPFlag("http.tls.enabled", flags.Lookup("http-tls-enabled"))
		util.MustBindEnv("http.tls.enabled", "GENEA_HTTP_TLS_ENABLED")

		util.MustBindPFlag("http.tls.cert", flags.Lookup("http-tls-cert"))
		util.MustBindEnv("http.tls.cert", "GENEA_HTTP_TLS_CERT")

		util.MustBindPFlag("http.tls.key", flags.Lookup("http-tls-key"))
		util.MustBindEnv("http.tls.key", "GENEA_HTTP_TLS_KEY")

		command.MarkFlagsRequiredTogether("http-tls-enabled", "http-tls-cert", "http-tls-key")

		util.MustBindPFlag("http.requestTimeout", flags.Lookup("http-request-timeout"))
		util.MustBindEnv("http.requestTimeout", "GENEA_HTTP_REQUEST_TIMEOUT", "GENEA_HTTP_REQUESTTIMEOUT")

		util.MustBindPFlag("http.maxUploadSize", flags.Lookup("http-max-upload-size"))
		util.MustBindEnv("http.maxUploadSize", "GENEA_HTTP_MAX_UPLOAD_SIZE", "GENEA_HTTP_MAXUPLOADSIZE")

		util.MustBindPFlag("http.corsAllowedOrigins", flags.Lookup("http-cors-allowed-origins"))
		util.MustBindEnv("http.corsAllowedOrigins", "GENEA_HTTP_CORS_ALLOWED_ORIGINS", "GENEA_HTTP_CORSALLOWEDORIGINS")

		util.MustBindPFlag("http.corsAllowedHeaders", flags.Lookup("http-cors-allowed-headers"))
		util.MustBindEnv("http.corsAllowedHeaders", "GENEA_HTTP_CORS_ALLOWED_HEADERS", "GENEA_HTTP_CORSALLOWEDHEADERS")

		util.MustBindPFlag("authn.method", flags.Lookup("authn-method"))
		util.MustBindEnv("authn.method", "GENEA_AUTHN_METHOD")

		util.MustBindPFlag("authn.preshared.keys", flags.Lookup("authn-preshared-keys"))
		util.MustBindEnv("authn.preshared.keys", "GENEA_AUTHN_PRESHARED_KEYS")

		util.MustBindPFlag("authn.jwt.secret", flags.Lookup("authn-jwt-secret"))
		util.MustBindEnv("authn.jwt.secret", "GENEA_AUTHN_JWT_SECRET")

		util.MustBindPFlag("authn.jwt.issuer", flags.Lookup("authn-jwt-issuer"))
		util.MustBindEnv("authn.jwt.issuer", "GENEA_AUTHN_JWT_ISSUER")

		util.MustBindPFlag("authn.jwt.audience", flags.Lookup("authn-jwt-audience"))
		util.MustBindEnv("authn.jwt.audience", "GENEA_AUTHN_JWT_AUDIENCE")

		util.MustBindPFlag("authn.oidc.audience", flags.Lookup("authn-oidc-audience"))
		util.MustBindEnv("authn.oidc.audience", "GENEA_AUTHN_OIDC_AUDIENCE")

		util.MustBindPFlag("authn.oidc.issuer", flags.Lookup("authn-oidc-issuer"))
		util.MustBindEnv("authn.oidc.issuer", "GENEA_AUTHN_OIDC_ISSUER")

		util.MustBindPFlag("authn.oidc.issuerAliases", flags.Lookup("authn-oidc-issuer-aliases"))
		util.MustBindEnv("authn.oidc.issuerAliases", "GENEA_AUTHN_OIDC_ISSUER_ALIASES")

		util.MustBindPFlag("datastore.engine", flags.Lookup(datastoreEngineFlag))
		util.MustBindEnv("datastore.engine", "GENEA_DATASTORE_ENGINE")

		util.MustBindPFlag("datastore.uri", flags.Lookup(datastoreURIFlag))
		util.MustBindEnv("datastore.uri", "GENEA_DATASTORE_URI")

		util.MustBindPFlag("datastore.username", flags.Lookup("datastore-username"))
		util.MustBindEnv("datastore.username", "GENEA_DATASTORE_USERNAME")

		util.MustBindPFlag("datastore.password", flags.Lookup("datastore-password"))
		util.MustBindEnv("datastore.password", "GENEA_DATASTORE_PASSWORD")

		util.MustBindPFlag("datastore.maxOpenConns", flags.Lookup("datastore-max-open-conns"))
		util.MustBindEnv("datastore.maxOpenConns", "GENEA_DATASTORE_MAX_OPEN_CONNS", "GENEA_DATASTORE_MAXOPENCONNS")

		util.MustBindPFlag("datastore.maxIdleConns", flags.Lookup("datastore-max-idle-conns"))
		util.MustBindEnv("datastore.maxIdleConns", "GENEA_DATASTORE_MAX_IDLE_CONNS", "GENEA_DATASTORE_MAXIDLECONNS")

		util.MustBindPFlag("datastore.connMaxIdleTime", flags.Lookup("datastore-conn-max-idle-time"))
		util.MustBindEnv("datastore.connMaxIdleTime", "GENEA_DATASTORE_CONN_MAX_IDLE_TIME", "GENEA_DATASTORE_CONNMAXIDLETIME")

		util.MustBindPFlag("datastore.connMaxLifetime", flags.Lookup("datastore-conn-max-lifetime"))
		util.MustBindEnv("datastore.connMaxLifetime", "GENEA_DATASTORE_CONN_MAX_LIFETIME", "GENEA_DATASTORE_CONNMAXLIFETIME")

		util.MustBindPFlag("datastore.metrics.enabled", flags.Lookup("datastore-metrics-enabled"))
		util.MustBindEnv("datastore.metrics.enabled", "GENEA_DATASTORE_METRICS_ENABLED")

		util.MustBindPFlag("media.backend", flags.Lookup("media-backend"))
		util.MustBindEnv("media.backend", "GENEA_MEDIA_BACKEND")

		util.MustBindPFlag("media.local.dir", flags.Lookup("media-local-dir"))
		util.MustBindEnv("media.local.dir", "GENEA_MEDIA_LOCAL_DIR")

		util.MustBindPFlag("media.s3.bucket", flags.Lookup("media-s3-bucket"))
		util.MustBindEnv("media.s3.bucket", "GENEA_MEDIA_S3_BUCKET")

		util.MustBindPFlag("media.s3.prefix", flags.Lookup("media-s3-prefix"))
		util.MustBindEnv("media.s3.prefix", "GENEA_MEDIA_S3_PREFIX")

		util.MustBindPFlag("media.s3.region", flags.Lookup("media-s3-region"))
		util.MustBindEnv("media.s3.region", "GENEA_MEDIA_S3_REGION")

		util.MustBindPFlag("media.s3.endpoint", flags.Lookup("media-s3-endpoint"))
		util.MustBindEnv("media.s3.endpoint", "GENEA_MEDIA_S3_ENDPOINT")

		util.MustBindPFlag("media.s3.accessKeyID", flags.Lookup("media-s3-access-key-id"))
		util.MustBindEnv("media.s3.accessKeyID", "GENEA_MEDIA_S3_ACCESS_KEY_ID")

		util.MustBindPFlag("media.s3.secretAccessKey", flags.Lookup("media-s3-secret-access-key"))
		util.MustBindEnv("media.s3.secretAccessKey", "GENEA_MEDIA_S3_SECRET_ACCESS_KEY")

		util.MustBindPFlag("media.s3.usePathStyle", flags.Lookup("media-s3-use-path-style"))
		util.MustBindEnv("media.s3.usePathStyle", "GENEA_MEDIA_S3_USE_PATH_STYLE")

		util.MustBindPFlag("license.freeFamilies", flags.Lookup("license-free-families"))
		util.MustBindEnv("license.freeFamilies", "GENEA_LICENSE_FREE_FAMILIES")

		util.MustBindPFlag("license.freeFamiliesFile", flags.Lookup("license-free-families-file"))
		util.MustBindEnv("license.freeFamiliesFile", "GENEA_LICENSE_FREE_FAMILIES_FILE")

		util.MustBindPFlag("license.trialDuration", flags.Lookup("license-trial-duration"))
		util.MustBindEnv("license.trialDuration", "GENEA_LICENSE_TRIAL_DURATION")

		util.MustBindPFlag("license.cacheSize", flags.Lookup("license-cache-size"))
		util.MustBindEnv("license.cacheSize", "GENEA_LICENSE_CACHE_SIZE")

		util.MustBindPFlag("license.cacheTTL", flags.Lookup("license-cache-ttl"))
		util.MustBindEnv("license.cacheTTL", "GENEA_LICENSE_CACHE_TTL")

		util.MustBindPFlag("invitation.ttl", flags.Lookup("invitation-ttl"))
		util.MustBindEnv("invitation.ttl", "GENEA_INVITATION_TTL")

		util.MustBindPFlag("invitation.baseURL", flags.Lookup("invitation-base-url"))
		util.MustBindEnv("invitation.baseURL", "GENEA_INVITATION_BASE_URL")

		util.MustBindPFlag("suggestions.limit", flags.Lookup("suggestions-limit"))
		util.MustBindEnv("suggestions.limit", "GENEA_SUGGESTIONS_LIMIT")

		util.MustBindPFlag("suggestions.duplicateThreshold", flags.Lookup("suggestions-duplicate-threshold"))
		util.MustBindEnv("suggestions.duplicateThreshold", "GENEA_SUGGESTIONS_DUPLICATE_THRESHOLD")

		util.MustBindPFlag("notifications.workers", flags.Lookup("notifications-workers"))
		util.MustBindEnv("notifications.workers", "GENEA_NOTIFICATIONS_WORKERS")

		util.MustBindPFlag("notifications.backlog", flags.Lookup("notifications-backlog"))
		util.MustBindEnv("notifications.backlog", "GENEA_NOTIFICATIONS_BACKLOG")

		util.MustBindPFlag("profiler.enabled", flags.Lookup("profiler-enabled"))
		util.MustBindEnv("profiler.enabled", "GENEA_PROFILER_ENABLED")

		util.MustBindPFlag("profiler.addr", flags.Lookup("profiler-addr"))
		util.MustBindEnv("profiler.addr", "GENEA_PROFILER_ADDR")

		util.MustBindPFlag("log.format", flags.Lookup("log-format"))
		util.MustBindEnv("log.format", "GENEA_LOG_FORMAT")

		util.MustBindPFlag("log.level", flags.Lookup("log-level"))
		util.MustBindEnv("log.level", "GENEA_LOG_LEVEL")

		util.MustBindPFlag("log.timestampFormat", flags.Lookup("log-timestamp-format"))
		util.MustBindEnv("log.timestampFormat", "GENEA_LOG_TIMESTAMP_FORMAT")

		util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
		util.MustBindEnv("trace.enabled", "GENEA_TRACE_ENABLED")

		util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
		util.MustBindEnv("trace.otlp.endpoint", "GENEA_TRACE_OTLP_ENDPOINT")

		util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
		util.MustBindEnv("trace.sampleRatio", "GENEA_TRACE_SAMPLE_RATIO")

		util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
		util.MustBindEnv("trace.serviceName", "GENEA_TRACE_SERVICE_NAME")

		util.MustBindPFlag("trace.slowThreshold", flags.Lookup("trace-slow-threshold"))
		util.MustBindEnv("trace.slowThreshold", "GENEA_TRACE_SLOW_THRESHOLD")

		util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
		util.MustBindEnv("metrics.enabled", "GENEA_METRICS_ENABLED")

		util.MustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
		util.MustBindEnv("metrics.addr", "GENEA_METRICS_ADDR")
	}
}
