package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyConfig(t *testing.T) {
	t.Run("default_config_is_valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Verify())
		require.NoError(t, MustDefaultConfig().Verify())
	})

	t.Run("failing_to_set_http_cert_path_will_not_allow_server_to_start", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HTTP.TLS = &TLSConfig{
			Enabled: true,
			KeyPath: "some/path",
		}

		err := cfg.Verify()
		require.EqualError(t, err, "'http.tls.cert' and 'http.tls.key' configs must be set")
	})

	t.Run("failing_to_set_http_key_path_will_not_allow_server_to_start", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HTTP.TLS = &TLSConfig{
			Enabled:  true,
			CertPath: "some/path",
		}

		err := cfg.Verify()
		require.EqualError(t, err, "'http.tls.cert' and 'http.tls.key' configs must be set")
	})

	t.Run("non_log_format", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.Format = "notaformat"

		err := cfg.Verify()
		require.Error(t, err)
	})

	t.Run("non_log_level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.Level = "notalevel"

		err := cfg.Verify()
		require.Error(t, err)
	})

	t.Run("invalid_log_timestamp_format", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.TimestampFormat = "notatimestampformat"

		err := cfg.Verify()
		require.Error(t, err)
	})

	t.Run("negative_request_timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HTTP.RequestTimeout = -time.Second

		err := cfg.Verify()
		require.EqualError(t, err, "'http.requestTimeout' must not be negative")
	})

	t.Run("zero_max_upload_size", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HTTP.MaxUploadSize = 0

		err := cfg.Verify()
		require.EqualError(t, err, "'http.maxUploadSize' must be positive")
	})

	t.Run("unknown_authn_method", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Authn.Method = "kerberos"

		err := cfg.Verify()
		require.ErrorContains(t, err, "config 'authn.method' must be one of")
	})

	t.Run("preshared_without_keys", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Authn.Method = "preshared"

		err := cfg.Verify()
		require.EqualError(t, err, "'authn.preshared.keys' must be set when 'authn.method' is 'preshared'")

		cfg.Authn.Keys = []string{"KEYONE"}
		require.NoError(t, cfg.Verify())
	})

	t.Run("jwt_without_secret", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Authn.Method = "jwt"

		err := cfg.Verify()
		require.EqualError(t, err, "'authn.jwt.secret' must be set when 'authn.method' is 'jwt'")

		cfg.Authn.Secret = "super-secret"
		require.NoError(t, cfg.Verify())
	})

	t.Run("oidc_without_audience", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Authn.Method = "oidc"
		cfg.Authn.AuthnOIDCConfig.Issuer = "https://issuer.example.com"

		err := cfg.Verify()
		require.EqualError(t, err, "'authn.oidc.issuer' and 'authn.oidc.audience' must be set when 'authn.method' is 'oidc'")
	})

	t.Run("sql_engine_requires_uri", func(t *testing.T) {
		for _, engine := range []string{"postgres", "mysql", "sqlite"} {
			cfg := DefaultConfig()
			cfg.Datastore.Engine = engine

			err := cfg.Verify()
			require.EqualError(t, err, "'datastore.uri' must be set for the "+engine+" engine")
		}
	})

	t.Run("unknown_datastore_engine", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Datastore.Engine = "cassandra"

		err := cfg.Verify()
		require.Error(t, err)
		require.True(t, strings.HasPrefix(err.Error(), "config 'datastore.engine'"))
	})

	t.Run("s3_backend_requires_bucket", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Media.Backend = "s3"

		err := cfg.Verify()
		require.EqualError(t, err, "'media.s3.bucket' must be set when 'media.backend' is 's3'")
	})

	t.Run("duplicate_threshold_out_of_range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Suggestions.DuplicateThreshold = 1.5

		err := cfg.Verify()
		require.EqualError(t, err, "'suggestions.duplicateThreshold' must be in (0, 1]")
	})

	t.Run("invitation_ttl_must_be_positive", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Invitation.TTL = 0

		err := cfg.Verify()
		require.EqualError(t, err, "'invitation.ttl' must be positive")
	})

	t.Run("notification_backlog_must_not_be_negative", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Notifications.Backlog = -1

		err := cfg.Verify()
		require.EqualError(t, err, "'notifications.backlog' must not be negative")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "memory", cfg.Datastore.Engine)
	require.Equal(t, "none", cfg.Authn.Method)
	require.Equal(t, "local", cfg.Media.Backend)
	require.True(t, cfg.Metrics.Enabled)
	require.NotEmpty(t, cfg.License.FreeFamilies)

	// the defaults are copied, not shared
	cfg.License.FreeFamilies[0] = "changed"
	require.NotEqual(t, "changed", DefaultConfig().License.FreeFamilies[0])

	require.False(t, MustDefaultConfig().Metrics.Enabled)
}

func TestMustDefaultConfigWithRandomPorts(t *testing.T) {
	cfg := MustDefaultConfigWithRandomPorts()
	require.NotEqual(t, DefaultConfig().HTTP.Addr, cfg.HTTP.Addr)
	require.True(t, strings.HasPrefix(cfg.HTTP.Addr, "0.0.0.0:"))
}
