package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestMustBindPFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("datastore-engine", "memory", "")
	require.NoError(t, flags.Parse([]string{"--datastore-engine", "sqlite"}))

	MustBindPFlag("datastore.engine", flags.Lookup("datastore-engine"))
	require.Equal(t, "sqlite", viper.GetString("datastore.engine"))

	require.Panics(t, func() {
		MustBindPFlag("datastore.uri", nil)
	})
}

func TestMustBindEnv(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("GENEA_TEST_VALUE", "hello")

	MustBindEnv("test.value", "GENEA_TEST_VALUE")
	require.Equal(t, "hello", viper.GetString("test.value"))

	require.Panics(t, func() {
		MustBindEnv()
	})
}

func TestPrepareTempConfigFile(t *testing.T) {
	PrepareTempConfigFile(t, "log:\n  level: debug\n")

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(home, ".genea", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "log:\n  level: debug\n", string(content))
}
