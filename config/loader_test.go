package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/hostbridge/config"
	"github.com/wippyai/hostbridge/docstore/opensearch"
	"github.com/wippyai/hostbridge/errors"
)

type testConfig struct {
	Name      string   `env:"HOSTBRIDGE_TEST_NAME"`
	Addresses []string `env:"HOSTBRIDGE_TEST_ADDRESSES" envSeparator:","`
	Retries   int      `env:"HOSTBRIDGE_TEST_RETRIES" envDefault:"3"`
}

type requiredConfig struct {
	Value string `env:"HOSTBRIDGE_TEST_REQUIRED,required"`
}

func unsetTestEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HOSTBRIDGE_TEST_NAME",
		"HOSTBRIDGE_TEST_ADDRESSES",
		"HOSTBRIDGE_TEST_RETRIES",
		"HOSTBRIDGE_TEST_REQUIRED",
	} {
		os.Unsetenv(k)
	}
	config.ResetCache()
	t.Cleanup(func() {
		for _, k := range []string{"HOSTBRIDGE_TEST_NAME", "HOSTBRIDGE_TEST_ADDRESSES", "HOSTBRIDGE_TEST_RETRIES"} {
			os.Unsetenv(k)
		}
		config.ResetCache()
	})
}

func TestLoadEnv(t *testing.T) {
	unsetTestEnv(t)

	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "telemetry", cfg.Name)
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.Addresses)
	assert.Equal(t, 5, cfg.Retries)
}

func TestLoadEnv_LaterFilesOverride(t *testing.T) {
	unsetTestEnv(t)

	require.NoError(t, config.LoadEnv("testdata/.env.test", "testdata/.env.override"))

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "override", cfg.Name)
	assert.Equal(t, 5, cfg.Retries)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	err := config.LoadEnv("testdata/absent.env")
	require.Error(t, err)
	assert.Equal(t, errors.KindIO, errors.KindOf(err))
}

func TestLoad_Cached(t *testing.T) {
	unsetTestEnv(t)
	t.Setenv("HOSTBRIDGE_TEST_NAME", "first")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "first", cfg.Name)

	t.Setenv("HOSTBRIDGE_TEST_NAME", "second")
	var again testConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, "first", again.Name, "cached value expected")

	require.NoError(t, config.Reload(&again))
	assert.Equal(t, "second", again.Name)
}

func TestLoad_Required(t *testing.T) {
	unsetTestEnv(t)

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.ErrorIs(t, err, config.ErrParsingConfig)
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	t.Setenv("HOSTBRIDGE_TEST_REQUIRED", "present")
	require.NoError(t, config.Load(&cfg), "a failed load is retried")
	assert.Equal(t, "present", cfg.Value)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *testConfig
	require.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestMustLoad(t *testing.T) {
	unsetTestEnv(t)

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
	assert.NotPanics(t, func() {
		var cfg testConfig
		config.MustLoad(&cfg)
	})
}

func TestLoad_OpenSearchConfig(t *testing.T) {
	config.ResetCache()
	t.Cleanup(config.ResetCache)
	t.Setenv("OPENSEARCH_ADDRESSES", "http://localhost:9200,http://localhost:9201")
	t.Setenv("OPENSEARCH_USERNAME", "elastic")
	t.Setenv("OPENSEARCH_PASSWORD", "changeme")

	var cfg opensearch.Config
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, []string{"http://localhost:9200", "http://localhost:9201"}, cfg.Addresses)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.DisableRetry)
}
