package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datalens-cli/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.7, c.NumericThreshold)
	assert.Equal(t, 5000, c.EvaluationRowLimit)
	assert.Equal(t, 2, c.MinNonNullValues)
	assert.True(t, c.AllowParensNegative)
	assert.Equal(t, 5000, c.MaxProfileRows)
	assert.Equal(t, 20000, c.MaxComputeRows)
	assert.Equal(t, "month", c.TrendGrain)
	assert.Equal(t, 6, c.ForecastPeriods)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "console", c.LogFormat)
	assert.Empty(t, c.OutputDir)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DATALENS_FORECAST_PERIODS", "3")
	t.Setenv("DATALENS_TREND_GRAIN", "week")
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, c.ForecastPeriods)
	assert.Equal(t, "week", c.TrendGrain)
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	c, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set("numeric_threshold", "0.9"))
	require.NoError(t, c.Set("allow_parens_negative", "false"))
	require.NoError(t, c.Set("output_dir", "/tmp/out"))
	require.NoError(t, config.Save(c, path))

	got, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.NumericThreshold)
	assert.False(t, got.AllowParensNegative)
	assert.Equal(t, "/tmp/out", got.OutputDir)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trend_grain: hourly\n"), 0o644))
	_, err := config.Load(path)
	assert.ErrorContains(t, err, "invalid trend_grain")
}

func TestSetValidation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := config.Load("")
	require.NoError(t, err)

	assert.ErrorContains(t, c.Set("numeric_threshold", "abc"), "invalid float")
	assert.Error(t, c.Set("numeric_threshold", "1.5"))
	assert.Equal(t, 0.7, c.NumericThreshold)
	assert.ErrorContains(t, c.Set("max_compute_rows", "-1"), "invalid int")
	assert.ErrorContains(t, c.Set("log_format", "xml"), "invalid log_format")
	assert.ErrorContains(t, c.Set("nope", "1"), "unknown key")

	require.NoError(t, c.Set("trend_grain", "DAY"))
	v, err := c.Get("trend_grain")
	require.NoError(t, err)
	assert.Equal(t, "day", v)
}

func TestGetCoversAllKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := config.Load("")
	require.NoError(t, err)
	for _, k := range config.Keys {
		_, err := c.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestDefaultIgnoresEnv(t *testing.T) {
	t.Setenv("DATALENS_FORECAST_PERIODS", "9")
	c := config.Default()
	assert.Equal(t, 6, c.ForecastPeriods)
	assert.NoError(t, c.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DATALENS_LOG_FORMAT", "json")
	t.Cleanup(func() { os.Unsetenv("DATALENS_TREND_GRAIN") })

	env := filepath.Join(t.TempDir(), "local.env")
	require.NoError(t, os.WriteFile(env, []byte("DATALENS_TREND_GRAIN=week\nDATALENS_LOG_FORMAT=console\n"), 0o644))
	require.NoError(t, config.LoadDotEnv(env))

	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "week", c.TrendGrain)
	assert.Equal(t, "json", c.LogFormat, "variables already in the environment win")

	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
