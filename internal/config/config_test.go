package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]string{"-jwt-secret", testSecret})
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Address)
	assert.Equal(t, "gophsync.db", cfg.DBPath)
	assert.Empty(t, cfg.StrategiesFile)
	assert.Equal(t, models.StrategyManual, cfg.BatchStrategy)
	assert.Equal(t, audit.DefaultRetention, cfg.Retention)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_EnvFallback(t *testing.T) {
	t.Setenv(EnvAddress, "127.0.0.1:9090")
	t.Setenv(EnvJWTSecret, testSecret)
	t.Setenv(EnvBatchStrategy, "auto_merge")
	t.Setenv(EnvRetention, "48h")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Address)
	assert.Equal(t, models.StrategyAutoMerge, cfg.BatchStrategy)
	assert.Equal(t, 48*time.Hour, cfg.Retention)

	// Флаг важнее переменной окружения
	cfg, err = Parse([]string{"-a", "0.0.0.0:7000"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.Address)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "missing secret", args: nil},
		{name: "short secret", args: []string{"-jwt-secret", "short"}},
		{name: "unknown strategy", args: []string{"-jwt-secret", testSecret, "-strategy", "coin_flip"}},
		{name: "keep_local is not a batch strategy", args: []string{"-jwt-secret", testSecret, "-strategy", "keep_local"}},
		{name: "bad address", args: []string{"-jwt-secret", testSecret, "-a", "nope"}},
		{name: "missing strategies file", args: []string{"-jwt-secret", testSecret, "-s", "/does/not/exist.yaml"}},
		{name: "bad log level", args: []string{"-jwt-secret", testSecret, "-log-level", "loud"}},
		{name: "bad retention env", env: map[string]string{EnvRetention: "forever"}, args: []string{"-jwt-secret", testSecret}},
		{name: "unknown flag", args: []string{"-x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParse_Version(t *testing.T) {
	_, err := Parse([]string{"-version"})
	assert.ErrorIs(t, err, ErrVersionRequested)
}
