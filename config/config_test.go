package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier/reservation-engine/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "reservations.db", cfg.DBPath)
	assert.False(t, cfg.Sweep.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port = 9090
db_path = "./data/test.db"

[sweep]
enabled = true
interval = "10m"
hold_ttl = "72h"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "./data/test.db", cfg.DBPath)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.Interval.Duration)
	assert.Equal(t, 72*time.Hour, cfg.Sweep.HoldTTL.Duration)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `port = 3000`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "reservations.db", cfg.DBPath)
	assert.Equal(t, 48*time.Hour, cfg.Sweep.HoldTTL.Duration)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"bad port", `port = 70000`},
		{"bad duration", "[sweep]\ninterval = \"soon\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestValidate_AfterOverrides(t *testing.T) {
	// Flag overrides are applied after Load, so the merged config must be
	// re-validated. Validate has to catch what a bad file value would.

	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	cfg.Port = -1
	assert.Error(t, cfg.Validate())

	cfg.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Sweep.Enabled = true
	cfg.Sweep.Interval.Duration = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.toml")
	assert.Error(t, err)
}
