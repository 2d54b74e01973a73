package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: ":9090"
  mode: release
redis:
  enabled: true
  ttl: 1h
model:
  saliency_url: http://models:8000/u2net
saliency:
  percentile: 30
  max: 0.4
refine:
  strength: 4
pipeline:
  workers: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://models:8000/u2net", cfg.Model.SaliencyURL)
	assert.Equal(t, 320, cfg.Model.InputSize)
	assert.InDelta(t, 0.1, cfg.Saliency.Floor, 1e-12)
	assert.InDelta(t, 30, cfg.Saliency.Percentile, 1e-12)
	assert.InDelta(t, 0.15, cfg.Saliency.Min, 1e-12)
	assert.InDelta(t, 0.4, cfg.Saliency.Max, 1e-12)
	assert.Equal(t, 4, cfg.Refine.Strength)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 2048, cfg.Pipeline.MaxDimension)
	assert.Equal(t, 10, cfg.Upload.MaxBatch)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "refine:\n  strength: 9\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, Default().Validate())
}
