package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, 60, cfg.CaptureIntervalSeconds)
	require.Equal(t, "memory", cfg.Vector.Backend)
	require.Equal(t, "memex_captures", cfg.Vector.Collection)
	require.NotEmpty(t, cfg.RecordDir)
}

func TestLoad_ParsesYAMLAndAppliesPartialDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := `
capture_interval_seconds: 5
record_dir: /tmp/memex-test
vector:
  backend: qdrant
  endpoint: localhost:6334
  collection: test_collection
  dimension: 128
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.CaptureIntervalSeconds)
	require.Equal(t, "/tmp/memex-test", cfg.RecordDir)
	require.Equal(t, "qdrant", cfg.Vector.Backend)
	require.Equal(t, 128, cfg.Vector.Dimension)
	require.Equal(t, "cosine", cfg.Vector.Metric, "unset fields still get defaulted")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture_interval_seconds: 5\n"), 0o644))
	t.Setenv("MEMEX_CAPTURE_INTERVAL_SECONDS", "15")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 15, cfg.CaptureIntervalSeconds)
}
