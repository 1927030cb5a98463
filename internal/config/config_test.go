package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coredb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FillsDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, "storage:\n  mode: memory\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Storage.Mode)
	require.Equal(t, "./data", cfg.Storage.DataDir)
	require.Equal(t, 4096, cfg.Storage.PageSize)
	require.Equal(t, 128, cfg.Cache.Frames)
	require.Equal(t, 2, cfg.Cache.LRUK)
	require.Equal(t, int32(0), cfg.Tree.MaxFanout)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_OverridesEveryField(t *testing.T) {
	path := writeConfig(t, `
storage:
  mode: file
  data_dir: /var/lib/coredb
  page_size: 8192
cache:
  frames: 256
  lruk_k: 4
tree:
  max_fanout: 8
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "file", cfg.Storage.Mode)
	require.Equal(t, "/var/lib/coredb", cfg.Storage.DataDir)
	require.Equal(t, 8192, cfg.Storage.PageSize)
	require.Equal(t, 256, cfg.Cache.Frames)
	require.Equal(t, 4, cfg.Cache.LRUK)
	require.Equal(t, int32(8), cfg.Tree.MaxFanout)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestInstallLogger_FallsBackToInfoOnBadLevel(t *testing.T) {
	cfg := defaults()
	cfg.Log.Level = "not-a-level"
	require.NotPanics(t, func() { cfg.InstallLogger() })
}
