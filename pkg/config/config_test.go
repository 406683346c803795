package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/costbound/costbound/pkg/config"
)

func TestLoadDecodesSetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "costbound.toml")

	const body = `
preprocess = false
soft_timeout_seconds = 10
`

	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Preprocess)
	require.False(t, *cfg.Preprocess)
	require.NotNil(t, cfg.SoftTimeoutSeconds)
	require.Equal(t, uint(10), *cfg.SoftTimeoutSeconds)
	require.Nil(t, cfg.EliminateCost)
	require.Nil(t, cfg.HardTimeoutSeconds)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
