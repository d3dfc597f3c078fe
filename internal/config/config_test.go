package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("SLOPGUARD_DEBUG", "")
	t.Setenv("SLOPGUARD_PROFILE", "")
	t.Setenv("SLOPGUARD_WORKERS", "")
	t.Setenv("SLOPGUARD_CACHE_DIR", "")

	cfg := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Empty(t, cfg.GitHubToken)
	assert.Zero(t, cfg.Workers)
	assert.False(t, cfg.Debug)
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("SLOPGUARD_WORKERS", "")
	t.Setenv("SLOPGUARD_DEBUG", "")
	t.Setenv("SLOPGUARD_PROFILE", "")
	t.Setenv("SLOPGUARD_CACHE_DIR", "")

	path := filepath.Join(t.TempDir(), "slopguard.yml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 8\ndebug: true\ncache_dir: /tmp/sg\n"), 0o600))

	cfg := Load(path)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/tmp/sg", cfg.CacheDir)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slopguard.yml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 8\ngithub_token: from-file\n"), 0o600))

	t.Setenv("SLOPGUARD_WORKERS", "3")
	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("SLOPGUARD_DEBUG", "1")
	t.Setenv("SLOPGUARD_PROFILE", "")
	t.Setenv("SLOPGUARD_CACHE_DIR", "")

	cfg := Load(path)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "from-env", cfg.GitHubToken)
	assert.True(t, cfg.Debug)
}

func TestMalformedYAMLIgnored(t *testing.T) {
	t.Setenv("SLOPGUARD_WORKERS", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("SLOPGUARD_DEBUG", "")
	t.Setenv("SLOPGUARD_PROFILE", "")
	t.Setenv("SLOPGUARD_CACHE_DIR", "")

	path := filepath.Join(t.TempDir(), "slopguard.yml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [not an int"), 0o600))

	cfg := Load(path)
	assert.Zero(t, cfg.Workers)
}

func TestDebugf(t *testing.T) {
	cfg := &Config{}
	assert.Nil(t, cfg.Debugf())

	cfg.Debug = true
	assert.NotNil(t, cfg.Debugf())
}
