package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig()
	require.NoError(t, err)

	timeout, err := cfg.timeout()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.keyringEnabled())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nmctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nmctl", "config.yaml"),
		[]byte("timeout: 30s\nlog_level: debug\ninterface: wlp3s0\nkeyring: false\n"), 0o644))

	cfg, err := loadConfig()
	require.NoError(t, err)

	timeout, err := cfg.timeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "wlp3s0", cfg.Interface)
	assert.False(t, cfg.keyringEnabled())
}

func TestLoadConfigBadTimeout(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nmctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nmctl", "config.yaml"),
		[]byte("timeout: soon\n"), 0o644))

	cfg, err := loadConfig()
	require.NoError(t, err)

	_, err = cfg.timeout()
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nmctl"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nmctl", "config.yaml"),
		[]byte("timeout: [broken\n"), 0o644))

	_, err := loadConfig()
	assert.Error(t, err)
}
