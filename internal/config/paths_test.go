// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accounts/internal/config"
)

func TestConfigDir(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		want    string
	}{
		{"xdg wins", []string{"HOME=/home/ann", "XDG_CONFIG_HOME=/xdg"}, "/xdg/accounts"},
		{"home fallback", []string{"HOME=/home/ann"}, "/home/ann/.config/accounts"},
		{"empty xdg falls back", []string{"XDG_CONFIG_HOME=", "HOME=/home/ann"}, "/home/ann/.config/accounts"},
		{"nothing set", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, config.ConfigDir(tt.environ))
		})
	}
}

func TestDefaultConfigFile(t *testing.T) {
	xdg := t.TempDir()
	env := []string{"XDG_CONFIG_HOME=" + xdg}

	assert.Empty(t, config.DefaultConfigFile(env), "missing file")

	dir := filepath.Join(xdg, "accounts")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\n"), 0o600))

	assert.Equal(t, path, config.DefaultConfigFile(env))
}

func TestLoad_UsesDefaultConfigFile(t *testing.T) {
	xdg := t.TempDir()
	dir := filepath.Join(xdg, "accounts")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("port: 7000\ndatabase_url: postgres://xdg/db\njwt_secret: x\n"), 0o600))

	cfg, err := config.Load(config.LoadOptions{
		DotEnvFile: noDotEnv(t),
		Environ:    environ("XDG_CONFIG_HOME=" + xdg),
	})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "postgres://xdg/db", cfg.DatabaseURL)
}
