// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "accounts"

// ConfigDir returns the XDG config directory for the service, looked up in
// environ. XDG_CONFIG_HOME wins over ~/.config; "" means neither is set.
func ConfigDir(environ []string) string {
	base := lookupEnv(environ, "XDG_CONFIG_HOME")
	if base == "" {
		home := lookupEnv(environ, "HOME")
		if home == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the config file Load reads when --config is
// unset, or "" when it does not exist.
func DefaultConfigFile(environ []string) string {
	dir := ConfigDir(environ)
	if dir == "" {
		return ""
	}
	path := filepath.Join(dir, "config.yaml")
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

// lookupEnv returns the last value of name in environ.
func lookupEnv(environ []string, name string) string {
	value := ""
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == name {
			value = v
		}
	}
	return value
}
