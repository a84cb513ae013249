// Package config loads the backend configuration: defaults, overlaid by an
// optional config.toml, overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
)

// Config holds everything the backend needs at startup. The banned lists and
// scan interval are policy the agents poll via GET /api/config, so they can
// be changed at runtime through the config watcher.
type Config struct {
	// Port the HTTP server listens on. ENV: CLASSWATCH_PORT
	Port uint16 `toml:"port" env:"CLASSWATCH_PORT"`
	// RedisAddr like "localhost:6379". ENV: CLASSWATCH_REDIS_ADDR
	RedisAddr string `toml:"redis_addr" env:"CLASSWATCH_REDIS_ADDR"`
	// KeyPrefix for all Redis keys. ENV: CLASSWATCH_KEY_PREFIX
	KeyPrefix string `toml:"key_prefix" env:"CLASSWATCH_KEY_PREFIX"`
	// ScanIntervalSecs is how often agents scan for policy violations.
	ScanIntervalSecs uint64 `toml:"scan_interval_secs" env:"CLASSWATCH_SCAN_INTERVAL_SECS"`
	// HeartbeatTTLSecs is how long a heartbeat keeps a student "active".
	HeartbeatTTLSecs uint64 `toml:"heartbeat_ttl_secs" env:"CLASSWATCH_HEARTBEAT_TTL_SECS"`
	// BannedSites and BannedApps are the policy lists pushed to agents.
	BannedSites []string `toml:"banned_sites"`
	BannedApps  []string `toml:"banned_apps"`
	// SauMode relaxes enforcement for supervised assessment use.
	SauMode bool `toml:"sau_mode" env:"CLASSWATCH_SAU_MODE"`

	// FrontendDir is served as the dashboard UI. ENV: CLASSWATCH_FRONTEND_DIR
	FrontendDir string `toml:"frontend_dir" env:"CLASSWATCH_FRONTEND_DIR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:             8080,
		RedisAddr:        "127.0.0.1:6379",
		KeyPrefix:        "classwatch",
		ScanIntervalSecs: 30,
		HeartbeatTTLSecs: 90,
		FrontendDir:      "frontend",
	}
}

// Load builds the effective config: defaults, then the TOML file at path if
// it exists, then environment overrides. A missing file is not an error; a
// file that fails to parse is.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// envdecode errors only on malformed values; absent variables keep
	// whatever the file or defaults set.
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}

	return cfg, nil
}
