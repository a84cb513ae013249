package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Port != def.Port || cfg.RedisAddr != def.RedisAddr || cfg.KeyPrefix != def.KeyPrefix {
		t.Fatalf("Load = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoadTomlOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
port = 9999
key_prefix = "classroom-b"
banned_sites = ["games.example.com"]
sau_mode = true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.KeyPrefix != "classroom-b" {
		t.Errorf("KeyPrefix = %q", cfg.KeyPrefix)
	}
	if len(cfg.BannedSites) != 1 || cfg.BannedSites[0] != "games.example.com" {
		t.Errorf("BannedSites = %v", cfg.BannedSites)
	}
	if !cfg.SauMode {
		t.Error("SauMode should be true")
	}
	// Untouched fields keep defaults.
	if cfg.HeartbeatTTLSecs != Default().HeartbeatTTLSecs {
		t.Errorf("HeartbeatTTLSecs = %d", cfg.HeartbeatTTLSecs)
	}
}

func TestLoadBadTomlFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("port = {not valid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("port = 9000"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLASSWATCH_PORT", "7777")
	t.Setenv("CLASSWATCH_REDIS_ADDR", "redis.lan:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7777 {
		t.Errorf("Port = %d, want env override 7777", cfg.Port)
	}
	if cfg.RedisAddr != "redis.lan:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}
