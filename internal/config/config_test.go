package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != DefaultTimezone || cfg.Upstream.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9000"
cache:
  backend: REDIS
  ttl:
    schedule: 2m
warm:
  - type: group
    ids: ["1234"]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Cache.Backend != CacheRedis {
		t.Errorf("Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL.Schedule != 2*time.Minute {
		t.Errorf("schedule ttl = %s", cfg.Cache.TTL.Schedule)
	}
	if cfg.Cache.TTL.Groupings != 30*time.Minute || cfg.Cache.TTL.Headers != 30*time.Minute {
		t.Errorf("default ttls not filled: %+v", cfg.Cache.TTL)
	}
	if cfg.Upstream.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q", cfg.Upstream.UserAgent)
	}
	if len(cfg.Warm) != 1 || cfg.Warm[0].IDs[0] != "1234" {
		t.Errorf("Warm = %+v", cfg.Warm)
	}
}

func TestLoadRejectsEmptyWarmTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("warm:\n  - type: group\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.Cache.TTL.Schedule = 5 * time.Minute
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BasicAuth == nil || got.BasicAuth.Password != "p" {
		t.Fatalf("BasicAuth = %+v", got.BasicAuth)
	}
	if got.Cache.TTL.Schedule != 5*time.Minute {
		t.Fatalf("schedule ttl = %s", got.Cache.TTL.Schedule)
	}
}
