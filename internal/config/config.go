package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen    = "127.0.0.1:8080"
	DefaultTimezone  = "Europe/Warsaw"
	DefaultBaseURL   = "https://planzajec.uek.krakow.pl/index.php"
	DefaultUserAgent = "Mozilla/5.0 (compatible; uek-planzajec-v2/1.0; +https://uek-planzajec-v2.pages.dev/)"
	DefaultRefresh   = "*/10 * * * *"
	DefaultCacheDir  = "cache"

	CacheDisk  = "disk"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// UpstreamConfig controls requests to the timetable service.
type UpstreamConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	// MaxBodyBytes caps a single upstream response.
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`
	// RatePerSecond limits outgoing requests; cache hits are not counted.
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int     `yaml:"burst" json:"burst"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db" json:"db"`
}

// TTLConfig is how long each kind of upstream document stays fresh.
type TTLConfig struct {
	Groupings time.Duration `yaml:"groupings" json:"groupings"`
	Headers   time.Duration `yaml:"headers" json:"headers"`
	Schedule  time.Duration `yaml:"schedule" json:"schedule"`
}

// CacheConfig selects where upstream responses are cached.
// Backend is one of "disk" (default), "redis" or "none".
type CacheConfig struct {
	Backend string      `yaml:"backend" json:"backend"`
	Dir     string      `yaml:"dir" json:"dir"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`
	TTL     TTLConfig   `yaml:"ttl" json:"ttl"`
}

// WarmTarget is a schedule the refresh job keeps cached.
type WarmTarget struct {
	Type   string   `yaml:"type" json:"type"`
	IDs    []string `yaml:"ids" json:"ids"`
	Period string   `yaml:"period,omitempty" json:"period,omitempty"`
}

// ItemStatusConfig chooses boundary semantics for item status flags.
// The zero value means: upcoming while now < start, in progress while
// start <= now <= end.
type ItemStatusConfig struct {
	UpcomingInclusive bool `yaml:"upcoming_inclusive" json:"upcoming_inclusive"`
	EndExclusive      bool `yaml:"end_exclusive" json:"end_exclusive"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the upstream timetable is published in.
	Timezone string `yaml:"timezone" json:"timezone"`

	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`

	// RefreshCron is a cron-style schedule string (e.g. "*/10 * * * *")
	// for cache warm-up. "off" disables the job.
	RefreshCron string       `yaml:"refresh" json:"refresh"`
	Warm        []WarmTarget `yaml:"warm" json:"warm"`

	ItemStatus ItemStatusConfig `yaml:"item_status" json:"item_status"`

	// DisableMetrics removes the /metrics endpoint.
	DisableMetrics bool `yaml:"disable_metrics" json:"disable_metrics"`

	Log LogConfig `yaml:"log" json:"log"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}

	u := &c.Upstream
	if u.BaseURL == "" {
		u.BaseURL = DefaultBaseURL
	}
	if u.UserAgent == "" {
		u.UserAgent = DefaultUserAgent
	}
	if u.Timeout <= 0 {
		u.Timeout = 15 * time.Second
	}
	if u.MaxBodyBytes <= 0 {
		u.MaxBodyBytes = 8 << 20
	}
	if u.RatePerSecond <= 0 {
		u.RatePerSecond = 5
	}
	if u.Burst <= 0 {
		u.Burst = 10
	}

	switch strings.ToLower(c.Cache.Backend) {
	case CacheDisk, CacheRedis, CacheNone:
		c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	default:
		// Unknown or empty backend; disk needs no external service.
		c.Cache.Backend = CacheDisk
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Cache.TTL.Groupings <= 0 {
		c.Cache.TTL.Groupings = 30 * time.Minute
	}
	if c.Cache.TTL.Headers <= 0 {
		c.Cache.TTL.Headers = 30 * time.Minute
	}
	if c.Cache.TTL.Schedule <= 0 {
		c.Cache.TTL.Schedule = 10 * time.Minute
	}

	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	if c.Warm == nil {
		c.Warm = []WarmTarget{}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports settings Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	for i, w := range c.Warm {
		if len(w.IDs) == 0 {
			errs = append(errs, fmt.Errorf("warm[%d]: no ids", i))
		}
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		errs = append(errs, errors.New("basic_auth: username is empty"))
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, cfg.Validate()
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".plancal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
