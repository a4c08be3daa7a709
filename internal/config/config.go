package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures the upstream account, cache sizing, and the inbound server.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Session     SessionConfig     `yaml:"session"`
	Cache       CacheConfig       `yaml:"cache"`
	Render      RenderConfig      `yaml:"render"`
	Storage     StorageConfig     `yaml:"storage"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Directory served for unmatched paths (css, images). Empty disables.
	StaticDir string `yaml:"staticDir"`
	// Prefix for produced permalinks, e.g. https://bsky.link/
	PermalinkBase string `yaml:"permalinkBase"`
	// Separate metrics listener. If empty, read METRICS_ADDR; /metrics is also on Addr.
	MetricsAddr     string        `yaml:"metricsAddr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type UpstreamConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	Timeout     time.Duration `yaml:"timeout"`
	RPS         float64       `yaml:"rps"`
	Burst       int           `yaml:"burst"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
}

type CredentialsConfig struct {
	// Account handle or email. If empty, read from env BSKY_IDENTIFIER.
	Identifier string `yaml:"identifier"`
	// App password. If empty, read from env BSKY_PASSWORD.
	Password string `yaml:"password"`
}

type SessionConfig struct {
	// How long an access token is trusted after a successful exchange.
	Lifetime time.Duration `yaml:"lifetime"`
	// Proactive refresh check interval; 0 disables the keepalive loop.
	KeepaliveInterval time.Duration `yaml:"keepaliveInterval"`
}

type CacheConfig struct {
	MaxEntries    int           `yaml:"maxEntries"`
	MaxSize       int           `yaml:"maxSize"`
	TTL           time.Duration `yaml:"ttl"`
	PurgeInterval time.Duration `yaml:"purgeInterval"`
}

type RenderConfig struct {
	AllowedHosts []string `yaml:"allowedHosts"`
	// IANA zone used for human readable timestamps.
	Timezone string `yaml:"timezone"`
	// Base for the "view on Bluesky" profile link on feed pages.
	ProfileBase string `yaml:"profileBase"`
}

type StorageConfig struct {
	// SQLite view log. Empty disables recording.
	DBPath string `yaml:"dbPath"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3008",
			StaticDir:       "./public",
			PermalinkBase:   "https://bsky.link/",
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:     "https://bsky.social",
			Timeout:     15 * time.Second,
			RPS:         5,
			Burst:       10,
			MaxAttempts: 3,
			BaseBackoff: 500 * time.Millisecond,
		},
		Session: SessionConfig{Lifetime: 90 * time.Minute, KeepaliveInterval: time.Minute},
		Cache:   CacheConfig{MaxEntries: 500, MaxSize: 5000, TTL: 5 * time.Minute, PurgeInterval: time.Minute},
		Render: RenderConfig{
			AllowedHosts: []string{"bsky.app", "staging.bsky.app"},
			Timezone:     "UTC",
			ProfileBase:  "https://bsky.app/profile/",
		},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.Identifier == "" {
		c.Credentials.Identifier = os.Getenv("BSKY_IDENTIFIER")
	}
	if c.Credentials.Password == "" {
		c.Credentials.Password = os.Getenv("BSKY_PASSWORD")
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = os.Getenv("METRICS_ADDR")
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = os.Getenv("BSKYLINK_DB")
	}
}

// Validate reports settings the service cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Upstream.BaseURL == "":
		return errors.New("upstream.baseURL is empty")
	case c.Cache.MaxEntries <= 0:
		return errors.New("cache.maxEntries must be positive")
	case c.Cache.MaxSize <= 0:
		return errors.New("cache.maxSize must be positive")
	case c.Cache.TTL <= 0:
		return errors.New("cache.ttl must be positive")
	case c.Session.Lifetime <= 0:
		return errors.New("session.lifetime must be positive")
	case len(c.Render.AllowedHosts) == 0:
		return errors.New("render.allowedHosts is empty")
	}
	if _, err := time.LoadLocation(c.Render.Timezone); err != nil {
		return err
	}
	return nil
}

// Load reads YAML config from path on top of Default().
// A missing file yields the defaults plus environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
