package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BaseURLEnv overrides client.base_url when set.
const BaseURLEnv = "MENUVISTA_API_URL"

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Client     ClientConfig     `yaml:"client"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Events     EventsConfig     `yaml:"events"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// EventsConfig points the order-status publisher at a NATS server.
// An empty URL disables publishing.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ServerConfig holds the session service configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	SessionTTLHours int      `yaml:"session_ttl_hours"`
	AllowOrigins    []string `yaml:"allow_origins"`

	SessionTTL time.Duration `yaml:"-"`
	CacheTTL   time.Duration `yaml:"-"`
}

// ClientConfig holds the diner-side protocol configuration.
type ClientConfig struct {
	BaseURL           string `yaml:"base_url"`
	PollIntervalMS    int    `yaml:"poll_interval_ms"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	SessionCookieDays int    `yaml:"session_cookie_days"`
	DeviceCookieDays  int    `yaml:"device_cookie_days"`
	DefaultCurrency   string `yaml:"default_currency"`

	PollInterval time.Duration `yaml:"-"` // Ignored by YAML parser
	Timeout      time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if v := os.Getenv(BaseURLEnv); v != "" {
		cfg.Client.BaseURL = v
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero or invalid values and derives durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 2
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cfg.Server.SessionTTLHours <= 0 {
		cfg.Server.SessionTTLHours = 7 * 24
	}
	cfg.Server.SessionTTL = time.Duration(cfg.Server.SessionTTLHours) * time.Hour

	cfg.Client.BaseURL = NormalizeBaseURL(cfg.Client.BaseURL)
	if cfg.Client.PollIntervalMS <= 0 {
		cfg.Client.PollIntervalMS = 5000
	}
	cfg.Client.PollInterval = time.Duration(cfg.Client.PollIntervalMS) * time.Millisecond
	if cfg.Client.TimeoutSeconds <= 0 {
		cfg.Client.TimeoutSeconds = 15
	}
	cfg.Client.Timeout = time.Duration(cfg.Client.TimeoutSeconds) * time.Second
	if cfg.Client.SessionCookieDays <= 0 {
		cfg.Client.SessionCookieDays = 7
	}
	if cfg.Client.DeviceCookieDays <= 0 {
		cfg.Client.DeviceCookieDays = 365
	}
	if cfg.Client.DefaultCurrency == "" {
		cfg.Client.DefaultCurrency = "LKR"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "menu.orders.status"
	}
}

// NormalizeBaseURL trims trailing slashes and a trailing "/api", then
// re-appends "/api". An empty input yields "/api".
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/api")
	return base + "/api"
}
