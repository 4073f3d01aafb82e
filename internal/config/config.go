// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Vinted   VintedConfig   `yaml:"vinted"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Searches []SearchConfig `yaml:"searches"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Channels ChannelsConfig `yaml:"channels"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Discord  DiscordConfig  `yaml:"discord"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings for the
// health and metrics endpoints.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Address returns the host:port the server listens on.
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// VintedConfig defines catalog API settings.
type VintedConfig struct {
	BaseURL    string          `yaml:"base_url"`
	UserAgent  string          `yaml:"user_agent"`
	SessionTTL time.Duration   `yaml:"session_ttl"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines catalog API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// EnrichConfig defines the item-detail enrichment API settings.
// The API key authenticates every enrichment call; the catalog search
// itself uses the anonymous session token instead.
type EnrichConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig defines one polled catalog search.
type SearchConfig struct {
	Name           string  `yaml:"name"`
	Query          string  `yaml:"query"`
	PriceMax       float64 `yaml:"price_max"`
	Currency       string  `yaml:"currency"`
	PerPage        int     `yaml:"per_page"`
	MaxPages       int     `yaml:"max_pages"`
	SkipChildSizes bool    `yaml:"skip_child_sizes"`
}

// ScheduleConfig defines loop intervals.
type ScheduleConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	DispatchStagger time.Duration `yaml:"dispatch_stagger"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RefreshWindow   time.Duration `yaml:"refresh_window"`
}

// ChannelsConfig points at the brand-to-channel routing table.
type ChannelsConfig struct {
	Path string `yaml:"path"`
}

// DedupeConfig defines the seen-item store.
type DedupeConfig struct {
	Driver string        `yaml:"driver"` // memory, file, sqlite
	Path   string        `yaml:"path"`
	TTL    time.Duration `yaml:"ttl"`
}

// DiscordConfig defines webhook dispatch settings. Per-channel webhook
// URLs live in the routing table, not here.
type DiscordConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Username string        `yaml:"username"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyVintedDefaults(&cfg.Vinted)
	applyEnrichDefaults(&cfg.Enrich)
	for i := range cfg.Searches {
		applySearchDefaults(&cfg.Searches[i], i)
	}
	applyScheduleDefaults(&cfg.Schedule)
	applyChannelsDefaults(&cfg.Channels)
	applyDedupeDefaults(&cfg.Dedupe)
	applyDiscordDefaults(&cfg.Discord)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyVintedDefaults(v *VintedConfig) {
	if v.BaseURL == "" {
		v.BaseURL = "https://www.vinted.co.uk"
	}
	if v.UserAgent == "" {
		v.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0"
	}
	if v.SessionTTL == 0 {
		v.SessionTTL = time.Hour
	}
	applyRateLimitDefaults(&v.RateLimit)
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 2.0
	}
	if r.Burst == 0 {
		r.Burst = 4
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applyEnrichDefaults(e *EnrichConfig) {
	if e.Timeout == 0 {
		e.Timeout = 10 * time.Second
	}
}

func applySearchDefaults(s *SearchConfig, idx int) {
	if s.Name == "" {
		s.Name = fmt.Sprintf("search-%d", idx+1)
	}
	if s.Currency == "" {
		s.Currency = "GBP"
	}
	if s.PerPage == 0 {
		s.PerPage = 20
	}
	if s.MaxPages == 0 {
		s.MaxPages = 3
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.PollInterval == 0 {
		s.PollInterval = 10 * time.Second
	}
	if s.DispatchStagger == 0 {
		s.DispatchStagger = time.Second
	}
	if s.RefreshInterval == 0 {
		s.RefreshInterval = time.Minute
	}
	if s.RefreshWindow == 0 {
		s.RefreshWindow = time.Hour
	}
}

func applyChannelsDefaults(c *ChannelsConfig) {
	if c.Path == "" {
		c.Path = "channels.yaml"
	}
}

func applyDedupeDefaults(d *DedupeConfig) {
	if d.Driver == "" {
		d.Driver = "memory"
	}
}

func applyDiscordDefaults(d *DiscordConfig) {
	if d.Timeout == 0 {
		d.Timeout = 10 * time.Second
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if len(cfg.Searches) == 0 {
		errs = append(errs, fmt.Errorf("at least one search is required"))
	}
	for i, s := range cfg.Searches {
		if s.Query == "" {
			errs = append(errs, fmt.Errorf("searches[%d].query is required", i))
		}
		if s.PriceMax < 0 {
			errs = append(errs, fmt.Errorf("searches[%d].price_max must not be negative", i))
		}
	}

	switch cfg.Dedupe.Driver {
	case "memory":
		// No path needed.
	case "file", "sqlite":
		if cfg.Dedupe.Path == "" {
			errs = append(
				errs,
				fmt.Errorf("dedupe.path is required when driver is %s", cfg.Dedupe.Driver),
			)
		}
	default:
		errs = append(
			errs,
			fmt.Errorf(
				"dedupe.driver must be one of: memory, file, sqlite (got %q)",
				cfg.Dedupe.Driver,
			),
		)
	}

	if cfg.Enrich.Enabled {
		if cfg.Enrich.BaseURL == "" {
			errs = append(errs, fmt.Errorf("enrich.base_url is required when enrich is enabled"))
		}
		if cfg.Enrich.APIKey == "" {
			errs = append(errs, fmt.Errorf("enrich.api_key is required when enrich is enabled"))
		}
	}

	return errors.Join(errs...)
}
