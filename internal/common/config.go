package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// ExecutionMode selects how jobs are executed once created.
type ExecutionMode string

const (
	// ExecutionModeLocal runs jobs in-process through the sequential runner.
	ExecutionModeLocal ExecutionMode = "local"
	// ExecutionModeRemote leaves jobs queued for an external polling agent.
	ExecutionModeRemote ExecutionMode = "remote"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Jobs        JobsConfig      `toml:"jobs"`
	Pricing     PricingConfig   `toml:"pricing"`
	Scraper     ScraperConfig   `toml:"scraper"`
	SMTP        SMTPConfig      `toml:"smtp"`
	Context     ContextConfig   `toml:"context"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	GCInterval     string `toml:"gc_interval"`      // Value log GC interval, e.g. "10m"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SchedulerConfig controls the periodic triggers that enqueue jobs.
type SchedulerConfig struct {
	Enabled            bool   `toml:"enabled"`
	CheckSchedule      string `toml:"check_schedule"`       // Cron expression for the periodic check_all
	ContextSchedule    string `toml:"context_schedule"`     // Cron expression for context refreshes
	StuckSweepInterval string `toml:"stuck_sweep_interval"` // How often to sweep for stuck jobs, e.g. "5m"
}

// JobsConfig controls job execution behavior.
type JobsConfig struct {
	ExecutionMode         ExecutionMode `toml:"execution_mode"`           // "local" or "remote"
	StuckThresholdMinutes int           `toml:"stuck_threshold_minutes"`  // Running jobs older than this are considered abandoned
	FlexWindowDays        int           `toml:"flex_window_days"`         // Default +/- day window for flex scans
	PriceDropThresholdPct float64       `toml:"price_drop_threshold_pct"` // Minimum drop (percent) before an alert is enqueued
}

// PricingConfig contains structured pricing API configuration.
// Leaving the credentials empty disables the API path; the quote
// engine then goes straight to the scraper.
type PricingConfig struct {
	APIKey         string        `toml:"api_key"`
	APISecret      string        `toml:"api_secret"`
	BaseURL        string        `toml:"base_url"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	RateLimit      int           `toml:"rate_limit"` // Requests per second
}

// ScraperConfig contains headless browser scraping configuration.
type ScraperConfig struct {
	Headless           bool          `toml:"headless"`
	ExecPath           string        `toml:"exec_path"` // Explicit browser binary; empty enables discovery
	UserAgent          string        `toml:"user_agent"`
	NavigationTimeout  time.Duration `toml:"navigation_timeout"`   // Per-navigation budget
	SettleDelay        time.Duration `toml:"settle_delay"`         // Wait after navigation before extraction
	PremiumSettleDelay time.Duration `toml:"premium_settle_delay"` // Longer wait for premium cabins
	MinPlausiblePrice  float64       `toml:"min_plausible_price"`  // Lower bound for extracted prices
	MaxPlausiblePrice  float64       `toml:"max_plausible_price"`  // Upper bound for extracted prices
}

// SMTPConfig contains outbound mail configuration.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	UseTLS   bool   `toml:"use_tls"`
}

// ContextConfig controls the travel context fetcher.
type ContextConfig struct {
	NewsFeedURL    string        `toml:"news_feed_url"` // RSS feed queried per destination
	MaxHeadlines   int           `toml:"max_headlines"`
	CacheTTL       time.Duration `toml:"cache_ttl"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here; only user-facing settings
// should be exposed in farewatch.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:       "./data",
				GCInterval: "10m",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			CheckSchedule:      "0 0 */6 * * *", // Every 6 hours
			ContextSchedule:    "0 30 6 * * *",  // Daily, 06:30
			StuckSweepInterval: "5m",
		},
		Jobs: JobsConfig{
			ExecutionMode:         ExecutionModeLocal,
			StuckThresholdMinutes: 30,
			FlexWindowDays:        5,
			PriceDropThresholdPct: 3.0,
		},
		Pricing: PricingConfig{
			BaseURL:        "https://api.flightoffers.example.com/v2",
			RequestTimeout: 30 * time.Second,
			RateLimit:      5,
		},
		Scraper: ScraperConfig{
			Headless:           true,
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			NavigationTimeout:  45 * time.Second,
			SettleDelay:        8 * time.Second,
			PremiumSettleDelay: 14 * time.Second,
			MinPlausiblePrice:  40,
			MaxPlausiblePrice:  20000,
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Farewatch",
			UseTLS:   true,
		},
		Context: ContextConfig{
			NewsFeedURL:    "https://news.google.com/rss/search",
			MaxHeadlines:   5,
			CacheTTL:       12 * time.Hour,
			RequestTimeout: 20 * time.Second,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// CLI flag overrides are applied separately via ApplyFlagOverrides.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies FAREWATCH_* environment variables on top of file values.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FAREWATCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("FAREWATCH_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("FAREWATCH_DATA_DIR"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("FAREWATCH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("FAREWATCH_EXECUTION_MODE"); v != "" {
		config.Jobs.ExecutionMode = ExecutionMode(v)
	}
	if v := os.Getenv("FAREWATCH_PRICING_API_KEY"); v != "" {
		config.Pricing.APIKey = v
	}
	if v := os.Getenv("FAREWATCH_PRICING_API_SECRET"); v != "" {
		config.Pricing.APISecret = v
	}
	if v := os.Getenv("FAREWATCH_SMTP_PASSWORD"); v != "" {
		config.SMTP.Password = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	switch c.Jobs.ExecutionMode {
	case ExecutionModeLocal, ExecutionModeRemote:
	default:
		return fmt.Errorf("invalid execution mode %q (expected %q or %q)",
			c.Jobs.ExecutionMode, ExecutionModeLocal, ExecutionModeRemote)
	}

	if c.Jobs.FlexWindowDays < 0 {
		return fmt.Errorf("flex_window_days cannot be negative")
	}
	if c.Jobs.StuckThresholdMinutes <= 0 {
		return fmt.Errorf("stuck_threshold_minutes must be positive")
	}

	if c.Scheduler.Enabled {
		if err := ValidateJobSchedule(c.Scheduler.CheckSchedule); err != nil {
			return fmt.Errorf("invalid check_schedule: %w", err)
		}
		if err := ValidateJobSchedule(c.Scheduler.ContextSchedule); err != nil {
			return fmt.Errorf("invalid context_schedule: %w", err)
		}
	}

	return nil
}

// ValidateJobSchedule validates a cron expression (6-field, with seconds)
func ValidateJobSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule is empty")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// PricingConfigured reports whether the structured pricing API has credentials.
func (c *Config) PricingConfigured() bool {
	return c.Pricing.APIKey != "" && c.Pricing.APISecret != ""
}

// SMTPConfigured reports whether outbound mail can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}
