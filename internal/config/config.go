package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port int // HTTP server port

	Fetch      FetchConfig
	Batch      BatchConfig
	Screenshot ScreenshotConfig
	Database   DatabaseConfig
	CTLog      CTLogConfig
	Narrative  NarrativeConfig
	Scoring    ScoringConfig

	LogLevel string
}

// FetchConfig controls the page fetcher
type FetchConfig struct {
	Timeout      time.Duration // Per-fetch timeout, redirects included
	MaxRedirects int           // Maximum number of redirects to follow
	UserAgent    string        // User-Agent header
	MaxBodyMB    int           // Body read limit
	RateLimit    int           // Requests per second per host, 0 disables
}

// BatchConfig controls the batch orchestrator
type BatchConfig struct {
	MaxURLs     int // Inputs beyond this are dropped
	Parallelism int // Concurrent scans within one batch
}

// ScreenshotConfig controls the chromedp screenshot service
type ScreenshotConfig struct {
	Enabled   bool
	PoolSize  int
	QueueSize int
	Timeout   time.Duration
	Width     int
	Height    int
}

// DatabaseConfig points at the sqlite file
type DatabaseConfig struct {
	Path string
}

// CTLogConfig controls the certificate-transparency lookup
type CTLogConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// NarrativeConfig controls the optional explanation service
type NarrativeConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// ScoringConfig overrides the scorer watch-lists when non-empty
type ScoringConfig struct {
	Brands         []string
	SuspiciousTLDs []string
}

// setDefaults registers every key so environment overrides are picked up
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("fetch.timeout", 20*time.Second)
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; riskscan/1.0)")
	v.SetDefault("fetch.max_body_mb", 5)
	v.SetDefault("fetch.rate_limit", 0)

	v.SetDefault("batch.max_urls", 10)
	v.SetDefault("batch.parallelism", 4)

	v.SetDefault("screenshot.enabled", false)
	v.SetDefault("screenshot.pool_size", 2)
	v.SetDefault("screenshot.queue_size", 10)
	v.SetDefault("screenshot.timeout", 10*time.Second)
	v.SetDefault("screenshot.width", 1280)
	v.SetDefault("screenshot.height", 720)

	v.SetDefault("database.path", "riskscan.db")

	v.SetDefault("ctlog.enabled", false)
	v.SetDefault("ctlog.base_url", "https://crt.sh")
	v.SetDefault("ctlog.timeout", 8*time.Second)

	v.SetDefault("narrative.enabled", false)
	v.SetDefault("narrative.base_url", "")
	v.SetDefault("narrative.timeout", 30*time.Second)

	v.SetDefault("scoring.brands", []string{})
	v.SetDefault("scoring.suspicious_tlds", []string{})

	v.SetDefault("logging.level", "INFO")
}

// Load reads configuration from defaults, an optional config file and
// RISKSCAN_* environment variables, in increasing order of precedence
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RISKSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("riskscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Port: v.GetInt("server.port"),
		Fetch: FetchConfig{
			Timeout:      v.GetDuration("fetch.timeout"),
			MaxRedirects: v.GetInt("fetch.max_redirects"),
			UserAgent:    v.GetString("fetch.user_agent"),
			MaxBodyMB:    v.GetInt("fetch.max_body_mb"),
			RateLimit:    v.GetInt("fetch.rate_limit"),
		},
		Batch: BatchConfig{
			MaxURLs:     v.GetInt("batch.max_urls"),
			Parallelism: v.GetInt("batch.parallelism"),
		},
		Screenshot: ScreenshotConfig{
			Enabled:   v.GetBool("screenshot.enabled"),
			PoolSize:  v.GetInt("screenshot.pool_size"),
			QueueSize: v.GetInt("screenshot.queue_size"),
			Timeout:   v.GetDuration("screenshot.timeout"),
			Width:     v.GetInt("screenshot.width"),
			Height:    v.GetInt("screenshot.height"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		CTLog: CTLogConfig{
			Enabled: v.GetBool("ctlog.enabled"),
			BaseURL: v.GetString("ctlog.base_url"),
			Timeout: v.GetDuration("ctlog.timeout"),
		},
		Narrative: NarrativeConfig{
			Enabled: v.GetBool("narrative.enabled"),
			BaseURL: v.GetString("narrative.base_url"),
			Timeout: v.GetDuration("narrative.timeout"),
		},
		Scoring: ScoringConfig{
			Brands:         v.GetStringSlice("scoring.brands"),
			SuspiciousTLDs: v.GetStringSlice("scoring.suspicious_tlds"),
		},
		LogLevel: v.GetString("logging.level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the system cannot work with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Port)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must not be negative")
	}
	if c.Batch.MaxURLs <= 0 {
		return fmt.Errorf("batch.max_urls must be positive")
	}
	if c.Batch.Parallelism <= 0 {
		c.Batch.Parallelism = 1
	}
	if c.Fetch.MaxBodyMB <= 0 {
		c.Fetch.MaxBodyMB = 5
	}
	return nil
}
