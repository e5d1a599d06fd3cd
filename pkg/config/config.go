package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// minRequestInterval is the cadence the engagement API enforces between
// batch requests. Configuration may slow down, never speed up.
const minRequestInterval = 10 * time.Second

// Config holds all configuration options for engagedl
type Config struct {
	// Remote API and credentials
	API APIConfig `yaml:"api" json:"api"`

	// Batch download behaviour
	Download DownloadConfig `yaml:"download" json:"download"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retries for result persistence
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output sink
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds the engagement API settings.
// Endpoint is one of totals, 28hr, historical or a full URL.
type APIConfig struct {
	ConsumerKey     string        `yaml:"consumer_key" json:"consumer_key"`
	ConsumerSecret  string        `yaml:"consumer_secret" json:"consumer_secret"`
	TokenURL        string        `yaml:"token_url" json:"token_url"`
	Endpoint        string        `yaml:"endpoint" json:"endpoint"`
	EngagementTypes []string      `yaml:"engagement_types,omitempty" json:"engagement_types,omitempty"`
	Owned           bool          `yaml:"owned" json:"owned"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

// DownloadConfig holds orchestrator settings
type DownloadConfig struct {
	CheckpointEvery int  `yaml:"checkpoint_every" json:"checkpoint_every"`
	IncludeMissing  bool `yaml:"include_missing" json:"include_missing"`
	StartOffset     int  `yaml:"start_offset" json:"start_offset"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval"`
}

// RetryConfig controls how result writes are retried
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay" json:"max_delay"`
	WritesPerMinute int           `yaml:"writes_per_minute" json:"writes_per_minute"`
}

// StorageConfig selects and tunes the output sink
type StorageConfig struct {
	Output      string `yaml:"output" json:"output"`
	RedisKey    string `yaml:"redis_key" json:"redis_key"`
	SQLiteTable string `yaml:"sqlite_table" json:"sqlite_table"`
}

// MetricsConfig holds the Prometheus listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			TokenURL: "https://api.twitter.com/oauth2/token",
			Endpoint: "totals",
			Timeout:  30 * time.Second,
		},
		Download: DownloadConfig{
			CheckpointEvery: 100,
		},
		RateLimit: RateLimitConfig{
			MinInterval: minRequestInterval,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialDelay:    time.Second,
			MaxDelay:        10 * time.Second,
			WritesPerMinute: 30,
		},
		Storage: StorageConfig{
			Output:      "engagement.csv",
			RedisKey:    "engagedl:rows",
			SQLiteTable: "engagement",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from ENGAGEDL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	setString("ENGAGEDL_CONSUMER_KEY", &c.API.ConsumerKey)
	setString("ENGAGEDL_CONSUMER_SECRET", &c.API.ConsumerSecret)
	setString("ENGAGEDL_TOKEN_URL", &c.API.TokenURL)
	setString("ENGAGEDL_ENDPOINT", &c.API.Endpoint)
	if types := os.Getenv("ENGAGEDL_ENGAGEMENT_TYPES"); types != "" {
		c.API.EngagementTypes = splitList(types)
	}
	setBool("ENGAGEDL_OWNED", &c.API.Owned)
	setDuration("ENGAGEDL_TIMEOUT", &c.API.Timeout)

	setInt("ENGAGEDL_CHECKPOINT_EVERY", &c.Download.CheckpointEvery)
	setBool("ENGAGEDL_INCLUDE_MISSING", &c.Download.IncludeMissing)
	setDuration("ENGAGEDL_MIN_INTERVAL", &c.RateLimit.MinInterval)
	setInt("ENGAGEDL_RETRY_ATTEMPTS", &c.Retry.MaxAttempts)

	setString("ENGAGEDL_OUTPUT", &c.Storage.Output)
	setString("ENGAGEDL_REDIS_KEY", &c.Storage.RedisKey)
	setString("ENGAGEDL_METRICS_ADDR", &c.Metrics.Addr)

	setString("ENGAGEDL_LOG_LEVEL", &c.Logging.Level)
	setString("ENGAGEDL_LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".engagedl.yaml",
		".engagedl.yml",
		filepath.Join(home, ".config", "engagedl", "config.yaml"),
		filepath.Join(home, ".config", "engagedl", "config.yml"),
		filepath.Join(home, ".engagedl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not
// checked here since they may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.API.TokenURL == "" {
		errs = append(errs, errors.New("token URL is required"))
	}
	switch strings.ToLower(c.API.Endpoint) {
	case "totals", "28hr", "historical":
	default:
		if !strings.HasPrefix(c.API.Endpoint, "http://") && !strings.HasPrefix(c.API.Endpoint, "https://") {
			errs = append(errs, fmt.Errorf("unknown endpoint %q", c.API.Endpoint))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	if c.Download.CheckpointEvery <= 0 {
		errs = append(errs, errors.New("checkpoint interval must be positive"))
	}
	if c.Download.StartOffset < 0 {
		errs = append(errs, errors.New("start offset cannot be negative"))
	}

	if c.RateLimit.MinInterval < minRequestInterval {
		errs = append(errs, fmt.Errorf("minimum request interval cannot be below %s", minRequestInterval))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 <= initial <= max"))
	}
	if c.Retry.WritesPerMinute <= 0 {
		errs = append(errs, errors.New("writes per minute must be positive"))
	}

	if c.Storage.Output == "" {
		errs = append(errs, errors.New("output destination is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["consumer-key"].(string); ok && v != "" {
		c.API.ConsumerKey = v
	}
	if v, ok := flags["consumer-secret"].(string); ok && v != "" {
		c.API.ConsumerSecret = v
	}
	if v, ok := flags["endpoint"].(string); ok && v != "" {
		c.API.Endpoint = v
	}
	if v, ok := flags["engagement-types"].([]string); ok && len(v) > 0 {
		c.API.EngagementTypes = v
	}
	if v, ok := flags["owned"].(bool); ok {
		c.API.Owned = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Storage.Output = v
	}
	if v, ok := flags["start-offset"].(int); ok {
		c.Download.StartOffset = v
	}
	if v, ok := flags["checkpoint-every"].(int); ok && v > 0 {
		c.Download.CheckpointEvery = v
	}
	if v, ok := flags["include-missing"].(bool); ok {
		c.Download.IncludeMissing = v
	}
	if v, ok := flags["min-interval"].(time.Duration); ok && v > 0 {
		c.RateLimit.MinInterval = v
	}
	if v, ok := flags["metrics-addr"].(string); ok {
		c.Metrics.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".engagedl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
