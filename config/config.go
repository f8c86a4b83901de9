package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the reconciler
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Inference InferenceConfig `mapstructure:"inference"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Brands    BrandsConfig    `mapstructure:"brands"`
	LogLevel  string          `mapstructure:"log_level"`
}

// PathsConfig holds the input and output file locations. Any of these can be
// overridden by command-line flags.
type PathsConfig struct {
	StoreARaw string `mapstructure:"store_a_raw"`
	StoreBRaw string `mapstructure:"store_b_raw"`
	StoreA    string `mapstructure:"store_a"`
	StoreB    string `mapstructure:"store_b"`
	Output    string `mapstructure:"output"`
}

// LLMConfig holds the external model service configuration
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MatcherConfig holds throttling and retry knobs for product matching calls
type MatcherConfig struct {
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
	Burst             int           `mapstructure:"burst"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
}

// InferenceConfig holds throttling and retry knobs for brand inference calls
type InferenceConfig struct {
	RequestsPerWindow int           `mapstructure:"requests_per_window"`
	Window            time.Duration `mapstructure:"window"`
	Burst             int           `mapstructure:"burst"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	ChunkSize         int           `mapstructure:"chunk_size"`
}

// CacheConfig holds matcher-response cache configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory", "redis", or "none"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// BrandsConfig holds brand normalization settings
type BrandsConfig struct {
	Aliases map[string]string `mapstructure:"aliases"`
}

// Load loads configuration from .env, config files, and environment variables
func Load() (*Config, error) {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/reconciler/")

	v.SetEnvPrefix("RECONCILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Path defaults
	v.SetDefault("paths.store_a_raw", "grocery_store_a_raw_data.json")
	v.SetDefault("paths.store_b_raw", "grocery_store_b_raw_data.json")
	v.SetDefault("paths.store_a", "grocery_store_a_relevant_fields.json")
	v.SetDefault("paths.store_b", "grocery_store_b_relevant_fields.json")
	v.SetDefault("paths.output", "match_results.json")

	// LLM defaults. The empty defaults register the keys with viper so the
	// environment overrides are picked up during Unmarshal.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.timeout", "90s")

	// Matcher defaults: provider quota is 15 requests/min, so run a little
	// under it to leave buffer for long runs
	v.SetDefault("matcher.requests_per_window", 12)
	v.SetDefault("matcher.window", "60s")
	v.SetDefault("matcher.burst", 12)
	v.SetDefault("matcher.max_attempts", 3)
	v.SetDefault("matcher.backoff_base", "4s")
	v.SetDefault("matcher.max_concurrent", 8)

	// Inference defaults
	v.SetDefault("inference.requests_per_window", 14)
	v.SetDefault("inference.window", "60s")
	v.SetDefault("inference.burst", 14)
	v.SetDefault("inference.max_attempts", 5)
	v.SetDefault("inference.backoff_base", "2s")
	v.SetDefault("inference.max_concurrent", 4)
	v.SetDefault("inference.chunk_size", 400)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("log_level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required (set RECONCILER_LLM_API_KEY)")
	}

	switch config.Cache.Type {
	case "memory", "none":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis', or 'none', got: %s", config.Cache.Type)
	}

	if config.Matcher.Window <= 0 || config.Inference.Window <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}
	if config.Matcher.RequestsPerWindow <= 0 || config.Inference.RequestsPerWindow <= 0 {
		return fmt.Errorf("rate limit requests per window must be positive")
	}

	return nil
}
