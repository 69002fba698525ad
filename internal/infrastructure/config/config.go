package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Scraper     ScraperConfig     `mapstructure:"scraper"`
	Robots      RobotsConfig      `mapstructure:"robots"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	DomainLimit DomainLimitConfig `mapstructure:"domain_limit"`
	Session     SessionConfig     `mapstructure:"session"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Image       ImageConfig       `mapstructure:"image"`
	LogLevel    string            `mapstructure:"log_level"`
}

// AppConfig application settings
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RelayConfig LLM relay settings (OpenAI-chat-completion shaped)
type RelayConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	TextModel   string        `mapstructure:"text_model"`
	VisionModel string        `mapstructure:"vision_model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ScraperConfig scrape and content-optimization service settings
type ScraperConfig struct {
	ScrapeURL   string        `mapstructure:"scrape_url"`
	OptimizeURL string        `mapstructure:"optimize_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// RobotsConfig robots.txt checker settings
type RobotsConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// CacheConfig redis cache settings
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// RateLimitConfig API-level rate limit settings
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DomainLimitConfig per-domain scraping throttle settings
type DomainLimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
	MinSpacing  time.Duration `mapstructure:"min_spacing"`
}

// SessionConfig review session store settings
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// StorageConfig sqlite storage settings
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ImageConfig recipe photo upload settings
type ImageConfig struct {
	MaxSizeBytes  int64         `mapstructure:"max_size_bytes"`
	EncodeTimeout time.Duration `mapstructure:"encode_timeout"`
	OCRTimeout    time.Duration `mapstructure:"ocr_timeout"`
}

// LoadConfig loads settings from .env and the environment
func LoadConfig() (*Config, error) {
	// .env is optional in production
	_ = godotenv.Load()

	setDefaults()

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("relay.api_key", "RELAY_API_KEY")
	viper.BindEnv("relay.base_url", "RELAY_BASE_URL")
	viper.BindEnv("relay.text_model", "RELAY_TEXT_MODEL")
	viper.BindEnv("relay.vision_model", "RELAY_VISION_MODEL")
	viper.BindEnv("scraper.scrape_url", "SCRAPER_SCRAPE_URL")
	viper.BindEnv("scraper.optimize_url", "SCRAPER_OPTIMIZE_URL")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.addr", "REDIS_ADDR")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("storage.path", "STORAGE_PATH")
	viper.BindEnv("log_level", "LOG_LEVEL")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey masks an API key, keeping only 4 characters on each side
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults registers default settings
func setDefaults() {
	// application
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "meal2list")

	// server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// LLM relay
	viper.SetDefault("relay.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("relay.text_model", "openai/gpt-4o-mini")
	viper.SetDefault("relay.vision_model", "qwen/qwen2.5-vl-72b-instruct:free")
	viper.SetDefault("relay.max_tokens", 2048)
	viper.SetDefault("relay.timeout", "60s")

	// scraping
	viper.SetDefault("scraper.timeout", "30s")
	viper.SetDefault("scraper.max_retries", 3)

	// robots
	viper.SetDefault("robots.user_agent", "meal2list-bot")
	viper.SetDefault("robots.timeout", "10s")
	viper.SetDefault("robots.cache_ttl", "1h")

	// cache
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.addr", "localhost:6379")

	// API rate limit
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	// per-domain scraping throttle
	viper.SetDefault("domain_limit.window", "60s")
	viper.SetDefault("domain_limit.max_requests", 10)
	viper.SetDefault("domain_limit.min_spacing", "1s")

	// sessions
	viper.SetDefault("session.ttl", "1h")
	viper.SetDefault("session.cleanup_interval", "10m")

	// storage
	viper.SetDefault("storage.path", "meal2list.db")

	// images
	viper.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	viper.SetDefault("image.encode_timeout", "10s")
	viper.SetDefault("image.ocr_timeout", "30s")

	viper.SetDefault("log_level", "info")
}

// validateConfig validates the loaded settings
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	if config.Relay.BaseURL == "" {
		return fmt.Errorf("relay base url is required")
	}

	if config.DomainLimit.Window <= 0 || config.DomainLimit.MaxRequests <= 0 {
		return fmt.Errorf("invalid domain limit settings")
	}

	if config.Session.TTL <= 0 || config.Session.CleanupInterval <= 0 {
		return fmt.Errorf("invalid session settings")
	}

	if config.Image.MaxSizeBytes <= 0 {
		return fmt.Errorf("invalid image max size")
	}

	return nil
}
