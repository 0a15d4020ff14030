package config

import (
	"errors"
	"log"

	"github.com/spf13/viper"
)

type WebServerConfig struct {
	Port            string `mapstructure:"port"`
	IP              string `mapstructure:"ip"`
	Scheme          string `mapstructure:"scheme"`
	BaseURL         string `mapstructure:"base_url"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Address          string `mapstructure:"address"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	PoolSize         int    `mapstructure:"pool_size"`
	MinIdleConns     int    `mapstructure:"min_idle_conns"`
	OperationTimeout int    `mapstructure:"operation_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxSizeMB   int  `mapstructure:"max_size_mb"`
	TTLSeconds  int  `mapstructure:"ttl_seconds"`
	CounterSize int  `mapstructure:"counter_size"`
}

// AttributionConfig controls link signing and the attribution cookie.
// Secret is required: both the slug signatures and the cookie MAC are
// worthless without it, so startup fails loudly when it is missing.
type AttributionConfig struct {
	Secret          string `mapstructure:"secret"`
	CookieName      string `mapstructure:"cookie_name"`
	CookieDomain    string `mapstructure:"cookie_domain"`
	CookieMaxAge    int    `mapstructure:"cookie_max_age"`
	UTMSource       string `mapstructure:"utm_source"`
	UTMMedium       string `mapstructure:"utm_medium"`
}

// AbuseConfig holds the click-suppression thresholds. These gate whether a
// click is counted, never whether the visitor is redirected.
type AbuseConfig struct {
	IPWindowMinutes  int `mapstructure:"ip_window_minutes"`
	IPClickLimit     int `mapstructure:"ip_click_limit"`
	DuplicateWindowS int `mapstructure:"duplicate_window_seconds"`
}

type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	AdminAPIKey string `mapstructure:"admin_api_key"`
}

type ClickConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueSize  int `mapstructure:"queue_size"`
	MaxEvents  int `mapstructure:"max_events_per_link"`
}

type FeaturesConfig struct {
	CustomSlugsEnabled bool `mapstructure:"custom_slugs_enabled"`
	MinSlugLength      int  `mapstructure:"min_slug_length"`
	MaxSlugLength      int  `mapstructure:"max_slug_length"`
}

type Config struct {
	WebServer   WebServerConfig   `mapstructure:"webserver"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Abuse       AbuseConfig       `mapstructure:"abuse"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Clicks      ClickConfig       `mapstructure:"clicks"`
	Features    FeaturesConfig    `mapstructure:"features"`
}

func LoadConfig() (Config, error) {
	var config Config

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Enable environment variable overrides
	viper.SetEnvPrefix("AFFIL")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Error reading config file: %v", err)
		return config, err
	}

	if err := viper.Unmarshal(&config); err != nil {
		log.Printf("Unable to decode into struct: %v", err)
		return config, err
	}

	if config.Attribution.Secret == "" {
		return config, errors.New("attribution.secret must be set")
	}

	log.Println("Configuration loaded successfully")
	return config, nil
}

func MustLoadConfig() Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return config
}

func setDefaults() {
	// WebServer defaults
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.ip", "127.0.0.1")
	viper.SetDefault("webserver.scheme", "http")
	viper.SetDefault("webserver.base_url", "")
	viper.SetDefault("webserver.read_timeout", 15)
	viper.SetDefault("webserver.write_timeout", 15)
	viper.SetDefault("webserver.shutdown_timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.operation_timeout", 5)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size_mb", 100)
	viper.SetDefault("cache.ttl_seconds", 300)      // 5 minutes
	viper.SetDefault("cache.counter_size", 1000000) // 1M keys

	// RateLimit defaults (token bucket in front of the whole surface)
	viper.SetDefault("ratelimit.requests_per_second", 50.0)
	viper.SetDefault("ratelimit.burst", 100)

	// Attribution defaults
	viper.SetDefault("attribution.secret", "")
	viper.SetDefault("attribution.cookie_name", "af_attr")
	viper.SetDefault("attribution.cookie_domain", "")
	viper.SetDefault("attribution.cookie_max_age", 7776000) // 90 days
	viper.SetDefault("attribution.utm_source", "affiliate")
	viper.SetDefault("attribution.utm_medium", "referral")

	// Abuse guard defaults
	viper.SetDefault("abuse.ip_window_minutes", 60)
	viper.SetDefault("abuse.ip_click_limit", 100)
	viper.SetDefault("abuse.duplicate_window_seconds", 300)

	// Auth defaults
	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.admin_api_key", "")

	// Click recorder defaults
	viper.SetDefault("clicks.workers", 4)
	viper.SetDefault("clicks.queue_size", 1024)
	viper.SetDefault("clicks.max_events_per_link", 10000)

	// Features defaults
	viper.SetDefault("features.custom_slugs_enabled", true)
	viper.SetDefault("features.min_slug_length", 3)
	viper.SetDefault("features.max_slug_length", 64)
}
