// Package config loads the ventusky command configuration from defaults,
// an optional YAML file and VENTUSKY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roemer/goventusky"
	"github.com/roemer/goventusky/internal/logger"
	"github.com/spf13/viper"
)

// MinRefreshInterval is the shortest allowed refresh interval.
const MinRefreshInterval = 5 * time.Minute

// ErrConfigInvalid is returned when the configuration fails validation.
var ErrConfigInvalid = errors.New("invalid configuration")

// ValidationError represents an error in configuration validation
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

type Config struct {
	Location LocationConfig `mapstructure:"location"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      logger.Config  `mapstructure:"log"`
}

type LocationConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Name      string  `mapstructure:"name"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type HTTPConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
}

type CacheConfig struct {
	Directory      string        `mapstructure:"directory"`
	TTL            time.Duration `mapstructure:"ttl"`
	RedisAddress   string        `mapstructure:"redis_address"`
	RedisRetention time.Duration `mapstructure:"redis_retention"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("location.latitude", 48.941)
	v.SetDefault("location.longitude", 2.159)
	v.SetDefault("location.name", "")
	v.SetDefault("refresh.interval", 60*time.Minute)
	v.SetDefault("refresh.timeout", ventusky.DefaultRefreshTimeout)
	v.SetDefault("http.base_url", ventusky.DefaultBaseURL)
	v.SetDefault("http.user_agent", ventusky.DefaultUserAgent)
	v.SetDefault("http.timeout", ventusky.DefaultHTTPTimeout)
	v.SetDefault("http.requests_per_minute", 6.0)
	v.SetDefault("cache.directory", "")
	v.SetDefault("cache.ttl", ventusky.DefaultCacheTTL)
	v.SetDefault("cache.redis_address", "")
	v.SetDefault("cache.redis_retention", 24*time.Hour)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
}

// Load reads the configuration. configFile may be empty, in which case
// ./config.yaml is used when present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("VENTUSKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	switch {
	case c.Location.Latitude < -90 || c.Location.Latitude > 90:
		return &ValidationError{Field: "location.latitude", Value: c.Location.Latitude, Reason: "must be between -90 and 90"}
	case c.Location.Longitude < -180 || c.Location.Longitude > 180:
		return &ValidationError{Field: "location.longitude", Value: c.Location.Longitude, Reason: "must be between -180 and 180"}
	case c.Refresh.Interval < MinRefreshInterval:
		return &ValidationError{Field: "refresh.interval", Value: c.Refresh.Interval, Reason: "must be at least " + MinRefreshInterval.String()}
	case c.Refresh.Timeout <= 0:
		return &ValidationError{Field: "refresh.timeout", Value: c.Refresh.Timeout, Reason: "must be positive"}
	case c.HTTP.Timeout <= 0:
		return &ValidationError{Field: "http.timeout", Value: c.HTTP.Timeout, Reason: "must be positive"}
	case c.HTTP.UserAgent == "":
		return &ValidationError{Field: "http.user_agent", Value: c.HTTP.UserAgent, Reason: "is required"}
	case c.HTTP.RequestsPerMinute <= 0:
		return &ValidationError{Field: "http.requests_per_minute", Value: c.HTTP.RequestsPerMinute, Reason: "must be positive"}
	case c.Cache.TTL <= 0:
		return &ValidationError{Field: "cache.ttl", Value: c.Cache.TTL, Reason: "must be positive"}
	}
	return nil
}
