// Package config loads the canvas-sync CLI configuration from an optional
// YAML file and CANVAS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/canvas-sync/pkg/auth"
	"github.com/Sternrassler/canvas-sync/pkg/client"
	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/Sternrassler/canvas-sync/pkg/logging"
	"github.com/Sternrassler/canvas-sync/pkg/pagination"
	"github.com/spf13/viper"
)

// Snapshot store kinds.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

type Configuration struct {
	Host      string `mapstructure:"host"`
	BaseURL   string `mapstructure:"baseURL"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`

	LogLevel  string `mapstructure:"logLevel"`
	LogPretty bool   `mapstructure:"logPretty"`

	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rateLimit"`
	RateBurst int           `mapstructure:"rateBurst"`

	Pagination PaginationConfiguration `mapstructure:"pagination"`
	Snapshot   SnapshotConfiguration   `mapstructure:"snapshot"`
	Redis      RedisConfiguration      `mapstructure:"redis"`

	MetricsAddr string `mapstructure:"metricsAddr"`
}

type PaginationConfiguration struct {
	PageSize int           `mapstructure:"pageSize"`
	Delay    time.Duration `mapstructure:"delay"`
}

type SnapshotConfiguration struct {
	Store string        `mapstructure:"store"`
	TTL   time.Duration `mapstructure:"ttl"`
}

type RedisConfiguration struct {
	Host     string `mapstructure:"host"`
	Port     uint   `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// Addr returns host:port.
func (r RedisConfiguration) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration. An empty configFile searches for
// canvas-sync.yml in the working directory; a missing file is not an error
// then. Environment variables override the file, e.g. CANVAS_HOST or
// CANVAS_REDIS_HOST.
func Load(configFile string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("canvas-sync")
		v.SetConfigType("yml")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("read configuration: %w", err)
		}
	}

	v.SetEnvPrefix("canvas")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "")
	v.SetDefault("baseURL", "")
	v.SetDefault("token", "")
	v.SetDefault("tokenFile", "")

	v.SetDefault("logLevel", "info")
	v.SetDefault("logPretty", false)

	v.SetDefault("timeout", "30s")
	v.SetDefault("rateLimit", 10.0)
	v.SetDefault("rateBurst", 5)

	v.SetDefault("pagination.pageSize", pagination.DefaultPageSize)
	v.SetDefault("pagination.delay", pagination.DefaultDelay.String())

	v.SetDefault("snapshot.store", StoreFile)
	v.SetDefault("snapshot.ttl", "0s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)

	v.SetDefault("metricsAddr", "")
}

// Validate checks values that have no usable fallback.
func (c *Configuration) Validate() error {
	if c.Host == "" && c.BaseURL == "" {
		return fmt.Errorf("%w: host is required (CANVAS_HOST)", errs.ErrInvalidArgument)
	}
	switch c.Snapshot.Store {
	case StoreFile, StoreRedis:
	default:
		return fmt.Errorf("%w: snapshot.store must be %q or %q (got %q)", errs.ErrInvalidArgument, StoreFile, StoreRedis, c.Snapshot.Store)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	if c.Pagination.Delay < 0 {
		return fmt.Errorf("%w: pagination.delay must be >= 0 (got %v)", errs.ErrInvalidArgument, c.Pagination.Delay)
	}
	return nil
}

// Authenticator returns the access token from Token or, if empty, TokenFile.
func (c *Configuration) Authenticator() (*auth.Token, error) {
	if c.Token != "" {
		return auth.NewToken(c.Token)
	}
	if c.TokenFile != "" {
		return auth.TokenFromFile(c.TokenFile)
	}
	return nil, fmt.Errorf("%w: an access token is required (CANVAS_TOKEN or tokenFile)", errs.ErrInvalidArgument)
}

// ClientConfig returns the client configuration for c.
func (c *Configuration) ClientConfig(a client.Authenticator) client.Config {
	cfg := client.DefaultConfig(c.Host, a)
	cfg.BaseURL = c.BaseURL
	cfg.Timeout = c.Timeout
	cfg.RateLimit = c.RateLimit
	cfg.RateBurst = c.RateBurst
	return cfg
}

// PaginationConfig returns the paginator configuration for c.
func (c *Configuration) PaginationConfig() pagination.Config {
	return pagination.Config{
		PageSize: c.Pagination.PageSize,
		Delay:    c.Pagination.Delay,
	}
}

// LoggingConfig returns the logging configuration for c.
func (c *Configuration) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = logging.ParseLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}
