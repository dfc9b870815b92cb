// Package config loads buyflow's configuration from an optional YAML file
// and BUYFLOW_-prefixed environment variables.
//
// Priority (highest to lowest):
//  1. Environment variables, e.g. BUYFLOW_STORE_BACKEND
//  2. The config file
//  3. Built-in defaults (see Default)
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/roach88/buyflow/internal/logger"
	"github.com/roach88/buyflow/internal/poll"
	"github.com/roach88/buyflow/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BUYFLOW"

// Config holds all configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Poll    PollConfig    `mapstructure:"poll"`
	Quotes  QuotesConfig  `mapstructure:"quotes"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	Output string `mapstructure:"output" validate:"required"`
}

// StoreConfig selects where the snapshot lives.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" validate:"oneof=sqlite redis none"`
	Path    string      `mapstructure:"path" validate:"required_if=Backend sqlite"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Key      string `mapstructure:"key"`
}

// PollConfig holds the poll budgets.
type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval" validate:"gte=0"`
	ShortAttempts int           `mapstructure:"short_attempts" validate:"min=1"`
	LongAttempts  int           `mapstructure:"long_attempts" validate:"min=1"`
}

// QuotesConfig holds the quote refresh toggle.
type QuotesConfig struct {
	RefreshEnabled bool `mapstructure:"refresh_enabled"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig controls the metrics summary.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console", Output: "stderr"},
		Store: StoreConfig{
			Backend: store.BackendSQLite,
			Path:    "buyflow.db",
			Redis:   RedisConfig{Addr: "localhost:6379", Key: store.DefaultRedisKey},
		},
		Poll: PollConfig{
			Interval:      poll.Interval,
			ShortAttempts: poll.RetriesShort,
			LongAttempts:  poll.RetriesDefault,
		},
		Quotes: QuotesConfig{RefreshEnabled: true},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)
	v.SetDefault("store.redis.key", d.Store.Redis.Key)
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.short_attempts", d.Poll.ShortAttempts)
	v.SetDefault("poll.long_attempts", d.Poll.LongAttempts)
	v.SetDefault("quotes.refresh_enabled", d.Quotes.RefreshEnabled)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// Load reads the configuration. With an empty path it looks for an optional
// buyflow.yaml in the working directory; a named file must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("buyflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.Store.Backend == store.BackendRedis && c.Store.Redis.Addr == "" {
		return errors.New("invalid config: store.redis.addr is required for the redis backend")
	}
	return nil
}

// Logger returns the logger configuration.
func (c *Config) Logger() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	lc.Output = c.Log.Output
	return lc
}

// Backend returns the snapshot store configuration.
func (c *Config) Backend() store.BackendConfig {
	return store.BackendConfig{
		Backend: c.Store.Backend,
		Path:    c.Store.Path,
		Redis: store.RedisConfig{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
			Key:      c.Store.Redis.Key,
		},
	}
}

// ShortPoll returns the budget for fast status checks.
func (c *Config) ShortPoll() poll.Config {
	return poll.Config{Interval: c.Poll.Interval, Attempts: c.Poll.ShortAttempts}
}

// LongPoll returns the budget for bank-link completion.
func (c *Config) LongPoll() poll.Config {
	return poll.Config{Interval: c.Poll.Interval, Attempts: c.Poll.LongAttempts}
}
