// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. ECHO_POOL_SIZE.
const EnvPrefix = "ECHO"

// Config holds all configuration for the dispatcher.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port" validate:"required,numeric"`
	Backlog        int           `mapstructure:"backlog" validate:"gte=1"`
	PoolSize       int           `mapstructure:"pool_size" validate:"gte=1"`
	MaxMessageSize int           `mapstructure:"max_message_size" validate:"gte=1,lte=65536"`
	RejectDelay    time.Duration `mapstructure:"reject_delay" validate:"gte=0"`

	HttpListenAddr string `mapstructure:"http_listen_addr" validate:"omitempty,hostname_port"`
	GrpcListenAddr string `mapstructure:"grpc_listen_addr" validate:"omitempty,hostname_port"`

	EtcdEndpoints []string      `mapstructure:"etcd_endpoints" validate:"omitempty,dive,required"`
	EtcdTimeout   time.Duration `mapstructure:"etcd_timeout" validate:"gt=0"`
	RegistryTTL   time.Duration `mapstructure:"registry_ttl" validate:"min=1s"`

	StatsSchedule  string `mapstructure:"stats_schedule" validate:"omitempty,cron"`
	HistorySize    int    `mapstructure:"history_size" validate:"gte=0"`
	LogLevel       string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}

// Load loads configuration from file and environment variables.
// Without either, every value equals the built-in default.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("host", "")
	v.SetDefault("port", "3490")
	v.SetDefault("backlog", 10)
	v.SetDefault("pool_size", 10)
	v.SetDefault("max_message_size", 100)
	v.SetDefault("reject_delay", "1s")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("grpc_listen_addr", ":50052")
	v.SetDefault("etcd_endpoints", []string{})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("registry_ttl", "10s")
	v.SetDefault("stats_schedule", "@every 30s")
	v.SetDefault("history_size", 256)
	v.SetDefault("log_level", "info")
	v.SetDefault("tracing_enabled", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{"./configs", "."}
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file: defaults and env vars only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	validate := validator.New()
	_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// EtcdEnabled reports whether instance registration and shared history are configured.
func (c *Config) EtcdEnabled() bool {
	return len(c.EtcdEndpoints) > 0
}
