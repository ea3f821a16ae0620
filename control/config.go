// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration: schema, defaults, layered loading and validation.

package control

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HIOLOAD_POOL_THREADS.
const EnvPrefix = "HIOLOAD"

// Config is the complete runtime configuration.
//
// Sources in order of precedence: flags, HIOLOAD_* environment variables,
// the configuration file, defaults.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Pool    PoolConfig    `mapstructure:"pool" yaml:"pool"`
	Reactor ReactorConfig `mapstructure:"reactor" yaml:"reactor"`
	Echo    EchoConfig    `mapstructure:"echo" yaml:"echo"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output. Level is reloadable.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=json console"`
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Threads       int `mapstructure:"threads" yaml:"threads" validate:"gt=0"`
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity" validate:"gt=0"`
}

// ReactorConfig sizes the reactor and its listening socket.
type ReactorConfig struct {
	Listen         string        `mapstructure:"listen" yaml:"listen" validate:"required,listen_addr"`
	Backlog        int           `mapstructure:"backlog" yaml:"backlog" validate:"gt=0"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"gt=0"`
	MaxEvents      int           `mapstructure:"max_events" yaml:"max_events" validate:"gt=0"`
	TableSize      int           `mapstructure:"table_size" yaml:"table_size" validate:"gt=0"`
	RetryInterval  time.Duration `mapstructure:"retry_interval" yaml:"retry_interval" validate:"gte=1ms"`
	CPU            int           `mapstructure:"cpu" yaml:"cpu" validate:"gte=-1"`
	AcceptRate     float64       `mapstructure:"accept_rate" yaml:"accept_rate" validate:"gte=0"`
	AcceptBurst    int           `mapstructure:"accept_burst" yaml:"accept_burst" validate:"gte=0"`
}

// EchoConfig controls the line protocol.
type EchoConfig struct {
	MaxLine int `mapstructure:"max_line" yaml:"max_line" validate:"gt=0"`
}

// MetricsConfig controls the metrics and debug HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen" validate:"required_if=Enabled true"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
		Server:  ServerConfig{ShutdownTimeout: 10 * time.Second},
		Pool:    PoolConfig{Threads: 8, QueueCapacity: 10000},
		Reactor: ReactorConfig{
			Listen:         "0.0.0.0:9000",
			Backlog:        1024,
			MaxConnections: 65535,
			MaxEvents:      10000,
			TableSize:      65536,
			RetryInterval:  time.Millisecond,
			CPU:            -1,
		},
		Echo:    EchoConfig{MaxLine: 64 * 1024},
		Metrics: MetricsConfig{Enabled: false, Listen: "127.0.0.1:9100"},
	}
}

// Load reads configuration from path (optional), the environment and flags.
// The returned viper instance is the one a Reloader watches.
func Load(path string, flags *pflag.FlagSet) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// decode unmarshals, normalizes and validates the current viper state.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("pool.threads", d.Pool.Threads)
	v.SetDefault("pool.queue_capacity", d.Pool.QueueCapacity)
	v.SetDefault("reactor.listen", d.Reactor.Listen)
	v.SetDefault("reactor.backlog", d.Reactor.Backlog)
	v.SetDefault("reactor.max_connections", d.Reactor.MaxConnections)
	v.SetDefault("reactor.max_events", d.Reactor.MaxEvents)
	v.SetDefault("reactor.table_size", d.Reactor.TableSize)
	v.SetDefault("reactor.retry_interval", d.Reactor.RetryInterval)
	v.SetDefault("reactor.cpu", d.Reactor.CPU)
	v.SetDefault("reactor.accept_rate", d.Reactor.AcceptRate)
	v.SetDefault("reactor.accept_burst", d.Reactor.AcceptBurst)
	v.SetDefault("echo.max_line", d.Echo.MaxLine)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// ApplyDefaults normalizes values that validation compares literally.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	if cfg.Reactor.AcceptRate > 0 && cfg.Reactor.AcceptBurst == 0 {
		cfg.Reactor.AcceptBurst = 1
	}
}

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
		return validListenAddr(fl.Field().String())
	})
}

// validListenAddr accepts host:port with an optional host and a port in
// 0..65535; port 0 asks the kernel for one.
func validListenAddr(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.Metrics.Enabled && !validListenAddr(cfg.Metrics.Listen) {
		return fmt.Errorf("metrics: invalid listen address %q", cfg.Metrics.Listen)
	}
	if cfg.Reactor.MaxConnections > cfg.Reactor.TableSize {
		return fmt.Errorf("reactor: max_connections (%d) exceeds table_size (%d)",
			cfg.Reactor.MaxConnections, cfg.Reactor.TableSize)
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
