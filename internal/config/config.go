// Package config resolves runtime settings from defaults, an optional config
// file, NEO_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/neo-catalog/internal/logging"
	"github.com/signalsfoundry/neo-catalog/internal/observability"
)

// EnvPrefix prefixes every environment variable, e.g. NEO_DATA_NEOS.
const EnvPrefix = "NEO"

// Config is the resolved configuration shared by the CLI and the server.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// DataConfig locates the source files.
type DataConfig struct {
	NEOs       string `mapstructure:"neos"`
	Approaches string `mapstructure:"approaches"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Backend   string `mapstructure:"backend"`
	AddSource bool   `mapstructure:"add_source"`
}

// ServerConfig controls the gRPC catalog server.
type ServerConfig struct {
	GRPCAddr    string  `mapstructure:"grpc_addr"`
	MetricsAddr string  `mapstructure:"metrics_addr"`
	RateLimit   float64 `mapstructure:"rate_limit"` // requests per second; 0 disables
	RateBurst   int     `mapstructure:"rate_burst"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data.neos", "data/neos.csv")
	v.SetDefault("data.approaches", "data/cad.json")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.backend", logging.BackendSlog)
	v.SetDefault("log.add_source", false)

	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "neo-catalog")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// New returns a viper instance with defaults and environment binding but no
// file or flags yet.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// FlagBinding maps a config key to a flag name.
type FlagBinding struct {
	Key  string
	Flag string
}

// Load resolves the configuration. path may be empty. Only flags that were
// set explicitly override lower layers.
func Load(v *viper.Viper, path string, flags *pflag.FlagSet, bindings ...FlagBinding) (*Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %q", path)
		}
	}
	if flags != nil {
		for _, b := range bindings {
			f := flags.Lookup(b.Flag)
			if f == nil {
				return nil, errors.AssertionFailedf("no flag %q for key %q", b.Flag, b.Key)
			}
			if f.Changed {
				v.Set(b.Key, f.Value.String())
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.Newf("tracing.sample_ratio %v outside [0, 1]", c.Tracing.SampleRatio)
	}
	if c.Server.RateLimit < 0 {
		return errors.Newf("server.rate_limit %v is negative", c.Server.RateLimit)
	}
	return nil
}

// Logging converts the log section.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:     c.Log.Level,
		Format:    c.Log.Format,
		Backend:   c.Log.Backend,
		AddSource: c.Log.AddSource,
	}
}

// TracingConfig converts the tracing section.
func (c *Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
