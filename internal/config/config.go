// Package config loads the service configuration from defaults, an optional YAML
// file, M6A_* environment variables and command line flags.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. M6A_CHEMISTRY.
const EnvPrefix = "M6A"

// Config holds all configuration for the service
type Config struct {
	// Model selection
	Chemistry      string `mapstructure:"chemistry"`
	Semi           bool   `mapstructure:"semi"`
	Device         string `mapstructure:"device"`
	ONNXRuntimeLib string `mapstructure:"onnxruntime_lib"`

	// Batching
	BatchSize int `mapstructure:"batch_size"`
	Workers   int `mapstructure:"workers"`

	// Server configuration
	Port        int           `mapstructure:"port"`
	MetricsPort int           `mapstructure:"metrics_port"`
	Redis       string        `mapstructure:"redis"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`

	// Feature flags
	UseMockInference bool `mapstructure:"use_mock_inference"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chemistry", "2.2")
	v.SetDefault("semi", false)
	v.SetDefault("device", string(inference.DeviceAuto))
	v.SetDefault("onnxruntime_lib", "")
	v.SetDefault("batch_size", 1024)
	v.SetDefault("workers", 0)
	v.SetDefault("port", 50051)
	v.SetDefault("metrics_port", 9100)
	v.SetDefault("redis", "")
	v.SetDefault("cache_ttl", "24h")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("use_mock_inference", false)
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// otel_enabled has no default so that IsSet tells whether it was configured.
	if err := v.BindEnv("otel_enabled"); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := v.BindEnv("otel_endpoint", EnvPrefix+"_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); err != nil {
		return nil, errors.WithStack(err)
	}

	// Flags use dashes where keys use underscores: --batch-size sets batch_size.
	if flags != nil {
		known := make(map[string]bool)
		for _, key := range v.AllKeys() {
			known[key] = true
		}
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !known[key] || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, errors.Wrap(bindErr, "failed to bind flags")
		}
	}
	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	// A configured OTLP endpoint turns tracing on.
	if cfg.OTELEndpoint != "" && !v.IsSet("otel_enabled") {
		cfg.OTELEnabled = true
	}
	return &cfg, nil
}

// Load loads configuration from flags, environment variables, and an optional config file.
// Priority (highest to lowest): flags > env vars > config file > defaults.
// With an empty configFile, config.yaml is searched in ., /etc/m6a-service/ and
// $HOME/.m6a-service and may be absent.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(flags)
	if err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", configFile)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/m6a-service/")
		v.AddConfigPath("$HOME/.m6a-service")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				// Config file was found but another error occurred
				return nil, errors.Wrap(err, "error reading config file")
			}
		}
	}

	return unmarshal(v)
}

// ModelConfig returns the classifier selection.
func (c *Config) ModelConfig() (model.Configuration, error) {
	chem, err := model.ParseChemistry(c.Chemistry)
	if err != nil {
		return model.Configuration{}, errors.Wrapf(err, "invalid chemistry %q (valid: 2.0, 2.2, revio)", c.Chemistry)
	}
	return model.Configuration{Chemistry: chem, Semi: c.Semi}, nil
}

// LoaderOptions returns the options of the ONNX Runtime loader.
func (c *Config) LoaderOptions() (inference.LoaderOptions, error) {
	device, err := inference.ParseDeviceRequest(c.Device)
	if err != nil {
		return inference.LoaderOptions{}, err
	}
	return inference.LoaderOptions{Device: device, LibraryPath: c.ONNXRuntimeLib}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := c.ModelConfig(); err != nil {
		return err
	}
	if _, err := c.LoaderOptions(); err != nil {
		return err
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("invalid batch_size: %d", c.BatchSize)
	}
	if c.Workers < 0 {
		return errors.Errorf("invalid workers: %d", c.Workers)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return errors.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.Port == c.MetricsPort {
		return errors.New("port and metrics_port must be different")
	}
	if c.CacheTTL < 0 {
		return errors.Errorf("invalid cache_ttl: %s", c.CacheTTL)
	}
	return nil
}
