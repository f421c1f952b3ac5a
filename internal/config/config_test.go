package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "2.2", cfg.Chemistry)
	assert.False(t, cfg.Semi)
	assert.Equal(t, 1024, cfg.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.False(t, cfg.OTELEnabled)
	require.NoError(t, cfg.Validate())

	mc, err := cfg.ModelConfig()
	require.NoError(t, err)
	assert.Equal(t, model.Configuration{Chemistry: model.Chemistry2_2}, mc)
	opts, err := cfg.LoaderOptions()
	require.NoError(t, err)
	assert.Equal(t, inference.DeviceAuto, opts.Device)
}

func TestLoadPriority(t *testing.T) {
	path := writeConfig(t, "chemistry: \"2.0\"\nsemi: true\nbatch_size: 64\nport: 6000\n")
	t.Setenv("M6A_BATCH_SIZE", "128")
	t.Setenv("M6A_DEVICE", "cpu")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("chemistry", "2.2", "")
	flags.Int("batch-size", 0, "")
	flags.Int("port", 0, "")
	require.NoError(t, flags.Parse([]string{"--chemistry=revio"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "revio", cfg.Chemistry, "flag wins over file")
	assert.True(t, cfg.Semi, "file wins over default")
	assert.Equal(t, 128, cfg.BatchSize, "env wins over file")
	assert.Equal(t, 6000, cfg.Port, "unset flag does not override file")
	assert.Equal(t, "cpu", cfg.Device)

	mc, err := cfg.ModelConfig()
	require.NoError(t, err)
	assert.Equal(t, model.Configuration{Chemistry: model.ChemistryRevio, Semi: true}, mc)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestOTLPEndpointEnablesTracing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:4317", cfg.OTELEndpoint)
	assert.True(t, cfg.OTELEnabled)
}

func TestOTELFlagOverridesEndpoint(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("M6A_OTEL_ENDPOINT", "localhost:4317")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("otel-enabled", false, "")
	require.NoError(t, flags.Parse([]string{"--otel-enabled=false"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.False(t, cfg.OTELEnabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Chemistry: "2.0", Device: "auto", BatchSize: 8, Port: 50051, MetricsPort: 9100}
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"chemistry":    func(c *Config) { c.Chemistry = "3.0" },
		"device":       func(c *Config) { c.Device = "tpu" },
		"batch size":   func(c *Config) { c.BatchSize = 0 },
		"workers":      func(c *Config) { c.Workers = -1 },
		"port":         func(c *Config) { c.Port = 70000 },
		"same ports":   func(c *Config) { c.MetricsPort = c.Port },
		"metrics":      func(c *Config) { c.MetricsPort = 0 },
		"negative ttl": func(c *Config) { c.CacheTTL = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
