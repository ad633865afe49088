package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "data/neos.csv", cfg.Data.NEOs)
	assert.Equal(t, "data/cad.json", cfg.Data.Approaches)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
	assert.Equal(t, "slog", cfg.Logging().Backend)
}

func TestPrecedenceFileEnvFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "neo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  neos: from-file.csv
  approaches: from-file.json
log:
  level: debug
server:
  rate_limit: 5
`), 0o600))

	t.Setenv("NEO_DATA_APPROACHES", "from-env.json")
	t.Setenv("NEO_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("neofile", "", "")
	fs.String("log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "error"}))

	cfg, err := Load(New(), path, fs,
		FlagBinding{Key: "data.neos", Flag: "neofile"},
		FlagBinding{Key: "log.level", Flag: "log-level"},
	)
	require.NoError(t, err)

	assert.Equal(t, "from-file.csv", cfg.Data.NEOs, "unset flag must not override the file")
	assert.Equal(t, "from-env.json", cfg.Data.Approaches)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 5.0, cfg.Server.RateLimit)
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("NEO_TRACING_ENABLED", "true")
	t.Setenv("NEO_TRACING_EXPORTER", "otlp")
	t.Setenv("NEO_TRACING_ENDPOINT", "collector:4317")
	t.Setenv("NEO_TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := Load(New(), "", nil)
	require.NoError(t, err)

	tc := cfg.TracingConfig()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "neo-catalog", tc.ServiceName)
	assert.Equal(t, "otlp", tc.Exporter)
	assert.Equal(t, "collector:4317", tc.Endpoint)
	assert.Equal(t, 0.25, tc.SampleRatio)
}

func TestValidate(t *testing.T) {
	t.Setenv("NEO_TRACING_SAMPLE_RATIO", "2")
	_, err := Load(New(), "", nil)
	assert.Error(t, err)
}

func TestUnknownFlagBinding(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	_, err := Load(New(), "", fs, FlagBinding{Key: "data.neos", Flag: "nope"})
	assert.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.toml"), nil)
	assert.Error(t, err)
}
