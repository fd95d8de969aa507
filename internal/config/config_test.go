package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		envValue string
		want     string
	}{
		{"flag takes precedence", "/path/from/flag", "/path/from/env", "/path/from/flag"},
		{"env when no flag", "", "/path/from/env", "/path/from/env"},
		{"empty when neither", "", "", ""},
		{"whitespace flag", "  ", "/path/from/env", "/path/from/env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REDNET_CONFIG", tt.envValue)
			got := ResolveConfigPath(tt.flag)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.DNS.CacheTTLSeconds)
	assert.Equal(t, 800, cfg.DNS.QueryWindowMS)
	assert.Equal(t, 1000, cfg.DNS.VerificationTimeoutMS)
	assert.False(t, cfg.DNS.AllowUnverified)
	assert.Equal(t, 5000, cfg.Transport.SendTimeoutMS)
	assert.Equal(t, 2, cfg.Transport.Retries)
	assert.Equal(t, 30000, cfg.Transport.KeepaliveIntervalMS)
	assert.Equal(t, 5000, cfg.Sandbox.WallClockMS)
	assert.Equal(t, 102400, cfg.Sandbox.OutputBytesMax)
	assert.Equal(t, 1048576, cfg.Sandbox.MemoryBytesMax)
	assert.Equal(t, 3, cfg.Crawl.MaxDepth)
	assert.Equal(t, 100, cfg.Crawl.MaxPages)
	assert.Equal(t, 100, cfg.Crawl.MinIntervalMS)
	assert.Equal(t, 10, cfg.Index.PositionsPerTermPerDoc)
}

func TestLoadFromFile(t *testing.T) {
	content := `
node:
  id: 1234
  data_dir: "/tmp/rednet"

dns:
  cache_ttl_seconds: 60
  allow_unverified: true

sandbox:
  wall_clock_ms: 1000

logging:
  level: "DEBUG"
  structured: true
  structured_format: "keyvalue"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1234, cfg.Node.ID)
	assert.Equal(t, "/tmp/rednet", cfg.Node.DataDir)
	assert.Equal(t, 60, cfg.DNS.CacheTTLSeconds)
	assert.True(t, cfg.DNS.AllowUnverified)
	assert.Equal(t, 1000, cfg.Sandbox.WallClockMS)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Structured)
	assert.Equal(t, "keyvalue", cfg.Logging.StructuredFormat)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  wall_clock_ms: [invalid"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidSendTimeout(t *testing.T) {
	content := `
transport:
  send_timeout_ms: 0
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeInvalidAdminPort(t *testing.T) {
	content := `
admin:
  enabled: true
  port: 0
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDNET_NODE_ID", "4321")
	t.Setenv("REDNET_DNS_CACHE_TTL_SECONDS", "45")
	t.Setenv("REDNET_SANDBOX_WALL_CLOCK_MS", "2500")
	t.Setenv("REDNET_CRAWL_MAX_PAGES", "10")
	t.Setenv("REDNET_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4321, cfg.Node.ID)
	assert.Equal(t, 45, cfg.DNS.CacheTTLSeconds)
	assert.Equal(t, 2500, cfg.Sandbox.WallClockMS)
	assert.Equal(t, 10, cfg.Crawl.MaxPages)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}
