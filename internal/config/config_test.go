package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeYAML(t, "app:\n  env: dev\n"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "10m", c.OAuth.CodeTTL)
	assert.Equal(t, "1h", c.OAuth.AccessTTL)
	assert.Equal(t, "720h", c.OAuth.RefreshTTL)
	assert.False(t, c.IsProd())
}

func TestLoadYAMLValues(t *testing.T) {
	c, err := Load(writeYAML(t, `
server:
  addr: ":9999"
storage:
  driver: postgres
  dsn: postgres://localhost/multipass
oauth:
  access_ttl: 30m
rate:
  enabled: true
  max_requests: 5
`))
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.Server.Addr)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, 30*time.Minute, Dur(c.OAuth.AccessTTL, time.Hour))
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 5, c.Rate.MaxRequests)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7777")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://env/multipass")

	c, err := Load(writeYAML(t, "server:\n  addr: \":1111\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7777", c.Server.Addr)
	assert.Equal(t, "postgres://env/multipass", c.Storage.DSN)
}

func TestValidatePostgresNeedsDSN(t *testing.T) {
	_, err := Load(writeYAML(t, "storage:\n  driver: postgres\n"))
	assert.Error(t, err)
}

func TestValidateProdNeedsSessionSecret(t *testing.T) {
	_, err := Load(writeYAML(t, "app:\n  env: prod\n"))
	assert.Error(t, err)
}

func TestDurFallback(t *testing.T) {
	assert.Equal(t, time.Hour, Dur("garbage", time.Hour))
	assert.Equal(t, 5*time.Second, Dur("5s", time.Hour))
}
