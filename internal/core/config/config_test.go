package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
app:
  http:
    port: 9000
log:
  level: warn
  rotate:
    enable: true
    filename: logs/x.log
store:
  driver: redis
redis:
  addr: 127.0.0.1:6379
  code_cache_ttl_sec: 60
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	c := Load(writeConfig(t, sample))

	assert.Equal(t, 9000, c.App.HTTP.Port)
	assert.Equal(t, 8081, c.App.Admin.Port, "default")
	assert.Equal(t, "warn", c.Log.Level)
	assert.True(t, c.Log.Rotate.Enable)
	assert.Equal(t, "logs/x.log", c.Log.Rotate.Filename)
	assert.Equal(t, "redis", c.Store.Driver)
	assert.Equal(t, "empire_mine:", c.Store.KeyPrefix)
	assert.Equal(t, "127.0.0.1:6379", c.Redis.Addr)
	assert.Equal(t, 60, c.Redis.CodeCacheTTLSec)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, 5.0, c.App.HTTP.AuthRPS)
	assert.Equal(t, 10, c.App.HTTP.AuthBurst)
	assert.Empty(t, c.Admin.Password)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_STORE_DRIVER", "memory")
	t.Setenv("APP_LOG_LEVEL", "error")
	t.Setenv("APP_ADMIN_PASSWORD", "from-env")

	c := Load(writeConfig(t, sample))
	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, "error", c.Log.Level)
	assert.Equal(t, "from-env", c.Admin.Password)
}
