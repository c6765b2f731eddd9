package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "redtrack", c.App.Name)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, "local", c.Cache.Backend)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, "/metrics", c.Metrics.Path)
	assert.False(t, c.Workflow.CrossProjectRelations)
	assert.Equal(t, uint64(3), c.Workflow.RelationRetry.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, c.Workflow.RelationRetry.InitialInterval)
	assert.Same(t, c, Get())
}

func TestLoad_MergesAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "default.yaml", `
server:
  port: 9000
database:
  driver: postgres
  host: db
  name: redtrack
cache:
  backend: redis
redis:
  addrs: ["cache:6379"]
workflow:
  relation_retry:
    max_retries: 5
    initial_interval: 50ms
`)
	writeFile(t, dir, "config.yaml", `
workflow:
  cross_project_relations: true
`)
	t.Setenv("REDTRACK_SERVER_PORT", "9100")
	t.Setenv("REDTRACK_AUTH_JWT_SECRET", "from-env")

	c, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, "postgres", c.Database.Driver)
	assert.Equal(t, "db", c.Database.Host)
	assert.True(t, c.Workflow.CrossProjectRelations)
	assert.Equal(t, uint64(5), c.Workflow.RelationRetry.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, c.Workflow.RelationRetry.InitialInterval)
	assert.Equal(t, "from-env", c.Auth.JWT.Secret)

	rc := c.RedisCacheConfig()
	assert.Equal(t, []string{"cache:6379"}, rc.Addrs)
	assert.Equal(t, c.Cache.TTL, rc.TTL)
	assert.Equal(t, "0.0.0.0:9100", c.Server.GetServerAddr())
}

func TestLoadFromFile_Validation(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"bad driver":         "database:\n  driver: oracle\n",
		"redis without addr": "cache:\n  backend: redis\n",
		"unknown cache":      "cache:\n  backend: memcached\n",
		"weak secret":        "app:\n  env: production\nauth:\n  jwt:\n    secret: short\n",
		"port":               "server:\n  port: 70000\n",
	} {
		path := writeFile(t, dir, "bad.yaml", body)
		_, err := LoadFromFile(path)
		assert.Error(t, err, name)
	}

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestOnChange(t *testing.T) {
	var seen []*Config
	OnChange(func(c *Config) { seen = append(seen, c) })

	path := writeFile(t, t.TempDir(), "app.yaml", "workflow:\n  cross_project_relations: true\n")
	c, err := LoadFromFile(path)
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	assert.Same(t, c, seen[len(seen)-1])
	assert.True(t, seen[len(seen)-1].Workflow.CrossProjectRelations)
}
