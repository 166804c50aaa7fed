package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// t.Setenv restores the original values; Unsetenv makes the variables
	// truly absent for the duration of the test.
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "SERVER_PORT", "TENANTS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "8080", cfg.ServerPort)
	require.Len(t, cfg.Tenants, 3)
	assert.Equal(t, "tenant_a", cfg.Tenants[0].Name)
}

func TestLoadEmptyRedisURLOptsOut(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.RedisURL, "an explicitly empty REDIS_URL must survive to disable the shared counter store")
}

func TestLoadBadTenants(t *testing.T) {
	t.Setenv("TENANTS", "tenant_a:0:1h")

	_, err := Load()
	assert.Error(t, err)
}
