package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/miniagent/agent-platform/internal/tenant"
)

// DefaultTenants mirrors the platform's built-in tenant registry.
const DefaultTenants = "tenant_a:10:1h,tenant_b:200:24h,tenant_c:5:1m"

type Config struct {
	DatabaseURL string
	RedisURL    string
	ServerPort  string
	Tenants     []tenant.Tenant
}

func Load() (*Config, error) {
	godotenv.Load()

	tenants, err := tenant.Parse(getEnv("TENANTS", DefaultTenants))
	if err != nil {
		return nil, errors.Wrap(err, "parse TENANTS")
	}

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		// An explicitly empty REDIS_URL opts out of the shared counter
		// store; the server then falls back to the in-process limiter.
		RedisURL:   lookupEnv("REDIS_URL", "redis://localhost:6379"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		Tenants:    tenants,
	}, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// lookupEnv distinguishes unset from set-but-empty.
func lookupEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}
