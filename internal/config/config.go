// internal/config/config.go
package config

import (
	"os"
	"strconv"
)

// Config holds the environment-derived runtime configuration. Postgres
// settings are read directly by the database package; everything else the
// server needs lives here.
type Config struct {
	// Port the HTTP/websocket server listens on.
	Port string

	// RedisAddr is the backing session store; empty means run on the
	// in-memory store (solo/demo and development).
	RedisAddr string
	RedisDB   int

	// DemoMode swaps the real music provider for the fixture catalog.
	DemoMode bool

	// PostgresConfigured reports whether the optional preference/archive
	// database should be connected.
	PostgresConfigured bool
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Port:               GetEnv("PORT", "8080"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisDB:            GetEnvInt("REDIS_DB", 0),
		DemoMode:           GetEnvBool("TUNEQUIZ_DEMO", false),
		PostgresConfigured: os.Getenv("PG_HOST") != "",
	}
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an environment variable as integer, else a default value.
func GetEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// GetEnvBool parses an environment variable as boolean, else a default value.
func GetEnvBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
