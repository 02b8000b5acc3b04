// d8cart/config/config.go

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config is everything the binary reads from the environment.
type Config struct {
	Backend    string // memory | sqlite | redis
	SQLitePath string
	RedisAddr  string
	StorageKey string

	HTTPPort   int
	HealthPort int

	OTelEnabled  bool
	OTelEndpoint string

	LogLevel string
}

// Load reads an optional dotenv file, then the environment. A missing dotenv
// file is fine; a malformed one is an error. The result is not validated;
// callers apply their own overrides and then call Validate.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "read %s", envFile)
		}
	}

	cfg := Config{
		Backend:      getEnv("CART_BACKEND", "sqlite"),
		SQLitePath:   getEnv("CART_SQLITE_PATH", "./d8cart.db"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		StorageKey:   getEnv("CART_KEY", "@D8:products"),
		HTTPPort:     getEnvInt("PORT", 8080),
		HealthPort:   getEnvInt("HEALTH_PORT", 7070),
		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate fills in derived defaults and rejects unusable combinations.
func (c *Config) Validate() error {
	// Only add the default port when none was given.
	if c.RedisAddr != "" && !strings.Contains(c.RedisAddr, ":") {
		c.RedisAddr += ":6379"
	}
	if c.Backend == "redis" && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when CART_BACKEND=redis")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
