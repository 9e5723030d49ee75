package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Load reads the .env file named by MEMORIA_ENV (default .env) and then its
// .secret sidecar. Missing files are ignored; values already in the process
// environment win. All config is flat env vars read after loading.
func Load() error {
	envFile := os.Getenv("MEMORIA_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")
	return nil
}

func ServerPort() int {
	return intOr("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// MigrateOnStart applies the bundled schema at startup. Defaults to true.
func MigrateOnStart() bool {
	v, err := strconv.ParseBool(os.Getenv("MIGRATE_ON_START"))
	if err != nil {
		return true
	}
	return v
}

// LogLevel parses LOG_LEVEL (debug, info, warn, error). Defaults to info.
func LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// RateLimitRPS returns requests per second per client. Defaults to 100.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst defaults to 20.
func RateLimitBurst() int {
	return intOr("RATE_LIMIT_BURST", 20)
}

// TenantRateLimitRPS is the per-tenant budget applied after authentication.
// Defaults to RateLimitRPS.
func TenantRateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("TENANT_RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return RateLimitRPS()
	}
	return rps
}

func TenantRateLimitBurst() int {
	return intOr("TENANT_RATE_LIMIT_BURST", RateLimitBurst())
}

// RedisAddr is empty when contact locks stay in-process.
func RedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}

func RedisPassword() string {
	return os.Getenv("REDIS_PASSWORD")
}

func RedisDB() int {
	db, err := strconv.Atoi(os.Getenv("REDIS_DB"))
	if err != nil || db < 0 {
		return 0
	}
	return db
}

// ContactLockTTL is how long a contact lock survives without renewal.
// Defaults to 30s.
func ContactLockTTL() time.Duration {
	return durationOr("CONTACT_LOCK_TTL", 30*time.Second)
}

// ContactLockWait bounds how long a request waits for a busy contact.
// Defaults to 10s.
func ContactLockWait() time.Duration {
	return durationOr("CONTACT_LOCK_WAIT", 10*time.Second)
}

// NATSURL is empty when the signal consumer is disabled.
func NATSURL() string {
	return os.Getenv("NATS_URL")
}

func NATSStream() string {
	return stringOr("NATS_STREAM", "SIGNALS")
}

func NATSDurable() string {
	return stringOr("NATS_DURABLE", "memoria-extraction")
}

// NATSMaxDeliver is the number of attempts before a signal is dead-lettered.
func NATSMaxDeliver() int {
	return intOr("NATS_MAX_DELIVER", 5)
}

// CatalogDir holds per-project <project_id>.yaml catalogs. Empty means the
// built-in catalog serves every project.
func CatalogDir() string {
	return os.Getenv("CATALOG_DIR")
}

func CatalogCacheSize() int {
	return intOr("CATALOG_CACHE_SIZE", 256)
}

func stringOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func durationOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
