package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Bootstrap BootstrapConfig
	RateLimit RateLimitConfig
}

// BootstrapConfig seeds the one-time platform configuration on startup when
// enabled. Initialization still fails if the platform row already exists.
type BootstrapConfig struct {
	EnsurePlatform  bool
	Authority       string
	Currency        string
	FeeBasisPoints  uint16
	MinPricePerUnit uint64
}

// RateLimitConfig guards the pay/settle endpoints. Disabled unless a redis
// address is configured.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	ConsumerRate  float64
	ConsumerBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "paychunk"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paychunk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		Bootstrap: BootstrapConfig{
			EnsurePlatform:  getenvBool("BOOTSTRAP_PLATFORM", false),
			Authority:       strings.TrimSpace(getenv("PLATFORM_AUTHORITY", "")),
			Currency:        getenv("PLATFORM_CURRENCY", "usdc"),
			FeeBasisPoints:  uint16(getenvInt("PLATFORM_FEE_BPS", 250)),
			MinPricePerUnit: uint64(getenvInt("PLATFORM_MIN_PRICE", 1000)),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     strings.TrimSpace(getenv("RATELIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATELIMIT_REDIS_PASSWORD", ""),
			ConsumerRate:  getenvFloat("RATELIMIT_CONSUMER_RATE", 25),
			ConsumerBurst: getenvInt("RATELIMIT_CONSUMER_BURST", 50),
		},
	}
	cfg.RateLimit.Enabled = getenvBool("RATELIMIT_ENABLED", cfg.RateLimit.RedisAddr != "")

	return cfg
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
