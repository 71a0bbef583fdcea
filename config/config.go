package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Inventory ledger backend: "memory" or "redis"
	LedgerBackend string

	// Reservation configuration
	HoldTTL       time.Duration
	SweepInterval time.Duration
	HoldRetention time.Duration
	MaxHoldQty    int64

	// Payment configuration
	PaymentProvider   string
	PaymentGatewayURL string
	PaymentGatewayKey string
	PaymentTimeout    time.Duration
	PaymentCurrency   string

	// Rate limiting
	CheckoutRateLimit  int64
	CheckoutRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Ledger
		LedgerBackend: getEnv("LEDGER_BACKEND", "memory"),

		// Reservations
		HoldTTL:       getEnvAsDuration("HOLD_TTL", "5m"),
		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", "15s"),
		HoldRetention: getEnvAsDuration("HOLD_RETENTION", "1h"),
		MaxHoldQty:    int64(getEnvAsInt("MAX_HOLD_QTY", 10)),

		// Payments
		PaymentProvider:   getEnv("PAYMENT_PROVIDER", "sandbox"),
		PaymentGatewayURL: getEnv("PAYMENT_GATEWAY_URL", ""),
		PaymentGatewayKey: getEnv("PAYMENT_GATEWAY_KEY", ""),
		PaymentTimeout:    getEnvAsDuration("PAYMENT_TIMEOUT", "10s"),
		PaymentCurrency:   getEnv("PAYMENT_CURRENCY", "GHS"),

		// Rate limiting
		CheckoutRateLimit:  int64(getEnvAsInt("CHECKOUT_RATE_LIMIT", 20)),
		CheckoutRateWindow: getEnvAsDuration("CHECKOUT_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
