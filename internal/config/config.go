package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds everything the api and worker binaries read from the environment.
type Config struct {
	ServiceName string
	AppEnv      string
	LogLevel    string

	RunLocal bool
	HTTPAddr string

	OrdersTable      string
	ProductsTable    string
	IdempotencyTable string
	QueueURL         string

	// PaymentSecret is the gateway key secret used to verify callback signatures.
	PaymentSecret string

	IdempotencyTTL time.Duration
	TxTimeout      time.Duration

	LowStockNamespace string
}

// ErrMissingSecret is returned by Validate when no gateway secret is configured.
var ErrMissingSecret = errors.New("config: RAZORPAY_KEY_SECRET is required")

func Load() Config {
	return Config{
		ServiceName:       getEnv("SERVICE_NAME", "paid-orderflow"),
		AppEnv:            getEnv("APP_ENV", "dev"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RunLocal:          getEnvBool("RUN_LOCAL", false),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		OrdersTable:       getEnv("ORDERS_TABLE", "orders"),
		ProductsTable:     getEnv("PRODUCTS_TABLE", "products"),
		IdempotencyTable:  getEnv("IDEMPOTENCY_TABLE", "idempotency"),
		QueueURL:          os.Getenv("ORDERS_QUEUE_URL"),
		PaymentSecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		IdempotencyTTL:    getEnvDuration("IDEMPOTENCY_TTL", 7*24*time.Hour),
		TxTimeout:         getEnvDuration("TX_TIMEOUT", 10*time.Second),
		LowStockNamespace: getEnv("LOW_STOCK_NAMESPACE", "PaidOrderflow/Inventory"),
	}
}

// Validate reports configuration the api cannot run without.
func (c Config) Validate() error {
	if c.PaymentSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
