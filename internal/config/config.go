package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds every runtime setting for the service. It is built once at
// startup and injected; nothing reads the environment after Load returns.
type Config struct {
	Environment string
	HTTPAddr    string

	DatabaseDSN     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnMaxAge    time.Duration
	DBRetryAttempts int

	VippsAPIBaseURL          string
	VippsClientID            string
	VippsClientSecret        string
	VippsSubscriptionKey     string
	VippsMerchantSerial      string
	VippsCallbackPrefix      string
	VippsFallbackURL         string
	PayPalAPIBaseURL         string
	PayPalClientID           string
	PayPalClientSecret       string
	TokenRefreshWindow       time.Duration
	ReceiptDispatchInterval  time.Duration
	ReceiptDispatchBatchSize int

	TracingEnabled       bool
	TracingEndpoint      string
	TracingProtocol      string
	TracingSamplingRatio float64
}

// IsProduction reports whether the service runs against live providers.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from the environment, with an optional .env file
// for local development.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("EFFEKT_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":3000"),

		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		DBMaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxAge:    getEnvDuration("DB_CONN_MAX_AGE", 30*time.Minute),
		DBRetryAttempts: getEnvInt("DB_RETRY_ATTEMPTS", 3),

		VippsAPIBaseURL:      getEnv("VIPPS_API_BASE_URL", "https://apitest.vipps.no"),
		VippsClientID:        os.Getenv("VIPPS_CLIENT_ID"),
		VippsClientSecret:    os.Getenv("VIPPS_CLIENT_SECRET"),
		VippsSubscriptionKey: os.Getenv("VIPPS_OCP_APIM_SUBSCRIPTION_KEY"),
		VippsMerchantSerial:  os.Getenv("VIPPS_MERCHANT_SERIAL_NUMBER"),
		VippsCallbackPrefix:  getEnv("VIPPS_CALLBACK_PREFIX", "https://data.gieffektivt.no/vipps/"),
		VippsFallbackURL:     getEnv("VIPPS_FALLBACK_URL", "https://gieffektivt.no/vipps-fallback"),
		PayPalAPIBaseURL:     getEnv("PAYPAL_API_BASE_URL", "https://api.sandbox.paypal.com"),
		PayPalClientID:       os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:   os.Getenv("PAYPAL_CLIENT_SECRET"),

		TokenRefreshWindow:       getEnvDuration("PROVIDER_TOKEN_REFRESH_WINDOW", 10*time.Minute),
		ReceiptDispatchInterval:  getEnvDuration("RECEIPT_DISPATCH_INTERVAL", 5*time.Second),
		ReceiptDispatchBatchSize: getEnvInt("RECEIPT_DISPATCH_BATCH_SIZE", 50),

		TracingEnabled:       getEnvBool("TRACING_ENABLED", false),
		TracingEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TracingProtocol:      getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		TracingSamplingRatio: getEnvFloat("TRACING_SAMPLING_RATIO", 0.1),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
