package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config agrupa as configurações do serviço lidas do ambiente
type Config struct {
	Port          string
	ServiceName   string
	OTLPEndpoint  string
	RunMigrations bool

	DatabaseUser     string
	DatabasePassword string
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string

	RedisAddr string

	PaymentAPIURL           string
	PaymentSecretKey        string
	PaymentWebhookSecret    string
	PaymentWebhookTolerance time.Duration
	PaymentSignatureHeader  string
	PaymentTimeout          time.Duration
	Currency                string

	Pricing PricingPolicy

	BuyerCookieName string
	BuyerCookieTTL  time.Duration
	AuthUserHeader  string
}

// LoadConfig lê a configuração das variáveis de ambiente
func LoadConfig() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		ServiceName:   getEnv("SERVICE_NAME", "storefront-service"),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", true),

		DatabaseUser:     getEnv("DATABASE_USER", "root"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", "pass"),
		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseName:     getEnv("DATABASE_NAME", "storefront_db"),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		PaymentAPIURL:           getEnv("PAYMENT_API_URL", "https://api.stripe.com"),
		PaymentSecretKey:        getEnv("PAYMENT_SECRET_KEY", ""),
		PaymentWebhookSecret:    getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentWebhookTolerance: getEnvDuration("PAYMENT_WEBHOOK_TOLERANCE", 5*time.Minute),
		PaymentSignatureHeader:  getEnv("PAYMENT_SIGNATURE_HEADER", "Stripe-Signature"),
		PaymentTimeout:          getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second),
		Currency:                getEnv("CURRENCY", "usd"),

		Pricing: PricingPolicy{
			FreeShippingThreshold: getEnvInt64("FREE_SHIPPING_THRESHOLD", 10000),
			DeliveryFee:           getEnvInt64("DELIVERY_FEE", 500),
		},

		BuyerCookieName: getEnv("BUYER_COOKIE_NAME", "buyerId"),
		BuyerCookieTTL:  getEnvDuration("BUYER_COOKIE_TTL", 30*24*time.Hour),
		AuthUserHeader:  getEnv("AUTH_USER_HEADER", "X-User-Name"),
	}
}

// DatabaseURL monta a URL de conexão no formato aceito por pgx e lib/pq
func (c Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using default %d", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using default %s", key, raw, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using default %t", key, raw, defaultValue)
		return defaultValue
	}
	return value
}
