package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                 string
	ServiceName         string
	HTTPAddr            string
	StorageDriver       string
	DatabaseURL         string
	JWTSecret           string
	VoidPINHash         string
	RabbitMQURL         string
	RabbitMQWorkerMode  string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int64
	TrackingCacheTTL    time.Duration
	CorsAllowedOrigins  []string
	WSHeartbeatInterval time.Duration

	PaymentProvider        string
	PaymentCurrency        string
	PaymentProviderTimeout time.Duration
	RazorpayKeyID          string
	RazorpayKeySecret      string
	StripeSecretKey        string
	StripePublishableKey   string

	RestaurantName     string
	RestaurantTimezone string

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
}

func Load() Config {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		ServiceName:         getEnv("SERVICE_NAME", "restaurant-tab-service"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:       strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		VoidPINHash:         getEnv("VOID_PIN_HASH", ""),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:  getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt64("REDIS_DB", 0),
		TrackingCacheTTL:    getEnvDuration("TRACKING_CACHE_TTL", 30*time.Second),
		CorsAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		PaymentProvider:        strings.ToLower(getEnv("PAYMENT_PROVIDER", "razorpay")),
		PaymentCurrency:        strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),
		PaymentProviderTimeout: getEnvDuration("PAYMENT_PROVIDER_TIMEOUT", 10*time.Second),
		RazorpayKeyID:          getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:      getEnv("RAZORPAY_KEY_SECRET", ""),
		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		StripePublishableKey:   getEnv("STRIPE_PUBLISHABLE_KEY", ""),

		RestaurantName:     getEnv("RESTAURANT_NAME", "Restaurant"),
		RestaurantTimezone: getEnv("RESTAURANT_TIMEZONE", "Asia/Kolkata"),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL", "R2_PUBLIC_BASE_URL"}, ""),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
	}

	if cfg.PaymentProviderTimeout <= 0 {
		cfg.PaymentProviderTimeout = 10 * time.Second
	}
	if cfg.StorageDriver != "memory" {
		cfg.StorageDriver = "postgres"
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
