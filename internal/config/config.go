package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort       string
	AppEnv        string
	PublicBaseURL string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SessionSecret      string
	SessionTTL         time.Duration
	SessionRememberTTL time.Duration

	OTPTTL           time.Duration
	OTPSweepInterval time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPFromName string
	SMTPUsername string
	SMTPPassword string

	Providers map[string]ProviderCredentials

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64  // 0 disables the limiter
	RateLimitBurst int

	OTLPEndpoint string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users string
	OTPs  string
}

// ProviderCredentials is one OAuth client id/secret pair.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "3000"),
		AppEnv:        getEnv("APP_ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users: getEnv("DYNAMO_TABLE_USERS", "users"),
			OTPs:  getEnv("DYNAMO_TABLE_OTPS", "otps"),
		},

		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionRememberTTL: getEnvDuration("SESSION_REMEMBER_TTL", 30*24*time.Hour),

		OTPTTL:           getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPSweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", 15*time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "OTP VERIFICATION"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		Providers: map[string]ProviderCredentials{},

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	// A provider is enabled only when both halves of its credentials are present.
	for name, prefix := range map[string]string{"github": "GITHUB", "google": "GOOGLE"} {
		id, secret := getEnv(prefix+"_ID", ""), getEnv(prefix+"_SECRET", "")
		if id != "" && secret != "" {
			cfg.Providers[name] = ProviderCredentials{ClientID: id, ClientSecret: secret}
		}
	}
	return cfg
}

// Validate reports configuration that would prevent the service from working.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.SessionTTL <= 0 || c.SessionRememberTTL <= 0 {
		return errors.New("session lifetimes must be positive")
	}
	return nil
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
