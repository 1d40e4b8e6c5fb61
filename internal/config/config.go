package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
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
	DBConnMaxIdleTime int

	// Identity provider (Keycloak-compatible realm issuer).
	IssuerURL string
	// Audience expected in software statements: this service's own
	// provider URL as registered with the marketplace.
	ProviderURL string

	// Confidential resource-server client used for token introspection.
	ResourceClientID     string
	ResourceClientSecret string
	RequiredScope        string

	// Dynamic client registration.
	DCREnabled                bool
	InitialAccessToken        string
	StaticCredentials         bool
	ValidateStaticCredentials bool

	// AuthDisabled bypasses introspection and installs a fixed synthetic
	// principal. Development only.
	AuthDisabled bool

	// Base64-encoded 32-byte key for encrypting stored client secrets.
	EncryptionKey string

	// Marketplace procurement partner API. Empty disables approval calls.
	PartnerAPIBaseURL string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	return Config{
		AppName:     getenv("APP_SERVICE", "tenantgate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tenantgate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 0),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 0),

		IssuerURL:   strings.TrimRight(strings.TrimSpace(getenv("ISSUER_URL", "")), "/"),
		ProviderURL: strings.TrimSpace(getenv("PROVIDER_URL", "")),

		ResourceClientID:     strings.TrimSpace(getenv("RESOURCE_CLIENT_ID", "")),
		ResourceClientSecret: strings.TrimSpace(getenv("RESOURCE_CLIENT_SECRET", "")),
		RequiredScope:        getenv("REQUIRED_SCOPE", "agent:use"),

		DCREnabled:                getenvBool("DCR_ENABLED", true),
		InitialAccessToken:        strings.TrimSpace(getenv("DCR_INITIAL_ACCESS_TOKEN", "")),
		StaticCredentials:         getenvBool("DCR_STATIC_CREDENTIALS", false),
		ValidateStaticCredentials: getenvBool("DCR_VALIDATE_STATIC_CREDENTIALS", true),

		AuthDisabled: getenvBool("AUTH_DISABLED", false),

		EncryptionKey: strings.TrimSpace(getenv("SECRETS_ENCRYPTION_KEY", "")),

		PartnerAPIBaseURL: strings.TrimSpace(getenv("PARTNER_API_BASE_URL", "")),
	}
}

// JWKSURL returns the realm certs endpoint used to verify software statements.
func (c Config) JWKSURL() string {
	if c.IssuerURL == "" {
		return ""
	}
	return c.IssuerURL + "/protocol/openid-connect/certs"
}

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
