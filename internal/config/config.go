package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Registry cache type constants
const (
	RegistryCacheTypeMemory = "memory"
	RegistryCacheTypeRedis  = "redis"
)

const defaultJWTSecret = "your-256-bit-secret-change-in-production"

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Token settings
	JWTSecret             string        // Signs access tokens minted for services
	SessionJWTSecret      string        // Verifies portal login credentials (defaults to JWTSecret)
	AccessTokenExpiration time.Duration // Access token lifetime (default: 1h)

	// Authorization request settings
	AuthRequestExpiration      time.Duration // PENDING request lifetime (default: 10m)
	AuthRequestRetention       time.Duration // How long terminal requests are kept (default: 24h)
	AuthRequestCleanupInterval time.Duration
	MandatoryScopes            []string // Scopes every grant must keep when requested

	// Service registry
	ServiceRegistryFile string // YAML file seeded into the database on startup

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string
	StoreTimeout   time.Duration // Upper bound for every storage call

	// Registry cache
	RegistryCacheType string // "memory" or "redis"
	RegistryCacheTTL  time.Duration

	// Redis (shared by rate limiting and the redis registry cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	RateLimitCleanupInterval time.Duration
	AuthorizeRateLimit       int // requests per minute per IP
	GrantRateLimit           int

	// Metrics
	MetricsEnabled bool
	MetricsToken   string // Bearer token protecting /metrics (empty = open)

	MetricsGaugeUpdateInterval time.Duration // How often pending-request and consent gauges are refreshed

	// Audit logging
	EnableAuditLogging bool
	AuditLogBufferSize int
	AuditLogRetention  time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogEnv   string // "dev" or "prod"
	LogLevel string

	// Timeouts
	DBInitTimeout         time.Duration
	DBCloseTimeout        time.Duration
	RedisConnTimeout      time.Duration
	CacheInitTimeout      time.Duration
	ServerShutdownTimeout time.Duration
	AuditShutdownTimeout  time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "agrigate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	jwtSecret := getEnv("JWT_SECRET", defaultJWTSecret)
	isProduction := getEnvBool("IS_PRODUCTION", false)

	logEnv := "dev"
	if isProduction {
		logEnv = "prod"
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: isProduction,

		JWTSecret:             jwtSecret,
		SessionJWTSecret:      getEnv("SESSION_JWT_SECRET", jwtSecret),
		AccessTokenExpiration: getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),

		AuthRequestExpiration:      getEnvDuration("AUTH_REQUEST_EXPIRATION", 10*time.Minute),
		AuthRequestRetention:       getEnvDuration("AUTH_REQUEST_RETENTION", 24*time.Hour),
		AuthRequestCleanupInterval: getEnvDuration("AUTH_REQUEST_CLEANUP_INTERVAL", 5*time.Minute),
		MandatoryScopes:            getEnvSlice("MANDATORY_SCOPES", []string{"profile"}),

		ServiceRegistryFile: getEnv("SERVICE_REGISTRY_FILE", ""),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		RegistryCacheType: getEnv("REGISTRY_CACHE_TYPE", RegistryCacheTypeMemory),
		RegistryCacheTTL:  getEnvDuration("REGISTRY_CACHE_TTL", 10*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		AuthorizeRateLimit:       getEnvInt("AUTHORIZE_RATE_LIMIT", 30),
		GrantRateLimit:           getEnvInt("GRANT_RATE_LIMIT", 20),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 30*time.Second),

		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),
		AuditLogRetention:  getEnvDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),

		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", nil),

		LogEnv:   getEnv("LOG_ENV", logEnv),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBInitTimeout:         getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DBCloseTimeout:        getEnvDuration("DB_CLOSE_TIMEOUT", 5*time.Second),
		RedisConnTimeout:      getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),
		CacheInitTimeout:      getEnvDuration("CACHE_INIT_TIMEOUT", 5*time.Second),
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		AuditShutdownTimeout:  getEnvDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate checks the loaded configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be %q or %q)",
			c.RateLimitStore, RateLimitStoreMemory, RateLimitStoreRedis,
		)
	}
	if c.EnableRateLimit && c.RateLimitStore == RateLimitStoreRedis && c.RedisAddr == "" {
		return errors.New(`RATE_LIMIT_STORE="redis" requires REDIS_ADDR`)
	}

	switch c.RegistryCacheType {
	case RegistryCacheTypeMemory:
	case RegistryCacheTypeRedis:
		if c.RedisAddr == "" {
			return errors.New(`REGISTRY_CACHE_TYPE="redis" requires REDIS_ADDR`)
		}
	default:
		return fmt.Errorf(
			"invalid REGISTRY_CACHE_TYPE value: %q (must be %q or %q)",
			c.RegistryCacheType, RegistryCacheTypeMemory, RegistryCacheTypeRedis,
		)
	}
	if c.RegistryCacheTTL <= 0 {
		return errors.New("REGISTRY_CACHE_TTL must be positive")
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.IsProduction && (c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32) {
		return errors.New("JWT_SECRET must be set to at least 32 characters in production")
	}
	if c.IsProduction && len(c.SessionJWTSecret) < 32 {
		return errors.New("SESSION_JWT_SECRET must be set to at least 32 characters in production")
	}
	if c.IsProduction && c.SessionJWTSecret == c.JWTSecret {
		return errors.New("SESSION_JWT_SECRET must differ from JWT_SECRET in production")
	}
	if c.AccessTokenExpiration <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRATION must be positive")
	}
	if c.AuthRequestExpiration <= 0 {
		return errors.New("AUTH_REQUEST_EXPIRATION must be positive")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
