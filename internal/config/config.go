package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Auth      AuthConfig
	Redis     RedisConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

type ObservabilityConfig struct {
	LogLevel           string
	LogFormat          string
	SlowQueryThreshold time.Duration

	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64
}

type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type StorageConfig struct {
	Driver    string
	UploadDir string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	S3Prefix       string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	AdminPerMinute    int
	Window            time.Duration
}

type BootstrapConfig struct {
	EnsureAdmin   bool
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "sekarnet"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Observability: ObservabilityConfig{
			LogLevel:           strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:          strings.ToLower(getenv("LOG_FORMAT", "json")),
			SlowQueryThreshold: getenvDuration("DATABASE_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
			OtelEnabled:        getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:       getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OtelProtocol:       strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			OtelSamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "sekar_net"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "sekarnet.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Auth: AuthConfig{
			JWTSecret:       strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			Issuer:          getenv("AUTH_JWT_ISSUER", "sekarnet"),
			AccessTokenTTL:  getenvDuration("AUTH_ACCESS_TOKEN_TTL", 30*time.Minute),
			RefreshTokenTTL: getenvDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(getenv("STORAGE_DRIVER", StorageDriverLocal)),
			UploadDir:      getenv("UPLOAD_DIR", "uploads"),
			S3Bucket:       strings.TrimSpace(getenv("S3_BUCKET", "")),
			S3Region:       getenv("S3_REGION", "ap-southeast-1"),
			S3Endpoint:     strings.TrimSpace(getenv("S3_ENDPOINT", "")),
			S3AccessKey:    strings.TrimSpace(getenv("S3_ACCESS_KEY", "")),
			S3SecretKey:    strings.TrimSpace(getenv("S3_SECRET_KEY", "")),
			S3UsePathStyle: getenvBool("S3_USE_PATH_STYLE", false),
			S3Prefix:       strings.Trim(getenv("S3_PREFIX", "payment-proofs"), "/"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getenvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: int(getenvInt64("RATE_LIMIT_PER_MINUTE", 60)),
			AdminPerMinute:    int(getenvInt64("RATE_LIMIT_ADMIN_PER_MINUTE", 300)),
			Window:            getenvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Bootstrap: BootstrapConfig{
			EnsureAdmin:   getenvBool("BOOTSTRAP_ENSURE_ADMIN", environment != "production"),
			AdminUsername: getenv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
			AdminEmail:    getenv("BOOTSTRAP_ADMIN_EMAIL", "admin@sekarnet.id"),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
