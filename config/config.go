package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Supabase  SupabaseConfig
	Storage   StorageConfig
	Stripe    StripeConfig
	OpenAI    OpenAIConfig
	Sentry    SentryConfig
	RateLimit RateLimitConfig
	Upload    UploadConfig
	Worker    WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PublicBaseURL      string // frontend origin used for share links and Stripe redirects
	Environment        string // development, staging, production
}

// DatabaseConfig holds PostgreSQL (Supabase) connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis-backed features.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SupabaseConfig holds the project settings used to verify sessions.
type SupabaseConfig struct {
	URL               string
	JWTSecret         string
	SessionCookieName string
}

// StorageConfig holds Supabase Storage S3-protocol settings.
type StorageConfig struct {
	Endpoint             string // e.g. https://<ref>.supabase.co/storage/v1/s3
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	PresignExpireMinutes int
}

// StripeConfig holds billing settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceIDPro    string
	PriceIDTeam   string
}

// OpenAIConfig holds summarization and embedding settings.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	EmbeddingModel  string
	MatchThreshold  float64
	MaxContentChars int
}

// SentryConfig holds error-tracking settings. Empty DSN disables Sentry.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
}

// RateLimitConfig holds fixed-window limiter settings.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Backend  string // "memory" or "redis"
}

// UploadConfig holds upload limits.
type UploadConfig struct {
	MaxBytes int64
}

// WorkerConfig controls the in-process document worker.
type WorkerConfig struct {
	InProcess   bool
	MetricsPort string // standalone worker only
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// IsProduction reports whether the server runs with production settings.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
			Environment:        getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Supabase: SupabaseConfig{
			URL:               getEnv("SUPABASE_URL", ""),
			JWTSecret:         getEnv("SUPABASE_JWT_SECRET", ""),
			SessionCookieName: getEnv("SUPABASE_SESSION_COOKIE", "sb-access-token"),
		},
		Storage: StorageConfig{
			Endpoint:             getEnv("STORAGE_S3_ENDPOINT", ""),
			Region:               getEnv("STORAGE_S3_REGION", "us-east-1"),
			AccessKeyID:          getEnv("STORAGE_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("STORAGE_S3_SECRET_ACCESS_KEY", ""),
			Bucket:               getEnv("STORAGE_BUCKET", "documents"),
			PresignExpireMinutes: getEnvInt("STORAGE_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceIDPro:    getEnv("STRIPE_PRICE_PRO", ""),
			PriceIDTeam:   getEnv("STRIPE_PRICE_TEAM", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			BaseURL:         getEnv("OPENAI_BASE_URL", ""),
			ChatModel:       getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel:  getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			MatchThreshold:  getEnvFloat("SEARCH_MATCH_THRESHOLD", 0.5),
			MaxContentChars: getEnvInt("OPENAI_MAX_CONTENT_CHARS", 12000),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			Environment:      getEnv("SENTRY_ENVIRONMENT", getEnv("ENVIRONMENT", "development")),
			Release:          getEnv("SENTRY_RELEASE", ""),
			TracesSampleRate: getEnvFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
			Backend:  getEnv("RATE_LIMIT_BACKEND", "memory"),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_MB", 10)) * 1024 * 1024,
		},
		Worker: WorkerConfig{
			InProcess:   getEnvBool("WORKER_IN_PROCESS", true),
			MetricsPort: getEnv("WORKER_METRICS_PORT", "9091"),
		},
	}
	if cfg.Supabase.JWTSecret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if cfg.RateLimit.Backend != "memory" && cfg.RateLimit.Backend != "redis" {
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", cfg.RateLimit.Backend)
	}
	return cfg, nil
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// SplitTrim splits s by sep and drops empty, whitespace-only parts.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
