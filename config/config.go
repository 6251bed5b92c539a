package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Cache    CacheConfig
	Sync     SyncConfig
	Admin    AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL         string // if set, used as-is
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis;
// the local cache, outbox and event bus then run in memory.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PingAttempts int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the S3 bucket per content domain.
type AWSConfig struct {
	Region                string
	AccessKeyID           string
	SecretAccessKey       string
	Endpoint              string // optional, e.g. a MinIO endpoint
	MembershipFormsBucket string
	MembersBucket         string
	ArticlesBucket        string
	TherapyProgramsBucket string
	CoursesBucket         string
	EventsBucket          string
	PublicBaseURL         string // overrides the derived public object URL when set
}

// CacheConfig holds local cache settings.
type CacheConfig struct {
	KeyPrefix string
}

// SyncConfig holds reconciliation and outbox settings.
type SyncConfig struct {
	CooldownSec      int
	StartupSync      bool
	StartupStaggerMs int
	OutboxMaxRetries int
	OutboxBackoffSec int
	OutboxPollSec    int
	// DrainInServer runs the outbox drainer inside cmd/server as well as cmd/worker.
	DrainInServer    bool
}

// AdminConfig seeds the first dashboard account.
type AdminConfig struct {
	Email    string
	Password string
	Name     string
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

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "association"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PingAttempts: getEnvInt("REDIS_PING_ATTEMPTS", 3),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:                getEnv("AWS_REGION", ""),
			AccessKeyID:           getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:       getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:              getEnv("AWS_S3_ENDPOINT", ""),
			MembershipFormsBucket: getEnv("AWS_S3_MEMBERSHIP_FORMS_BUCKET", "membership-forms"),
			MembersBucket:         getEnv("AWS_S3_MEMBERS_BUCKET", "members"),
			ArticlesBucket:        getEnv("AWS_S3_ARTICLES_BUCKET", "articles"),
			TherapyProgramsBucket: getEnv("AWS_S3_THERAPY_PROGRAMS_BUCKET", "therapy-programs"),
			CoursesBucket:         getEnv("AWS_S3_COURSES_BUCKET", "courses"),
			EventsBucket:          getEnv("AWS_S3_EVENTS_BUCKET", "events"),
			PublicBaseURL:         getEnv("AWS_S3_PUBLIC_BASE_URL", ""),
		},
		Cache: CacheConfig{
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "site:"),
		},
		Sync: SyncConfig{
			CooldownSec:      getEnvInt("SYNC_COOLDOWN_SEC", 30),
			StartupSync:      getEnvBool("SYNC_ON_STARTUP", true),
			StartupStaggerMs: getEnvInt("SYNC_STARTUP_STAGGER_MS", 150),
			OutboxMaxRetries: getEnvInt("OUTBOX_MAX_RETRIES", 3),
			OutboxBackoffSec: getEnvInt("OUTBOX_BACKOFF_SEC", 10),
			OutboxPollSec:    getEnvInt("OUTBOX_POLL_SEC", 5),
			DrainInServer:    getEnvBool("OUTBOX_DRAIN_IN_SERVER", true),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Name:     getEnv("ADMIN_NAME", "Administrator"),
		},
	}
	if cfg.Admin.Email != "" && len(cfg.Admin.Password) < 8 {
		return nil, fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters when ADMIN_EMAIL is set")
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
