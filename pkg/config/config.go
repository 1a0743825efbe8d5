package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mojzu/mz/pkg/errx"
)

var configErrors = errx.NewRegistry("CONFIG")

var ErrInvalid = configErrors.Register("INVALID", errx.TypeValidation, 0, "Invalid configuration")

// Config is the process configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Notifx   NotifxConfig
	Jobx     JobxConfig
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	Migrate      bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token lifetimes and password policy switches.
type AuthConfig struct {
	// TokenExpires bounds reset-password and revoke tokens.
	TokenExpires        time.Duration
	AccessTokenExpires  time.Duration
	RefreshTokenExpires time.Duration

	PasswordPwnedEnabled bool
	PwnedURL             string
	PwnedTimeout         time.Duration
	PwnedCacheSize       int
	PwnedCacheTTL        time.Duration

	// CsrfStore is one of postgres, redis or memory.
	CsrfStore         string
	CsrfSweepSchedule string
}

type NotifxConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	AWSRegion   string
}

type JobxConfig struct {
	Queue        string
	Concurrency  int
	MaxAttempts  int
	PollTimeout  time.Duration
	RetryBackoff time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory, when present, seeds variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, configErrors.NewWithCause(ErrInvalid, err).WithDetail("file", ".env")
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			Migrate:      getEnvBool("DATABASE_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenExpires:         getEnvDuration("TOKEN_EXPIRES", time.Hour),
			AccessTokenExpires:   getEnvDuration("ACCESS_TOKEN_EXPIRES", time.Hour),
			RefreshTokenExpires:  getEnvDuration("REFRESH_TOKEN_EXPIRES", 24*time.Hour),
			PasswordPwnedEnabled: getEnvBool("PASSWORD_PWNED_ENABLED", false),
			PwnedURL:             getEnv("PWNED_URL", "https://api.pwnedpasswords.com/range"),
			PwnedTimeout:         getEnvDuration("PWNED_TIMEOUT", 5*time.Second),
			PwnedCacheSize:       getEnvInt("PWNED_CACHE_SIZE", 1024),
			PwnedCacheTTL:        getEnvDuration("PWNED_CACHE_TTL", time.Hour),
			CsrfStore:            getEnv("CSRF_STORE", "postgres"),
			CsrfSweepSchedule:    getEnv("CSRF_SWEEP_SCHEDULE", "@every 5m"),
		},
		Notifx: NotifxConfig{
			Provider:    getEnv("NOTIFX_PROVIDER", "console"),
			FromAddress: getEnv("NOTIFX_FROM_ADDRESS", getEnv("EMAIL_FROM_ADDRESS", "noreply@localhost")),
			FromName:    getEnv("NOTIFX_FROM_NAME", "mz"),
			AWSRegion:   getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
		},
		Jobx: JobxConfig{
			Queue:        getEnv("JOBX_QUEUE", "notify"),
			Concurrency:  getEnvInt("JOBX_CONCURRENCY", 2),
			MaxAttempts:  getEnvInt("JOBX_MAX_ATTEMPTS", 3),
			PollTimeout:  getEnvDuration("JOBX_POLL_TIMEOUT", 5*time.Second),
			RetryBackoff: getEnvDuration("JOBX_RETRY_BACKOFF", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var problems []string

	switch c.Auth.CsrfStore {
	case "postgres", "redis", "memory":
	default:
		problems = append(problems, fmt.Sprintf("CSRF_STORE %q is not postgres, redis or memory", c.Auth.CsrfStore))
	}
	if c.Auth.CsrfStore == "postgres" && c.Database.URL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.Auth.AccessTokenExpires <= 0 || c.Auth.RefreshTokenExpires <= 0 || c.Auth.TokenExpires <= 0 {
		problems = append(problems, "token lifetimes must be positive")
	}
	switch c.Notifx.Provider {
	case "console", "ses":
	default:
		problems = append(problems, fmt.Sprintf("NOTIFX_PROVIDER %q is not console or ses", c.Notifx.Provider))
	}

	if len(problems) > 0 {
		return configErrors.New(ErrInvalid).WithDetail("problems", problems)
	}
	return nil
}
