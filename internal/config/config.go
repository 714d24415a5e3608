package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "ToyBank"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultTokenTTL         = 30 * 24 * time.Hour
	defaultOTPTTL           = 10 * time.Minute
	defaultLedgerTimeout    = 5 * time.Second
	defaultSchedulerEvery   = 30 * time.Second
	defaultLoginRateLimit   = 5
	developmentJWTSecret    = "development-secret"
	loginRateLimitEnvVar    = "LOGIN_RATE_LIMIT"
	jwtSecretEnvVar         = "JWT_SECRET"
	databaseURLEnvVar       = "DATABASE_URL"
	redisURLEnvVar          = "REDIS_URL"
	idempotencyTTLBaseName  = "IDEMPOTENCY_TTL"
	shutdownTimeoutBaseName = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName           string
	AppEnv            string
	Port              string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	JWTSecret         string
	TokenTTL          time.Duration
	OTPTTL            time.Duration
	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
	LedgerTimeout     time.Duration
	SchedulerInterval time.Duration
	LoginRateLimit    int
}

// Load reads a .env file when present, then populates a Config instance from
// the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:   getEnv("APP_NAME", defaultAppName),
		AppEnv:    getEnv("APP_ENV", defaultAppEnv),
		Port:      getEnv("PORT", defaultPort),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		JWTSecret: os.Getenv(jwtSecretEnvVar),

		DatabaseURL:    os.Getenv(databaseURLEnvVar),
		RedisURL:       os.Getenv(redisURLEnvVar),
		LoginRateLimit: defaultLoginRateLimit,
	}

	durations := []struct {
		base     string
		fallback time.Duration
		dst      *time.Duration
	}{
		{shutdownTimeoutBaseName, defaultShutdownDelay, &cfg.ShutdownPeriod},
		{idempotencyTTLBaseName, defaultIdempotencyTTL, &cfg.IdempotencyTTL},
		{"TOKEN_TTL", defaultTokenTTL, &cfg.TokenTTL},
		{"OTP_TTL", defaultOTPTTL, &cfg.OTPTTL},
		{"LEDGER_TIMEOUT", defaultLedgerTimeout, &cfg.LedgerTimeout},
		{"SCHEDULER_INTERVAL", defaultSchedulerEvery, &cfg.SchedulerInterval},
	}
	for _, d := range durations {
		v, err := getDuration(d.base, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	if v := os.Getenv(loginRateLimitEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", loginRateLimitEnvVar, err)
		}
		cfg.LoginRateLimit = n
	}

	if cfg.IsDevelopment() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = developmentJWTSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("%s must be set", databaseURLEnvVar)
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("%s must be set", redisURLEnvVar)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("%s must be set", jwtSecretEnvVar)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether in-memory fallbacks are allowed.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether cookies should be marked secure.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDuration reads BASE_SECONDS as whole seconds, falling back to BASE as a
// Go duration string.
func getDuration(base string, fallback time.Duration) (time.Duration, error) {
	secondsKey := base + "_SECONDS"
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(base); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", base, err)
		}
		return d, nil
	}
	return fallback, nil
}
