package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	CORS        CORSConfig
	Log         LogConfig
	Attestation AttestationConfig
	Counter     CounterConfig
	Notifier    NotifierConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds the shared secret used to verify tokens minted by the
// external identity-verification service.
type AuthConfig struct {
	TokenSecret string
	Issuer      string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AttestationConfig tunes the submission pipeline.
type AttestationConfig struct {
	QuotaPerYear       int
	SuggestMaxDistance int
	SuggestCacheTTL    time.Duration
}

// CounterConfig tunes the reference allocator.
type CounterConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// NotifierConfig configures the best-effort notification dispatcher.
type NotifierConfig struct {
	Enabled    bool
	WebhookURL string
	Timeout    time.Duration
	Workers    int
	MaxRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		TokenSecret: v.GetString("AUTH_TOKEN_SECRET"),
		Issuer:      v.GetString("AUTH_TOKEN_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	quota := v.GetInt("ATTESTATION_QUOTA_PER_YEAR")
	if quota <= 0 {
		quota = 3
	}
	maxDistance := v.GetInt("ATTESTATION_SUGGEST_MAX_DISTANCE")
	if maxDistance <= 0 {
		maxDistance = 2
	}
	cfg.Attestation = AttestationConfig{
		QuotaPerYear:       quota,
		SuggestMaxDistance: maxDistance,
		SuggestCacheTTL:    parseDuration(v.GetString("ATTESTATION_SUGGEST_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Counter = CounterConfig{
		MaxRetries: v.GetInt("COUNTER_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("COUNTER_RETRY_DELAY"), 50*time.Millisecond),
	}

	cfg.Notifier = NotifierConfig{
		Enabled:    v.GetBool("NOTIFIER_ENABLED"),
		WebhookURL: v.GetString("NOTIFIER_WEBHOOK_URL"),
		Timeout:    parseDuration(v.GetString("NOTIFIER_TIMEOUT"), 5*time.Second),
		Workers:    v.GetInt("NOTIFIER_WORKERS"),
		MaxRetries: v.GetInt("NOTIFIER_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attestations")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_TOKEN_SECRET", "dev_secret")
	v.SetDefault("AUTH_TOKEN_ISSUER", "identity-service")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ATTESTATION_QUOTA_PER_YEAR", 3)
	v.SetDefault("ATTESTATION_SUGGEST_MAX_DISTANCE", 2)
	v.SetDefault("ATTESTATION_SUGGEST_CACHE_TTL", "15m")

	v.SetDefault("COUNTER_MAX_RETRIES", 3)
	v.SetDefault("COUNTER_RETRY_DELAY", "50ms")

	v.SetDefault("NOTIFIER_ENABLED", false)
	v.SetDefault("NOTIFIER_WEBHOOK_URL", "")
	v.SetDefault("NOTIFIER_TIMEOUT", "5s")
	v.SetDefault("NOTIFIER_WORKERS", 1)
	v.SetDefault("NOTIFIER_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
