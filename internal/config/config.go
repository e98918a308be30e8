// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"donasi/internal/models"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBSlowQueryMS  int    `mapstructure:"DB_SLOW_QUERY_MS"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`

	WebhookSecret             string `mapstructure:"WEBHOOK_SECRET"`
	ReauthWindowMinutes       int    `mapstructure:"REAUTH_WINDOW_MINUTES"`
	ApprovalRequiredApprovers string `mapstructure:"APPROVAL_REQUIRED_APPROVERS"`
	LeaderboardTiersFile      string `mapstructure:"LEADERBOARD_TIERS_FILE"`
	CacheTTLSeconds           int    `mapstructure:"CACHE_TTL_SECONDS"`

	EventsBackend string `mapstructure:"EVENTS_BACKEND"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic    string `mapstructure:"KAFKA_TOPIC"`

	DocumentBucket string `mapstructure:"DOCUMENT_BUCKET"`
	AWSRegion      string `mapstructure:"AWS_REGION"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingEndpoint string `mapstructure:"TRACING_ENDPOINT"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`

	DevBootstrapRoot bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootEmail     string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword  string `mapstructure:"DEV_ROOT_PASSWORD"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars may carry everything.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("Loaded profile-specific configuration", slog.String("file", "config."+env+".yml"))
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "donasi")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_SLOW_QUERY_MS", 200)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("WEBHOOK_SECRET", "")
	viper.SetDefault("REAUTH_WINDOW_MINUTES", 5)
	viper.SetDefault("APPROVAL_REQUIRED_APPROVERS", "")
	viper.SetDefault("LEADERBOARD_TIERS_FILE", "")
	viper.SetDefault("CACHE_TTL_SECONDS", 60)
	viper.SetDefault("EVENTS_BACKEND", "redis")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "donasi.approvals")
	viper.SetDefault("DOCUMENT_BUCKET", "")
	viper.SetDefault("AWS_REGION", "ap-southeast-1")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_EXPORTER", "otlp")
	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)
	viper.SetDefault("DEV_ROOT_EMAIL", "root@donasi.local")
	viper.SetDefault("DEV_ROOT_PASSWORD", "")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.EventsBackend = strings.ToLower(strings.TrimSpace(config.EventsBackend))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ReauthWindowMinutes <= 0 {
		return errors.New("REAUTH_WINDOW_MINUTES must be positive")
	}
	switch c.EventsBackend {
	case "", "none", "redis", "kafka":
	default:
		return fmt.Errorf("EVENTS_BACKEND %q is not one of redis, kafka, none", c.EventsBackend)
	}
	if c.EventsBackend == "kafka" && len(c.KafkaBrokerList()) == 0 {
		return errors.New("KAFKA_BROKERS is required when EVENTS_BACKEND=kafka")
	}
	if _, err := c.RequiredApprovers(); err != nil {
		return err
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.WebhookSecret == "" {
			return errors.New("WEBHOOK_SECRET is required in production")
		}
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// ReauthWindow is how old a re-authentication may be for sensitive decisions.
func (c *Config) ReauthWindow() time.Duration {
	return time.Duration(c.ReauthWindowMinutes) * time.Minute
}

// CacheTTL is the lifetime of cached report responses.
func (c *Config) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// KafkaBrokerList splits KAFKA_BROKERS on commas.
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// RequiredApprovers parses APPROVAL_REQUIRED_APPROVERS, a comma separated list
// of ACTION_TYPE=count pairs. Action types not listed need one approver.
func (c *Config) RequiredApprovers() (map[models.ActionType]int, error) {
	out := make(map[models.ActionType]int)
	for _, pair := range splitList(c.ApprovalRequiredApprovers) {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("APPROVAL_REQUIRED_APPROVERS entry %q must be ACTION=count", pair)
		}
		action := models.ActionType(strings.ToUpper(strings.TrimSpace(name)))
		if !action.Valid() {
			return nil, fmt.Errorf("APPROVAL_REQUIRED_APPROVERS: unknown action type %q", name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("APPROVAL_REQUIRED_APPROVERS: %s count must be a positive integer", action)
		}
		out[action] = n
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
