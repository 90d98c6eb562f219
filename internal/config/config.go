package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DevJWTSecret is only acceptable outside production.
const DevJWTSecret = "calcapi-dev-secret-change-me"

// Config holds the application configuration.
type Config struct {
	ServerPort     int
	DatabasePath   string
	DatabaseLog    bool
	AppEnv         string
	LogLevel       string
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	BcryptCost     int
	CORSOrigins    []string
	AuthRateLimit  string // e.g. "20-M"; empty disables
	MetricsEnabled bool
	StatsSchedule  string // cron schedule for the stat updater; empty disables
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load loads configuration from environment variables (and an optional
// CONFIG_FILE) or sets defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	// AUTH_RATE_LIMIT= and STATS_SCHEDULE= switch features off.
	v.AllowEmptyEnv(true)
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", p, err)
		}
	}
	setDefaults(v)

	cfg := &Config{
		ServerPort:     v.GetInt("PORT"),
		DatabasePath:   v.GetString("DATABASE_PATH"),
		DatabaseLog:    v.GetBool("DB_LOG"),
		AppEnv:         v.GetString("APP_ENV"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		JWTSecret:      v.GetString("JWT_SECRET_KEY"),
		JWTIssuer:      v.GetString("JWT_ISSUER"),
		AccessTokenTTL: time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		BcryptCost:     v.GetInt("BCRYPT_COST"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		AuthRateLimit:  v.GetString("AUTH_RATE_LIMIT"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		StatsSchedule:  v.GetString("STATS_SCHEDULE"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8000)
	v.SetDefault("DATABASE_PATH", "./calcapi.db")
	v.SetDefault("DB_LOG", false)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET_KEY", DevJWTSecret)
	v.SetDefault("JWT_ISSUER", "calcapi")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("AUTH_RATE_LIMIT", "20-M")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("STATS_SCHEDULE", "@every 1m")
}

func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid PORT %d", c.ServerPort)
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		return errors.New("JWT_SECRET_KEY must be set in production")
	}
	return nil
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
