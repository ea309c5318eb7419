// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Scan360AI/rnd-credit-manager/internal/costs"
	"github.com/Scan360AI/rnd-credit-manager/internal/ratelimit"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Rates    RatesConfig
	AI       AIConfig
	Redis    RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds the connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	RawDSN     string
	SQLitePath string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev           bool
	Migrations    bool
	Seed          bool
	DefaultTenant string
}

// RatesConfig holds the statutory on-cost rates and the default sector.
type RatesConfig struct {
	INPS   float64
	INAIL  float64
	TFR    float64
	Other  float64
	Sector string
}

// AIConfig holds the document-extraction API settings.
type AIConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	Endpoint    string
	MinInterval time.Duration
	PerMinute   int
	PerDay      int
}

// RedisConfig holds the report cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
}

// DSN returns the PostgreSQL connection string in key=value format. RawDSN wins when set.
func (d DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (d DatabaseConfig) IsSQLite() bool { return d.Driver == "sqlite" }

// CostRates converts the configured rates.
func (r RatesConfig) CostRates() costs.Rates {
	return costs.Rates{INPS: r.INPS, INAIL: r.INAIL, TFR: r.TFR, Other: r.Other}
}

// Limits converts the AI settings into limiter settings.
func (a AIConfig) Limits() ratelimit.Config {
	return ratelimit.Config{MinInterval: a.MinInterval, PerMinute: a.PerMinute, PerDay: a.PerDay}
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	def := costs.DefaultRates()
	apiKey := getEnv("GEMINI_API_KEY", "")
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 120),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "rnd"),
			Password:   getEnv("DB_PASSWORD", "rnd123"),
			DBName:     getEnv("DB_NAME", "rnd_credit"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			RawDSN:     getEnv("DATABASE_DSN", ""),
			SQLitePath: getEnv("SQLITE_PATH", "rnd_credit.db"),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", true),
			Migrations:    getEnvBool("MIGRATIONS", false),
			Seed:          getEnvBool("DB_SEED", true),
			DefaultTenant: getEnv("DEFAULT_TENANT", "default"),
		},
		Rates: RatesConfig{
			INPS:   getEnvFloat("RATE_INPS", def.INPS),
			INAIL:  getEnvFloat("RATE_INAIL", def.INAIL),
			TFR:    getEnvFloat("RATE_TFR", def.TFR),
			Other:  getEnvFloat("RATE_OTHER", def.Other),
			Sector: getEnv("DEFAULT_SECTOR", ""),
		},
		AI: AIConfig{
			Enabled:     getEnvBool("AI_ENABLED", apiKey != ""),
			APIKey:      apiKey,
			Model:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Endpoint:    getEnv("GEMINI_ENDPOINT", ""),
			MinInterval: getEnvDuration("AI_MIN_INTERVAL", ratelimit.DefaultMinInterval),
			PerMinute:   getEnvInt("AI_PER_MINUTE", ratelimit.DefaultPerMinute),
			PerDay:      getEnvInt("AI_PER_DAY", ratelimit.DefaultPerDay),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REPORT_CACHE_TTL", 10*time.Minute),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("4.5s") or a plain number of milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
