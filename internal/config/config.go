// Package config loads the runtime configuration from the environment.
//
// An optional .env file in the working directory (or the file named by
// ENV_FILE) is loaded first. Variables already set in the environment take
// precedence over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var (
	ErrAPIURLMissing   = errors.New("environment variable API_URL must be set")
	ErrInvalidFraction = errors.New("OVERCOMMIT_FRACTION must be a decimal between 0 and 1")
)

// Config is the complete runtime configuration.
type Config struct {
	APIURL      *url.URL
	Port        string
	GinMode     string
	LogFormat   string
	LogLevel    string
	EnablePprof bool
	CORSOrigins string

	Database Database
	Engine   Engine
	Notifier Notifier
}

// Database selects and configures the store.
//
// If Host is set, PostgreSQL is used. Otherwise an SQLite
// database at Path is opened.
type Database struct {
	Host        string
	User        string
	Password    string
	Name        string
	Port        string
	SSLMode     string
	Path        string
	LockTimeout time.Duration
}

// Engine holds the knobs of the allocation engine.
type Engine struct {
	OvercommitFraction decimal.Decimal
	AtRiskThreshold    decimal.Decimal
	DefaultCapacity    int
}

// Notifier configures the change notification transports.
type Notifier struct {
	Buffer           int
	RedisURL         string
	RedisChannel     string
	CapacityCacheTTL time.Duration
	AMQPURL          string
	AMQPExchange     string
}

// Load reads the configuration.
func Load() (Config, error) {
	envFile := getenv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	raw, ok := os.LookupEnv("API_URL")
	if !ok {
		return Config{}, ErrAPIURLMissing
	}

	apiURL, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parsing API_URL: %w", err)
	}

	fraction, err := decimal.NewFromString(getenv("OVERCOMMIT_FRACTION", "0.10"))
	if err != nil || fraction.IsNegative() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return Config{}, ErrInvalidFraction
	}

	threshold, err := decimal.NewFromString(getenv("AT_RISK_THRESHOLD", "90"))
	if err != nil {
		return Config{}, fmt.Errorf("parsing AT_RISK_THRESHOLD: %w", err)
	}

	defaultCapacity, err := strconv.Atoi(getenv("DEFAULT_SHOP_CAPACITY", "0"))
	if err != nil || defaultCapacity < 0 {
		return Config{}, fmt.Errorf("DEFAULT_SHOP_CAPACITY must be a non-negative integer")
	}

	buffer, err := strconv.Atoi(getenv("NOTIFIER_BUFFER", "1024"))
	if err != nil || buffer < 1 {
		return Config{}, fmt.Errorf("NOTIFIER_BUFFER must be a positive integer")
	}

	return Config{
		APIURL:      apiURL,
		Port:        getenv("PORT", "8080"),
		GinMode:     os.Getenv("GIN_MODE"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		EnablePprof: getenv("ENABLE_PPROF", "false") == "true",
		CORSOrigins: os.Getenv("CORS_ALLOW_ORIGINS"),
		Database: Database{
			Host:        os.Getenv("DB_HOST"),
			User:        os.Getenv("DB_USER"),
			Password:    os.Getenv("DB_PASSWORD"),
			Name:        os.Getenv("DB_NAME"),
			Port:        getenv("DB_PORT", "5432"),
			SSLMode:     getenv("DB_SSLMODE", "disable"),
			Path:        getenv("DB_PATH", "data/capacity.db"),
			LockTimeout: parseDuration(getenv("LOCK_TIMEOUT", "5s"), 5*time.Second),
		},
		Engine: Engine{
			OvercommitFraction: fraction,
			AtRiskThreshold:    threshold,
			DefaultCapacity:    defaultCapacity,
		},
		Notifier: Notifier{
			Buffer:           buffer,
			RedisURL:         os.Getenv("REDIS_URL"),
			RedisChannel:     getenv("REDIS_CHANNEL_PREFIX", "capacity-engine"),
			CapacityCacheTTL: parseDuration(getenv("CAPACITY_CACHE_TTL", "30s"), 30*time.Second),
			AMQPURL:          os.Getenv("AMQP_URL"),
			AMQPExchange:     getenv("AMQP_EXCHANGE", "allocations"),
		},
	}, nil
}

// Postgres reports if the configuration selects PostgreSQL.
func (d Database) Postgres() bool {
	return d.Host != ""
}

// DSN returns the connection string for PostgreSQL.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s", d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
