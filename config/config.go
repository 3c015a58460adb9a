// Package config loads the process configuration from the environment
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the server and worker need
type Config struct {
	APIPort  string `env:"API_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Database

	// Redis is optional, the stop signal falls back to memory without it
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	InstagramGatewayURL     string        `env:"INSTAGRAM_GATEWAY_URL,notEmpty"`
	InstagramGatewayTimeout time.Duration `env:"INSTAGRAM_GATEWAY_TIMEOUT" envDefault:"30s"`

	// AI scoring is disabled unless an API key is present
	AIBaseURL string `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AIAPIKey  string `env:"AI_API_KEY"`
	AIModel   string `env:"AI_MODEL" envDefault:"gpt-4o-mini"`

	WorkerPollInterval        time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`
	CampaignInterval          time.Duration `env:"CAMPAIGN_INTERVAL" envDefault:"1m"`
	DefaultDiscoveryFrequency time.Duration `env:"DEFAULT_DISCOVERY_FREQUENCY" envDefault:"24h"`
	MiningStateDir            string        `env:"MINING_STATE_DIR" envDefault:"./state"`
}

// Database holds the postgres connection settings
type Database struct {
	DBHost       string `env:"DB_HOST" envDefault:"localhost"`
	DBPort       int    `env:"DB_PORT" envDefault:"5432"`
	DBUser       string `env:"DB_USER" envDefault:"postgres"`
	DBPassword   string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName       string `env:"DB_NAME" envDefault:"outreach"`
	DBSSLEnabled bool   `env:"DB_SSL_ENABLED" envDefault:"false"`
}

// URL returns the connection URL golang-migrate expects
func (d Database) URL() string {
	sslMode := "disable"
	if d.DBSSLEnabled {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.DBUser, d.DBPassword),
		Host:     net.JoinHostPort(d.DBHost, strconv.Itoa(d.DBPort)),
		Path:     d.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// LoadDatabase parses only the database settings, for tools that do not talk to Instagram
func LoadDatabase() (Database, error) {
	_ = godotenv.Load()

	var d Database
	if err := env.Parse(&d); err != nil {
		return Database{}, fmt.Errorf("failed to parse database configuration: %w", err)
	}
	return d, nil
}

// Load reads an optional .env file and parses the environment into a Config
func Load() (Config, error) {
	// a missing .env file is fine, the environment may be set directly
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// AIEnabled reports whether the AI intent collaborator is configured
func (c Config) AIEnabled() bool {
	return c.AIAPIKey != ""
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
