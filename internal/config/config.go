// Package config loads the service configuration from an optional
// config.json file and MONEYTRACK_* environment variables.
package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr string `json:"http_addr" envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `json:"grpc_addr" envconfig:"GRPC_ADDR" default:":50051"`

	PostgresDSN      string `json:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	PostgresPassword string `json:"postgres_password" envconfig:"POSTGRES_PASSWORD"`
	PostgresHost     string `json:"postgres_host" envconfig:"POSTGRES_HOST" default:"localhost:5432"`
	PostgresDB       string `json:"postgres_db" envconfig:"POSTGRES_DB" default:"moneytrack"`

	AMQPURL   string `json:"amqp_url" envconfig:"AMQP_URL"`
	AMQPQueue string `json:"amqp_queue" envconfig:"AMQP_QUEUE" default:"notifications_queue"`

	MongoURI string `json:"mongo_uri" envconfig:"MONGO_URI"`
	MongoDB  string `json:"mongo_db" envconfig:"MONGO_DB" default:"moneytrack"`

	TelegramToken string `json:"telegram_token" envconfig:"TELEGRAM_TOKEN"`

	OpenAIKey   string `json:"openai_key" envconfig:"OPENAI_KEY"`
	OpenAIModel string `json:"openai_model" envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// CredentialsKey is the hex encoded 32 byte key sealing bank credentials.
	CredentialsKey string `json:"credentials_key" envconfig:"CREDENTIALS_KEY"`

	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL" default:"info"`

	RecurringInterval time.Duration `json:"-" envconfig:"RECURRING_INTERVAL" default:"1h"`
	BankSyncInterval  time.Duration `json:"-" envconfig:"BANK_SYNC_INTERVAL" default:"5m"`
	AnalyticsInterval time.Duration `json:"-" envconfig:"ANALYTICS_INTERVAL" default:"6h"`
	JobTimeout        time.Duration `json:"-" envconfig:"JOB_TIMEOUT" default:"2m"`
	BankSyncWorkers   int           `json:"bank_sync_workers" envconfig:"BANK_SYNC_WORKERS" default:"3"`

	CORSOrigins []string `json:"cors_origins" envconfig:"CORS_ORIGINS" default:"*"`

	DefaultCurrency string `json:"default_currency" envconfig:"DEFAULT_CURRENCY" default:"LKR"`
	DefaultTimezone string `json:"default_timezone" envconfig:"DEFAULT_TIMEZONE" default:"Asia/Colombo"`
}

// Load reads path when it exists and then applies the environment on top.
func Load(path string) (Config, error) {
	var cfg Config
	if err := envconfig.Process("MONEYTRACK", &cfg); err != nil {
		return cfg, fmt.Errorf("read defaults: %w", err)
	}

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			defer file.Close()
			if err := json.NewDecoder(file).Decode(&cfg); err != nil {
				return cfg, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	if err := overrideFromEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// overrideFromEnv re-applies only the variables that are actually set so
// defaults do not clobber values from the file.
func overrideFromEnv(cfg *Config) error {
	var env Config
	if err := envconfig.Process("MONEYTRACK", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	set := func(key string) bool {
		_, ok := os.LookupEnv("MONEYTRACK_" + key)
		return ok
	}
	if set("HTTP_ADDR") {
		cfg.HTTPAddr = env.HTTPAddr
	}
	if set("GRPC_ADDR") {
		cfg.GRPCAddr = env.GRPCAddr
	}
	if set("POSTGRES_DSN") {
		cfg.PostgresDSN = env.PostgresDSN
	}
	if set("POSTGRES_PASSWORD") {
		cfg.PostgresPassword = env.PostgresPassword
	}
	if set("POSTGRES_HOST") {
		cfg.PostgresHost = env.PostgresHost
	}
	if set("POSTGRES_DB") {
		cfg.PostgresDB = env.PostgresDB
	}
	if set("AMQP_URL") {
		cfg.AMQPURL = env.AMQPURL
	}
	if set("AMQP_QUEUE") {
		cfg.AMQPQueue = env.AMQPQueue
	}
	if set("MONGO_URI") {
		cfg.MongoURI = env.MongoURI
	}
	if set("MONGO_DB") {
		cfg.MongoDB = env.MongoDB
	}
	if set("TELEGRAM_TOKEN") {
		cfg.TelegramToken = env.TelegramToken
	}
	if set("OPENAI_KEY") {
		cfg.OpenAIKey = env.OpenAIKey
	}
	if set("OPENAI_MODEL") {
		cfg.OpenAIModel = env.OpenAIModel
	}
	if set("CREDENTIALS_KEY") {
		cfg.CredentialsKey = env.CredentialsKey
	}
	if set("LOG_LEVEL") {
		cfg.LogLevel = env.LogLevel
	}
	if set("BANK_SYNC_WORKERS") {
		cfg.BankSyncWorkers = env.BankSyncWorkers
	}
	if set("CORS_ORIGINS") {
		cfg.CORSOrigins = env.CORSOrigins
	}
	if set("DEFAULT_CURRENCY") {
		cfg.DefaultCurrency = env.DefaultCurrency
	}
	if set("DEFAULT_TIMEZONE") {
		cfg.DefaultTimezone = env.DefaultTimezone
	}
	// durations are env only
	cfg.RecurringInterval = env.RecurringInterval
	cfg.BankSyncInterval = env.BankSyncInterval
	cfg.AnalyticsInterval = env.AnalyticsInterval
	cfg.JobTimeout = env.JobTimeout
	return nil
}

// DSN returns PostgresDSN or builds one from password, host and database.
func (c Config) DSN() string {
	if c.PostgresDSN != "" {
		return c.PostgresDSN
	}
	return fmt.Sprintf("postgresql://postgres:%s@%s/%s", c.PostgresPassword, c.PostgresHost, c.PostgresDB)
}

// Key decodes CredentialsKey.
func (c Config) Key() ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(c.CredentialsKey)
	if err != nil {
		return key, fmt.Errorf("credentials key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("credentials key: want 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func (c Config) Validate() error {
	if c.PostgresDSN == "" && c.PostgresPassword == "" {
		return errors.New("config: postgres_dsn or postgres_password is required")
	}
	if c.CredentialsKey != "" {
		if _, err := c.Key(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.BankSyncWorkers < 1 {
		return errors.New("config: bank_sync_workers must be at least 1")
	}
	if c.RecurringInterval <= 0 || c.BankSyncInterval <= 0 || c.AnalyticsInterval <= 0 || c.JobTimeout <= 0 {
		return errors.New("config: worker intervals must be positive")
	}
	return nil
}
