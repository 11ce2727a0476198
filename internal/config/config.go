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
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	// Swagger UI на /swagger/*any
	SwaggerEnabled bool `env:"SWAGGER_ENABLED" envDefault:"true"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Outgoing webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"5"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Подпись входящих вебхуков сервиса генерации и наблюдателя сети
	InboundWebhookSecret string `env:"INBOUND_WEBHOOK_SECRET"`

	// Lifecycle Config
	ProofMaxAttempts      int           `env:"PROOF_MAX_ATTEMPTS" envDefault:"3"`
	SubmitMaxAttempts     int           `env:"SUBMIT_MAX_ATTEMPTS" envDefault:"5"`
	DeferMaxAttempts      int           `env:"DEFER_MAX_ATTEMPTS" envDefault:"10"`
	RetryBaseDelay        time.Duration `env:"RETRY_BASE_DELAY" envDefault:"2s"`
	RetryMaxDelay         time.Duration `env:"RETRY_MAX_DELAY" envDefault:"5m"`
	CASMaxRetries         int           `env:"CAS_MAX_RETRIES" envDefault:"5"`
	SchedulerPollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" envDefault:"1s"`

	// Chain Config
	ChainRPCURL        string        `env:"CHAIN_RPC_URL"`
	ChainID            int64         `env:"CHAIN_ID" envDefault:"31337"`
	ChainPrivateKey    string        `env:"CHAIN_PRIVATE_KEY"`
	VerifierContract   string        `env:"VERIFIER_CONTRACT"`
	ChainConfirmations uint64        `env:"CHAIN_CONFIRMATIONS" envDefault:"3"`
	ChainPollInterval  time.Duration `env:"CHAIN_POLL_INTERVAL" envDefault:"5s"`
	ChainGasLimit      uint64        `env:"CHAIN_GAS_LIMIT" envDefault:"300000"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	// Фоновое наблюдение за транзакцией прекращается через ChainWatchMaxAge, дальше ее опрашивает Sweeper
	ChainWatchMaxAge     time.Duration `env:"CHAIN_WATCH_MAX_AGE" envDefault:"30m"`
	// Sweeper не доставляет сигнал повторно, пока отметка о доставке моложе SweepRedeliveryGrace
	SweepRedeliveryGrace time.Duration `env:"SWEEP_REDELIVERY_GRACE" envDefault:"5m"`

	// Ключ проверки Groth16; без него доказательства не проверяются (только режим разработки)
	VerifyingKeyPath string `env:"VERIFYING_KEY_PATH"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		StoreDriver:           getEnv("STORE_DRIVER", StoreDriverPostgres),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		SwaggerEnabled:        getEnvAsBool("SWAGGER_ENABLED", true),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		WebhookURL:            os.Getenv("WEBHOOK_URL"),
		WebhookSecret:         os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:        getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:     getEnvAsInt("WEBHOOK_MAX_RETRIES", 5),
		WebhookBaseDelay:      getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		InboundWebhookSecret:  os.Getenv("INBOUND_WEBHOOK_SECRET"),
		ProofMaxAttempts:      getEnvAsInt("PROOF_MAX_ATTEMPTS", 3),
		SubmitMaxAttempts:     getEnvAsInt("SUBMIT_MAX_ATTEMPTS", 5),
		DeferMaxAttempts:      getEnvAsInt("DEFER_MAX_ATTEMPTS", 10),
		RetryBaseDelay:        getEnvAsDuration("RETRY_BASE_DELAY", 2*time.Second),
		RetryMaxDelay:         getEnvAsDuration("RETRY_MAX_DELAY", 5*time.Minute),
		CASMaxRetries:         getEnvAsInt("CAS_MAX_RETRIES", 5),
		SchedulerPollInterval: getEnvAsDuration("SCHEDULER_POLL_INTERVAL", time.Second),
		ChainRPCURL:           os.Getenv("CHAIN_RPC_URL"),
		ChainID:               int64(getEnvAsInt("CHAIN_ID", 31337)),
		ChainPrivateKey:       os.Getenv("CHAIN_PRIVATE_KEY"),
		VerifierContract:      os.Getenv("VERIFIER_CONTRACT"),
		ChainConfirmations:    uint64(getEnvAsInt("CHAIN_CONFIRMATIONS", 3)),
		ChainPollInterval:     getEnvAsDuration("CHAIN_POLL_INTERVAL", 5*time.Second),
		ChainGasLimit:         uint64(getEnvAsInt("CHAIN_GAS_LIMIT", 300000)),
		SweepInterval:         getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
		ChainWatchMaxAge:      getEnvAsDuration("CHAIN_WATCH_MAX_AGE", 30*time.Minute),
		SweepRedeliveryGrace:  getEnvAsDuration("SWEEP_REDELIVERY_GRACE", 5*time.Minute),
		VerifyingKeyPath:      os.Getenv("VERIFYING_KEY_PATH"),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ChainRPCURL != "" && (c.ChainPrivateKey == "" || c.VerifierContract == "") {
		return fmt.Errorf("CHAIN_PRIVATE_KEY and VERIFIER_CONTRACT are required when CHAIN_RPC_URL is set")
	}
	if c.ProofMaxAttempts < 1 || c.SubmitMaxAttempts < 1 || c.CASMaxRetries < 1 {
		return fmt.Errorf("PROOF_MAX_ATTEMPTS, SUBMIT_MAX_ATTEMPTS and CAS_MAX_RETRIES must be positive")
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsBool возвращает значение переменной окружения как bool или значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
