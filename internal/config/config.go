// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tapcash-pos/pkg/db" // Import db package for its Config struct

	"github.com/shopspring/decimal"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config

	// MigrationsPath is a file:// URL; empty disables startup migrations.
	MigrationsPath string

	// External provider endpoints.
	CardAPIBaseURL string
	SMSAPIBaseURL  string
	MomoAPIBaseURL string

	// Sale event publishing; empty brokers disable it.
	KafkaBrokers   []string
	KafkaSaleTopic string

	// RewardShare is the share of profit margin accrued as gas units.
	RewardShare decimal.Decimal

	// Mobile-money push wait bounds.
	PushTimeout      time.Duration
	PushPollInterval time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*AppConfig, error) {
	dbPort, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	rewardShare, err := decimal.NewFromString(getEnvOrDefault("REWARD_SHARE", "0.05"))
	if err != nil {
		return nil, fmt.Errorf("invalid REWARD_SHARE: %w", err)
	}
	if rewardShare.IsNegative() {
		return nil, fmt.Errorf("REWARD_SHARE must not be negative")
	}

	cfg := &AppConfig{
		ServerPort: getEnvOrDefault("SERVER_PORT", "8080"),
		DB: db.Config{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnvOrDefault("DB_USER", "user"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:   getEnvOrDefault("DB_NAME", "posdb"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		MigrationsPath:   getEnvOrDefault("MIGRATIONS_PATH", "file://migrations"),
		CardAPIBaseURL:   getEnvOrDefault("CARD_API_URL", "http://localhost:9001"),
		SMSAPIBaseURL:    getEnvOrDefault("SMS_API_URL", "http://localhost:9002"),
		MomoAPIBaseURL:   getEnvOrDefault("MOMO_API_URL", "http://localhost:9003"),
		KafkaSaleTopic:   getEnvOrDefault("KAFKA_SALE_TOPIC", "sale_committed"),
		RewardShare:      rewardShare,
		PushTimeout:      getEnvAsDuration("PUSH_TIMEOUT", 60*time.Second),
		PushPollInterval: getEnvAsDuration("PUSH_POLL_INTERVAL", 500*time.Millisecond),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
