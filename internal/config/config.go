package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LiqPayConfig struct {
	PublicKey  string
	PrivateKey string
}

type MonoConfig struct {
	WebhookSecret string
	APIURL        string
	Token         string
	Timeout       time.Duration
}

type NovaPoshtaConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type JanitorConfig struct {
	AutoCancelAfter  time.Duration
	AutoTrackPage    int
	CartTTL          time.Duration
	AutoCancelSpec   string
	AutoTrackSpec    string
	CartCleanupSpec  string
	TokenCleanupSpec string
}

type Config struct {
	App struct {
		Port       string
		CronSecret string
	}
	Postgres   PostgresConfig
	Kafka      KafkaConfig
	LiqPay     LiqPayConfig
	Mono       MonoConfig
	NovaPoshta NovaPoshtaConfig
	Janitor    JanitorConfig
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. Missing required keys are returned as a single error so the
// operator sees the full list at once.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	var missing []string

	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.App.Port = getEnv("APP_PORT", "8080")
	cfg.App.CronSecret = required("CRON_SECRET")

	cfg.Postgres.Host = required("DB_HOST")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = required("DB_USER")
	cfg.Postgres.Password = required("DB_PASSWORD")
	cfg.Postgres.DBName = required("DB_NAME")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")

	cfg.Kafka.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	cfg.Kafka.Topic = getEnv("KAFKA_NOTIFICATIONS_TOPIC", "order-notifications")

	cfg.LiqPay.PublicKey = required("LIQPAY_PUBLIC_KEY")
	cfg.LiqPay.PrivateKey = required("LIQPAY_PRIVATE_KEY")
	cfg.Mono.WebhookSecret = required("MONO_WEBHOOK_SECRET")
	cfg.Mono.APIURL = getEnv("MONO_API_URL", "https://api.monobank.ua")
	cfg.Mono.Token = required("MONO_TOKEN")
	cfg.Mono.Timeout = getDuration("MONO_TIMEOUT", 10*time.Second)

	cfg.NovaPoshta.APIKey = required("NOVA_POSHTA_API_KEY")
	cfg.NovaPoshta.BaseURL = getEnv("NOVA_POSHTA_BASE_URL", "https://api.novaposhta.ua/v2.0/json/")
	cfg.NovaPoshta.Timeout = getDuration("NOVA_POSHTA_TIMEOUT", 10*time.Second)

	cfg.Janitor.AutoCancelAfter = getDuration("AUTO_CANCEL_AFTER", 72*time.Hour)
	cfg.Janitor.AutoTrackPage = getInt("AUTO_TRACK_PAGE_SIZE", 50)
	cfg.Janitor.CartTTL = getDuration("CART_TTL", 30*24*time.Hour)
	cfg.Janitor.AutoCancelSpec = getEnv("AUTO_CANCEL_CRON", "0 * * * *")
	cfg.Janitor.AutoTrackSpec = getEnv("AUTO_TRACK_CRON", "30 * * * *")
	cfg.Janitor.CartCleanupSpec = getEnv("CART_CLEANUP_CRON", "0 3 * * *")
	cfg.Janitor.TokenCleanupSpec = getEnv("TOKEN_CLEANUP_CRON", "15 3 * * *")

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
