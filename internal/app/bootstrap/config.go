package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	StorageDriver string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	MaxDBConns    int32

	KafkaConsumerGroup        string
	KafkaTopicDeliveryMetrics string
	KafkaTopicExperiments     string
	KafkaTopicEarnings        string
	KafkaTopicPayouts         string

	JWTPublicKeyPEM string
	JWTIssuer       string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	OutboxMaxRetries     int
	ConsumerPollInterval time.Duration

	MinimumPayoutThreshold decimal.Decimal
	BaseUnitRate           decimal.Decimal
	DefaultCurrency        string
	SummaryCacheTTL        time.Duration
	IdempotencyTTL         time.Duration
	EventDedupTTL          time.Duration
	PayoutRequestsPerHour  int
	StorageTimeout         time.Duration
	SeedDemoData           bool
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		StorageDriver             string   `yaml:"storage_driver"`
		PostgresURL               string   `yaml:"postgres_url"`
		RedisURL                  string   `yaml:"redis_url"`
		KafkaBrokers              []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup        string   `yaml:"kafka_consumer_group"`
		KafkaTopicDeliveryMetrics string   `yaml:"kafka_topic_delivery_metrics"`
		KafkaTopicExperiments     string   `yaml:"kafka_topic_experiments"`
		KafkaTopicEarnings        string   `yaml:"kafka_topic_earnings"`
		KafkaTopicPayouts         string   `yaml:"kafka_topic_payouts"`
		JWTPublicKeyPath          string   `yaml:"jwt_public_key_path"`
		JWTIssuer                 string   `yaml:"jwt_issuer"`
	} `yaml:"dependencies"`
	Business struct {
		MinimumPayoutThreshold string        `yaml:"minimum_payout_threshold"`
		BaseUnitRate           string        `yaml:"base_unit_rate"`
		DefaultCurrency        string        `yaml:"default_currency"`
		SummaryCacheTTL        time.Duration `yaml:"summary_cache_ttl"`
		IdempotencyTTL         time.Duration `yaml:"idempotency_ttl"`
		EventDedupTTL          time.Duration `yaml:"event_dedup_ttl"`
		PayoutRequestsPerHour  int           `yaml:"payout_requests_per_hour"`
		SeedDemoData           bool          `yaml:"seed_demo_data"`
	} `yaml:"business"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                 "M62-Experiment-Earnings-Service",
		HTTPPort:                  8080,
		GRPCPort:                  9090,
		StorageDriver:             StorageDriverPostgres,
		MaxDBConns:                20,
		KafkaConsumerGroup:        "m62-experiment-earnings-service",
		KafkaTopicDeliveryMetrics: "delivery.variant_metrics",
		KafkaTopicExperiments:     "ad_marketplace.experiments",
		KafkaTopicEarnings:        "ad_marketplace.partner_earnings",
		KafkaTopicPayouts:         "ad_marketplace.partner_payouts",
		OutboxPollInterval:        2 * time.Second,
		OutboxBatchSize:           100,
		OutboxMaxRetries:          10,
		ConsumerPollInterval:      2 * time.Second,
		MinimumPayoutThreshold:    decimal.NewFromInt(50),
		BaseUnitRate:              decimal.RequireFromString("0.001"),
		DefaultCurrency:           "USD",
		SummaryCacheTTL:           2 * time.Minute,
		IdempotencyTTL:            7 * 24 * time.Hour,
		EventDedupTTL:             7 * 24 * time.Hour,
		PayoutRequestsPerHour:     5,
		StorageTimeout:            5 * time.Second,
	}
	var jwtKeyPath string

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.StorageDriver != "" {
			cfg.StorageDriver = f.Dependencies.StorageDriver
		}
		cfg.DatabaseURL = f.Dependencies.PostgresURL
		cfg.RedisURL = f.Dependencies.RedisURL
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaConsumerGroup != "" {
			cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
		}
		if f.Dependencies.KafkaTopicDeliveryMetrics != "" {
			cfg.KafkaTopicDeliveryMetrics = f.Dependencies.KafkaTopicDeliveryMetrics
		}
		if f.Dependencies.KafkaTopicExperiments != "" {
			cfg.KafkaTopicExperiments = f.Dependencies.KafkaTopicExperiments
		}
		if f.Dependencies.KafkaTopicEarnings != "" {
			cfg.KafkaTopicEarnings = f.Dependencies.KafkaTopicEarnings
		}
		if f.Dependencies.KafkaTopicPayouts != "" {
			cfg.KafkaTopicPayouts = f.Dependencies.KafkaTopicPayouts
		}
		jwtKeyPath = f.Dependencies.JWTPublicKeyPath
		cfg.JWTIssuer = f.Dependencies.JWTIssuer

		if f.Business.MinimumPayoutThreshold != "" {
			if cfg.MinimumPayoutThreshold, err = decimal.NewFromString(f.Business.MinimumPayoutThreshold); err != nil {
				return Config{}, fmt.Errorf("parse minimum_payout_threshold: %w", err)
			}
		}
		if f.Business.BaseUnitRate != "" {
			if cfg.BaseUnitRate, err = decimal.NewFromString(f.Business.BaseUnitRate); err != nil {
				return Config{}, fmt.Errorf("parse base_unit_rate: %w", err)
			}
		}
		if f.Business.DefaultCurrency != "" {
			cfg.DefaultCurrency = f.Business.DefaultCurrency
		}
		if f.Business.SummaryCacheTTL > 0 {
			cfg.SummaryCacheTTL = f.Business.SummaryCacheTTL
		}
		if f.Business.IdempotencyTTL > 0 {
			cfg.IdempotencyTTL = f.Business.IdempotencyTTL
		}
		if f.Business.EventDedupTTL > 0 {
			cfg.EventDedupTTL = f.Business.EventDedupTTL
		}
		if f.Business.PayoutRequestsPerHour > 0 {
			cfg.PayoutRequestsPerHour = f.Business.PayoutRequestsPerHour
		}
		cfg.SeedDemoData = f.Business.SeedDemoData
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(envOrDefault("STORAGE_DRIVER", cfg.StorageDriver)))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicDeliveryMetrics = envOrDefault("KAFKA_TOPIC_DELIVERY_METRICS", cfg.KafkaTopicDeliveryMetrics)
	cfg.KafkaTopicExperiments = envOrDefault("KAFKA_TOPIC_EXPERIMENTS", cfg.KafkaTopicExperiments)
	cfg.KafkaTopicEarnings = envOrDefault("KAFKA_TOPIC_EARNINGS", cfg.KafkaTopicEarnings)
	cfg.KafkaTopicPayouts = envOrDefault("KAFKA_TOPIC_PAYOUTS", cfg.KafkaTopicPayouts)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	jwtKeyPath = envOrDefault("JWT_PUBLIC_KEY_PATH", jwtKeyPath)
	cfg.JWTPublicKeyPEM = os.Getenv("JWT_PUBLIC_KEY_PEM")
	if cfg.JWTPublicKeyPEM == "" && jwtKeyPath != "" {
		pem, readErr := os.ReadFile(jwtKeyPath)
		if readErr != nil {
			return Config{}, fmt.Errorf("read jwt public key: %w", readErr)
		}
		cfg.JWTPublicKeyPEM = string(pem)
	}
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.DefaultCurrency = strings.ToUpper(envOrDefault("DEFAULT_CURRENCY", cfg.DefaultCurrency))
	cfg.SummaryCacheTTL = time.Duration(envInt("SUMMARY_CACHE_SECONDS", int(cfg.SummaryCacheTTL.Seconds()))) * time.Second
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.PayoutRequestsPerHour = envInt("PAYOUT_REQUESTS_PER_HOUR", cfg.PayoutRequestsPerHour)
	cfg.StorageTimeout = time.Duration(envInt("STORAGE_TIMEOUT_SECONDS", int(cfg.StorageTimeout.Seconds()))) * time.Second
	cfg.SeedDemoData = envBool("SEED_DEMO_DATA", cfg.SeedDemoData)
	if cfg.MinimumPayoutThreshold, err = envDecimal("MINIMUM_PAYOUT_THRESHOLD", cfg.MinimumPayoutThreshold); err != nil {
		return Config{}, err
	}
	if cfg.BaseUnitRate, err = envDecimal("BASE_UNIT_RATE", cfg.BaseUnitRate); err != nil {
		return Config{}, err
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
		if cfg.JWTPublicKeyPEM == "" {
			return Config{}, fmt.Errorf("missing JWT_PUBLIC_KEY_PEM/JWT_PUBLIC_KEY_PATH")
		}
	case StorageDriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if cfg.MinimumPayoutThreshold.IsNegative() {
		return Config{}, fmt.Errorf("minimum payout threshold must not be negative")
	}
	if !cfg.BaseUnitRate.IsPositive() {
		return Config{}, fmt.Errorf("base unit rate must be positive")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

// envDecimal reports unparseable values instead of falling back.
func envDecimal(name string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
