package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const memoryConfig = `
service:
  id: M62-Test
  http_port: 18080
dependencies:
  storage_driver: memory
  kafka_brokers: [" broker-1:9092 ", ""]
business:
  minimum_payout_threshold: "75.50"
  base_unit_rate: "0.002"
  summary_cache_ttl: 45s
  payout_requests_per_hour: 3
  seed_demo_data: true
`

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceID != "M62-Test" || cfg.HTTPPort != 18080 || cfg.GRPCPort != 9090 {
		t.Fatalf("unexpected service section: %+v", cfg)
	}
	if cfg.StorageDriver != StorageDriverMemory || !cfg.SeedDemoData {
		t.Fatalf("expected seeded memory driver, got %q seed=%v", cfg.StorageDriver, cfg.SeedDemoData)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "broker-1:9092" {
		t.Fatalf("expected trimmed brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.MinimumPayoutThreshold.String() != "75.5" || cfg.BaseUnitRate.String() != "0.002" {
		t.Fatalf("unexpected business decimals: %s %s", cfg.MinimumPayoutThreshold, cfg.BaseUnitRate)
	}
	if cfg.SummaryCacheTTL != 45*time.Second || cfg.PayoutRequestsPerHour != 3 {
		t.Fatalf("unexpected business settings: %+v", cfg)
	}
	if cfg.IdempotencyTTL != 7*24*time.Hour || cfg.DefaultCurrency != "USD" {
		t.Fatalf("expected defaults to survive, got %+v", cfg)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MINIMUM_PAYOUT_THRESHOLD", "20")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("SEED_DEMO_DATA", "no")
	t.Setenv("DEFAULT_CURRENCY", "eur")

	cfg, err := LoadConfig(writeConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MinimumPayoutThreshold.String() != "20" || cfg.HTTPPort != 9999 || cfg.SeedDemoData {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if strings.Join(cfg.KafkaBrokers, ",") != "a:1,b:2" || cfg.DefaultCurrency != "EUR" {
		t.Fatalf("env overrides not applied: %v %s", cfg.KafkaBrokers, cfg.DefaultCurrency)
	}
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "postgres without url", env: map[string]string{"STORAGE_DRIVER": "postgres"}, want: "DB_URL"},
		{name: "postgres without key", env: map[string]string{"STORAGE_DRIVER": "postgres", "DB_URL": "postgres://x"}, want: "JWT_PUBLIC_KEY"},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "sqlite"}, want: "unsupported storage driver"},
		{name: "bad decimal", env: map[string]string{"BASE_UNIT_RATE": "abc"}, want: "BASE_UNIT_RATE"},
		{name: "negative threshold", env: map[string]string{"MINIMUM_PAYOUT_THRESHOLD": "-1"}, want: "must not be negative"},
		{name: "zero base rate", env: map[string]string{"BASE_UNIT_RATE": "0"}, want: "must be positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(writeConfig(t, memoryConfig))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestTopicRoutesCoverPublishedEvents(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	routes := topicRoutes(cfg)
	if len(routes) != 7 {
		t.Fatalf("expected 7 routed event types, got %d", len(routes))
	}
	for event, topic := range routes {
		if topic == "" {
			t.Fatalf("event %s has no topic", event)
		}
	}
}
