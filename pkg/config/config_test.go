package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:        "postgres://u:p@db:5432/inventory",
		LogLevel:           "info",
		Environment:        EnvDevelopment,
		CORSAllowedOrigins: "*",
		EventTransport:     TransportSQL,
		KafkaBrokers:       "localhost:9092",
		StoreTimeout:       5 * time.Second,
		PublishTimeout:     5 * time.Second,
		RelayBatchSize:     100,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"outbox with kafka", func(c *Config) {
			c.OutboxEnabled = true
			c.EventTransport = TransportKafka
		}, "INVENTORY_OUTBOX_ENABLED"},
		{"kafka without brokers", func(c *Config) {
			c.EventTransport = TransportKafka
			c.KafkaBrokers = " , "
		}, "KAFKA_BROKERS"},
		{"zero store timeout", func(c *Config) { c.StoreTimeout = 0 }, "INVENTORY_STORE_TIMEOUT"},
		{"negative publish timeout", func(c *Config) { c.PublishTimeout = -time.Second }, "INVENTORY_PUBLISH_TIMEOUT"},
		{"zero relay batch", func(c *Config) { c.RelayBatchSize = 0 }, "RELAY_BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOrderedAcrossReplicas(t *testing.T) {
	cfg := validConfig()
	if cfg.OrderedAcrossReplicas() {
		t.Fatal("sql transport without outbox must not claim cross-replica order")
	}

	cfg.OutboxEnabled = true
	if !cfg.OrderedAcrossReplicas() {
		t.Fatal("outbox should give cross-replica order")
	}

	cfg = validConfig()
	cfg.EventTransport = TransportKafka
	if !cfg.OrderedAcrossReplicas() {
		t.Fatal("kafka keyed by product should give cross-replica order")
	}
}

func TestBrokers(t *testing.T) {
	cfg := &Config{KafkaBrokers: "a:9092, b:9092,,"}
	got := cfg.Brokers()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestValidateForProduction(t *testing.T) {
	t.Run("non-production is a no-op", func(t *testing.T) {
		cfg := validConfig()
		cfg.LogLevel = "debug"
		if err := ValidateForProduction(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("production rejects unsafe settings", func(t *testing.T) {
		cfg := validConfig()
		cfg.Environment = EnvProduction
		cfg.LogLevel = "debug"
		cfg.DatabaseURL = "postgres://u:p@db/inventory?sslmode=disable"
		err := ValidateForProduction(cfg)
		if err == nil {
			t.Fatal("expected error")
		}
		for _, want := range []string{"LOG_LEVEL", "CORS_ALLOWED_ORIGINS", "DATABASE_URL"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("expected %q in %q", want, err.Error())
			}
		}
	})

	t.Run("production accepts safe settings", func(t *testing.T) {
		cfg := validConfig()
		cfg.Environment = EnvProduction
		cfg.CORSAllowedOrigins = "https://shop.example.com"
		if err := ValidateForProduction(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
