package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.GRPC.Addr != ":50051" {
		t.Errorf("unexpected addrs http=%q grpc=%q", cfg.HTTP.Addr, cfg.GRPC.Addr)
	}
	if cfg.Ledger.Store != StoreMemory || cfg.Ledger.StatementSize != 10 {
		t.Errorf("unexpected ledger config %+v", cfg.Ledger)
	}
	if len(cfg.Customers) != len(domain.DefaultCustomers()) {
		t.Errorf("expected default customers, got %v", cfg.Customers)
	}
	if cfg.HTTP.IdempotencyTTL != 24*time.Hour {
		t.Errorf("IdempotencyTTL=%v", cfg.HTTP.IdempotencyTTL)
	}
	if cfg.MySQL.MaxOpenConns != 100 || cfg.Events.Driver != EventsNone {
		t.Errorf("unexpected defaults mysql=%+v events=%+v", cfg.MySQL, cfg.Events)
	}
}

func TestParseDurationsAndCustomers(t *testing.T) {
	data := `
http:
  request_timeout: 5s
ledger:
  statement_size: 3
customers:
  - { id: 7, limit: 1000 }
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.HTTP.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout=%v", cfg.HTTP.RequestTimeout)
	}
	if cfg.Ledger.StatementSize != 3 {
		t.Errorf("StatementSize=%d", cfg.Ledger.StatementSize)
	}
	if len(cfg.Customers) != 1 || cfg.Customers[0] != (domain.Customer{ID: 7, Limit: 1000}) {
		t.Errorf("Customers=%v", cfg.Customers)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_STORE", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://u:p@db:5432/ledger")
	t.Setenv("MYSQL_PASSWORD", "s3cret")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Parse([]byte("ledger:\n  store: memory\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Ledger.Store != StorePostgres || cfg.Postgres.URL != "postgres://u:p@db:5432/ledger" {
		t.Errorf("store override failed: %+v %+v", cfg.Ledger, cfg.Postgres)
	}
	if cfg.MySQL.Password != "s3cret" || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("secret override failed: mysql=%q redis=%q", cfg.MySQL.Password, cfg.Redis.Addr)
	}
	if len(cfg.Events.Kafka.Brokers) != 2 {
		t.Errorf("Brokers=%v", cfg.Events.Kafka.Brokers)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad yaml", "ledger: [", "parse config"},
		{"unknown store", "ledger:\n  store: sqlite\n", "ledger.store"},
		{"negative statement", "ledger:\n  statement_size: -1\n", "statement_size"},
		{"postgres without url", "ledger:\n  store: postgres\n", "postgres.url"},
		{"unknown events", "events:\n  driver: nats\n", "events.driver"},
		{"rabbitmq without url", "events:\n  driver: rabbitmq\n", "rabbitmq.url"},
		{"kafka without brokers", "events:\n  driver: kafka\n", "kafka.brokers"},
		{"duplicated customer", "customers:\n  - { id: 1, limit: 1 }\n  - { id: 1, limit: 2 }\n", "invalid customers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	if err := os.WriteFile(path, []byte("grpc:\n  addr: \":6000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGER_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GRPC.Addr != ":6000" {
		t.Fatalf("GRPC.Addr=%q", cfg.GRPC.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
