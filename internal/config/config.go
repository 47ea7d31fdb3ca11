package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/pkg/logger"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
	"github.com/JoeShih716/go-credit-ledger/pkg/postgres"
)

// DefaultPath 沒有設定 LEDGER_CONFIG 時讀取的設定檔
const DefaultPath = "config/config.yaml"

// 儲存層種類
const (
	StoreMemory   = "memory"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
)

// 事件出口種類
const (
	EventsNone     = "none"
	EventsRabbitMQ = "rabbitmq"
	EventsKafka    = "kafka"
)

// Config 服務的完整設定
type Config struct {
	Log       logger.Config     `yaml:"log"`
	HTTP      HTTPConfig        `yaml:"http"`
	GRPC      GRPCConfig        `yaml:"grpc"`
	Ledger    LedgerConfig      `yaml:"ledger"`
	Customers []domain.Customer `yaml:"customers"`
	MySQL     mysql.Config      `yaml:"mysql"`
	Postgres  postgres.Config   `yaml:"postgres"`
	Redis     RedisConfig       `yaml:"redis"`
	Events    EventsConfig      `yaml:"events"`
	MongoDB   MongoDBConfig     `yaml:"mongodb"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	IdempotencyTTL  time.Duration `yaml:"idempotency_ttl"`
}

type GRPCConfig struct {
	Addr       string `yaml:"addr"`
	Reflection bool   `yaml:"reflection"`
}

// LedgerConfig 核心帳本設定
type LedgerConfig struct {
	Store         string `yaml:"store"`          // memory, mysql, postgres
	StatementSize int    `yaml:"statement_size"` // 帳單列出的交易筆數
	WALPath       string `yaml:"wal_path"`       // 只有 memory 使用
	WALNoSync     bool   `yaml:"wal_no_sync"`    // 不 fsync，壓測用
}

// RedisConfig Idempotency-Key 快取，Addr 空白代表停用
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EventsConfig struct {
	Driver   string         `yaml:"driver"` // none, rabbitmq, kafka
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type RabbitMQConfig struct {
	URL            string `yaml:"url"`
	Exchange       string `yaml:"exchange"`
	Queue          string `yaml:"queue"`       // audit worker 使用
	BindingKey     string `yaml:"binding_key"` // audit worker 使用
	ConnectionName string `yaml:"connection_name"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Load 讀取 .env 與 YAML 設定檔，套用環境變數與預設值後驗證
//
// 參數:
//
//	path: 設定檔路徑，空字串時使用 LEDGER_CONFIG 或 DefaultPath
//
// 回傳:
//
//	*Config: 可直接使用的設定
//	error: 讀檔、解析或驗證失敗
func Load(path string) (*Config, error) {
	// 正式環境沒有 .env，直接用系統環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	if path == "" {
		path = os.Getenv("LEDGER_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 內容，並套用環境變數與預設值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 機敏資訊與連線位址以環境變數為準
func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"LEDGER_STORE", &c.Ledger.Store},
		{"MYSQL_PASSWORD", &c.MySQL.Password},
		{"POSTGRES_URL", &c.Postgres.URL},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"RABBITMQ_URL", &c.Events.RabbitMQ.URL},
		{"MONGO_URI", &c.MongoDB.URI},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok {
			*o.dst = v
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Kafka.Brokers = strings.Split(v, ",")
	}
}

// ApplyDefaults 補全 yaml 沒寫的欄位
func (c *Config) ApplyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.HTTP.IdempotencyTTL == 0 {
		c.HTTP.IdempotencyTTL = 24 * time.Hour
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}

	if c.Ledger.Store == "" {
		c.Ledger.Store = StoreMemory
	}
	if c.Ledger.StatementSize == 0 {
		c.Ledger.StatementSize = 10
	}
	if c.Ledger.WALPath == "" {
		c.Ledger.WALPath = "wal.log"
	}
	if len(c.Customers) == 0 {
		c.Customers = domain.DefaultCustomers()
	}

	c.MySQL.ApplyDefaults()
	c.Postgres.ApplyDefaults()

	if c.Events.Driver == "" {
		c.Events.Driver = EventsNone
	}
	if c.Events.RabbitMQ.Exchange == "" {
		c.Events.RabbitMQ.Exchange = "ledger_events"
	}
	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = "audit_queue"
	}
	if c.Events.RabbitMQ.BindingKey == "" {
		c.Events.RabbitMQ.BindingKey = "transaction.#"
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "ledger.transactions"
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = "ledger_audit"
	}
	if c.MongoDB.Collection == "" {
		c.MongoDB.Collection = "audit_logs"
	}
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	switch c.Ledger.Store {
	case StoreMemory, StoreMySQL, StorePostgres:
	default:
		return fmt.Errorf("invalid ledger.store %q", c.Ledger.Store)
	}
	if c.Ledger.StatementSize < 0 {
		return fmt.Errorf("invalid ledger.statement_size %d", c.Ledger.StatementSize)
	}
	if c.Ledger.Store == StorePostgres && c.Postgres.URL == "" {
		return errors.New("postgres.url is required when ledger.store is postgres")
	}

	switch c.Events.Driver {
	case EventsNone:
	case EventsRabbitMQ:
		if c.Events.RabbitMQ.URL == "" {
			return errors.New("events.rabbitmq.url is required")
		}
	case EventsKafka:
		if len(c.Events.Kafka.Brokers) == 0 {
			return errors.New("events.kafka.brokers is required")
		}
	default:
		return fmt.Errorf("invalid events.driver %q", c.Events.Driver)
	}

	if _, err := domain.NewDirectory(c.Customers); err != nil {
		return fmt.Errorf("invalid customers: %w", err)
	}
	return nil
}
