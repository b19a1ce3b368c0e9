// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"wallet-ledger/pkg/db"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// LedgerConfig tunes the transaction engine and transfer coordinator.
type LedgerConfig struct {
	CodeMaxAttempts     int
	AuditFailedAttempts bool
	TransferMode        string
	AccountLockStripes  int
}

// ReservationConfig tunes the reservation manager and its sweeper.
type ReservationConfig struct {
	SweepInterval time.Duration
	DefaultTTL    time.Duration
	// SeedStock is the product stock of the in-memory catalog, read from
	// CATALOG_STOCK as "productID:qty,productID:qty".
	SeedStock map[int64]int64
}

// FraudConfig configures fraud scoring. Zero amounts disable a rule.
type FraudConfig struct {
	Enabled      bool
	VerifyAmount decimal.Decimal
	ReviewAmount decimal.Decimal
	BlockAmount  decimal.Decimal
	Window       time.Duration
	MaxPerWindow int64
	Timeout      time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GatewayConfig configures the payment gateway client. An empty BaseURL
// disables the GATEWAY payment method.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AMQPConfig configures the gateway notification consumer. An empty URL
// disables it.
type AMQPConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort       string
	ShutdownTimeout  time.Duration
	LogLevel         string
	MetricsNamespace string
	Storage          string
	AutoMigrate      bool
	DB               db.Config
	Ledger           LedgerConfig
	Reservation      ReservationConfig
	Fraud            FraudConfig
	Redis            RedisConfig
	Gateway          GatewayConfig
	AMQP             AMQPConfig
}

// LoadConfig loads configuration from a .env file, if present, and then
// from environment variables. Variables already set in the environment win
// over the file.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	p := &parser{}
	cfg := &AppConfig{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		ShutdownTimeout:  p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "wallet_ledger"),
		Storage:          strings.ToLower(getEnv("STORAGE_BACKEND", StoragePostgres)),
		AutoMigrate:      p.boolean("DB_AUTO_MIGRATE", false),
		DB: db.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            p.integer("DB_PORT", 5432),
			User:            getEnv("DB_USER", "user"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "walletdb"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    p.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Ledger: LedgerConfig{
			CodeMaxAttempts:     p.integer("LEDGER_CODE_MAX_ATTEMPTS", 5),
			AuditFailedAttempts: p.boolean("LEDGER_AUDIT_FAILED_ATTEMPTS", false),
			TransferMode:        strings.ToLower(getEnv("LEDGER_TRANSFER_MODE", "saga")),
			AccountLockStripes:  p.integer("LEDGER_ACCOUNT_LOCK_STRIPES", 256),
		},
		Reservation: ReservationConfig{
			SweepInterval: p.duration("RESERVATION_SWEEP_INTERVAL", 60*time.Second),
			DefaultTTL:    p.duration("RESERVATION_DEFAULT_TTL", 15*time.Minute),
			SeedStock:     p.stock("CATALOG_STOCK"),
		},
		Fraud: FraudConfig{
			Enabled:      p.boolean("FRAUD_ENABLED", false),
			VerifyAmount: p.amount("FRAUD_VERIFY_AMOUNT", "1000000"),
			ReviewAmount: p.amount("FRAUD_REVIEW_AMOUNT", "5000000"),
			BlockAmount:  p.amount("FRAUD_BLOCK_AMOUNT", "50000000"),
			Window:       p.duration("FRAUD_VELOCITY_WINDOW", time.Minute),
			MaxPerWindow: int64(p.integer("FRAUD_VELOCITY_MAX", 10)),
			Timeout:      p.duration("FRAUD_TIMEOUT", 500*time.Millisecond),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.integer("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			BaseURL: getEnv("GATEWAY_BASE_URL", ""),
			APIKey:  getEnv("GATEWAY_API_KEY", ""),
			Timeout: p.duration("GATEWAY_TIMEOUT", 5*time.Second),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Queue:    getEnv("GATEWAY_NOTIFICATION_QUEUE", "gateway.notifications"),
			Prefetch: p.integer("AMQP_PREFETCH", 10),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: want %s or %s", cfg.Storage, StoragePostgres, StorageMemory)
	}
	if cfg.Ledger.TransferMode != "saga" && cfg.Ledger.TransferMode != "atomic" {
		return nil, fmt.Errorf("invalid LEDGER_TRANSFER_MODE %q: want saga or atomic", cfg.Ledger.TransferMode)
	}
	if cfg.Ledger.CodeMaxAttempts < 1 {
		return nil, fmt.Errorf("invalid LEDGER_CODE_MAX_ATTEMPTS: must be at least 1")
	}
	return cfg, nil
}

// getEnv returns the value of key or fallback when it is unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// parser reads typed variables and keeps the first parse error.
type parser struct {
	err error
}

func (p *parser) integer(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *parser) boolean(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *parser) amount(key, fallback string) decimal.Decimal {
	raw := getEnv(key, fallback)
	if raw == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.fail(key, err)
		return decimal.Zero
	}
	return v
}

func (p *parser) stock(key string) map[int64]int64 {
	stock := make(map[int64]int64)
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return stock
	}
	for _, pair := range strings.Split(raw, ",") {
		id, qty, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			p.fail(key, fmt.Errorf("malformed entry %q", pair))
			return stock
		}
		productID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			p.fail(key, err)
			return stock
		}
		quantity, err := strconv.ParseInt(qty, 10, 64)
		if err != nil {
			p.fail(key, err)
			return stock
		}
		stock[productID] = quantity
	}
	return stock
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
