package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Fix selects the process role and points at the engine's session
// settings file. Role is either "initiator" (order-sending side) or
// "acceptor" (simulated venue side).
type Fix struct {
	Role         string
	SettingsPath string
}

type Dispatcher struct {
	Workers       int
	QueueCapacity int
	ShutdownGrace time.Duration
}

// Venue controls the simulated processing delay applied to every
// generated execution report.
type Venue struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	ShutdownGrace time.Duration
}

// Generator configures automated order submission on the initiator:
// OrdersPerBatch orders every BatchInterval, for Duration total.
type Generator struct {
	Enabled        bool
	OrdersPerBatch int
	BatchInterval  time.Duration
	Duration       time.Duration
	Symbol         string
	Side           string // BUY or SELL
	OrderType      string // LIMIT or MARKET
	Quantity       string
	Price          string
}

type API struct {
	Addr string
}

type Journal struct {
	Enabled bool
	Path    string
}

type Config struct {
	Fix        Fix
	Dispatcher Dispatcher
	Venue      Venue
	Generator  Generator
	API        API
	Journal    Journal
}

func Default() Config {
	return Config{
		Fix: Fix{
			Role:         "initiator",
			SettingsPath: "config/initiator.cfg",
		},
		Dispatcher: Dispatcher{
			Workers:       4,
			QueueCapacity: 10000,
			ShutdownGrace: 5 * time.Second,
		},
		Venue: Venue{
			MinDelay:      1 * time.Millisecond,
			MaxDelay:      1000 * time.Millisecond,
			ShutdownGrace: 5 * time.Second,
		},
		Generator: Generator{
			Enabled:        false,
			OrdersPerBatch: 10,
			BatchInterval:  1 * time.Second,
			Duration:       60 * time.Second,
			Symbol:         "AAPL",
			Side:           "BUY",
			OrderType:      "LIMIT",
			Quantity:       "100",
			Price:          "150.00",
		},
		API: API{
			Addr: ":8080",
		},
		Journal: Journal{
			Enabled: true,
			Path:    "data/journal",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables.
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Fix.Role = getEnv("FIX_ROLE", cfg.Fix.Role)
	if cfg.Fix.Role == "acceptor" {
		cfg.Fix.SettingsPath = "config/acceptor.cfg"
	}
	cfg.Fix.SettingsPath = getEnv("FIX_SETTINGS", cfg.Fix.SettingsPath)

	cfg.Dispatcher.Workers = getIntEnv("DISPATCHER_WORKERS", cfg.Dispatcher.Workers)
	cfg.Dispatcher.QueueCapacity = getIntEnv("DISPATCHER_QUEUE_CAPACITY", cfg.Dispatcher.QueueCapacity)
	cfg.Dispatcher.ShutdownGrace = getMillisEnv("DISPATCHER_GRACE_MS", cfg.Dispatcher.ShutdownGrace)

	cfg.Venue.MinDelay = getMillisEnv("VENUE_MIN_DELAY_MS", cfg.Venue.MinDelay)
	cfg.Venue.MaxDelay = getMillisEnv("VENUE_MAX_DELAY_MS", cfg.Venue.MaxDelay)
	cfg.Venue.ShutdownGrace = getMillisEnv("VENUE_GRACE_MS", cfg.Venue.ShutdownGrace)

	if v := os.Getenv("GEN_ENABLED"); v != "" {
		cfg.Generator.Enabled = v == "true"
	}
	cfg.Generator.OrdersPerBatch = getIntEnv("GEN_ORDERS_PER_BATCH", cfg.Generator.OrdersPerBatch)
	cfg.Generator.BatchInterval = getMillisEnv("GEN_BATCH_INTERVAL_MS", cfg.Generator.BatchInterval)
	cfg.Generator.Duration = getMillisEnv("GEN_DURATION_MS", cfg.Generator.Duration)
	cfg.Generator.Symbol = getEnv("GEN_SYMBOL", cfg.Generator.Symbol)
	cfg.Generator.Side = getEnv("GEN_SIDE", cfg.Generator.Side)
	cfg.Generator.OrderType = getEnv("GEN_ORDER_TYPE", cfg.Generator.OrderType)
	cfg.Generator.Quantity = getEnv("GEN_QUANTITY", cfg.Generator.Quantity)
	cfg.Generator.Price = getEnv("GEN_PRICE", cfg.Generator.Price)

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)

	if v := os.Getenv("JOURNAL_ENABLED"); v != "" {
		cfg.Journal.Enabled = v == "true"
	}
	cfg.Journal.Path = getEnv("JOURNAL_PATH", cfg.Journal.Path)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
