package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Market    MarketConfig    `mapstructure:"-"` // parsed from MARKET_SYMBOLS
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`    // debug, info, warn, error
	Encoding string `mapstructure:"encoding"` // json or console
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
	QueueSize  int `mapstructure:"queue_size"`
}

type GatewayConfig struct {
	SendBuffer     int   `mapstructure:"send_buffer"`
	MaxMessageSize int64 `mapstructure:"max_message_size"`
}

type GeneratorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MarketConfig lists the symbols the market starts with, keyed by symbol,
// valued by opening price.
type MarketConfig struct {
	Symbols map[string]float64 `mapstructure:"symbols"`
}

var defaultSymbols = map[string]float64{
	"AAPL": 150.50, "GOOGL": 2530.40, "TSLA": 700.0, "AMZN": 3400.0,
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment so APP_PORT etc. are visible to viper.
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "stock-processor-group")
	v.SetDefault("kafka.partitions", 4)

	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("processor.queue_size", 100)

	v.SetDefault("gateway.send_buffer", 256)
	v.SetDefault("gateway.max_message_size", 512*1024)

	v.SetDefault("generator.interval", 100*time.Millisecond)

	// "app.port" -> "APP_PORT"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat env vars only reach nested keys through an explicit bind.
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "redis.addr", "redis.password", "redis.db", "redis.snapshot_ttl")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.partitions")
	bindEnv(v, "processor.num_workers", "processor.queue_size")
	bindEnv(v, "gateway.send_buffer", "gateway.max_message_size")
	bindEnv(v, "generator.interval")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	symbols, err := parseSymbols(v.GetString("market.symbols"))
	if err != nil {
		return nil, err
	}
	cfg.Market.Symbols = symbols

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first configuration value the services cannot run with.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("market symbols cannot be empty")
	}
	if c.Processor.NumWorkers < 1 {
		return fmt.Errorf("processor.num_workers must be >= 1, got %d", c.Processor.NumWorkers)
	}
	if c.Processor.QueueSize < 1 {
		return fmt.Errorf("processor.queue_size must be >= 1, got %d", c.Processor.QueueSize)
	}
	return nil
}

// SymbolList returns the configured symbols in no particular order.
func (c MarketConfig) SymbolList() []string {
	out := make([]string, 0, len(c.Symbols))
	for s := range c.Symbols {
		out = append(out, s)
	}
	return out
}

// parseSymbols reads MARKET_SYMBOLS in the form "AAPL=150.5,GOOGL=2530.4".
// An empty value selects the built-in defaults.
func parseSymbols(raw string) (map[string]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		out := make(map[string]float64, len(defaultSymbols))
		for k, p := range defaultSymbols {
			out[k] = p
		}
		return out, nil
	}

	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		sym, priceStr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if !ok || sym == "" {
			return nil, fmt.Errorf("invalid market symbol entry %q, want SYMBOL=PRICE", pair)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", sym, err)
		}
		if price <= 0 {
			return nil, fmt.Errorf("price for %s must be > 0", sym)
		}
		out[sym] = price
	}
	return out, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
