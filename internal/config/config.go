package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/liamashdown/chainwatch/internal/secrets"
	"github.com/shopspring/decimal"
)

// StorageDriver selects where the transaction log and database ledger live
type StorageDriver string

const (
	StorageMySQL  StorageDriver = "mysql"
	StorageMemory StorageDriver = "memory"
)

// LedgerBackend selects the alert ledger implementation
type LedgerBackend string

const (
	LedgerDatabase LedgerBackend = "database"
	LedgerRedis    LedgerBackend = "redis"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// foundRowsPattern matches a DSN that makes MySQL report matched instead of
// changed rows, which the SQL ledger relies on to detect duplicates
var foundRowsPattern = regexp.MustCompile(`(?i)[?&]clientFoundRows=(true|1)(&|$)`)

var validAlertModes = map[string]bool{
	"log":      true,
	"discord":  true,
	"smtp":     true,
	"telegram": true,
	"nats":     true,
	"kafka":    true,
}

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Node
	RPCURL            string        `env:"RPC_URL"`
	NodeRPS           float64       `env:"NODE_RPS" envDefault:"25"`
	NodeRetryAttempts int           `env:"NODE_RETRY_ATTEMPTS" envDefault:"3"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"4s"`

	// Tracked address and alert filters
	MonitorAddress  string          `env:"MONITOR_ADDRESS"`
	MinAlertValue   decimal.Decimal `env:"-"`
	IgnoreZeroValue bool            `env:"IGNORE_ZERO_VALUE" envDefault:"false"`

	// Analyzer
	WhaleThreshold     decimal.Decimal   `env:"-"`
	RoundNumbers       []decimal.Decimal `env:"-"`
	KnownAddressesFile string            `env:"KNOWN_ADDRESSES_FILE"`

	// Monitor
	Workers int `env:"WORKERS" envDefault:"8"`

	// Storage
	StorageDriver       StorageDriver `env:"STORAGE_DRIVER" envDefault:"mysql"`
	LogCapacity         int           `env:"LOG_CAPACITY" envDefault:"1000"`
	DatabaseDSN         string        `env:"DATABASE_DSN" envDefault:"chainwatch:chainwatch@tcp(mysql:3306)/chainwatch?parseTime=true"`
	DatabaseMaxConns    int           `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	DatabaseMaxIdleTime time.Duration `env:"DATABASE_MAX_IDLE_TIME" envDefault:"5m"`

	// Ledger
	LedgerBackend  LedgerBackend `env:"LEDGER_BACKEND" envDefault:"database"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	RedisLedgerKey string        `env:"REDIS_LEDGER_KEY" envDefault:"chainwatch:alerted"`

	// Alerts
	AlertMode          string        `env:"ALERT_MODE" envDefault:"log"`
	ExplorerURL        string        `env:"EXPLORER_URL" envDefault:"https://etherscan.io"`
	DiscordWebhookURLs []string      `env:"DISCORD_WEBHOOK_URLS" envSeparator:","`
	SMTPHost           string        `env:"SMTP_HOST"`
	SMTPPort           int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser           string        `env:"SMTP_USER"`
	SMTPPassword       string        `env:"SMTP_PASSWORD"`
	SMTPFrom           string        `env:"SMTP_FROM" envDefault:"chainwatch@example.com"`
	SMTPTo             []string      `env:"SMTP_TO" envSeparator:","`
	TelegramBotToken   string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID     string        `env:"TELEGRAM_CHAT_ID"`
	TelegramAPIURL     string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	NATSURL            string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NATSSubject        string        `env:"NATS_SUBJECT" envDefault:"chainwatch.alerts"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic         string        `env:"KAFKA_TOPIC" envDefault:"chainwatch-alerts"`
	SummaryInterval    time.Duration `env:"SUMMARY_INTERVAL" envDefault:"24h"`

	// HTTP (API + health + metrics)
	HTTPPort int `env:"HTTP_PORT" envDefault:"3001"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	// Amounts are read as text first so surrounding spaces can be trimmed
	var raw amounts
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := raw.apply(cfg); err != nil {
		return nil, err
	}

	if err := secrets.ResolveAll(map[string]*string{
		"DATABASE_DSN":       &cfg.DatabaseDSN,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
		"SMTP_PASSWORD":      &cfg.SMTPPassword,
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramBotToken,
	}); err != nil {
		return nil, err
	}

	cfg.MonitorAddress = strings.ToLower(strings.TrimSpace(cfg.MonitorAddress))
	cfg.DiscordWebhookURLs = compact(cfg.DiscordWebhookURLs)
	cfg.SMTPTo = compact(cfg.SMTPTo)
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	u, err := url.Parse(c.RPCURL)
	if err != nil {
		return fmt.Errorf("invalid RPC_URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid RPC_URL scheme %q (must be http, https, ws or wss)", u.Scheme)
	}

	if !addressPattern.MatchString(c.MonitorAddress) {
		return fmt.Errorf("MONITOR_ADDRESS must be a 0x-prefixed 20 byte hex address, got %q", c.MonitorAddress)
	}

	if c.MinAlertValue.IsNegative() {
		return fmt.Errorf("MIN_ALERT_VALUE must not be negative")
	}
	if !c.WhaleThreshold.IsPositive() {
		return fmt.Errorf("WHALE_THRESHOLD must be positive")
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("LOG_CAPACITY must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive")
	}

	switch c.StorageDriver {
	case StorageMySQL:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when STORAGE_DRIVER is mysql")
		}
		if foundRowsPattern.MatchString(c.DatabaseDSN) {
			return fmt.Errorf("DATABASE_DSN must not set clientFoundRows=true (duplicate ledger marks would count as new)")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %s (must be mysql or memory)", c.StorageDriver)
	}

	switch c.LedgerBackend {
	case LedgerDatabase:
	case LedgerRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when LEDGER_BACKEND is redis")
		}
	default:
		return fmt.Errorf("invalid LEDGER_BACKEND: %s (must be database or redis)", c.LedgerBackend)
	}

	for _, mode := range c.AlertModes() {
		if !validAlertModes[mode] {
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp, telegram, nats, kafka)", mode)
		}
		switch mode {
		case "discord":
			if len(c.DiscordWebhookURLs) == 0 {
				return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE")
			}
		case "smtp":
			if c.SMTPHost == "" || len(c.SMTPTo) == 0 {
				return fmt.Errorf("SMTP_HOST and SMTP_TO are required when smtp is in ALERT_MODE")
			}
		case "telegram":
			if c.TelegramBotToken == "" || c.TelegramChatID == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when telegram is in ALERT_MODE")
			}
		case "kafka":
			if len(c.KafkaBrokers) == 0 {
				return fmt.Errorf("KAFKA_BROKERS is required when kafka is in ALERT_MODE")
			}
		}
	}

	return nil
}

// AlertModes returns the trimmed, non-empty entries of ALERT_MODE
func (c *Config) AlertModes() []string {
	return compact(strings.Split(c.AlertMode, ","))
}

// amounts holds the decimal settings as text
type amounts struct {
	MinAlertValue  string   `env:"MIN_ALERT_VALUE" envDefault:"0.001"`
	WhaleThreshold string   `env:"WHALE_THRESHOLD" envDefault:"10"`
	RoundNumbers   []string `env:"ROUND_NUMBERS" envSeparator:"," envDefault:"1,5,10,50,100"`
}

func (a amounts) apply(cfg *Config) error {
	var err error
	if cfg.MinAlertValue, err = parseDecimal("MIN_ALERT_VALUE", a.MinAlertValue); err != nil {
		return err
	}
	if cfg.WhaleThreshold, err = parseDecimal("WHALE_THRESHOLD", a.WhaleThreshold); err != nil {
		return err
	}

	cfg.RoundNumbers = nil
	for _, item := range compact(a.RoundNumbers) {
		n, err := parseDecimal("ROUND_NUMBERS", item)
		if err != nil {
			return err
		}
		cfg.RoundNumbers = append(cfg.RoundNumbers, n)
	}
	return nil
}

func parseDecimal(key, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func compact(items []string) []string {
	var result []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
