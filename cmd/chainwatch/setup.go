package main

import (
	"context"
	"fmt"
	"os"

	"github.com/liamashdown/chainwatch/internal/alerts"
	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/api"
	"github.com/liamashdown/chainwatch/internal/chain"
	"github.com/liamashdown/chainwatch/internal/config"
	"github.com/liamashdown/chainwatch/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// newLogger creates the process logger
func newLogger(c *cli.Context) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
	if c.Bool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// loadConfig loads configuration and applies LOG_LEVEL
func loadConfig(c *cli.Context, log *logrus.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if !c.Bool("verbose") {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		log.SetLevel(level)
	}
	return cfg, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// stores bundles the ledger and log chosen by configuration
type stores struct {
	ledger  storage.Ledger
	txlog   storage.Log
	pingers []api.Pinger
	closers []func() error
}

func (s *stores) Close(log *logrus.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}
}

// openStores connects the transaction log and alert ledger
func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*stores, error) {
	s := &stores{}

	var db *storage.DB
	switch cfg.StorageDriver {
	case config.StorageMySQL:
		var err error
		db, err = storage.New(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		s.pingers = append(s.pingers, db)

		if err := db.AutoMigrate(); err != nil {
			s.Close(log)
			return nil, fmt.Errorf("run database migrations: %w", err)
		}
		log.Info("Database connected and migrated")

		s.txlog = storage.NewSQLLog(db, cfg.LogCapacity)
	default:
		log.Warn("Using in-memory storage, nothing survives a restart")
		s.txlog = storage.NewMemoryLog(cfg.LogCapacity)
	}

	switch {
	case cfg.LedgerBackend == config.LedgerRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s.closers = append(s.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			s.Close(log)
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.pingers = append(s.pingers, pingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		s.ledger = storage.NewRedisLedger(client, cfg.RedisLedgerKey)
		log.WithField("key", cfg.RedisLedgerKey).Info("Redis ledger connected")
	case db != nil:
		s.ledger = storage.NewSQLLedger(db)
	default:
		s.ledger = storage.NewMemoryLedger()
	}

	return s, nil
}

// newAnalyzer builds the analyzer with built-in and file-provided labels
func newAnalyzer(cfg *config.Config, log *logrus.Logger) (*analyzer.Analyzer, error) {
	known := analyzer.DefaultKnownAddresses()
	if cfg.KnownAddressesFile != "" {
		extra, err := analyzer.LoadKnownAddresses(cfg.KnownAddressesFile)
		if err != nil {
			return nil, err
		}
		known = known.Merge(extra)
		log.WithFields(logrus.Fields{
			"file":   cfg.KnownAddressesFile,
			"labels": len(extra),
		}).Info("Known addresses loaded")
	}

	return analyzer.New(known,
		analyzer.WithWhaleThreshold(cfg.WhaleThreshold),
		analyzer.WithRoundNumbers(cfg.RoundNumbers),
	), nil
}

// dialChain connects to the node
func dialChain(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*chain.Client, error) {
	return chain.Dial(ctx, chain.Options{
		URL:           cfg.RPCURL,
		RPS:           cfg.NodeRPS,
		RetryAttempts: cfg.NodeRetryAttempts,
		PollInterval:  cfg.PollInterval,
	}, log)
}

// createAlertSender builds one sender per configured alert mode
func createAlertSender(cfg *config.Config, log *logrus.Logger) (*alerts.MultiSender, func(), error) {
	explorer := alerts.Explorer(cfg.ExplorerURL)

	var (
		senders []alerts.Sender
		closers []func()
	)
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, mode := range cfg.AlertModes() {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			// Add a sender for each webhook URL
			for _, url := range cfg.DiscordWebhookURLs {
				senders = append(senders, alerts.NewDiscordSender(url, explorer, cfg.Environment))
			}
		case "smtp":
			senders = append(senders, alerts.NewSMTPSender(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
				explorer,
				cfg.Environment,
			))
		case "telegram":
			senders = append(senders, alerts.NewTelegramSender(
				cfg.TelegramAPIURL,
				cfg.TelegramBotToken,
				cfg.TelegramChatID,
				explorer,
			))
		case "nats":
			s, err := alerts.NewNATSSender(cfg.NATSURL, cfg.NATSSubject)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			senders = append(senders, s)
			closers = append(closers, s.Close)
		case "kafka":
			s, err := alerts.NewKafkaSender(cfg.KafkaBrokers, cfg.KafkaTopic)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			senders = append(senders, s)
			closers = append(closers, func() {
				if err := s.Close(); err != nil {
					log.WithError(err).Warn("Failed to close kafka producer")
				}
			})
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	if len(senders) == 0 {
		log.Warn("No valid alert senders configured, using log")
		senders = append(senders, alerts.NewLogSender(log))
	}

	return alerts.NewMultiSender(senders...), cleanup, nil
}
