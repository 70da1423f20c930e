package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liamashdown/chainwatch/internal/alerts"
	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/api"
	"github.com/liamashdown/chainwatch/internal/classifier"
	"github.com/liamashdown/chainwatch/internal/monitor"
	"github.com/liamashdown/chainwatch/internal/query"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const (
	// alertTimeout bounds one delivery across all senders
	alertTimeout = 30 * time.Second

	alertQueueSize    = 256
	alertQueueWorkers = 2
)

func run(c *cli.Context) error {
	log := newLogger(c)
	log.Info("Starting chainwatch service...")

	cfg, err := loadConfig(c, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":     cfg.Environment,
		"monitor_address": cfg.MonitorAddress,
		"min_alert_value": cfg.MinAlertValue.String(),
		"storage_driver":  cfg.StorageDriver,
		"ledger_backend":  cfg.LedgerBackend,
		"workers":         cfg.Workers,
		"alert_mode":      cfg.AlertMode,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open storage")
	}
	defer st.Close(log)

	an, err := newAnalyzer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load known addresses")
	}

	sender, closeSenders, err := createAlertSender(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize alert senders")
	}
	defer closeSenders()

	client, err := dialChain(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to node")
	}
	defer client.Close()

	head, balance, err := client.Ping(ctx, cfg.MonitorAddress)
	if err != nil {
		log.WithError(err).Fatal("Node connectivity check failed")
	}
	log.WithFields(logrus.Fields{
		"latest_block": head,
		"balance":      balance.String(),
	}).Info("Connected to node")

	q := query.New(st.txlog, st.ledger)
	logStartupStats(ctx, q, log, "Stats")

	mon := monitor.New(client, an, st.ledger, st.txlog, monitor.Options{
		TrackedAddress: cfg.MonitorAddress,
		Filter: classifier.Filter{
			MinValue:        cfg.MinAlertValue,
			IgnoreZeroValue: cfg.IgnoreZeroValue,
		},
		Workers: cfg.Workers,
	}, log)

	queue := alerts.NewQueue(sender, alertQueueSize, alertQueueWorkers, alertTimeout, log)
	if err := mon.Start(ctx, notify(queue)); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	server := api.New(q, log, st.pingers...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.HTTPPort)
	})
	g.Go(func() error {
		runSummaries(gctx, cfg.SummaryInterval, q, sender, log)
		return nil
	})

	log.Info("Agent is now running")

	err = g.Wait()

	log.Info("Shutting down gracefully")
	mon.Stop()
	mon.Wait()
	drainAlerts(queue, log)
	logStartupStats(context.Background(), q, log, "Final stats")

	return err
}

// notify returns the monitor callback that queues a match for delivery.
// Delivery failures never reach the monitor.
func notify(queue *alerts.Queue) monitor.MatchFunc {
	return func(_ context.Context, tx *analyzer.AnalyzedTransaction) {
		queue.Enqueue(tx)
	}
}

// drainAlerts waits for queued alerts to go out before senders are closed
func drainAlerts(queue *alerts.Queue, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	if err := queue.Close(ctx); err != nil {
		log.WithError(err).Warn("Alert queue not drained")
	}
}

// runSummaries sends the stats summary every interval until ctx is done
func runSummaries(ctx context.Context, interval time.Duration, q *query.Service, sender alerts.SummarySender, log *logrus.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := q.GetStats(ctx)
			if err != nil {
				log.WithError(err).Error("Failed to compute summary")
				continue
			}

			sendCtx, cancel := context.WithTimeout(ctx, alertTimeout)
			if err := sender.SendSummary(sendCtx, stats); err != nil {
				log.WithError(err).Error("Failed to send summary")
			}
			cancel()
		}
	}
}

func logStartupStats(ctx context.Context, q *query.Service, log *logrus.Logger, msg string) {
	stats, err := q.GetStats(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read stats")
		return
	}
	log.WithFields(logrus.Fields{
		"total_transactions": stats.TotalTransactions,
		"total_alerted":      stats.TotalAlerted,
	}).Info(msg)
}
