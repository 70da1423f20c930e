package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/liamashdown/chainwatch/internal/alerts"
	"github.com/liamashdown/chainwatch/internal/classifier"
	"github.com/liamashdown/chainwatch/internal/monitor"
	"github.com/liamashdown/chainwatch/internal/query"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func stats(c *cli.Context) error {
	log := newLogger(c)
	cfg, err := loadConfig(c, log)
	if err != nil {
		return err
	}

	st, err := openStores(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close(log)

	s, err := query.New(st.txlog, st.ledger).GetStats(c.Context)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	return printJSON(s)
}

func scanBlock(c *cli.Context) error {
	number, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid block number %q: %w", c.Args().First(), err)
	}

	log := newLogger(c)
	cfg, err := loadConfig(c, log)
	if err != nil {
		return err
	}

	st, err := openStores(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close(log)

	an, err := newAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	client, err := dialChain(c.Context, cfg, log)
	if err != nil {
		return fmt.Errorf("connect to node: %w", err)
	}
	defer client.Close()

	mon := monitor.New(client, an, st.ledger, st.txlog, monitor.Options{
		TrackedAddress: cfg.MonitorAddress,
		Filter: classifier.Filter{
			MinValue:        cfg.MinAlertValue,
			IgnoreZeroValue: cfg.IgnoreZeroValue,
		},
		Workers: cfg.Workers,
	}, log)

	var onMatch monitor.MatchFunc
	if c.Bool("notify") {
		sender, closeSenders, err := createAlertSender(cfg, log)
		if err != nil {
			return err
		}
		defer closeSenders()

		queue := alerts.NewQueue(sender, alertQueueSize, alertQueueWorkers, alertTimeout, log)
		defer drainAlerts(queue, log)
		onMatch = notify(queue)
	}

	if err := mon.ProcessBlock(c.Context, number, onMatch); err != nil {
		return err
	}

	log.WithField("block", number).Info("Block scanned")
	return nil
}

func inspect(c *cli.Context) error {
	hash := c.Args().First()
	if hash == "" {
		return fmt.Errorf("transaction hash is required")
	}

	log := newLogger(c)
	cfg, err := loadConfig(c, log)
	if err != nil {
		return err
	}

	an, err := newAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	client, err := dialChain(c.Context, cfg, log)
	if err != nil {
		return fmt.Errorf("connect to node: %w", err)
	}
	defer client.Close()

	raw, err := client.FetchTransaction(c.Context, hash)
	if err != nil {
		return fmt.Errorf("fetch transaction: %w", err)
	}

	filter := classifier.Filter{MinValue: cfg.MinAlertValue, IgnoreZeroValue: cfg.IgnoreZeroValue}
	alert, reason := filter.ShouldAlert(raw)

	log.WithFields(logrus.Fields{
		"involved":      classifier.IsInvolved(raw, cfg.MonitorAddress),
		"would_alert":   alert,
		"filter_reason": reason,
	}).Info("Transaction inspected")

	return printJSON(an.Analyze(classifier.Format(raw, cfg.MonitorAddress), cfg.MonitorAddress))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
