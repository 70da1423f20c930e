package alerts

import (
	"context"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/query"
	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Name() string { return "log" }

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error {
	s.log.WithFields(logrus.Fields{
		"tx_hash":    tx.Hash,
		"block":      tx.BlockNumber,
		"direction":  tx.Direction,
		"from":       tx.From,
		"from_label": tx.FromLabel,
		"to":         tx.To,
		"to_label":   tx.ToLabel,
		"value":      tx.Value.String(),
		"status":     tx.Status,
		"category":   tx.Category,
		"risk_score": tx.RiskScore,
		"risk_level": tx.RiskLevel,
	}).Info("Alert generated")
	return nil
}

// SendSummary logs the periodic summary
func (s *LogSender) SendSummary(ctx context.Context, stats *query.Stats) error {
	s.log.WithFields(logrus.Fields{
		"total_transactions": stats.TotalTransactions,
		"total_alerted":      stats.TotalAlerted,
		"total_value":        stats.TotalValue,
		"average_value":      stats.AverageValue,
		"risk_high":          stats.RiskDistribution.High,
		"risk_medium":        stats.RiskDistribution.Medium,
		"risk_low":           stats.RiskDistribution.Low,
	}).Info("Summary")
	return nil
}
