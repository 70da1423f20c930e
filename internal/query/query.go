package query

import (
	"context"
	"fmt"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/storage"
	"github.com/shopspring/decimal"
)

// DefaultRecentLimit is used when ListRecent gets a non-positive n
const DefaultRecentLimit = 10

// valuePlaces is the number of decimals in reported totals
const valuePlaces = 4

// RiskDistribution counts records per risk level
type RiskDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Stats aggregates the current log
type Stats struct {
	TotalTransactions    int                           `json:"total_transactions"`
	TotalAlerted         int64                         `json:"total_alerted"`
	TotalValue           string                        `json:"total_value"`
	AverageValue         string                        `json:"average_value"`
	RiskDistribution     RiskDistribution              `json:"risk_distribution"`
	CategoryDistribution map[analyzer.Category]int     `json:"category_distribution"`
	LastTransaction      *analyzer.AnalyzedTransaction `json:"last_transaction"`
}

// Service answers read queries over the transaction log and ledger
type Service struct {
	log    storage.Log
	ledger storage.Ledger
}

// New creates a query service
func New(log storage.Log, ledger storage.Ledger) *Service {
	return &Service{log: log, ledger: ledger}
}

// ListTransactions returns every record in discovery order
func (s *Service) ListTransactions(ctx context.Context) ([]*analyzer.AnalyzedTransaction, error) {
	return s.log.All(ctx)
}

// ListRecent returns the n most recent records, newest first
func (s *Service) ListRecent(ctx context.Context, n int) ([]*analyzer.AnalyzedTransaction, error) {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	return s.log.Recent(ctx, n)
}

// ListHighRisk returns records with risk level HIGH
func (s *Service) ListHighRisk(ctx context.Context) ([]*analyzer.AnalyzedTransaction, error) {
	return s.filter(ctx, func(tx *analyzer.AnalyzedTransaction) bool {
		return tx.RiskLevel == analyzer.RiskHigh
	})
}

// ListWhales returns whale records
func (s *Service) ListWhales(ctx context.Context) ([]*analyzer.AnalyzedTransaction, error) {
	return s.filter(ctx, func(tx *analyzer.AnalyzedTransaction) bool {
		return tx.IsWhale
	})
}

// GetStats scans the log and aggregates value, risk and category counts
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	records, err := s.log.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	alerted, err := s.ledger.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count alerted: %w", err)
	}

	stats := &Stats{
		TotalTransactions:    len(records),
		TotalAlerted:         alerted,
		CategoryDistribution: make(map[analyzer.Category]int),
	}

	total := decimal.Zero
	for _, tx := range records {
		total = total.Add(tx.Value)

		switch tx.RiskLevel {
		case analyzer.RiskHigh:
			stats.RiskDistribution.High++
		case analyzer.RiskMedium:
			stats.RiskDistribution.Medium++
		case analyzer.RiskLow:
			stats.RiskDistribution.Low++
		}
		stats.CategoryDistribution[tx.Category]++
	}

	average := decimal.Zero
	if len(records) > 0 {
		average = total.Div(decimal.NewFromInt(int64(len(records))))
		stats.LastTransaction = records[len(records)-1]
	}

	stats.TotalValue = total.StringFixed(valuePlaces)
	stats.AverageValue = average.StringFixed(valuePlaces)
	return stats, nil
}

func (s *Service) filter(ctx context.Context, keep func(*analyzer.AnalyzedTransaction) bool) ([]*analyzer.AnalyzedTransaction, error) {
	records, err := s.log.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*analyzer.AnalyzedTransaction, 0)
	for _, tx := range records {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}
