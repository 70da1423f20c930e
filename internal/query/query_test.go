package query

import (
	"context"
	"testing"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/chain"
	"github.com/liamashdown/chainwatch/internal/classifier"
	"github.com/liamashdown/chainwatch/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(hash, value string, level analyzer.RiskLevel, category analyzer.Category, whale bool) *analyzer.AnalyzedTransaction {
	return &analyzer.AnalyzedTransaction{
		ClassifiedTransaction: classifier.ClassifiedTransaction{
			RawTransaction: chain.RawTransaction{
				Hash:   hash,
				Value:  decimal.RequireFromString(value),
				Status: chain.StatusSuccess,
			},
		},
		RiskLevel: level,
		Category:  category,
		IsWhale:   whale,
	}
}

func seeded(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()

	log := storage.NewMemoryLog(100)
	ledger := storage.NewMemoryLedger()

	records := []*analyzer.AnalyzedTransaction{
		rec("0x1", "15", analyzer.RiskLow, analyzer.CategoryWhaleAlert, true),
		rec("0x2", "0.5", analyzer.RiskMedium, analyzer.CategoryTransfer, false),
		rec("0x3", "120", analyzer.RiskHigh, analyzer.CategoryWhaleAlert, true),
		rec("0x4", "2.25", analyzer.RiskHigh, analyzer.CategoryContract, false),
	}
	for _, r := range records {
		require.NoError(t, log.Append(ctx, r))
		_, err := ledger.MarkIfAbsent(ctx, r.Hash)
		require.NoError(t, err)
	}
	// A hash can be alerted but evicted or never logged
	_, err := ledger.MarkIfAbsent(ctx, "0x5")
	require.NoError(t, err)

	return New(log, ledger)
}

func hashes(txs []*analyzer.AnalyzedTransaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Hash
	}
	return out
}

func TestListTransactions(t *testing.T) {
	txs, err := seeded(t).ListTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1", "0x2", "0x3", "0x4"}, hashes(txs))
}

func TestListRecent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	txs, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x4", "0x3"}, hashes(txs))

	txs, err = s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x4", "0x3", "0x2", "0x1"}, hashes(txs))
}

func TestListHighRiskAndWhales(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	high, err := s.ListHighRisk(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x3", "0x4"}, hashes(high))

	whales, err := s.ListWhales(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x1", "0x3"}, hashes(whales))
}

func TestGetStats(t *testing.T) {
	stats, err := seeded(t).GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalTransactions)
	assert.Equal(t, int64(5), stats.TotalAlerted)
	assert.Equal(t, "137.7500", stats.TotalValue)
	assert.Equal(t, "34.4375", stats.AverageValue)
	assert.Equal(t, RiskDistribution{High: 2, Medium: 1, Low: 1}, stats.RiskDistribution)
	assert.Equal(t, map[analyzer.Category]int{
		analyzer.CategoryWhaleAlert: 2,
		analyzer.CategoryTransfer:   1,
		analyzer.CategoryContract:   1,
	}, stats.CategoryDistribution)
	require.NotNil(t, stats.LastTransaction)
	assert.Equal(t, "0x4", stats.LastTransaction.Hash)
}

func TestGetStatsEmpty(t *testing.T) {
	s := New(storage.NewMemoryLog(10), storage.NewMemoryLedger())

	stats, err := s.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTransactions)
	assert.Equal(t, "0.0000", stats.TotalValue)
	assert.Equal(t, "0.0000", stats.AverageValue)
	assert.Nil(t, stats.LastTransaction)
	assert.Empty(t, stats.CategoryDistribution)
}
