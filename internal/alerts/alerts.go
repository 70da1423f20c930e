package alerts

import (
	"context"
	"strings"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/query"
)

// Sender delivers alerts for matched transactions
type Sender interface {
	// Name identifies the channel in logs and metrics
	Name() string
	Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error
}

// SummarySender is implemented by senders that can also deliver the
// periodic stats summary
type SummarySender interface {
	SendSummary(ctx context.Context, stats *query.Stats) error
}

// Explorer builds block explorer links
type Explorer string

// TxURL returns the explorer page of a transaction
func (e Explorer) TxURL(hash string) string {
	return strings.TrimRight(string(e), "/") + "/tx/" + hash
}

// AddressURL returns the explorer page of an address
func (e Explorer) AddressURL(address string) string {
	return strings.TrimRight(string(e), "/") + "/address/" + address
}

// shortAddress shortens an address or hash for display
func shortAddress(s string) string {
	if s == "" {
		return "N/A"
	}
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
