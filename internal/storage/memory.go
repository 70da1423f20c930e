package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/liamashdown/chainwatch/internal/analyzer"
)

// MemoryLedger is a process-local ledger for tests and dry runs
type MemoryLedger struct {
	mu     sync.Mutex
	hashes map[string]struct{}
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{hashes: make(map[string]struct{})}
}

func (l *MemoryLedger) Contains(_ context.Context, hash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.hashes[strings.ToLower(hash)]
	return ok, nil
}

func (l *MemoryLedger) MarkIfAbsent(_ context.Context, hash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hash = strings.ToLower(hash)
	if _, ok := l.hashes[hash]; ok {
		return false, nil
	}
	l.hashes[hash] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) Count(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.hashes)), nil
}

// MemoryLog is a process-local capped log
type MemoryLog struct {
	mu       sync.RWMutex
	capacity int
	records  []*analyzer.AnalyzedTransaction
}

// NewMemoryLog creates a log holding at most capacity records
func NewMemoryLog(capacity int) *MemoryLog {
	return &MemoryLog{capacity: capacity}
}

func (l *MemoryLog) Append(_ context.Context, rec *analyzer.AnalyzedTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, rec)
	if excess := len(l.records) - l.capacity; excess > 0 {
		l.records = append([]*analyzer.AnalyzedTransaction(nil), l.records[excess:]...)
	}
	return nil
}

func (l *MemoryLog) All(_ context.Context) ([]*analyzer.AnalyzedTransaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*analyzer.AnalyzedTransaction, len(l.records))
	copy(out, l.records)
	return out, nil
}

func (l *MemoryLog) Recent(_ context.Context, n int) ([]*analyzer.AnalyzedTransaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.records) {
		n = len(l.records)
	}
	if n < 0 {
		n = 0
	}
	out := make([]*analyzer.AnalyzedTransaction, 0, n)
	for i := len(l.records) - 1; i >= len(l.records)-n; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

func (l *MemoryLog) Stats(_ context.Context) (LogStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := LogStats{Count: len(l.records)}
	if len(l.records) > 0 {
		stats.Last = l.records[len(l.records)-1]
	}
	return stats, nil
}

var (
	_ Ledger = (*MemoryLedger)(nil)
	_ Log    = (*MemoryLog)(nil)
)
