package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLLedger keeps alerted hashes in the alerted_transactions table
type SQLLedger struct {
	db *DB
}

// NewSQLLedger creates a ledger over db
func NewSQLLedger(db *DB) *SQLLedger {
	return &SQLLedger{db: db}
}

// Contains reports whether hash was marked
func (l *SQLLedger) Contains(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	var count int64
	err := l.db.conn.WithContext(ctx).
		Model(&AlertedTransaction{}).
		Where("hash = ?", strings.ToLower(hash)).
		Count(&count).Error
	if err := observe("ledger_contains", start, err); err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkIfAbsent inserts hash unless present. The primary key makes concurrent
// inserts of the same hash race safely: only one of them affects a row.
func (l *SQLLedger) MarkIfAbsent(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	row := AlertedTransaction{
		Hash:      strings.ToLower(hash),
		CreatedTS: time.Now().Unix(),
	}
	result := l.db.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if err := observe("ledger_mark", start, result.Error); err != nil {
		return false, err
	}
	// A duplicate reports zero rows unless the DSN sets clientFoundRows=true,
	// which config validation rejects
	return result.RowsAffected == 1, nil
}

// Count returns the number of marked hashes
func (l *SQLLedger) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	var count int64
	err := l.db.conn.WithContext(ctx).Model(&AlertedTransaction{}).Count(&count).Error
	if err := observe("ledger_count", start, err); err != nil {
		return 0, err
	}
	return count, nil
}

// SQLLog keeps the capped transaction log in the logged_transactions table
type SQLLog struct {
	db       *DB
	capacity int
	mu       sync.Mutex // serializes append+evict
}

// NewSQLLog creates a log over db holding at most capacity records
func NewSQLLog(db *DB, capacity int) *SQLLog {
	return &SQLLog{db: db, capacity: capacity}
}

// Append inserts rec and evicts the oldest rows beyond capacity in the same
// database transaction
func (l *SQLLog) Append(ctx context.Context, rec *analyzer.AnalyzedTransaction) error {
	row, err := toLoggedTransaction(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	err = l.db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&LoggedTransaction{}).Count(&count).Error; err != nil {
			return err
		}

		excess := int(count) - l.capacity
		if excess <= 0 {
			return nil
		}

		var ids []int64
		if err := tx.Model(&LoggedTransaction{}).
			Order("id ASC").
			Limit(excess).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		return tx.Delete(&LoggedTransaction{}, ids).Error
	})
	return observe("log_append", start, err)
}

// All returns every record, oldest first
func (l *SQLLog) All(ctx context.Context) ([]*analyzer.AnalyzedTransaction, error) {
	start := time.Now()
	var rows []LoggedTransaction
	err := l.db.conn.WithContext(ctx).Order("id ASC").Find(&rows).Error
	if err := observe("log_all", start, err); err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// Recent returns up to n records, newest first
func (l *SQLLog) Recent(ctx context.Context, n int) ([]*analyzer.AnalyzedTransaction, error) {
	if n <= 0 {
		return []*analyzer.AnalyzedTransaction{}, nil
	}

	start := time.Now()
	var rows []LoggedTransaction
	err := l.db.conn.WithContext(ctx).Order("id DESC").Limit(n).Find(&rows).Error
	if err := observe("log_recent", start, err); err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// Stats returns the record count and the newest record
func (l *SQLLog) Stats(ctx context.Context) (LogStats, error) {
	start := time.Now()
	var (
		count int64
		last  LoggedTransaction
	)
	err := l.db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&LoggedTransaction{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		return tx.Order("id DESC").First(&last).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		count, err = 0, nil
	}
	if err := observe("log_stats", start, err); err != nil {
		return LogStats{}, err
	}

	stats := LogStats{Count: int(count)}
	if count > 0 {
		rec, err := last.decode()
		if err != nil {
			return LogStats{}, err
		}
		stats.Last = rec
	}
	return stats, nil
}

func decodeRows(rows []LoggedTransaction) ([]*analyzer.AnalyzedTransaction, error) {
	records := make([]*analyzer.AnalyzedTransaction, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].decode()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

var (
	_ Ledger = (*SQLLedger)(nil)
	_ Log    = (*SQLLog)(nil)
)
