package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/config"
	"github.com/liamashdown/chainwatch/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrStorageUnavailable wraps any failure of the ledger or log backend
var ErrStorageUnavailable = errors.New("storage unavailable")

// Ledger is the durable set of transaction hashes already alerted on
type Ledger interface {
	Contains(ctx context.Context, hash string) (bool, error)
	// MarkIfAbsent returns true only for the call that inserted hash
	MarkIfAbsent(ctx context.Context, hash string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// Log is the bounded, ordered sequence of analyzed transactions
type Log interface {
	Append(ctx context.Context, record *analyzer.AnalyzedTransaction) error
	// All returns records in discovery order, oldest first
	All(ctx context.Context) ([]*analyzer.AnalyzedTransaction, error)
	// Recent returns up to n records, newest first
	Recent(ctx context.Context, n int) ([]*analyzer.AnalyzedTransaction, error)
	Stats(ctx context.Context) (LogStats, error)
}

// LogStats summarizes the log
type LogStats struct {
	Count int
	Last  *analyzer.AnalyzedTransaction
}

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection, used by readiness probes
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates the ledger and log tables
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AlertedTransaction{},
		&LoggedTransaction{},
	)
}

// observe records metrics for a storage operation and wraps its error
func observe(operation string, start time.Time, err error) error {
	metrics.RecordStorageOp(operation, time.Since(start), err)
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", operation, ErrStorageUnavailable, err)
}

func newGormLogger(log *logrus.Logger) logger.Interface {
	return logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
