package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/chain"
	"github.com/liamashdown/chainwatch/internal/classifier"
	"github.com/liamashdown/chainwatch/internal/metrics"
	"github.com/liamashdown/chainwatch/internal/retry"
	"github.com/liamashdown/chainwatch/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ErrStopped is returned by Start once the monitor has been stopped
var ErrStopped = errors.New("monitor stopped")

// ChainClient is the subset of the node client the monitor needs
type ChainClient interface {
	BlockTransactionHashes(ctx context.Context, number uint64) ([]string, error)
	Transaction(ctx context.Context, hash string) (*chain.Transaction, error)
	Receipt(ctx context.Context, hash string) (*chain.Receipt, error)
	SubscribeNewBlocks(ctx context.Context) (*chain.Subscription, error)
}

// MatchFunc is called once for every newly alerted transaction
type MatchFunc func(ctx context.Context, tx *analyzer.AnalyzedTransaction)

// State of the monitor
type State int

const (
	StateIdle State = iota
	StateMonitoring
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a Monitor
type Options struct {
	TrackedAddress string
	Filter         classifier.Filter
	Workers        int
}

// Monitor scans every new block for transactions touching the tracked
// address and runs matches through filter, analysis, ledger and log
type Monitor struct {
	client   ChainClient
	analyzer *analyzer.Analyzer
	ledger   storage.Ledger
	txlog    storage.Log
	tracked  string
	filter   classifier.Filter
	sem      *semaphore.Weighted
	log      *logrus.Logger

	resubscribeDelay time.Duration

	mu       sync.Mutex
	state    State
	starting bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	onMatch  MatchFunc

	inflight sync.WaitGroup
}

// New creates a monitor in the Idle state
func New(
	client ChainClient,
	an *analyzer.Analyzer,
	ledger storage.Ledger,
	txlog storage.Log,
	opts Options,
	log *logrus.Logger,
) *Monitor {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	return &Monitor{
		client:           client,
		analyzer:         an,
		ledger:           ledger,
		txlog:            txlog,
		tracked:          strings.ToLower(opts.TrackedAddress),
		filter:           opts.Filter,
		sem:              semaphore.NewWeighted(int64(opts.Workers)),
		log:              log,
		resubscribeDelay: time.Second,
	}
}

// State returns the current lifecycle state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start subscribes to new blocks and processes them until Stop is called or
// ctx is done, after which the monitor is Stopped. Calling Start while
// monitoring, or while another Start is subscribing, is a no-op.
func (m *Monitor) Start(ctx context.Context, onMatch MatchFunc) error {
	m.mu.Lock()
	switch {
	case m.state == StateStopped:
		m.mu.Unlock()
		return ErrStopped
	case m.state == StateMonitoring || m.starting:
		m.mu.Unlock()
		return nil
	}
	m.starting = true
	m.mu.Unlock()

	// Websocket subscriptions dial the node, so the lock is released here
	loopCtx, cancel := context.WithCancel(ctx)
	sub, err := m.client.SubscribeNewBlocks(loopCtx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false

	if err != nil {
		cancel()
		return fmt.Errorf("subscribe new blocks: %w", err)
	}
	if m.state == StateStopped {
		cancel()
		sub.Unsubscribe()
		return ErrStopped
	}

	m.cancel = cancel
	m.onMatch = onMatch
	m.loopDone = make(chan struct{})
	m.state = StateMonitoring

	go m.run(loopCtx, sub)

	m.log.WithField("address", m.tracked).Info("Monitoring started")
	return nil
}

// Stop ends block delivery and moves to Stopped. Lookups already in flight
// may still finish; use Wait to drain them. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateMonitoring {
		m.state = StateStopped
		m.mu.Unlock()
		return
	}
	m.state = StateStopped
	cancel, done := m.cancel, m.loopDone
	m.mu.Unlock()

	cancel()
	<-done
	m.log.Info("Monitoring stopped")
}

// Wait blocks until every dispatched transaction lookup has finished
func (m *Monitor) Wait() {
	m.inflight.Wait()
}

// ProcessBlock scans one block and waits for all of its lookups
func (m *Monitor) ProcessBlock(ctx context.Context, number uint64, onMatch MatchFunc) error {
	block, err := m.dispatch(ctx, number, onMatch)
	if block != nil {
		block.Wait()
	}
	return err
}

func (m *Monitor) run(ctx context.Context, sub *chain.Subscription) {
	defer close(m.loopDone)
	defer m.finish(ctx)
	defer func() { sub.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return

		case number, ok := <-sub.Blocks():
			if !ok {
				if ctx.Err() != nil {
					return
				}
				var err error
				select {
				case err = <-sub.Err():
				default:
				}
				m.log.WithError(err).Error("Block subscription ended, resubscribing")

				next, err := m.resubscribe(ctx)
				if err != nil {
					return
				}
				sub = next
				continue
			}

			// Errors are logged inside dispatch; the block is skipped
			_, _ = m.dispatch(ctx, number, m.onMatch)
		}
	}
}

// finish moves to Stopped when the loop exits on its own
func (m *Monitor) finish(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateMonitoring {
		return
	}
	m.state = StateStopped
	m.log.WithError(context.Cause(ctx)).Info("Monitoring stopped")
}

func (m *Monitor) resubscribe(ctx context.Context) (*chain.Subscription, error) {
	var sub *chain.Subscription
	err := retry.Do(ctx, retry.Policy{
		MaxAttempts: math.MaxInt32,
		BaseDelay:   m.resubscribeDelay,
		MaxDelay:    30 * time.Second,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			m.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"wait":    wait.String(),
			}).Warn("Resubscribe failed")
		},
	}, func(ctx context.Context) error {
		s, err := m.client.SubscribeNewBlocks(ctx)
		sub = s
		return err
	})
	return sub, err
}

// dispatch fetches the block's hash list and hands each hash to the worker
// pool. It returns once every hash is dispatched; the returned group tracks
// completion of this block's lookups.
func (m *Monitor) dispatch(ctx context.Context, number uint64, onMatch MatchFunc) (*sync.WaitGroup, error) {
	start := time.Now()

	hashes, err := m.client.BlockTransactionHashes(ctx, number)
	if err != nil {
		metrics.RecordBlock(time.Since(start), 0, err)
		if ctx.Err() == nil {
			m.log.WithError(err).WithField("block", number).Warn("Failed to fetch block, skipping")
		}
		return nil, fmt.Errorf("fetch block %d: %w", number, err)
	}

	m.log.WithFields(logrus.Fields{
		"block":        number,
		"transactions": len(hashes),
	}).Debug("Scanning block")

	var block sync.WaitGroup
	for _, hash := range hashes {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			metrics.RecordBlock(time.Since(start), 0, err)
			return &block, fmt.Errorf("dispatch block %d: %w", number, err)
		}

		block.Add(1)
		m.inflight.Add(1)
		go func(hash string) {
			defer m.inflight.Done()
			defer block.Done()
			defer m.sem.Release(1)

			m.processHash(ctx, hash, onMatch)
		}(hash)
	}

	metrics.RecordBlock(time.Since(start), len(hashes), nil)
	return &block, nil
}

// processHash looks up one transaction and runs the pipeline if it touches
// the tracked address
func (m *Monitor) processHash(ctx context.Context, hash string, onMatch MatchFunc) {
	tx, err := m.client.Transaction(ctx, hash)
	if err != nil {
		entry := m.log.WithError(err).WithField("tx_hash", hash)
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, chain.ErrNotFound):
			entry.Debug("Transaction not found, skipping")
		default:
			entry.Warn("Failed to fetch transaction, skipping")
		}
		return
	}

	if !classifier.IsInvolved(tx.WithReceipt(nil), m.tracked) {
		return
	}

	receipt, err := m.client.Receipt(ctx, hash)
	if err != nil && !errors.Is(err, chain.ErrPending) {
		if ctx.Err() == nil {
			m.log.WithError(err).WithField("tx_hash", hash).Warn("Failed to fetch receipt, skipping")
		}
		return
	}

	m.handleMatch(ctx, tx.WithReceipt(receipt), onMatch)
}

// handleMatch runs classify, filter, analyze, mark and append for one
// involved transaction
func (m *Monitor) handleMatch(ctx context.Context, raw chain.RawTransaction, onMatch MatchFunc) {
	classified := classifier.Format(raw, m.tracked)

	if ok, reason := m.filter.ShouldAlert(raw); !ok {
		metrics.RecordMatch("filtered_" + string(reason))
		m.log.WithFields(logrus.Fields{
			"tx_hash": raw.Hash,
			"value":   raw.Value.String(),
			"status":  raw.Status,
			"reason":  reason,
		}).Debug("Transaction filtered")
		return
	}

	analyzed := m.analyzer.Analyze(classified, m.tracked)

	// Once the hash is marked the record must reach the log, so persistence
	// ignores cancellation from here on.
	persistCtx := context.WithoutCancel(ctx)

	fresh, err := m.ledger.MarkIfAbsent(persistCtx, raw.Hash)
	if err != nil {
		metrics.RecordMatch("storage_error")
		m.log.WithError(err).WithField("tx_hash", raw.Hash).Error("Failed to mark transaction as alerted")
		return
	}
	if !fresh {
		metrics.RecordMatch("duplicate")
		m.log.WithField("tx_hash", raw.Hash).Debug("Transaction already alerted")
		return
	}

	if err := m.txlog.Append(persistCtx, analyzed); err != nil {
		metrics.RecordMatch("storage_error")
		m.log.WithError(err).WithField("tx_hash", raw.Hash).Error("Failed to append transaction to log")
		return
	}

	metrics.RecordMatch("alerted")
	metrics.RecordRiskScore(analyzed.RiskScore)

	m.log.WithFields(logrus.Fields{
		"tx_hash":    analyzed.Hash,
		"block":      analyzed.BlockNumber,
		"direction":  analyzed.Direction,
		"value":      analyzed.Value.String(),
		"category":   analyzed.Category,
		"risk_score": analyzed.RiskScore,
		"risk_level": analyzed.RiskLevel,
	}).Info("Transaction matched")

	if onMatch != nil {
		onMatch(persistCtx, analyzed)
	}
}
