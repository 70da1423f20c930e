package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Queue delivers alerts in the background so block processing never waits
// on a slow destination. Alerts offered while the buffer is full are dropped.
type Queue struct {
	sender  Sender
	timeout time.Duration
	log     *logrus.Logger
	items   chan *analyzer.AnalyzedTransaction

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts workers goroutines draining a buffer of size alerts. Each
// delivery is bounded by timeout.
func NewQueue(sender Sender, size, workers int, timeout time.Duration, log *logrus.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}

	q := &Queue{
		sender:  sender,
		timeout: timeout,
		log:     log,
		items:   make(chan *analyzer.AnalyzedTransaction, size),
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

// Enqueue hands tx to the workers without blocking and reports whether it
// was accepted
func (q *Queue) Enqueue(tx *analyzer.AnalyzedTransaction) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.closed {
		select {
		case q.items <- tx:
			return true
		default:
		}
	}

	metrics.RecordAlert("dropped", q.sender.Name())
	q.log.WithFields(logrus.Fields{
		"tx_hash": tx.Hash,
		"closed":  q.closed,
	}).Warn("Alert queue full, dropping alert")
	return false
}

// Close stops accepting alerts and waits for queued ones to be delivered or
// for ctx to end. Safe to call more than once.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()

	for tx := range q.items {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := q.sender.Send(ctx, tx); err != nil {
			q.log.WithError(err).WithField("tx_hash", tx.Hash).Error("Failed to send alert")
		}
		cancel()
	}
}
