package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// Producer feeds block numbers into emit until ctx is done or emit returns
// false. A non-nil error ends the subscription and is reported on Err.
type Producer func(ctx context.Context, emit func(number uint64) bool) error

// Subscription delivers new block numbers in strictly increasing order.
// Numbers skipped by the producer are filled in, numbers already delivered
// are dropped.
type Subscription struct {
	blocks chan uint64
	errc   chan error
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSubscription runs produce in its own goroutine until Unsubscribe is
// called or ctx is done
func NewSubscription(ctx context.Context, produce Producer) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		blocks: make(chan uint64),
		errc:   make(chan error, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.blocks)

		var (
			last    uint64
			started bool
		)
		send := func(n uint64) bool {
			select {
			case s.blocks <- n:
				return true
			case <-ctx.Done():
				return false
			}
		}
		emit := func(n uint64) bool {
			if !started {
				started = true
				last = n
				return send(n)
			}
			for next := last + 1; next <= n; next++ {
				if !send(next) {
					return false
				}
				last = next
			}
			return ctx.Err() == nil
		}

		if err := produce(ctx, emit); err != nil && ctx.Err() == nil {
			s.errc <- err
		}
	}()

	return s
}

// Blocks is closed when the subscription ends
func (s *Subscription) Blocks() <-chan uint64 {
	return s.blocks
}

// Err receives at most one error if the producer failed
func (s *Subscription) Err() <-chan error {
	return s.errc
}

// Unsubscribe stops delivery and waits for the producer to exit. Safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}

// SubscribeNewBlocks returns a subscription of new block numbers. Websocket
// endpoints use newHeads, anything else polls the head every poll interval.
func (c *Client) SubscribeNewBlocks(ctx context.Context) (*Subscription, error) {
	if !c.streaming {
		return NewSubscription(ctx, c.pollHeads), nil
	}

	heads := make(chan *types.Header, 16)
	sub, err := c.eth.SubscribeNewHead(ctx, heads)
	if err != nil {
		return nil, fmt.Errorf("subscribe new heads: %w: %v", ErrNodeUnavailable, err)
	}

	return NewSubscription(ctx, func(ctx context.Context, emit func(uint64) bool) error {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-sub.Err():
				if err == nil {
					return nil
				}
				return fmt.Errorf("new heads subscription: %w: %v", ErrNodeUnavailable, err)
			case head := <-heads:
				if !emit(head.Number.Uint64()) {
					return nil
				}
			}
		}
	}), nil
}

// pollHeads emits the head block every poll interval. Node errors are logged
// and the next tick tries again.
func (c *Client) pollHeads(ctx context.Context, emit func(uint64) bool) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		head, err := c.LatestBlockNumber(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			c.log.WithError(err).Warn("Failed to poll head block")
		case !emit(head):
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
