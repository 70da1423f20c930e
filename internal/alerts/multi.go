package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/metrics"
	"github.com/liamashdown/chainwatch/internal/query"
	"golang.org/x/sync/errgroup"
)

// MultiSender sends alerts to multiple destinations concurrently
type MultiSender struct {
	senders []Sender
}

// NewMultiSender creates a new multi-sender
func NewMultiSender(senders ...Sender) *MultiSender {
	return &MultiSender{
		senders: senders,
	}
}

func (s *MultiSender) Name() string { return "multi" }

// Send sends the alert to all configured senders. Every sender is tried;
// failures are joined into the returned error.
func (s *MultiSender) Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error {
	return s.fanOut(ctx, s.senders, func(ctx context.Context, sender Sender) error {
		err := sender.Send(ctx, tx)
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RecordAlert(status, sender.Name())
		return err
	})
}

// SendSummary sends stats to every sender that supports summaries
func (s *MultiSender) SendSummary(ctx context.Context, stats *query.Stats) error {
	var capable []Sender
	for _, sender := range s.senders {
		if _, ok := sender.(SummarySender); ok {
			capable = append(capable, sender)
		}
	}

	return s.fanOut(ctx, capable, func(ctx context.Context, sender Sender) error {
		err := sender.(SummarySender).SendSummary(ctx, stats)
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RecordAlert(status, sender.Name()+"_summary")
		return err
	})
}

func (s *MultiSender) fanOut(ctx context.Context, senders []Sender, fn func(context.Context, Sender) error) error {
	errs := make([]error, len(senders))

	var g errgroup.Group
	for i, sender := range senders {
		g.Go(func() error {
			if err := fn(ctx, sender); err != nil {
				errs[i] = fmt.Errorf("%s sender: %w", sender.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("multi-sender errors: %w", err)
	}
	return nil
}
