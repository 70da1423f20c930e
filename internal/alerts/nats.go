package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/query"
	"github.com/nats-io/nats.go"
)

// publisher is the subset of *nats.Conn used by NATSSender
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSender publishes alerts as JSON to a NATS subject. Summaries go to
// <subject>.summary.
type NATSSender struct {
	conn    publisher
	close   func()
	subject string
}

// NewNATSSender connects to url and publishes to subject
func NewNATSSender(url, subject string) (*NATSSender, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url,
		nats.Name("chainwatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSSender{conn: conn, close: conn.Close, subject: subject}, nil
}

func newNATSSender(conn publisher, subject string) *NATSSender {
	return &NATSSender{conn: conn, close: func() {}, subject: subject}
}

func (s *NATSSender) Name() string { return "nats" }

// Send publishes the analyzed transaction
func (s *NATSSender) Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error {
	return s.publish(ctx, s.subject, tx)
}

// SendSummary publishes the stats summary
func (s *NATSSender) SendSummary(ctx context.Context, stats *query.Stats) error {
	return s.publish(ctx, s.subject+".summary", stats)
}

func (s *NATSSender) publish(ctx context.Context, subject string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close closes the connection
func (s *NATSSender) Close() {
	s.close()
}
