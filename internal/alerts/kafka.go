package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/query"
)

// Message types carried in the Kafka envelope
const (
	messageTypeAlert   = "alert"
	messageTypeSummary = "summary"
)

// envelope wraps every Kafka message
type envelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// KafkaSender produces alerts to a Kafka topic, keyed by transaction hash
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewKafkaSender creates a synchronous producer for brokers
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "chainwatch"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaSender(producer, topic), nil
}

func newKafkaSender(producer sarama.SyncProducer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic, now: time.Now}
}

func (s *KafkaSender) Name() string { return "kafka" }

// Send produces the analyzed transaction
func (s *KafkaSender) Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error {
	return s.produce(ctx, messageTypeAlert, tx.Hash, tx)
}

// SendSummary produces the stats summary without a key
func (s *KafkaSender) SendSummary(ctx context.Context, stats *query.Stats) error {
	return s.produce(ctx, messageTypeSummary, "", stats)
}

func (s *KafkaSender) produce(ctx context.Context, typ, key string, v interface{}) error {
	// SyncProducer takes no context
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	body, err := json.Marshal(envelope{Type: typ, TS: s.now().UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(body),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka produce %s: %w", typ, err)
	}
	return nil
}

// Close closes the producer
func (s *KafkaSender) Close() error {
	return s.producer.Close()
}
