package storage

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps alerted hashes in a Redis set. SADD is atomic, so only
// one caller ever sees a hash as newly added.
type RedisLedger struct {
	client redis.Cmdable
	key    string
}

// NewRedisLedger creates a ledger stored under key
func NewRedisLedger(client redis.Cmdable, key string) *RedisLedger {
	return &RedisLedger{client: client, key: key}
}

// Contains reports whether hash was marked
func (l *RedisLedger) Contains(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	ok, err := l.client.SIsMember(ctx, l.key, strings.ToLower(hash)).Result()
	if err := observe("ledger_contains", start, err); err != nil {
		return false, err
	}
	return ok, nil
}

// MarkIfAbsent adds hash to the set
func (l *RedisLedger) MarkIfAbsent(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	added, err := l.client.SAdd(ctx, l.key, strings.ToLower(hash)).Result()
	if err := observe("ledger_mark", start, err); err != nil {
		return false, err
	}
	return added == 1, nil
}

// Count returns the set cardinality
func (l *RedisLedger) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := l.client.SCard(ctx, l.key).Result()
	if err := observe("ledger_count", start, err); err != nil {
		return 0, err
	}
	return n, nil
}

var _ Ledger = (*RedisLedger)(nil)
