package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerKey = "chainwatch:alerted"

func TestRedisLedgerMarkIfAbsent(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	l := NewRedisLedger(client, ledgerKey)

	mock.ExpectSAdd(ledgerKey, "0xabc").SetVal(1)
	mock.ExpectSAdd(ledgerKey, "0xabc").SetVal(0)
	mock.ExpectSIsMember(ledgerKey, "0xabc").SetVal(true)
	mock.ExpectSCard(ledgerKey).SetVal(1)

	first, err := l.MarkIfAbsent(ctx, "0xABC")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := l.MarkIfAbsent(ctx, "0xAbc")
	require.NoError(t, err)
	assert.False(t, second)

	ok, err := l.Contains(ctx, "0xABC")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedgerUnavailable(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLedger(client, ledgerKey)

	mock.ExpectSAdd(ledgerKey, "0xabc").SetErr(errors.New("connection refused"))

	ok, err := l.MarkIfAbsent(context.Background(), "0xabc")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
