package chain

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sender    = common.HexToAddress("0x28C6c06298d514Db089934071355E5743bf21d60")
	recipient = common.HexToAddress("0xAbC0000000000000000000000000000000000001")
	minedHash = common.HexToHash("0x01")
	failHash  = common.HexToHash("0x02")
	pendHash  = common.HexToHash("0x03")
	deployTx  = common.HexToHash("0x04")
)

// fakeEth serves the eth_ namespace over an in-process rpc server
type fakeEth struct {
	mu         sync.Mutex
	head       uint64
	headErrors int
	blocks     map[uint64][]common.Hash
	txs        map[common.Hash]*rpcTransaction
	receipts   map[common.Hash]*types.Receipt
	balances   map[common.Address]*big.Int
}

func (f *fakeEth) BlockNumber() (hexutil.Uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErrors > 0 {
		f.headErrors--
		return 0, errors.New("upstream timeout")
	}
	return hexutil.Uint64(f.head), nil
}

func (f *fakeEth) GetBlockByNumber(number hexutil.Uint64, full bool) (*rpcBlock, error) {
	hashes, ok := f.blocks[uint64(number)]
	if !ok {
		return nil, nil
	}
	return &rpcBlock{Number: number, Transactions: hashes}, nil
}

func (f *fakeEth) GetTransactionByHash(hash common.Hash) *rpcTransaction {
	return f.txs[hash]
}

func (f *fakeEth) GetTransactionReceipt(hash common.Hash) *types.Receipt {
	return f.receipts[hash]
}

func (f *fakeEth) GetBalance(address common.Address, block string) *hexutil.Big {
	return (*hexutil.Big)(f.balances[address])
}

func (f *fakeEth) setHead(n uint64) {
	f.mu.Lock()
	f.head = n
	f.mu.Unlock()
}

func ether(v string) *hexutil.Big {
	d := decimal.RequireFromString(v).Shift(etherDecimals)
	return (*hexutil.Big)(d.BigInt())
}

func receipt(status uint64, gas uint64) *types.Receipt {
	return &types.Receipt{Status: status, GasUsed: gas, Logs: []*types.Log{}}
}

func newFakeEth() *fakeEth {
	to := recipient
	return &fakeEth{
		head: 100,
		blocks: map[uint64][]common.Hash{
			100: {minedHash, failHash, pendHash},
		},
		txs: map[common.Hash]*rpcTransaction{
			minedHash: {Hash: minedHash, From: sender, To: &to, Value: ether("1.5"), BlockNumber: (*hexutil.Big)(big.NewInt(100))},
			failHash:  {Hash: failHash, From: sender, To: &to, Value: ether("0"), BlockNumber: (*hexutil.Big)(big.NewInt(100))},
			pendHash:  {Hash: pendHash, From: sender, To: &to, Value: ether("2")},
			deployTx:  {Hash: deployTx, From: sender, Value: ether("0")},
		},
		receipts: map[common.Hash]*types.Receipt{
			minedHash: receipt(types.ReceiptStatusSuccessful, 21000),
			failHash:  receipt(types.ReceiptStatusFailed, 50000),
		},
		balances: map[common.Address]*big.Int{
			recipient: ether("42").ToInt(),
		},
	}
}

func newTestClient(t *testing.T, fake *fakeEth, url string) *Client {
	t.Helper()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fake))
	t.Cleanup(srv.Stop)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c := NewClient(rpc.DialInProc(srv), Options{
		URL:           url,
		RPS:           1000,
		RetryAttempts: 3,
		PollInterval:  10 * time.Millisecond,
	}, log)
	c.policy.BaseDelay = time.Millisecond
	c.policy.MaxDelay = 5 * time.Millisecond
	c.policy.Jitter = 0
	t.Cleanup(c.Close)
	return c
}

func TestTransaction(t *testing.T) {
	c := newTestClient(t, newFakeEth(), "http://node")

	tx, err := c.Transaction(context.Background(), minedHash.Hex())
	require.NoError(t, err)

	assert.Equal(t, minedHash.Hex(), tx.Hash)
	assert.Equal(t, "0x28c6c06298d514db089934071355e5743bf21d60", tx.From)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", tx.To)
	assert.True(t, tx.Value.Equal(decimal.RequireFromString("1.5")), "value %s", tx.Value)
	assert.Equal(t, uint64(100), tx.BlockNumber)
}

func TestTransactionContractCreation(t *testing.T) {
	c := newTestClient(t, newFakeEth(), "http://node")

	tx, err := c.Transaction(context.Background(), deployTx.Hex())
	require.NoError(t, err)
	assert.Empty(t, tx.To)
}

func TestTransactionNotFound(t *testing.T) {
	c := newTestClient(t, newFakeEth(), "http://node")

	_, err := c.Transaction(context.Background(), common.HexToHash("0xdead").Hex())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNodeUnavailable)
}

func TestBlockTransactionHashes(t *testing.T) {
	c := newTestClient(t, newFakeEth(), "http://node")

	hashes, err := c.BlockTransactionHashes(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{minedHash.Hex(), failHash.Hex(), pendHash.Hex()}, hashes)

	_, err = c.BlockTransactionHashes(context.Background(), 101)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReceipt(t *testing.T) {
	c := newTestClient(t, newFakeEth(), "http://node")
	ctx := context.Background()

	r, err := c.Receipt(ctx, minedHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, uint64(21000), r.GasUsed)

	r, err = c.Receipt(ctx, failHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)

	_, err = c.Receipt(ctx, pendHash.Hex())
	assert.ErrorIs(t, err, ErrPending)
}

func TestFetchTransaction(t *testing.T) {
	c := newTestClient(t, newFakeEth(), "http://node")
	ctx := context.Background()

	raw, err := c.FetchTransaction(ctx, minedHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, raw.Status)
	assert.Equal(t, uint64(21000), raw.GasUsed)

	raw, err = c.FetchTransaction(ctx, pendHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, raw.Status)
	assert.Zero(t, raw.GasUsed)
}

func TestLatestBlockNumberRetries(t *testing.T) {
	fake := newFakeEth()
	fake.headErrors = 2
	c := newTestClient(t, fake, "http://node")

	head, err := c.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)
}

func TestLatestBlockNumberNodeUnavailable(t *testing.T) {
	fake := newFakeEth()
	fake.headErrors = 10
	c := newTestClient(t, fake, "http://node")

	_, err := c.LatestBlockNumber(context.Background())
	assert.ErrorIs(t, err, ErrNodeUnavailable)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, newFakeEth(), "http://node")

	head, balance, err := c.Ping(context.Background(), recipient.Hex())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), head)
	assert.True(t, balance.Equal(decimal.NewFromInt(42)))
}

func TestPollSubscriptionFillsGaps(t *testing.T) {
	fake := newFakeEth()
	fake.setHead(5)
	c := newTestClient(t, fake, "http://node")

	sub, err := c.SubscribeNewBlocks(context.Background())
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, uint64(5), <-sub.Blocks())
	fake.setHead(8)

	var got []uint64
	for len(got) < 3 {
		select {
		case n := <-sub.Blocks():
			got = append(got, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []uint64{6, 7, 8}, got)
}

func TestWeiToEther(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"1", "0.000000000000000001"},
		{"1000000000000000", "0.001"},
		{"15000000000000000000", "15"},
	}
	for _, tt := range tests {
		wei, ok := new(big.Int).SetString(tt.wei, 10)
		require.True(t, ok)
		assert.True(t, WeiToEther(wei).Equal(decimal.RequireFromString(tt.want)), "wei %s", tt.wei)
	}
	assert.True(t, WeiToEther(nil).IsZero())
}

func TestWithReceipt(t *testing.T) {
	tx := &Transaction{Hash: "0xAB", From: "0xCD", To: "0xEF", Value: decimal.NewFromInt(3), BlockNumber: 9}

	pending := tx.WithReceipt(nil)
	assert.Equal(t, StatusPending, pending.Status)
	assert.Equal(t, "0xab", pending.Hash)

	mined := tx.WithReceipt(&Receipt{Status: StatusFailed, GasUsed: 7})
	assert.Equal(t, StatusFailed, mined.Status)
	assert.Equal(t, uint64(7), mined.GasUsed)
	assert.Equal(t, "0xef", mined.To)
}
