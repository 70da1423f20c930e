package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/liamashdown/chainwatch/internal/metrics"
	"github.com/liamashdown/chainwatch/internal/ratelimit"
	"github.com/liamashdown/chainwatch/internal/retry"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Options configures a Client
type Options struct {
	URL           string
	RPS           float64
	RetryAttempts int
	PollInterval  time.Duration
}

// Client is a read-only accessor over a remote node. Every call waits on the
// rate limiter and is retried with backoff on transport errors.
type Client struct {
	rpc          *rpc.Client
	eth          *ethclient.Client
	limiter      *ratelimit.Limiter
	policy       retry.Policy
	streaming    bool
	pollInterval time.Duration
	log          *logrus.Logger
}

// rpcTransaction is the subset of eth_getTransactionByHash we need. Reading
// the raw object gives us the sender and block without signature recovery.
type rpcTransaction struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Value       *hexutil.Big    `json:"value"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
}

// rpcBlock is eth_getBlockByNumber with full transactions disabled
type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Transactions []common.Hash  `json:"transactions"`
}

// Dial connects to the node at opts.URL. http(s) endpoints are polled for new
// blocks, ws(s) endpoints are subscribed to.
func Dial(ctx context.Context, opts Options, log *logrus.Logger) (*Client, error) {
	rc, err := rpc.DialContext(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial node: %w: %v", ErrNodeUnavailable, err)
	}
	return NewClient(rc, opts, log), nil
}

// NewClient wraps an existing rpc client
func NewClient(rc *rpc.Client, opts Options, log *logrus.Logger) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 4 * time.Second
	}

	c := &Client{
		rpc:          rc,
		eth:          ethclient.NewClient(rc),
		limiter:      ratelimit.New(opts.RPS),
		streaming:    strings.HasPrefix(opts.URL, "ws://") || strings.HasPrefix(opts.URL, "wss://"),
		pollInterval: opts.PollInterval,
		log:          log,
	}
	c.policy = retry.Policy{
		MaxAttempts: opts.RetryAttempts,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      100 * time.Millisecond,
		Classify:    classify,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"wait":    wait.String(),
			}).Debug("Retrying node call")
		},
	}
	return c
}

// Close closes the underlying connection
func (c *Client) Close() {
	c.rpc.Close()
}

// LatestBlockNumber returns the current head of the chain
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		n, err := c.eth.BlockNumber(ctx)
		number = n
		return err
	})
	return number, err
}

// BalanceOf returns the latest balance of address in ether
func (c *Client) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := c.call(ctx, "eth_getBalance", func(ctx context.Context) error {
		wei, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
		if err != nil {
			return err
		}
		balance = WeiToEther(wei)
		return nil
	})
	return balance, err
}

// BlockTransactionHashes returns the hashes of a block's transactions in
// block order
func (c *Client) BlockTransactionHashes(ctx context.Context, number uint64) ([]string, error) {
	var hashes []string
	err := c.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var block *rpcBlock
		if err := c.rpc.CallContext(ctx, &block, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
			return err
		}
		if block == nil {
			return ErrNotFound
		}
		hashes = make([]string, len(block.Transactions))
		for i, h := range block.Transactions {
			hashes[i] = h.Hex()
		}
		return nil
	})
	return hashes, err
}

// Transaction looks up a transaction body by hash
func (c *Client) Transaction(ctx context.Context, hash string) (*Transaction, error) {
	var tx *Transaction
	err := c.call(ctx, "eth_getTransactionByHash", func(ctx context.Context) error {
		var raw *rpcTransaction
		if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionByHash", common.HexToHash(hash)); err != nil {
			return err
		}
		if raw == nil {
			return ErrNotFound
		}

		tx = &Transaction{
			Hash:  strings.ToLower(raw.Hash.Hex()),
			From:  strings.ToLower(raw.From.Hex()),
			Value: WeiToEther(raw.Value.ToInt()),
		}
		if raw.To != nil {
			tx.To = strings.ToLower(raw.To.Hex())
		}
		if raw.BlockNumber != nil {
			tx.BlockNumber = raw.BlockNumber.ToInt().Uint64()
		}
		return nil
	})
	return tx, err
}

// Receipt returns the execution result of a mined transaction, or ErrPending
func (c *Client) Receipt(ctx context.Context, hash string) (*Receipt, error) {
	var receipt *Receipt
	err := c.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		r, err := c.eth.TransactionReceipt(ctx, common.HexToHash(hash))
		if errors.Is(err, ethereum.NotFound) {
			return ErrPending
		}
		if err != nil {
			return err
		}

		receipt = &Receipt{Status: StatusFailed, GasUsed: r.GasUsed}
		if r.Status == types.ReceiptStatusSuccessful {
			receipt.Status = StatusSuccess
		}
		return nil
	})
	return receipt, err
}

// FetchTransaction looks up a transaction and its receipt. A transaction
// without a receipt is returned with StatusPending.
func (c *Client) FetchTransaction(ctx context.Context, hash string) (RawTransaction, error) {
	tx, err := c.Transaction(ctx, hash)
	if err != nil {
		return RawTransaction{}, err
	}

	receipt, err := c.Receipt(ctx, hash)
	if err != nil && !errors.Is(err, ErrPending) {
		return RawTransaction{}, err
	}
	return tx.WithReceipt(receipt), nil
}

// Ping checks connectivity and returns the head block and the balance of
// address
func (c *Client) Ping(ctx context.Context, address string) (uint64, decimal.Decimal, error) {
	head, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return 0, decimal.Zero, err
	}
	balance, err := c.BalanceOf(ctx, address)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return head, balance, nil
}

// call runs fn under the rate limiter and retry policy, records metrics and
// maps transport failures to ErrNodeUnavailable
func (c *Client) call(ctx context.Context, method string, fn func(context.Context) error) error {
	start := time.Now()

	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPending):
		status = "not_found"
	default:
		status = "error"
	}
	metrics.RecordRPCCall(method, time.Since(start), status)

	if err == nil || status == "not_found" || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%s: %w: %v", method, ErrNodeUnavailable, err)
}

func classify(err error) retry.Class {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPending),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return retry.Fatal
	}
	return retry.Retryable
}
