package chain

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNodeUnavailable wraps any transport or node-side failure
	ErrNodeUnavailable = errors.New("node unavailable")
	// ErrNotFound is returned when the node does not know the block or transaction
	ErrNotFound = errors.New("not found")
	// ErrPending is returned by Receipt when the transaction is not mined yet
	ErrPending = errors.New("transaction pending")
)

// etherDecimals is the number of decimals between wei and ether
const etherDecimals = 18

// Status is the execution outcome of a transaction
type Status string

const (
	StatusPending Status = "Pending"
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Transaction is the body of a transaction as returned by the node
type Transaction struct {
	Hash        string
	From        string
	To          string // empty for contract creation
	Value       decimal.Decimal
	BlockNumber uint64
}

// Receipt carries the execution result of a mined transaction
type Receipt struct {
	Status  Status
	GasUsed uint64
}

// RawTransaction is a transaction joined with its receipt
type RawTransaction struct {
	Hash        string          `json:"hash"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       decimal.Decimal `json:"value"`
	Status      Status          `json:"status"`
	BlockNumber uint64          `json:"block_number"`
	GasUsed     uint64          `json:"gas_used"`
}

// WithReceipt joins the transaction with its receipt. A nil receipt yields
// a pending transaction.
func (t *Transaction) WithReceipt(r *Receipt) RawTransaction {
	raw := RawTransaction{
		Hash:        strings.ToLower(t.Hash),
		From:        strings.ToLower(t.From),
		To:          strings.ToLower(t.To),
		Value:       t.Value,
		Status:      StatusPending,
		BlockNumber: t.BlockNumber,
	}
	if r != nil {
		raw.Status = r.Status
		raw.GasUsed = r.GasUsed
	}
	return raw
}

// WeiToEther converts a wei amount into ether without losing precision
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -etherDecimals)
}
