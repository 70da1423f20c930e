package classifier

import (
	"strings"

	"github.com/liamashdown/chainwatch/internal/chain"
	"github.com/shopspring/decimal"
)

// Direction of a transaction relative to the tracked address
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
	DirectionSelf     Direction = "SELF"
	DirectionUnknown  Direction = "UNKNOWN"
)

// Display symbols
const (
	SymbolIncoming = "📥"
	SymbolOutgoing = "📤"
	SymbolOther    = "💸"
	SymbolWhale    = "🐋"
)

// whaleSymbolValue is the value above which a transaction is shown as a whale
var whaleSymbolValue = decimal.NewFromInt(10)

// ClassifiedTransaction is a transaction annotated with its direction
type ClassifiedTransaction struct {
	chain.RawTransaction
	Direction     Direction `json:"direction"`
	DisplaySymbol string    `json:"display_symbol"`
}

// IsInvolved reports whether the tracked address sent or received tx.
// Contract creations never match on the recipient side.
func IsInvolved(tx chain.RawTransaction, tracked string) bool {
	return matches(tx.From, tracked) || matches(tx.To, tracked)
}

// Classify returns the direction of tx relative to tracked
func Classify(tx chain.RawTransaction, tracked string) Direction {
	from := matches(tx.From, tracked)
	to := matches(tx.To, tracked)

	switch {
	case from && to:
		return DirectionSelf
	case from:
		return DirectionOutgoing
	case to:
		return DirectionIncoming
	default:
		return DirectionUnknown
	}
}

// Format attaches direction and display symbol to tx
func Format(tx chain.RawTransaction, tracked string) ClassifiedTransaction {
	direction := Classify(tx, tracked)

	symbol := SymbolOther
	switch direction {
	case DirectionIncoming:
		symbol = SymbolIncoming
	case DirectionOutgoing:
		symbol = SymbolOutgoing
	}
	if tx.Value.GreaterThan(whaleSymbolValue) {
		symbol = SymbolWhale
	}

	return ClassifiedTransaction{
		RawTransaction: tx,
		Direction:      direction,
		DisplaySymbol:  symbol,
	}
}

func matches(address, tracked string) bool {
	return address != "" && strings.EqualFold(address, tracked)
}
