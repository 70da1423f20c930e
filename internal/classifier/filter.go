package classifier

import (
	"github.com/liamashdown/chainwatch/internal/chain"
	"github.com/shopspring/decimal"
)

// Reason explains why a transaction did not pass the filter
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonZeroValue Reason = "zero_value"
	ReasonMinValue  Reason = "min_value"
	ReasonStatus    Reason = "status"
)

// Filter decides which involved transactions raise an alert
type Filter struct {
	MinValue        decimal.Decimal
	IgnoreZeroValue bool
}

// ShouldAlert applies the zero-value, minimum value and status rules in that
// order. A rejection is a normal outcome, not an error.
func (f Filter) ShouldAlert(tx chain.RawTransaction) (bool, Reason) {
	if f.IgnoreZeroValue && tx.Value.IsZero() {
		return false, ReasonZeroValue
	}
	if tx.Value.LessThan(f.MinValue) {
		return false, ReasonMinValue
	}
	if tx.Status != chain.StatusSuccess {
		return false, ReasonStatus
	}
	return true, ReasonNone
}
