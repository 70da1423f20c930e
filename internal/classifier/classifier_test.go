package classifier

import (
	"testing"

	"github.com/liamashdown/chainwatch/internal/chain"
	"github.com/shopspring/decimal"
)

const (
	tracked = "0xABC0000000000000000000000000000000000001"
	other   = "0xdef0000000000000000000000000000000000002"
)

func tx(from, to, value string, status chain.Status) chain.RawTransaction {
	return chain.RawTransaction{
		Hash:   "0x01",
		From:   from,
		To:     to,
		Value:  decimal.RequireFromString(value),
		Status: status,
	}
}

func TestClassify(t *testing.T) {
	lower := "0xabc0000000000000000000000000000000000001"

	tests := []struct {
		name     string
		from, to string
		expected Direction
	}{
		{"outgoing", tracked, other, DirectionOutgoing},
		{"incoming", other, tracked, DirectionIncoming},
		{"self", tracked, tracked, DirectionSelf},
		{"case insensitive", lower, other, DirectionOutgoing},
		{"unrelated", other, other, DirectionUnknown},
		{"contract creation by other", other, "", DirectionUnknown},
		{"contract creation by tracked", tracked, "", DirectionOutgoing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tx(tt.from, tt.to, "1", chain.StatusSuccess), tracked)
			if got != tt.expected {
				t.Errorf("Classify() = %s, expected %s", got, tt.expected)
			}
		})
	}
}

func TestIsInvolved(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		expected bool
	}{
		{"sender", tracked, other, true},
		{"recipient", other, tracked, true},
		{"neither", other, other, false},
		{"contract creation", other, "", false},
		{"empty tracked never matches empty to", other, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvolved(tx(tt.from, tt.to, "1", chain.StatusSuccess), tracked); got != tt.expected {
				t.Errorf("IsInvolved() = %v, expected %v", got, tt.expected)
			}
		})
	}

	if IsInvolved(tx(other, "", "1", chain.StatusSuccess), "") {
		t.Error("empty tracked address should not match a contract creation")
	}
}

func TestFormatSymbol(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		value    string
		expected string
	}{
		{"incoming", other, tracked, "1", SymbolIncoming},
		{"outgoing", tracked, other, "1", SymbolOutgoing},
		{"self", tracked, tracked, "1", SymbolOther},
		{"exactly ten is not a whale", other, tracked, "10", SymbolIncoming},
		{"whale overrides direction", tracked, other, "10.5", SymbolWhale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tx(tt.from, tt.to, tt.value, chain.StatusSuccess), tracked)
			if got.DisplaySymbol != tt.expected {
				t.Errorf("DisplaySymbol = %s, expected %s", got.DisplaySymbol, tt.expected)
			}
			if got.Hash != "0x01" {
				t.Errorf("Format dropped the raw transaction")
			}
		})
	}
}

func TestShouldAlert(t *testing.T) {
	minValue := decimal.RequireFromString("0.001")

	tests := []struct {
		name           string
		filter         Filter
		value          string
		status         chain.Status
		expected       bool
		expectedReason Reason
	}{
		{"passes minimum", Filter{MinValue: minValue}, "0.002", chain.StatusSuccess, true, ReasonNone},
		{"equal to minimum passes", Filter{MinValue: minValue}, "0.001", chain.StatusSuccess, true, ReasonNone},
		{"below minimum", Filter{MinValue: minValue}, "0.0009", chain.StatusSuccess, false, ReasonMinValue},
		{"failed regardless of value", Filter{MinValue: minValue}, "500", chain.StatusFailed, false, ReasonStatus},
		{"pending never passes", Filter{MinValue: minValue}, "5", chain.StatusPending, false, ReasonStatus},
		{"zero ignored", Filter{MinValue: decimal.Zero, IgnoreZeroValue: true}, "0", chain.StatusSuccess, false, ReasonZeroValue},
		{"zero allowed", Filter{MinValue: decimal.Zero}, "0", chain.StatusSuccess, true, ReasonNone},
		{"zero below minimum", Filter{MinValue: minValue}, "0", chain.StatusSuccess, false, ReasonMinValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := tt.filter.ShouldAlert(tx(other, tracked, tt.value, tt.status))
			if ok != tt.expected || reason != tt.expectedReason {
				t.Errorf("ShouldAlert() = (%v, %q), expected (%v, %q)", ok, reason, tt.expected, tt.expectedReason)
			}
		})
	}
}
