package analyzer

import (
	"strconv"
	"strings"
	"time"

	"github.com/liamashdown/chainwatch/internal/chain"
	"github.com/liamashdown/chainwatch/internal/classifier"
	"github.com/shopspring/decimal"
)

var (
	exchangeMarkers = []string{"Binance", "Coinbase"}
	defiMarkers     = []string{"Uniswap", "Router"}
)

// valueBucket is one step of the value contribution to the risk score
type valueBucket struct {
	above decimal.Decimal
	score int
}

// buckets are checked highest first
var buckets = []valueBucket{
	{decimal.NewFromInt(100), 40},
	{decimal.NewFromInt(50), 30},
	{decimal.NewFromInt(10), 20},
	{decimal.NewFromInt(1), 10},
}

const (
	roundNumberScore    = 20
	unknownPartyScore   = 15
	unsuccessfulScore   = 25
	highRiskThreshold   = 70
	mediumRiskThreshold = 40
)

// Analyzer scores and categorizes transactions. It holds no mutable state
// and is safe for concurrent use.
type Analyzer struct {
	known          KnownAddressTable
	whaleThreshold decimal.Decimal
	roundNumbers   []decimal.Decimal
	tolerance      decimal.Decimal
	now            func() time.Time
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithWhaleThreshold overrides the default of 10
func WithWhaleThreshold(v decimal.Decimal) Option {
	return func(a *Analyzer) {
		a.whaleThreshold = v
	}
}

// WithRoundNumbers overrides the default set {1, 5, 10, 50, 100}
func WithRoundNumbers(values []decimal.Decimal) Option {
	return func(a *Analyzer) {
		if len(values) > 0 {
			a.roundNumbers = values
		}
	}
}

// WithClock sets the clock used for SavedAt
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// New creates an analyzer over a known address table
func New(known KnownAddressTable, opts ...Option) *Analyzer {
	if known == nil {
		known = KnownAddressTable{}
	}
	a := &Analyzer{
		known:          known,
		whaleThreshold: decimal.NewFromInt(10),
		roundNumbers: []decimal.Decimal{
			decimal.NewFromInt(1),
			decimal.NewFromInt(5),
			decimal.NewFromInt(10),
			decimal.NewFromInt(50),
			decimal.NewFromInt(100),
		},
		tolerance: decimal.RequireFromString("0.0001"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddressLabel returns the known label of address or UnknownLabel
func (a *Analyzer) AddressLabel(address string) string {
	return a.known.Label(address)
}

// IsWhale reports whether value meets the whale threshold
func (a *Analyzer) IsWhale(value decimal.Decimal) bool {
	return value.GreaterThanOrEqual(a.whaleThreshold)
}

// IsRoundNumber reports whether value is within tolerance of a round magnitude
func (a *Analyzer) IsRoundNumber(value decimal.Decimal) bool {
	for _, n := range a.roundNumbers {
		if value.Sub(n).Abs().LessThan(a.tolerance) {
			return true
		}
	}
	return false
}

// RiskScore returns the additive heuristic score clamped to [0, 100]
func (a *Analyzer) RiskScore(tx chain.RawTransaction) int {
	score := 0

	for _, b := range buckets {
		if tx.Value.GreaterThan(b.above) {
			score += b.score
			break
		}
	}

	if a.IsRoundNumber(tx.Value) {
		score += roundNumberScore
	}

	if a.AddressLabel(tx.From) == UnknownLabel && a.AddressLabel(tx.To) == UnknownLabel {
		score += unknownPartyScore
	}

	if tx.Status != chain.StatusSuccess {
		score += unsuccessfulScore
	}

	return clamp(score, 0, 100)
}

// RiskLevelFor maps a score to its tier. Lower bounds are inclusive.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= highRiskThreshold:
		return RiskHigh
	case score >= mediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Categorize returns the first matching category for tx
func (a *Analyzer) Categorize(tx chain.RawTransaction, tracked string) Category {
	fromLabel := a.AddressLabel(tx.From)
	toLabel := a.AddressLabel(tx.To)

	switch {
	case a.IsWhale(tx.Value):
		return CategoryWhaleAlert
	case containsAny(fromLabel, exchangeMarkers) || containsAny(toLabel, exchangeMarkers):
		return CategoryExchange
	case containsAny(toLabel, defiMarkers):
		return CategoryDeFi
	case tx.To != "" && !strings.EqualFold(tx.To, tracked):
		return CategoryContract
	default:
		return CategoryTransfer
	}
}

// Summarize builds the advisory text for tx. It is not meant to be parsed.
func (a *Analyzer) Summarize(tx classifier.ClassifiedTransaction, tracked string) string {
	category := a.Categorize(tx.RawTransaction, tracked)
	score := a.RiskScore(tx.RawTransaction)
	level := RiskLevelFor(score)

	var b strings.Builder

	switch tx.Direction {
	case classifier.DirectionIncoming:
		b.WriteString("Received " + tx.Value.String() + " ETH from " + a.AddressLabel(tx.From) + ". ")
	case classifier.DirectionOutgoing:
		b.WriteString("Sent " + tx.Value.String() + " ETH to " + a.AddressLabel(tx.To) + ". ")
	}

	b.WriteString(category.Description() + ". ")

	if a.IsWhale(tx.Value) {
		b.WriteString("🐋 WHALE ALERT: This is a large transaction! ")
	}
	if a.IsRoundNumber(tx.Value) {
		b.WriteString("⚠️ Suspicious: Transaction is a round number. ")
	}

	b.WriteString(level.Emoji() + " Risk Level: " + string(level) + " (" + strconv.Itoa(score) + "/100). ")
	b.WriteString(level.Recommendation())

	return b.String()
}

// Analyze produces the record stored in the transaction log
func (a *Analyzer) Analyze(tx classifier.ClassifiedTransaction, tracked string) *AnalyzedTransaction {
	score := a.RiskScore(tx.RawTransaction)

	return &AnalyzedTransaction{
		ClassifiedTransaction: tx,
		Category:              a.Categorize(tx.RawTransaction, tracked),
		RiskScore:             score,
		RiskLevel:             RiskLevelFor(score),
		FromLabel:             a.AddressLabel(tx.From),
		ToLabel:               a.AddressLabel(tx.To),
		IsWhale:               a.IsWhale(tx.Value),
		IsRoundNumber:         a.IsRoundNumber(tx.Value),
		Summary:               a.Summarize(tx, tracked),
		SavedAt:               a.now().UTC(),
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
