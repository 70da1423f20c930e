package analyzer

import (
	"time"

	"github.com/liamashdown/chainwatch/internal/classifier"
)

// Category of an analyzed transaction. Checked in declaration order, the
// first matching rule wins.
type Category string

const (
	CategoryWhaleAlert Category = "WHALE_ALERT"
	CategoryExchange   Category = "EXCHANGE"
	CategoryDeFi       Category = "DEFI"
	CategoryContract   Category = "CONTRACT"
	CategoryTransfer   Category = "TRANSFER"
)

// Categories lists every category in priority order
var Categories = []Category{
	CategoryWhaleAlert,
	CategoryExchange,
	CategoryDeFi,
	CategoryContract,
	CategoryTransfer,
}

// Description is the human readable form used in summaries
func (c Category) Description() string {
	switch c {
	case CategoryWhaleAlert:
		return "Large transaction detected"
	case CategoryExchange:
		return "Exchange-related transaction"
	case CategoryDeFi:
		return "DeFi interaction"
	case CategoryContract:
		return "Smart contract interaction"
	default:
		return "Standard ETH transfer"
	}
}

// Emoji returns the display glyph for the category
func (c Category) Emoji() string {
	switch c {
	case CategoryWhaleAlert:
		return "🐋"
	case CategoryExchange:
		return "🏦"
	case CategoryDeFi:
		return "🔄"
	case CategoryContract:
		return "📄"
	default:
		return "💸"
	}
}

// RiskLevel is the tier a risk score falls into
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Emoji returns the display glyph for the level
func (l RiskLevel) Emoji() string {
	switch l {
	case RiskHigh:
		return "🔴"
	case RiskMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// Color returns an RGB colour for embeds
func (l RiskLevel) Color() int {
	switch l {
	case RiskHigh:
		return 0xFF0000
	case RiskMedium:
		return 0xFFA500
	default:
		return 0x00FF00
	}
}

// Recommendation is the advice appended to summaries
func (l RiskLevel) Recommendation() string {
	switch l {
	case RiskHigh:
		return "🚨 Recommended: Monitor this address closely."
	case RiskMedium:
		return "👀 Recommended: Keep an eye on future activity."
	default:
		return "✅ Recommended: Normal transaction, no action needed."
	}
}

// AnalyzedTransaction is the unit of record in the transaction log
type AnalyzedTransaction struct {
	classifier.ClassifiedTransaction
	Category      Category  `json:"category"`
	RiskScore     int       `json:"risk_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
	FromLabel     string    `json:"from_label"`
	ToLabel       string    `json:"to_label"`
	IsWhale       bool      `json:"is_whale"`
	IsRoundNumber bool      `json:"is_round_number"`
	Summary       string    `json:"summary"`
	SavedAt       time.Time `json:"saved_at"`
}
