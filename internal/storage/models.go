package storage

import (
	"encoding/json"
	"fmt"

	"github.com/liamashdown/chainwatch/internal/analyzer"
)

// AlertedTransaction is one ledger entry. Rows are never deleted.
type AlertedTransaction struct {
	Hash      string `gorm:"primaryKey;size:66"`
	CreatedTS int64  `gorm:"not null;index"`
}

func (AlertedTransaction) TableName() string {
	return "alerted_transactions"
}

// LoggedTransaction stores one analyzed transaction. The auto-increment ID
// gives discovery order; eviction deletes the lowest IDs.
type LoggedTransaction struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Hash      string `gorm:"size:66;not null;index"`
	Value     string `gorm:"type:decimal(38,18);not null;index"`
	RiskScore int    `gorm:"not null"`
	RiskLevel string `gorm:"size:10;not null;index"`
	Category  string `gorm:"size:16;not null;index"`
	IsWhale   bool   `gorm:"not null;index"`
	Record    string `gorm:"type:json;not null"`
	CreatedTS int64  `gorm:"not null"`
}

func (LoggedTransaction) TableName() string {
	return "logged_transactions"
}

func toLoggedTransaction(rec *analyzer.AnalyzedTransaction) (*LoggedTransaction, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return &LoggedTransaction{
		Hash:      rec.Hash,
		Value:     rec.Value.String(),
		RiskScore: rec.RiskScore,
		RiskLevel: string(rec.RiskLevel),
		Category:  string(rec.Category),
		IsWhale:   rec.IsWhale,
		Record:    string(data),
		CreatedTS: rec.SavedAt.Unix(),
	}, nil
}

func (row *LoggedTransaction) decode() (*analyzer.AnalyzedTransaction, error) {
	var rec analyzer.AnalyzedTransaction
	if err := json.Unmarshal([]byte(row.Record), &rec); err != nil {
		return nil, fmt.Errorf("decode record %d: %w", row.ID, err)
	}
	return &rec, nil
}
