package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/query"
)

// summaryColor is the embed colour of periodic summaries
const summaryColor = 0x0099FF

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL  string
	explorer    Explorer
	environment string
	httpClient  *http.Client
	now         func() time.Time
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string, explorer Explorer, environment string) *DiscordSender {
	return &DiscordSender{
		webhookURL:  webhookURL,
		explorer:    explorer,
		environment: environment,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
}

func (s *DiscordSender) Name() string { return "discord" }

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error {
	return s.post(ctx, s.buildEmbed(tx))
}

// SendSummary sends the periodic stats summary to Discord
func (s *DiscordSender) SendSummary(ctx context.Context, stats *query.Stats) error {
	return s.post(ctx, s.buildSummaryEmbed(stats))
}

func (s *DiscordSender) post(ctx context.Context, embed map[string]interface{}) error {
	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{embed},
	}
	return postJSON(ctx, s.httpClient, s.webhookURL, webhookPayload)
}

func (s *DiscordSender) buildEmbed(tx *analyzer.AnalyzedTransaction) map[string]interface{} {
	title := fmt.Sprintf("%s %s %s transaction", tx.Category.Emoji(), tx.DisplaySymbol, tx.Direction)

	description := fmt.Sprintf("**%s ETH** • %s %s risk (**%d/100**)\n%s",
		tx.Value.String(),
		tx.RiskLevel.Emoji(),
		tx.RiskLevel,
		tx.RiskScore,
		truncate(tx.Summary, 1500),
	)

	fields := []map[string]interface{}{
		{
			"name":   "Category",
			"value":  string(tx.Category),
			"inline": true,
		},
		{
			"name":   "Status",
			"value":  string(tx.Status),
			"inline": true,
		},
		{
			"name":   "Block",
			"value":  fmt.Sprintf("%d", tx.BlockNumber),
			"inline": true,
		},
		{
			"name":   "From",
			"value":  fmt.Sprintf("[`%s`](%s)\n%s", shortAddress(tx.From), s.explorer.AddressURL(tx.From), tx.FromLabel),
			"inline": true,
		},
		{
			"name":   "To",
			"value":  s.toField(tx),
			"inline": true,
		},
		{
			"name":   "Tx",
			"value":  fmt.Sprintf("`%s`", shortAddress(tx.Hash)),
			"inline": true,
		},
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("Chainwatch • %s • %s", s.environment, tx.SavedAt.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	return map[string]interface{}{
		"title":       title,
		"url":         s.explorer.TxURL(tx.Hash),
		"description": description,
		"color":       tx.RiskLevel.Color(),
		"fields":      fields,
		"footer":      footer,
		"timestamp":   tx.SavedAt.Format(time.RFC3339),
	}
}

func (s *DiscordSender) toField(tx *analyzer.AnalyzedTransaction) string {
	if tx.To == "" {
		return "Contract creation"
	}
	return fmt.Sprintf("[`%s`](%s)\n%s", shortAddress(tx.To), s.explorer.AddressURL(tx.To), tx.ToLabel)
}

func (s *DiscordSender) buildSummaryEmbed(stats *query.Stats) map[string]interface{} {
	now := s.now()

	fields := []map[string]interface{}{
		{"name": "Transactions", "value": fmt.Sprintf("%d", stats.TotalTransactions), "inline": true},
		{"name": "Alerts Sent", "value": fmt.Sprintf("%d", stats.TotalAlerted), "inline": true},
		{"name": "Total Value", "value": stats.TotalValue + " ETH", "inline": true},
		{"name": "Average Value", "value": stats.AverageValue + " ETH", "inline": true},
		{
			"name": "Risk Distribution",
			"value": fmt.Sprintf("%s High: %d\n%s Medium: %d\n%s Low: %d",
				analyzer.RiskHigh.Emoji(), stats.RiskDistribution.High,
				analyzer.RiskMedium.Emoji(), stats.RiskDistribution.Medium,
				analyzer.RiskLow.Emoji(), stats.RiskDistribution.Low,
			),
			"inline": false,
		},
	}

	return map[string]interface{}{
		"title":  "📊 Summary",
		"color":  summaryColor,
		"fields": fields,
		"footer": map[string]interface{}{
			"text": fmt.Sprintf("Chainwatch • %s • %s", s.environment, now.UTC().Format("2006-01-02 15:04:05 UTC")),
		},
		"timestamp": now.Format(time.RFC3339),
	}
}

// postJSON posts payload and expects a 2xx response
func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}
