package alerts

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/query"
)

// TelegramSender posts alerts through the Telegram Bot API
type TelegramSender struct {
	apiURL     string
	token      string
	chatID     string
	explorer   Explorer
	httpClient *http.Client
	now        func() time.Time
}

// NewTelegramSender creates a new Telegram sender. apiURL is normally
// https://api.telegram.org.
func NewTelegramSender(apiURL, token, chatID string, explorer Explorer) *TelegramSender {
	return &TelegramSender{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		chatID:     chatID,
		explorer:   explorer,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (s *TelegramSender) Name() string { return "telegram" }

// Send sends the alert as an HTML message
func (s *TelegramSender) Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error {
	return s.sendMessage(ctx, s.formatAlert(tx))
}

// SendSummary sends the periodic stats summary
func (s *TelegramSender) SendSummary(ctx context.Context, stats *query.Stats) error {
	return s.sendMessage(ctx, s.formatSummary(stats))
}

func (s *TelegramSender) sendMessage(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  s.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	if err := postJSON(ctx, s.httpClient, url, payload); err != nil {
		return fmt.Errorf("telegram send message: %w", err)
	}
	return nil
}

func (s *TelegramSender) formatAlert(tx *analyzer.AnalyzedTransaction) string {
	var b strings.Builder
	b.WriteString("🤖 <b>BLOCKCHAIN ALERT</b>\n\n")
	fmt.Fprintf(&b, "%s <b>Category:</b> %s\n", tx.Category.Emoji(), tx.Category)
	fmt.Fprintf(&b, "%s <b>Type:</b> %s\n\n", tx.DisplaySymbol, tx.Direction)
	fmt.Fprintf(&b, "💰 <b>Value:</b> %s ETH\n", tx.Value.String())
	fmt.Fprintf(&b, "%s <b>Risk:</b> %s (%d/100)\n\n", tx.RiskLevel.Emoji(), tx.RiskLevel, tx.RiskScore)
	fmt.Fprintf(&b, "📤 <b>From:</b> %s\n<i>%s</i>\n\n", shortAddress(tx.From), html.EscapeString(tx.FromLabel))
	fmt.Fprintf(&b, "📥 <b>To:</b> %s\n<i>%s</i>\n\n", shortAddress(tx.To), html.EscapeString(tx.ToLabel))
	fmt.Fprintf(&b, "🧠 <b>Summary:</b>\n%s\n\n", html.EscapeString(tx.Summary))
	fmt.Fprintf(&b, "📦 <b>Block:</b> %d\n", tx.BlockNumber)
	fmt.Fprintf(&b, "🔗 <a href=\"%s\">View on explorer</a>", s.explorer.TxURL(tx.Hash))
	return b.String()
}

func (s *TelegramSender) formatSummary(stats *query.Stats) string {
	var b strings.Builder
	b.WriteString("📊 <b>SUMMARY</b>\n\n")
	fmt.Fprintf(&b, "📝 <b>Transactions:</b> %d\n", stats.TotalTransactions)
	fmt.Fprintf(&b, "🔔 <b>Alerts Sent:</b> %d\n", stats.TotalAlerted)
	fmt.Fprintf(&b, "💰 <b>Total Value:</b> %s ETH\n", stats.TotalValue)
	fmt.Fprintf(&b, "📈 <b>Average Value:</b> %s ETH\n\n", stats.AverageValue)
	b.WriteString("<b>Risk Distribution:</b>\n")
	fmt.Fprintf(&b, "%s High: %d\n", analyzer.RiskHigh.Emoji(), stats.RiskDistribution.High)
	fmt.Fprintf(&b, "%s Medium: %d\n", analyzer.RiskMedium.Emoji(), stats.RiskDistribution.Medium)
	fmt.Fprintf(&b, "%s Low: %d\n\n", analyzer.RiskLow.Emoji(), stats.RiskDistribution.Low)
	fmt.Fprintf(&b, "⏰ <i>%s</i>", s.now().UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}
