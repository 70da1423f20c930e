package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/liamashdown/chainwatch/internal/analyzer"
	"github.com/liamashdown/chainwatch/internal/query"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends alerts via email
type SMTPSender struct {
	host        string
	port        int
	user        string
	password    string
	from        string
	to          []string
	explorer    Explorer
	environment string
	sendMail    sendMailFunc
	now         func() time.Time
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string, explorer Explorer, environment string) *SMTPSender {
	return &SMTPSender{
		host:        host,
		port:        port,
		user:        user,
		password:    password,
		from:        from,
		to:          to,
		explorer:    explorer,
		environment: environment,
		sendMail:    smtp.SendMail,
		now:         time.Now,
	}
}

func (s *SMTPSender) Name() string { return "smtp" }

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, tx *analyzer.AnalyzedTransaction) error {
	subject := fmt.Sprintf("[%s] %s %s transaction: %s ETH", tx.RiskLevel, tx.DisplaySymbol, tx.Direction, tx.Value.String())
	return s.deliver(ctx, subject, s.buildEmailBody(tx))
}

// SendSummary sends the periodic stats summary via email
func (s *SMTPSender) SendSummary(ctx context.Context, stats *query.Stats) error {
	return s.deliver(ctx, "Chainwatch summary", s.buildSummaryBody(stats))
}

func (s *SMTPSender) deliver(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := fmt.Sprintf("From: %s\r\n", s.from)
	message += fmt.Sprintf("To: %s\r\n", strings.Join(s.to, ", "))
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := s.sendMail(addr, auth, s.from, s.to, []byte(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func (s *SMTPSender) buildEmailBody(tx *analyzer.AnalyzedTransaction) string {
	to := tx.To
	if to == "" {
		to = "(contract creation)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CHAINWATCH ALERT - %s %s\n", tx.Category.Emoji(), tx.Category)
	b.WriteString("═══════════════════════════════════════\n\n")
	b.WriteString("TRANSACTION\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Hash:           %s\n", tx.Hash)
	fmt.Fprintf(&b, "Direction:      %s %s\n", tx.DisplaySymbol, tx.Direction)
	fmt.Fprintf(&b, "From:           %s (%s)\n", tx.From, tx.FromLabel)
	fmt.Fprintf(&b, "To:             %s (%s)\n", to, tx.ToLabel)
	fmt.Fprintf(&b, "Value:          %s ETH\n", tx.Value.String())
	fmt.Fprintf(&b, "Status:         %s\n", tx.Status)
	fmt.Fprintf(&b, "Block:          %d\n", tx.BlockNumber)
	fmt.Fprintf(&b, "Explorer:       %s\n\n", s.explorer.TxURL(tx.Hash))
	b.WriteString("ANALYSIS\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Risk:           %s %s (%d/100)\n", tx.RiskLevel.Emoji(), tx.RiskLevel, tx.RiskScore)
	fmt.Fprintf(&b, "Whale:          %t\n", tx.IsWhale)
	fmt.Fprintf(&b, "Round number:   %t\n\n", tx.IsRoundNumber)
	b.WriteString(tx.Summary)
	b.WriteString("\n\n═══════════════════════════════════════\n")
	fmt.Fprintf(&b, "Environment: %s\n", s.environment)
	fmt.Fprintf(&b, "Recorded: %s\n", tx.SavedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	return b.String()
}

func (s *SMTPSender) buildSummaryBody(stats *query.Stats) string {
	var b strings.Builder
	b.WriteString("CHAINWATCH SUMMARY\n")
	b.WriteString("═══════════════════════════════════════\n\n")
	fmt.Fprintf(&b, "Transactions:   %d\n", stats.TotalTransactions)
	fmt.Fprintf(&b, "Alerts Sent:    %d\n", stats.TotalAlerted)
	fmt.Fprintf(&b, "Total Value:    %s ETH\n", stats.TotalValue)
	fmt.Fprintf(&b, "Average Value:  %s ETH\n\n", stats.AverageValue)
	b.WriteString("RISK DISTRIBUTION\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "High:           %d\n", stats.RiskDistribution.High)
	fmt.Fprintf(&b, "Medium:         %d\n", stats.RiskDistribution.Medium)
	fmt.Fprintf(&b, "Low:            %d\n\n", stats.RiskDistribution.Low)
	b.WriteString("═══════════════════════════════════════\n")
	fmt.Fprintf(&b, "Environment: %s\n", s.environment)
	fmt.Fprintf(&b, "Generated: %s\n", s.now().UTC().Format("2006-01-02 15:04:05 UTC"))

	return b.String()
}
