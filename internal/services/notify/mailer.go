// -----------------------------------------------------------------------
// Mailer - SMTP delivery of price-drop alerts
// -----------------------------------------------------------------------

package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
)

// ErrNotConfigured is returned when SMTP settings are missing. It is
// distinct from delivery failures so callers can report misconfiguration
// instead of a generic send error.
var ErrNotConfigured = errors.New("SMTP not configured")

// Mailer sends price-drop alerts over SMTP.
type Mailer struct {
	config common.SMTPConfig
	logger arbor.ILogger
}

// NewMailer creates a mailer from the resolved configuration.
func NewMailer(config common.SMTPConfig, logger arbor.ILogger) *Mailer {
	return &Mailer{
		config: config,
		logger: logger,
	}
}

// IsConfigured checks the minimum required settings.
func (m *Mailer) IsConfigured() bool {
	return m.config.Host != "" && m.config.Username != "" && m.config.Password != "" && m.config.From != ""
}

// SendPriceDropAlert renders and delivers an alert email.
func (m *Mailer) SendPriceDropAlert(ctx context.Context, alert interfaces.PriceDropAlert) error {
	if !m.IsConfigured() {
		return ErrNotConfigured
	}
	if alert.To == "" {
		return fmt.Errorf("alert has no recipient")
	}

	subject := fmt.Sprintf("Price drop: %s now %s", alert.FlightName, formatPrice(alert.CurrentPrice, alert.Currency))
	body := buildAlertBody(alert)

	if err := m.send(alert.To, subject, body); err != nil {
		return fmt.Errorf("failed to send alert to %s: %w", alert.To, err)
	}

	m.logger.Info().
		Str("to", alert.To).
		Str("flight", alert.FlightName).
		Float64("current_price", alert.CurrentPrice).
		Msg("Price drop alert sent")
	return nil
}

// buildAlertBody renders the plain text alert.
func buildAlertBody(alert interfaces.PriceDropAlert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Good news! The price for %s has dropped.\n\n", alert.FlightName)
	fmt.Fprintf(&b, "Route: %s\n", alert.Route)
	fmt.Fprintf(&b, "Current price: %s", formatPrice(alert.CurrentPrice, alert.Currency))
	if alert.Airline != "" {
		fmt.Fprintf(&b, " (%s)", alert.Airline)
	}
	b.WriteString("\n")
	if alert.PreviousPrice > 0 {
		fmt.Fprintf(&b, "Previous price: %s\n", formatPrice(alert.PreviousPrice, alert.Currency))
	}
	if alert.LowestPrice > 0 {
		fmt.Fprintf(&b, "Lowest seen: %s\n", formatPrice(alert.LowestPrice, alert.Currency))
	}

	if alert.FlexSuggestion != "" {
		fmt.Fprintf(&b, "\nFlexible dates: %s\n", alert.FlexSuggestion)
	}

	if len(alert.Headlines) > 0 {
		b.WriteString("\nTravel news:\n")
		for _, headline := range alert.Headlines {
			fmt.Fprintf(&b, "  - %s\n", headline)
		}
	}
	if alert.HolidayNote != "" {
		fmt.Fprintf(&b, "\nNote: %s\n", alert.HolidayNote)
	}

	if alert.NextRunAt != nil {
		fmt.Fprintf(&b, "\nNext automatic check: %s\n", alert.NextRunAt.Format(time.RFC1123))
	}

	return b.String()
}

func formatPrice(price float64, currency string) string {
	if currency == "" {
		currency = "AUD"
	}
	return fmt.Sprintf("$%.2f %s", price, currency)
}

func (m *Mailer) send(to, subject, body string) error {
	var msg strings.Builder
	fromName := m.config.FromName
	if fromName == "" {
		fromName = "Farewatch"
	}
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, m.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)

	if m.config.UseTLS {
		return m.sendWithTLS(addr, auth, to, msg.String())
	}
	return smtp.SendMail(addr, auth, m.config.From, []string{to}, []byte(msg.String()))
}

// sendWithTLS connects over direct TLS, falling back to STARTTLS.
func (m *Mailer) sendWithTLS(addr string, auth smtp.Auth, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return m.sendWithSTARTTLS(addr, auth, to, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return m.deliver(client, auth, to, msg)
}

// sendWithSTARTTLS connects plain and upgrades.
func (m *Mailer) sendWithSTARTTLS(addr string, auth smtp.Auth, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return m.deliver(client, auth, to, msg)
}

func (m *Mailer) deliver(client *smtp.Client, auth smtp.Auth, to, msg string) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(m.config.From); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
