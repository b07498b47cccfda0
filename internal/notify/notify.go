// Package notify sends the end-of-run summary mail. Delivery is best
// effort: an audit whose report is already on disk never fails because
// the mail relay is down.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Summary is the per-run digest rendered into the mail body.
type Summary struct {
	OrgName        string
	NetworksTotal  int
	NetworksFailed int
	BadClients     int
	Blocked        int
	ReportPath     string
	Elapsed        time.Duration
}

// Mailer delivers run summaries over SMTP. A Mailer with an empty host
// is disabled and drops every send.
type Mailer struct {
	host   string
	from   string
	to     []string
	logger *zap.Logger

	// send is swappable for tests.
	send func(addr, from string, to []string, msg []byte) error
}

// New builds a Mailer. host is "relay:port"; an empty host disables
// delivery.
func New(host, from string, to []string, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		host:   host,
		from:   from,
		to:     to,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Enabled reports whether the mailer has a relay configured.
func (m *Mailer) Enabled() bool {
	return m.host != "" && m.from != "" && len(m.to) > 0
}

// SendSummary mails the run digest. Disabled mailers return nil.
func (m *Mailer) SendSummary(s Summary) error {
	if !m.Enabled() {
		m.logger.Debug("mail disabled, skipping summary")
		return nil
	}

	msg := buildMessage(m.from, m.to, s)
	if err := m.send(m.host, m.from, m.to, msg); err != nil {
		return fmt.Errorf("send summary mail: %w", err)
	}
	m.logger.Info("summary mail sent",
		zap.String("relay", m.host),
		zap.Strings("to", m.to))
	return nil
}

func buildMessage(from string, to []string, s Summary) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: Client audit for %s: %d flagged\r\n", s.OrgName, s.BadClients)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Organization: %s\r\n", s.OrgName)
	fmt.Fprintf(&b, "Networks scanned: %d (%d failed)\r\n", s.NetworksTotal, s.NetworksFailed)
	fmt.Fprintf(&b, "Flagged clients: %d\r\n", s.BadClients)
	fmt.Fprintf(&b, "Blocked: %d\r\n", s.Blocked)
	fmt.Fprintf(&b, "Report: %s\r\n", s.ReportPath)
	fmt.Fprintf(&b, "Elapsed: %s\r\n", s.Elapsed.Round(time.Second))
	return []byte(b.String())
}
