package notifications

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Mailer sends follow-up reminder emails over the configured SMTP server.
// A nil mailer is a valid no-op when email is disabled.
type Mailer struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	log       *logger.Logger
}

// NewMailer creates an SMTP mailer, or nil when email is disabled.
func NewMailer(cfg config.EmailConfig, log *logger.Logger) *Mailer {
	if !cfg.GetEmailEnabled() {
		return nil
	}
	return &Mailer{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		log:       log,
	}
}

// FollowUpReminder is the payload for a reminder email.
type FollowUpReminder struct {
	To          string
	LeadName    string
	LeadPhone   string
	ScheduledAt time.Time
	Note        string
}

// SendFollowUpReminder delivers a reminder for a scheduled follow-up.
func (m *Mailer) SendFollowUpReminder(ctx context.Context, reminder FollowUpReminder) error {
	if m == nil {
		return nil
	}
	if reminder.To == "" {
		return nil
	}

	name := reminder.LeadName
	if name == "" {
		name = reminder.LeadPhone
	}
	subject := fmt.Sprintf("Follow-up reminder: %s", name)
	body := fmt.Sprintf(
		"Follow-up scheduled for %s.\n\nLead: %s\nPhone: %s\n",
		reminder.ScheduledAt.Format("02/01/2006 15:04"),
		name,
		reminder.LeadPhone,
	)
	if reminder.Note != "" {
		body += "\nNote: " + reminder.Note + "\n"
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.fromEmail); err != nil {
		return fmt.Errorf("reminder from: %w", err)
	}
	if err := msg.To(reminder.To); err != nil {
		return fmt.Errorf("reminder to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.username),
		gomail.WithPassword(m.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	m.log.Info("follow-up reminder sent", "to", reminder.To, "scheduled_at", reminder.ScheduledAt)
	return nil
}
