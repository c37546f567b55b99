// Package email sends alarm notification e-mails over SMTP.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/oshokin/alarm-watcher/internal/config"
	"github.com/oshokin/alarm-watcher/internal/domain/alarm"
)

const (
	// subject is the fixed subject line of alarm e-mails.
	subject = "Detector Control System Alarm"
	// senderName is the display name of the daemon in the From header.
	senderName = "Alarm Notification Daemon"
)

// Sender delivers alarm batches to the configured mailing list.
// Transport settings are read per send so configuration reloads take
// effect without restart.
type Sender struct {
	// settings supplies the current e-mail transport configuration.
	settings func() config.EmailConfig
}

// NewSender creates a sender reading transport settings through the
// provided accessor.
func NewSender(settings func() config.EmailConfig) *Sender {
	return &Sender{settings: settings}
}

// SendAlarmNotification composes and sends one e-mail covering the
// whole batch.
func (s *Sender) SendAlarmNotification(ctx context.Context, batch []alarm.Record) error {
	current := s.settings()

	message := mail.NewMsg()
	if err := message.FromFormat(senderName, current.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}

	if err := message.To(current.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, composeMessageText(batch))

	client, err := mail.NewClient(current.ServerName,
		mail.WithPort(current.ServerPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithSMTPAuth(mail.SMTPAuthNoAuth))
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("send alarm e-mail: %w", err)
	}

	return nil
}

// composeMessageText builds the plain-text body listing the affected PVs.
func composeMessageText(batch []alarm.Record) string {
	var b strings.Builder

	b.WriteString("Hello,\n\nthe following PV(s) triggered an alarm:\n\n")

	for _, record := range batch {
		b.WriteString(record.EntityID)
		b.WriteString("\n")
	}

	b.WriteString("\nPlease remember to acknowledge the alarms if you go solving the problem.\n\n\nYour Alarm Notification Service\n")

	return b.String()
}
