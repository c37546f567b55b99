// Package desktop delivers desktop popups through the notify-send
// binary shipped with libnotify.
package desktop

import (
	"fmt"
	"os/exec"
)

// Notifier sends desktop notifications via notify-send. Alarms are
// shown with critical urgency and never expire on their own, so they
// stay visible until dismissed.
type Notifier struct{}

// NewNotifier creates a notify-send backed desktop notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify displays one desktop notification. The command failure is
// returned to the caller for logging; it never panics or blocks beyond
// the process invocation.
func (n *Notifier) Notify(title, body string) error {
	cmd := exec.Command("notify-send",
		"--urgency", "critical",
		"--expire-time", "0",
		"--icon", "dialog-warning",
		title, body)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}

	return nil
}
