package watcher

import (
	"context"
	"strings"

	"github.com/oshokin/alarm-watcher/internal/domain/alarm"
	"github.com/oshokin/alarm-watcher/internal/logger"
	"github.com/oshokin/alarm-watcher/internal/metrics"
)

// desktopTitle is the fixed title of alarm popups.
const desktopTitle = "Detector Alarm"

// dispatchDesktop fires one desktop notification for the batch on a
// detached task. The evaluator does not wait for delivery; failures are
// logged and never reach the loop.
func (s *Service) dispatchDesktop(ctx context.Context, batch []alarm.Record) {
	s.spawn(func() {
		if err := s.desktop.Notify(desktopTitle, composeDesktopMessage(batch)); err != nil {
			logger.ErrorKV(ctx, "Desktop notification failed", "error", err, "alarms", len(batch))

			return
		}

		metrics.IncNotifications(metrics.ChannelDesktop, len(batch))
		logger.InfoKV(ctx, "Desktop notification sent", "alarms", len(batch))
	})
}

// dispatchEmail hands the batch to the e-mail collaborator on a
// detached task with the same fire-and-forget contract.
func (s *Service) dispatchEmail(ctx context.Context, batch []alarm.Record) {
	s.spawn(func() {
		if err := s.email.SendAlarmNotification(ctx, batch); err != nil {
			logger.ErrorKV(ctx, "E-mail notification failed", "error", err, "alarms", len(batch))

			return
		}

		metrics.IncNotifications(metrics.ChannelEmail, len(batch))
		logger.InfoKV(ctx, "E-mail notification sent", "alarms", len(batch))
	})
}

// composeDesktopMessage builds the popup body listing the affected PVs.
func composeDesktopMessage(batch []alarm.Record) string {
	var b strings.Builder

	b.WriteString("Alarm on this/these PV(s):\n")

	for _, record := range batch {
		b.WriteString(record.EntityID)
		b.WriteString("\n")
	}

	return b.String()
}
