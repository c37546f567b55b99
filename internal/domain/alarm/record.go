package alarm

import (
	"strings"
	"time"
)

// Record holds the alarm state of a single process variable (PV).
// It is a pure data container managed by the ActiveAlarmSet.
type Record struct {
	// EntityID is the PV name, stable for the lifetime of the alarm.
	// Any bus-specific protocol prefix has already been stripped.
	EntityID string
	// Severity is the alarm-level string supplied by the bus. An
	// acknowledged alarm carries the "_ACK" suffix.
	Severity string
	// Status is the descriptive alarm status supplied by the bus.
	Status string
	// TriggerTime is when the alarm was first reported. It is set at
	// creation and never changed afterwards.
	TriggerTime time.Time
	// DesktopNotificationSent marks that a desktop popup went out for
	// this alarm. Once true it stays true for the life of the record.
	DesktopNotificationSent bool
	// EmailNotificationSent marks that an e-mail went out for this
	// alarm. Once true it stays true for the life of the record.
	EmailNotificationSent bool
}

const (
	// clearedSeverity is the severity announcing that a PV returned to normal.
	clearedSeverity = "OK"
	// ackSuffix marks a severity acknowledged by an operator.
	ackSuffix = "_ACK"
)

// IsCleared reports whether the severity string announces a cleared or
// acknowledged alarm rather than an active one. Severities shorter than
// the acknowledgement suffix are never cleared.
func IsCleared(severity string) bool {
	if severity == clearedSeverity {
		return true
	}

	return strings.HasSuffix(severity, ackSuffix)
}

// Clone returns a copy of the record. All fields are values, so a
// plain copy is a full copy.
func (r *Record) Clone() Record {
	return *r
}

// update applies severity and status from a newer report. The stored
// trigger time is left untouched; updates carrying an older time than
// the stored one are discarded.
func (r *Record) update(severity, status string, at time.Time) {
	if at.Before(r.TriggerTime) {
		return
	}

	r.Severity = severity
	r.Status = status
}
