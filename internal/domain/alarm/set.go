package alarm

import (
	"sync"
	"time"
)

// ActiveAlarmSet is the concurrency-safe collection of all currently
// active alarms, keyed by PV name. All reads and writes from the
// ingestion path and the watcher loops go through its methods; the
// internal map is never handed out.
//
// The zero time value acts as the "no alarm active" sentinel for the
// oldest trigger time. The sentinel is set when the set transitions
// from empty to non-empty and reset only when the set drains to empty
// again: it deliberately does NOT track the true minimum when the
// oldest alarm clears while newer ones remain.
type ActiveAlarmSet struct {
	// mu guards the records map and the oldest trigger time.
	mu sync.Mutex
	// records maps PV name to its alarm record.
	records map[string]*Record
	// oldestTrigger is the trigger time of the first alarm after the
	// set was last empty, or the zero time when no alarm is active.
	oldestTrigger time.Time
	// now supplies the current time; replaced by tests.
	now func() time.Time
}

// NewActiveAlarmSet creates an empty alarm set using the system clock.
func NewActiveAlarmSet() *ActiveAlarmSet {
	return NewActiveAlarmSetWithClock(time.Now)
}

// NewActiveAlarmSetWithClock creates an empty alarm set with the
// provided time source. Tests use this to drive the timeout logic
// deterministically.
func NewActiveAlarmSetWithClock(now func() time.Time) *ActiveAlarmSet {
	if now == nil {
		now = time.Now
	}

	return &ActiveAlarmSet{
		records: make(map[string]*Record),
		now:     now,
	}
}

// ReportStatus applies one decoded status-change event. A cleared
// severity removes the entry if present; an active severity inserts a
// new record or updates severity/status of the existing one. The
// oldest trigger time is initialized when it is at the sentinel.
func (s *ActiveAlarmSet) ReportStatus(entityID, severity, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if IsCleared(severity) {
		delete(s.records, entityID)

		return
	}

	eventTime := s.now()

	record, ok := s.records[entityID]
	if !ok {
		record = &Record{
			EntityID:    entityID,
			Severity:    severity,
			Status:      status,
			TriggerTime: eventTime,
		}
		s.records[entityID] = record
	} else {
		record.update(severity, status, eventTime)
	}

	if s.oldestTrigger.IsZero() {
		s.oldestTrigger = record.TriggerTime
	}
}

// Size returns the current number of active alarms.
func (s *ActiveAlarmSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// Snapshot returns copies of all active alarm records.
func (s *ActiveAlarmSet) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		snapshot = append(snapshot, record.Clone())
	}

	return snapshot
}

// OldestTriggerTime returns the tracked oldest trigger time and whether
// any alarm is active. When the second value is false the time is the
// zero sentinel.
func (s *ActiveAlarmSet) OldestTriggerTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.oldestTrigger, !s.oldestTrigger.IsZero()
}

// MarkDesktopSent sets the desktop one-shot flag for the entity.
// It is idempotent and a no-op when the entity has been cleared
// concurrently.
func (s *ActiveAlarmSet) MarkDesktopSent(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[entityID]; ok {
		record.DesktopNotificationSent = true
	}
}

// MarkEmailSent sets the e-mail one-shot flag for the entity.
// Same idempotence and no-op rules as MarkDesktopSent.
func (s *ActiveAlarmSet) MarkEmailSent(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[entityID]; ok {
		record.EmailNotificationSent = true
	}
}

// ResetOldestIfEmpty resets the oldest trigger time to the sentinel
// when the set has drained to empty. It returns true when a reset
// happened, i.e. the set transitioned from non-empty to empty since
// the previous call.
func (s *ActiveAlarmSet) ResetOldestIfEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 && !s.oldestTrigger.IsZero() {
		s.oldestTrigger = time.Time{}

		return true
	}

	return false
}

// PrepareDesktopBatch selects all alarms older than the desktop timeout
// that have not been included in a popup yet, marks them sent and
// returns copies. Selection and marking happen atomically under the set
// lock; the actual delivery runs outside of it. A timeout of 0 disables
// the channel and yields no batch.
func (s *ActiveAlarmSet) PrepareDesktopBatch(timeout time.Duration) []Record {
	if timeout == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	currentTime := s.now()

	var batch []Record

	for _, record := range s.records {
		if currentTime.Sub(record.TriggerTime) < timeout {
			continue
		}

		if record.DesktopNotificationSent {
			continue
		}

		record.DesktopNotificationSent = true
		batch = append(batch, record.Clone())
	}

	return batch
}

// PrepareEmailBatch selects all alarms that have not been e-mailed yet,
// marks them sent and returns copies. Unlike the desktop path there is
// no per-record threshold: once the set-level e-mail timeout has passed,
// every unsent alarm is eligible.
func (s *ActiveAlarmSet) PrepareEmailBatch() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []Record

	for _, record := range s.records {
		if record.EmailNotificationSent {
			continue
		}

		record.EmailNotificationSent = true
		batch = append(batch, record.Clone())
	}

	return batch
}
