package alarm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source for the set.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// TestActiveAlarmSet_CountFollowsReports verifies that Size equals the
// number of distinct PVs whose latest report was non-cleared.
func TestActiveAlarmSet_CountFollowsReports(t *testing.T) {
	t.Parallel()

	s := NewActiveAlarmSet()

	s.ReportStatus("pv1", "MAJOR", "ALARM")
	require.Equal(t, 1, s.Size())

	// Duplicate report for the same PV does not grow the set.
	s.ReportStatus("pv1", "MINOR", "ALARM")
	require.Equal(t, 1, s.Size())

	s.ReportStatus("pv2", "MAJOR", "ALARM")
	require.Equal(t, 2, s.Size())

	// Scenario A: acknowledgement removes the entry.
	s.ReportStatus("pv1", "MAJOR_ACK", "ALARM")
	require.Equal(t, 1, s.Size())

	s.ReportStatus("pv2", "OK", "NO_ALARM")
	require.Equal(t, 0, s.Size())
}

// TestActiveAlarmSet_ClearedReportForUnknownEntityIsNoop verifies that
// clearing a PV that is not tracked changes nothing.
func TestActiveAlarmSet_ClearedReportForUnknownEntityIsNoop(t *testing.T) {
	t.Parallel()

	s := NewActiveAlarmSet()
	s.ReportStatus("pv1", "MAJOR", "ALARM")

	s.ReportStatus("ghost", "OK", "NO_ALARM")
	s.ReportStatus("ghost", "MAJOR_ACK", "ALARM")

	require.Equal(t, 1, s.Size())
}

// TestActiveAlarmSet_UpdateKeepsTriggerTimeAndFlags verifies the update
// rule: latest severity/status win, trigger time and one-shot flags stay.
func TestActiveAlarmSet_UpdateKeepsTriggerTimeAndFlags(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewActiveAlarmSetWithClock(clk.Now)

	s.ReportStatus("pv1", "MINOR", "ALARM")
	created := clk.Now()
	s.MarkDesktopSent("pv1")

	clk.Advance(10 * time.Second)
	s.ReportStatus("pv1", "MAJOR", "LATCHED")

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 1)
	require.Equal(t, "MAJOR", snapshot[0].Severity)
	require.Equal(t, "LATCHED", snapshot[0].Status)
	require.Equal(t, created, snapshot[0].TriggerTime)
	require.True(t, snapshot[0].DesktopNotificationSent)
}

// TestActiveAlarmSet_SnapshotIsACopy verifies mutating a snapshot does
// not leak into the set.
func TestActiveAlarmSet_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := NewActiveAlarmSet()
	s.ReportStatus("pv1", "MAJOR", "ALARM")

	snapshot := s.Snapshot()
	snapshot[0].Severity = "TAMPERED"
	snapshot[0].DesktopNotificationSent = true

	fresh := s.Snapshot()
	require.Equal(t, "MAJOR", fresh[0].Severity)
	require.False(t, fresh[0].DesktopNotificationSent)
}

// TestActiveAlarmSet_MarkSentIdempotence verifies double marking keeps
// the flag set and never re-adds the PV to a later batch, and that
// marking a vanished PV is a silent no-op.
func TestActiveAlarmSet_MarkSentIdempotence(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewActiveAlarmSetWithClock(clk.Now)

	s.ReportStatus("pv1", "MAJOR", "ALARM")
	s.MarkDesktopSent("pv1")
	s.MarkDesktopSent("pv1")

	clk.Advance(time.Hour)
	require.Empty(t, s.PrepareDesktopBatch(time.Second))

	// Vanished entity: no-op, no panic.
	s.MarkDesktopSent("gone")
	s.MarkEmailSent("gone")
}

// TestActiveAlarmSet_PrepareDesktopBatch covers the per-record threshold,
// the one-shot flag and the disabled channel (Scenario B at set level).
func TestActiveAlarmSet_PrepareDesktopBatch(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewActiveAlarmSetWithClock(clk.Now)
	timeout := 5 * time.Second

	s.ReportStatus("pv2", "MAJOR", "ALARM")

	// t=4s: below the threshold, no batch.
	clk.Advance(4 * time.Second)
	require.Empty(t, s.PrepareDesktopBatch(timeout))

	// t=6s: over the threshold, pv2 is selected and marked.
	clk.Advance(2 * time.Second)
	batch := s.PrepareDesktopBatch(timeout)
	require.Len(t, batch, 1)
	require.Equal(t, "pv2", batch[0].EntityID)

	// t=7s: already sent, empty batch.
	clk.Advance(time.Second)
	require.Empty(t, s.PrepareDesktopBatch(timeout))

	// Timeout 0 disables the channel entirely.
	s.ReportStatus("pv3", "MAJOR", "ALARM")
	clk.Advance(time.Hour)
	require.Nil(t, s.PrepareDesktopBatch(0))
}

// TestActiveAlarmSet_PrepareEmailBatchHasNoPerRecordThreshold verifies
// the intentional asymmetry against the desktop path: every unsent alarm
// is eligible regardless of its own age.
func TestActiveAlarmSet_PrepareEmailBatchHasNoPerRecordThreshold(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewActiveAlarmSetWithClock(clk.Now)

	s.ReportStatus("old", "MAJOR", "ALARM")
	clk.Advance(10 * time.Minute)
	s.ReportStatus("fresh", "MINOR", "ALARM")

	batch := s.PrepareEmailBatch()
	require.Len(t, batch, 2)

	// Second selection is empty: one-shot per alarm.
	require.Empty(t, s.PrepareEmailBatch())
}

// TestActiveAlarmSet_OldestTriggerTracking pins the implemented
// non-minimum-tracking semantics (Scenario D): the oldest trigger time
// is set on the empty-to-non-empty transition and only resets when the
// set drains completely.
func TestActiveAlarmSet_OldestTriggerTracking(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	s := NewActiveAlarmSetWithClock(clk.Now)

	_, active := s.OldestTriggerTime()
	require.False(t, active)

	s.ReportStatus("pv1", "MAJOR", "ALARM")
	first := clk.Now()

	clk.Advance(2 * time.Second)
	s.ReportStatus("pv2", "MAJOR", "ALARM")

	oldest, active := s.OldestTriggerTime()
	require.True(t, active)
	require.Equal(t, first, oldest)

	// Clearing the oldest alarm must NOT advance the reference point.
	s.ReportStatus("pv1", "MAJOR_ACK", "ALARM")
	oldest, active = s.OldestTriggerTime()
	require.True(t, active)
	require.Equal(t, first, oldest)

	// A third alarm while the set is non-empty keeps the stale reference.
	clk.Advance(time.Minute)
	s.ReportStatus("pv3", "MAJOR", "ALARM")
	oldest, _ = s.OldestTriggerTime()
	require.Equal(t, first, oldest)

	// No reset while alarms remain.
	require.False(t, s.ResetOldestIfEmpty())

	// Drain the set: the next evaluator pass resets the sentinel once.
	s.ReportStatus("pv2", "OK", "NO_ALARM")
	s.ReportStatus("pv3", "OK", "NO_ALARM")
	require.True(t, s.ResetOldestIfEmpty())
	require.False(t, s.ResetOldestIfEmpty())

	_, active = s.OldestTriggerTime()
	require.False(t, active)

	// A new alarm after the reset starts a fresh reference point.
	clk.Advance(time.Second)
	s.ReportStatus("pv4", "MAJOR", "ALARM")
	oldest, active = s.OldestTriggerTime()
	require.True(t, active)
	require.Equal(t, clk.Now(), oldest)
}

// TestActiveAlarmSet_ConcurrentReports exercises the lock under
// concurrent mutation from several goroutines.
func TestActiveAlarmSet_ConcurrentReports(t *testing.T) {
	t.Parallel()

	s := NewActiveAlarmSet()

	var wg sync.WaitGroup

	names := []string{"pv1", "pv2", "pv3", "pv4"}
	for _, name := range names {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				s.ReportStatus(name, "MAJOR", "ALARM")
				s.MarkDesktopSent(name)
				_ = s.Snapshot()
				s.ReportStatus(name, "MAJOR_ACK", "ALARM")
			}

			s.ReportStatus(name, "MAJOR", "ALARM")
		}()
	}

	wg.Wait()
	require.Equal(t, len(names), s.Size())
}
