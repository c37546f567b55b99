// Package alarm contains the core domain model of the watcher: the
// Record value type describing one PV's alarm state, the severity
// classification deciding between insertion and removal, and the
// ActiveAlarmSet aggregating all live alarms under a single lock.
package alarm
