package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/alarm-watcher/internal/config"
	"github.com/oshokin/alarm-watcher/internal/domain/alarm"
	"github.com/oshokin/alarm-watcher/internal/logger"
	"github.com/oshokin/alarm-watcher/internal/metrics"
)

// DesktopNotifier is the desktop popup collaborator.
type DesktopNotifier interface {
	Notify(title, body string) error
}

// EmailSender is the e-mail collaborator.
type EmailSender interface {
	SendAlarmNotification(ctx context.Context, batch []alarm.Record) error
}

// LabSignal is the laboratory signal hardware collaborator.
type LabSignal interface {
	SignalOn() error
	SignalOff() error
}

// TimeoutSource supplies the current notification timeouts. It is read
// on every tick so configuration changes apply without restart.
type TimeoutSource interface {
	Timeouts() config.Timeouts
}

// Dependencies bundles the collaborators injected into the service.
type Dependencies struct {
	// Timeouts supplies current per-channel notification timeouts.
	Timeouts TimeoutSource
	// Desktop delivers desktop popups.
	Desktop DesktopNotifier
	// Email delivers alarm e-mails.
	Email EmailSender
	// LabSignal switches the laboratory signal light.
	LabSignal LabSignal
}

// State describes the service lifecycle.
type State int32

// Service lifecycle states. The service is Running from construction
// until Shutdown flips it to Stopping; Stopped is terminal once both
// loops have exited.
const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

// tickInterval is the period of both background loops.
const tickInterval = time.Second

// ErrLabSignalInDesktopMode is returned by New when the laboratory
// signal is requested for a desktop-mode instance; the signal hardware
// only exists in the lab and is a server-mode concern.
var ErrLabSignalInDesktopMode = errors.New("laboratory signal can only be used in server mode")

// Service is the alarm watcher: it owns the active alarm set, runs the
// timeout evaluator and laboratory signal loops, and exposes the
// ingestion entry point used by the bus feed.
type Service struct {
	// set is the shared live-alarm collection.
	set *alarm.ActiveAlarmSet
	// timeouts supplies the current notification timeouts.
	timeouts TimeoutSource
	// desktop delivers desktop popups.
	desktop DesktopNotifier
	// email delivers alarm e-mails.
	email EmailSender
	// signal switches the laboratory signal light.
	signal LabSignal

	// desktopMode disables the e-mail and laboratory channels.
	desktopMode bool
	// labSignalEnabled enables the laboratory signal loop.
	labSignalEnabled bool

	// signalOn tracks the light state. Only the lab-signal loop reads
	// or writes it, so it needs no lock.
	signalOn bool

	// state is the current lifecycle state.
	state atomic.Int32
	// stop is closed by Shutdown to end both loops.
	stop chan struct{}
	// loops tracks the two background goroutines for Shutdown to join.
	loops sync.WaitGroup
	// spawn starts a detached dispatch task. Tests replace it with a
	// synchronous variant to assert collaborator calls without races.
	spawn func(task func())
	// now supplies the current time; replaced by tests.
	now func() time.Time
}

// New creates the watcher and starts both background loops; the
// returned service is already Running. It fails when the laboratory
// signal is requested in desktop mode.
func New(ctx context.Context, deps Dependencies, desktopMode, labSignalEnabled bool) (*Service, error) {
	s, err := newService(deps, desktopMode, labSignalEnabled, time.Now)
	if err != nil {
		return nil, err
	}

	s.loops.Add(2)

	go s.runEvaluator(ctx)
	go s.runLabSignal(ctx)

	logger.InfoKV(ctx, "Alarm watcher running",
		"desktop_mode", desktopMode, "lab_signal", labSignalEnabled)

	return s, nil
}

// newService builds the service without starting the loops. Tests use
// it to drive ticks manually with a fake clock.
func newService(deps Dependencies, desktopMode, labSignalEnabled bool, now func() time.Time) (*Service, error) {
	if desktopMode && labSignalEnabled {
		return nil, ErrLabSignalInDesktopMode
	}

	s := &Service{
		set:              alarm.NewActiveAlarmSetWithClock(now),
		timeouts:         deps.Timeouts,
		desktop:          deps.Desktop,
		email:            deps.Email,
		signal:           deps.LabSignal,
		desktopMode:      desktopMode,
		labSignalEnabled: labSignalEnabled,
		stop:             make(chan struct{}),
		spawn:            func(task func()) { go task() },
		now:              now,
	}
	s.state.Store(int32(StateRunning))

	return s, nil
}

// ReportStatus is the ingestion entry point called by the bus feed.
// It never blocks beyond the set's critical section. Reports arriving
// while the service is Stopping are still recorded; the loops simply
// never act on them.
func (s *Service) ReportStatus(entityID, severity, status string) {
	s.set.ReportStatus(entityID, severity, status)
	metrics.SetActiveAlarms(s.set.Size())
}

// Count returns the number of currently active alarms.
func (s *Service) Count() int {
	return s.set.Size()
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Shutdown stops both loops and waits for them to exit. Each loop
// observes the stop flag at the top of its iteration, so shutdown
// latency is bounded by roughly one tick. Detached dispatch tasks are
// not joined; delivery stays best-effort. Shutdown is idempotent.
func (s *Service) Shutdown(ctx context.Context) {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}

	close(s.stop)
	s.loops.Wait()
	s.state.Store(int32(StateStopped))

	logger.Info(ctx, "Alarm watcher stopped")
}

// runEvaluator drives the timeout evaluator until Shutdown.
func (s *Service) runEvaluator(ctx context.Context) {
	defer s.loops.Done()

	ctx = logger.WithName(ctx, "evaluator")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evaluateTick(ctx)
		}
	}
}

// evaluateTick performs one evaluator pass: resets the oldest-trigger
// sentinel when the set has drained, then checks the desktop and e-mail
// thresholds against the current configuration.
func (s *Service) evaluateTick(ctx context.Context) {
	timeouts := s.timeouts.Timeouts()

	if s.set.ResetOldestIfEmpty() {
		logger.Debug(ctx, "All alarms cleared")
	}

	metrics.SetActiveAlarms(s.set.Size())

	oldest, active := s.set.OldestTriggerTime()
	if !active {
		return
	}

	age := s.now().Sub(oldest)

	if timeouts.Desktop > 0 && age >= timeouts.Desktop {
		if batch := s.set.PrepareDesktopBatch(timeouts.Desktop); len(batch) > 0 {
			s.dispatchDesktop(ctx, batch)
		}
	}

	// E-mail is a server-mode channel.
	if !s.desktopMode && timeouts.Email > 0 && age >= timeouts.Email {
		if batch := s.set.PrepareEmailBatch(); len(batch) > 0 {
			s.dispatchEmail(ctx, batch)
		}
	}
}

// runLabSignal drives the laboratory signal until Shutdown. The loop is
// the only goroutine touching the signal hardware. Desktop-mode
// instances and instances without the signal channel exit immediately.
func (s *Service) runLabSignal(ctx context.Context) {
	defer s.loops.Done()

	if s.desktopMode || !s.labSignalEnabled {
		return
	}

	ctx = logger.WithName(ctx, "lab-signal")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.signalTick(ctx)
		}
	}
}

// signalTick performs one laboratory signal pass: switch on once the
// oldest alarm is over the laboratory timeout, switch off once the set
// is empty. Hardware errors are logged and the loop keeps going.
func (s *Service) signalTick(ctx context.Context) {
	timeouts := s.timeouts.Timeouts()

	if !s.signalOn && s.set.Size() > 0 && timeouts.Laboratory > 0 {
		oldest, active := s.set.OldestTriggerTime()
		if active && s.now().Sub(oldest) >= timeouts.Laboratory {
			// Flip the flag first so a failing call is not retried
			// every second; the light is level-triggered and the next
			// off/on cycle resynchronizes it.
			s.signalOn = true

			logger.Info(ctx, "Laboratory signal on")
			metrics.IncNotifications(metrics.ChannelLabSignal, 1)

			if err := s.signal.SignalOn(); err != nil {
				logger.ErrorKV(ctx, "Switch laboratory signal on", "error", err)
			}
		}
	}

	if s.signalOn && s.set.Size() == 0 {
		s.signalOn = false

		logger.Info(ctx, "Laboratory signal off")

		if err := s.signal.SignalOff(); err != nil {
			logger.ErrorKV(ctx, "Switch laboratory signal off", "error", err)
		}
	}
}
