package watcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oshokin/alarm-watcher/internal/bus"
	"github.com/oshokin/alarm-watcher/internal/config"
	"github.com/oshokin/alarm-watcher/internal/logger"
	"github.com/oshokin/alarm-watcher/internal/metrics"
	"github.com/oshokin/alarm-watcher/internal/notify/desktop"
	"github.com/oshokin/alarm-watcher/internal/notify/email"
	"github.com/oshokin/alarm-watcher/internal/notify/labsignal"
	"github.com/oshokin/alarm-watcher/internal/version"
)

// Options controls the alarm-watcher process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// DesktopMode runs the instance as a desktop client: popups only,
	// no e-mail and no laboratory signal.
	DesktopMode bool
	// LabSignalEnabled drives the laboratory signal relay (server mode only).
	LabSignalEnabled bool
	// LogLevel overrides the configured logging level when non-empty.
	LogLevel string
}

// heartbeatInterval is how often the daemon logs the live-alarm count.
const heartbeatInterval = 30 * time.Second

// Run starts the watcher service and the bus feed consumer, then blocks
// until the context is canceled. SIGHUP re-reads the settings file at
// runtime.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-watcher")

	logger.InfoKV(ctx, "Starting alarm watcher", "version", version.Short())

	// Load configuration behind a reloadable manager; the loops read it
	// on every tick.
	manager, err := config.NewManager(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyLogLevel(ctx, manager.Get().LogLevel, opts.LogLevel)
	metrics.Init()

	// Collaborators read their settings through the manager so reloads
	// take effect without restart.
	deps := Dependencies{
		Timeouts: manager,
		Desktop:  desktop.NewNotifier(),
		Email: email.NewSender(func() config.EmailConfig {
			return manager.Get().Email
		}),
		LabSignal: labsignal.NewRelay(func() string {
			return manager.Get().LabSignal.DeviceNode
		}),
	}

	service, err := New(ctx, deps, opts.DesktopMode, opts.LabSignalEnabled)
	if err != nil {
		return fmt.Errorf("initialise watcher: %w", err)
	}

	// Re-read settings on SIGHUP.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	defer signal.Stop(reload)

	go watchReload(ctx, manager, reload)

	// Optional Prometheus listener.
	if address := manager.Get().Metrics.Address; address != "" {
		go func() {
			if err := metrics.Serve(ctx, address); err != nil {
				logger.ErrorKV(ctx, "Metrics listener failed", "error", err)
			}
		}()
	}

	go heartbeat(ctx, service)

	// The feed consumer blocks until context cancellation; the watcher
	// is shut down afterwards so late reports are still harmless.
	consumer := bus.NewConsumer(manager.Get().Bus, service)

	err = consumer.Run(ctx)

	service.Shutdown(ctx)

	if err != nil {
		return fmt.Errorf("consume alarm feed: %w", err)
	}

	return nil
}

// applyLogLevel applies the configured level with an optional CLI override.
func applyLogLevel(ctx context.Context, configured, override string) {
	chosen := configured
	if override != "" {
		chosen = override
	}

	if chosen == "" {
		return
	}

	level, ok := logger.ParseLogLevel(chosen)
	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping current", "log_level", chosen)

		return
	}

	logger.SetLevel(level)
}

// watchReload re-reads the settings file whenever a reload signal arrives.
func watchReload(ctx context.Context, manager *config.Manager, reload <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-reload:
			if err := manager.Reload(); err != nil {
				logger.ErrorKV(ctx, "Settings reload failed, keeping previous", "error", err)

				continue
			}

			logger.InfoKV(ctx, "Settings reloaded", "path", manager.Path())
		}
	}
}

// heartbeat logs the live-alarm count periodically so operators can see
// liveness in the journal.
func heartbeat(ctx context.Context, service *Service) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if count := service.Count(); count == 0 {
				logger.Info(ctx, "No alarms active")
			} else {
				logger.InfoKV(ctx, "Alarms active", "count", count)
			}
		}
	}
}
