// Package metrics registers the Prometheus instruments of the watcher
// and optionally serves them over HTTP when a listen address is
// configured.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/alarm-watcher/internal/logger"
)

const metricPrefix = "alarm_watcher_"

// Notification channel label values.
const (
	ChannelDesktop   = "desktop"
	ChannelEmail     = "email"
	ChannelLabSignal = "lab_signal"
)

// Bus event result label values.
const (
	BusResultAccepted = "accepted"
	BusResultIgnored  = "ignored"
	BusResultError    = "error"
)

// readHeaderTimeout bounds header reads on the metrics listener.
const readHeaderTimeout = 5 * time.Second

var (
	//nolint:gochecknoglobals // Metric instruments are process-wide by design of the client library.
	registerOnce sync.Once

	//nolint:gochecknoglobals // See above.
	activeAlarms prometheus.Gauge
	//nolint:gochecknoglobals // See above.
	notificationsTotal *prometheus.CounterVec
	//nolint:gochecknoglobals // See above.
	busEventsTotal *prometheus.CounterVec
)

// Init registers all watcher instruments. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		activeAlarms = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "active_alarms",
			Help: "Number of currently active alarms",
		})
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notifications dispatched by channel",
			},
			[]string{"channel"},
		)
		busEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bus_events_total",
				Help: "Total bus feed events by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(activeAlarms, notificationsTotal, busEventsTotal)
	})
}

// SetActiveAlarms records the current live-alarm count.
func SetActiveAlarms(count int) {
	if activeAlarms != nil {
		activeAlarms.Set(float64(count))
	}
}

// IncNotifications counts dispatched notifications for a channel.
func IncNotifications(channel string, count int) {
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel).Add(float64(count))
	}
}

// IncBusEvent counts one bus feed event by result.
func IncBusEvent(result string) {
	if busEventsTotal != nil {
		busEventsTotal.WithLabelValues(result).Inc()
	}
}

// Serve exposes /metrics on the provided address until the context is
// canceled. It blocks; callers run it on its own goroutine.
func Serve(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	//nolint:exhaustruct // Default server values are fine here.
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf(ctx, "Metrics listener shutdown: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
