package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/oshokin/alarm-watcher/internal/config"
	"github.com/oshokin/alarm-watcher/internal/logger"
	"github.com/oshokin/alarm-watcher/internal/metrics"
)

// Reporter receives decoded status-change events. The watcher service
// implements it.
type Reporter interface {
	ReportStatus(entityID, severity, status string)
}

// statusMessage mirrors the map-message layout of the alarm feed. The
// feed sends frequent idle messages whose TEXT field differs from
// "STATE"; only state messages carry alarm data.
type statusMessage struct {
	Text     string `json:"TEXT"`
	Name     string `json:"NAME"`
	Severity string `json:"SEVERITY"`
	Status   string `json:"STATUS"`
}

const (
	// stateMessageText marks messages carrying an alarm status change.
	stateMessageText = "STATE"
	// protocolPrefix is the pseudo-protocol prefix the alarm feed puts
	// in front of PV names; it is stripped before reporting.
	protocolPrefix = "epics://"

	// minReadBytes keeps the reader latency low; the feed is low-volume.
	minReadBytes = 1
	// maxReadBytes bounds single fetches from the broker.
	maxReadBytes = 10e6
	// dialTimeout bounds broker connection attempts.
	dialTimeout = 10 * time.Second
)

// Consumer reads the alarm feed topic and forwards decoded status
// changes to the reporter.
type Consumer struct {
	// reader is the Kafka consumer-group reader for the alarm topic.
	reader *kafka.Reader
	// reporter receives decoded status changes.
	reporter Reporter
}

// NewConsumer creates a consumer for the configured alarm feed.
func NewConsumer(cfg config.BusConfig, reporter Reporter) *Consumer {
	//nolint:exhaustruct // Remaining reader settings keep their defaults.
	readerConfig := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: minReadBytes,
		MaxBytes: maxReadBytes,
	}

	if cfg.User != "" {
		//nolint:exhaustruct // Remaining dialer settings keep their defaults.
		readerConfig.Dialer = &kafka.Dialer{
			Timeout:   dialTimeout,
			DualStack: true,
			SASLMechanism: plain.Mechanism{
				Username: cfg.User,
				Password: cfg.Password,
			},
		}
	}

	reader := kafka.NewReader(readerConfig)

	return &Consumer{
		reader:   reader,
		reporter: reporter,
	}
}

// Run consumes the feed until the context is canceled. Malformed or
// idle messages are dropped; read errors are logged and the loop
// continues.
func (c *Consumer) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "bus")

	logger.InfoKV(ctx, "Consuming alarm feed",
		"topic", c.reader.Config().Topic, "group_id", c.reader.Config().GroupID)

	defer func() {
		if err := c.reader.Close(); err != nil {
			logger.Errorf(ctx, "Close feed reader: %v", err)
		}
	}()

	for {
		message, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Feed consumer stopped")

				return nil
			}

			metrics.IncBusEvent(metrics.BusResultError)
			logger.ErrorKV(ctx, "Feed read failed", "error", err)

			continue
		}

		entityID, severity, status, ok := decodeStatusChange(message.Value)
		if !ok {
			metrics.IncBusEvent(metrics.BusResultIgnored)

			continue
		}

		metrics.IncBusEvent(metrics.BusResultAccepted)
		logger.DebugKV(ctx, "Status change received",
			"entity_id", entityID, "severity", severity, "status", status)

		c.reporter.ReportStatus(entityID, severity, status)
	}
}

// Close releases the underlying reader. Run closes it on exit as well;
// Close exists for callers that never started Run.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close feed reader: %w", err)
	}

	return nil
}

// decodeStatusChange extracts a status change from a feed message.
// It reports ok=false for idle messages, messages with missing fields
// and payloads that are not valid JSON.
func decodeStatusChange(payload []byte) (entityID, severity, status string, ok bool) {
	var message statusMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return "", "", "", false
	}

	if message.Text != stateMessageText {
		return "", "", "", false
	}

	if message.Name == "" || message.Severity == "" || message.Status == "" {
		return "", "", "", false
	}

	// The feed prefixes PV names with a pseudo-protocol; strip it.
	entityID = strings.Replace(message.Name, protocolPrefix, "", 1)

	return entityID, message.Severity, message.Status, true
}
