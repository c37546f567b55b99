package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings of the alarm-watcher daemon.
type Config struct {
	// LogLevel is the minimum logging level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// Bus configures the message-bus feed delivering alarm status changes.
	Bus BusConfig `yaml:"bus"`
	// Timeouts configures the per-channel notification timeouts.
	Timeouts TimeoutConfig `yaml:"timeouts"`
	// Email configures the e-mail notification transport.
	Email EmailConfig `yaml:"email"`
	// LabSignal configures the laboratory signal relay hardware.
	LabSignal LabSignalConfig `yaml:"lab_signal"`
	// Metrics configures the optional Prometheus listener.
	Metrics MetricsConfig `yaml:"metrics"`
}

// BusConfig holds Kafka connection settings for the alarm feed.
type BusConfig struct {
	// Brokers is the list of Kafka bootstrap addresses.
	Brokers []string `yaml:"brokers"`
	// Topic is the alarm feed topic name.
	Topic string `yaml:"topic"`
	// GroupID is the consumer group identifier.
	GroupID string `yaml:"group_id"`
	// User enables SASL/PLAIN authentication when non-empty.
	User string `yaml:"user"`
	// Password is the SASL/PLAIN password.
	Password string `yaml:"password"`
}

// TimeoutConfig holds the three notification timeouts in seconds.
// A value of 0 disables the corresponding channel.
type TimeoutConfig struct {
	// LaboratorySeconds delays the laboratory signal after the oldest alarm appeared.
	LaboratorySeconds uint `yaml:"laboratory"`
	// DesktopSeconds delays desktop popups after the oldest alarm appeared.
	DesktopSeconds uint `yaml:"desktop"`
	// EmailSeconds delays e-mail notifications after the oldest alarm appeared.
	EmailSeconds uint `yaml:"email"`
}

// Timeouts is the duration view of TimeoutConfig consumed by the watcher loops.
type Timeouts struct {
	// Laboratory is the laboratory signal delay; 0 disables the channel.
	Laboratory time.Duration
	// Desktop is the desktop popup delay; 0 disables the channel.
	Desktop time.Duration
	// Email is the e-mail delay; 0 disables the channel.
	Email time.Duration
}

// Durations converts the configured second values into durations.
func (t TimeoutConfig) Durations() Timeouts {
	return Timeouts{
		Laboratory: time.Duration(t.LaboratorySeconds) * time.Second,
		Desktop:    time.Duration(t.DesktopSeconds) * time.Second,
		Email:      time.Duration(t.EmailSeconds) * time.Second,
	}
}

// EmailConfig holds SMTP transport settings for alarm e-mails.
type EmailConfig struct {
	// From is the sender address.
	From string `yaml:"from"`
	// To is the mailing list address receiving alarm notifications.
	To string `yaml:"to"`
	// ServerName is the SMTP server hostname.
	ServerName string `yaml:"server_name"`
	// ServerPort is the SMTP server port.
	ServerPort int `yaml:"server_port"`
}

// LabSignalConfig holds settings for the laboratory signal relay.
type LabSignalConfig struct {
	// DeviceNode is the serial device node of the relay (e.g. /dev/ttyUSB0).
	DeviceNode string `yaml:"device_node"`
}

// MetricsConfig holds settings for the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Address is the listen address for /metrics; empty disables the listener.
	Address string `yaml:"address"`
}

const (
	// DefaultConfigFilename is the default filename for watcher settings.
	DefaultConfigFilename = "alarm-watcher-settings.yaml"

	// DefaultGroupID is the default Kafka consumer group identifier.
	DefaultGroupID = "alarm-watcher"

	// DefaultSMTPPort is the default SMTP server port.
	DefaultSMTPPort = 25

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// maxPortNumber is the maximum port number in the TCP standard.
	maxPortNumber = 65535
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBusBrokersRequired is returned when no Kafka brokers are configured.
	errBusBrokersRequired = errors.New("at least one bus broker must be provided")
	// errBusTopicRequired is returned when the alarm feed topic is missing.
	errBusTopicRequired = errors.New("bus topic must be provided")
	// errEmailSettingsIncomplete is returned when the e-mail channel is
	// enabled but transport settings are missing.
	errEmailSettingsIncomplete = errors.New("e-mail timeout is set but from/to/server_name are incomplete")
	// errInvalidSMTPPort is returned when the SMTP port is out of range.
	errInvalidSMTPPort = errors.New("SMTP server port is out of range")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if len(cfg.Bus.Brokers) == 0 {
		return errBusBrokersRequired
	}

	if cfg.Bus.Topic == "" {
		return errBusTopicRequired
	}

	// Set default consumer group if not specified.
	if cfg.Bus.GroupID == "" {
		cfg.Bus.GroupID = DefaultGroupID
	}

	// Set default SMTP port if not specified.
	if cfg.Email.ServerPort == 0 {
		cfg.Email.ServerPort = DefaultSMTPPort
	}

	if cfg.Email.ServerPort < 0 || cfg.Email.ServerPort > maxPortNumber {
		return errInvalidSMTPPort
	}

	// Transport settings are only mandatory while the e-mail channel is active.
	if cfg.Timeouts.EmailSeconds > 0 {
		if cfg.Email.From == "" || cfg.Email.To == "" || cfg.Email.ServerName == "" {
			return errEmailSettingsIncomplete
		}
	}

	return nil
}
