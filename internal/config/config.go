package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by alarmd and alarmctl.
type Config struct {
	// ServerAddress is the gRPC address alarmd listens on and alarmctl dials.
	ServerAddress string `yaml:"server_addr"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level of emitted log records.
	LogLevel string `yaml:"log_level"`
	// Store selects and locates the key-value backend holding the alarm list.
	Store StoreConfig `yaml:"store"`
	// Engine tunes how due alarms are detected.
	Engine EngineConfig `yaml:"engine"`
	// Notification configures the channel alarms are posted to.
	Notification NotificationConfig `yaml:"notification"`
}

// StoreConfig locates the persisted alarm list.
type StoreConfig struct {
	// Backend is one of file, sqlite or memory.
	Backend string `yaml:"backend"`
	// Path is the file or database location for the file and sqlite backends.
	Path string `yaml:"path"`
	// Key is the single key the alarm list lives under.
	Key string `yaml:"key"`
}

// EngineConfig tunes the scheduling engine.
type EngineConfig struct {
	// Mode is poll (minute matching on a ticker) or analytic (next-occurrence scheduling).
	Mode string `yaml:"mode"`
	// PollInterval is the tick period of the clock poller.
	PollInterval time.Duration `yaml:"poll_interval"`
	// LateGrace is how far in the past a wake request may be and still fire.
	LateGrace time.Duration `yaml:"late_grace"`
}

// NotificationConfig describes the notification channel and message.
type NotificationConfig struct {
	// Backend is log or desktop.
	Backend string `yaml:"backend"`
	// ChannelID identifies the notification channel.
	ChannelID string `yaml:"channel_id"`
	// ChannelName is the human-readable channel name.
	ChannelName string `yaml:"channel_name"`
	// ChannelDescription explains the channel to the user.
	ChannelDescription string `yaml:"channel_description"`
	// Body is the fixed message shown with every alarm.
	Body string `yaml:"body"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-clock-settings.yaml"

	// DefaultServerAddress is the default gRPC address.
	DefaultServerAddress = "127.0.0.1:50061"

	// DefaultStoreFilename is the default filename of the file backend.
	DefaultStoreFilename = "alarm-clock-store.json"

	// DefaultStoreKey is the key the alarm list is stored under.
	DefaultStoreKey = "alarms"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultPollInterval is the default tick period of the clock poller.
	DefaultPollInterval = 10 * time.Second

	// DefaultLateGrace is the default tolerance for wake requests in the past.
	DefaultLateGrace = time.Minute

	// DefaultFilePermissions is the default file permission for config and store files.
	DefaultFilePermissions = 0o600

	// DefaultChannelID is the default notification channel identifier.
	DefaultChannelID = "alarm_clock"

	// DefaultChannelName is the default notification channel name.
	DefaultChannelName = "Alarms"

	// DefaultChannelDescription is the default notification channel description.
	DefaultChannelDescription = "Alarm notifications"

	// DefaultNotificationBody is the default alarm message.
	DefaultNotificationBody = "Time to wake up!"
)

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

// Engine modes.
const (
	ModePoll     = "poll"
	ModeAnalytic = "analytic"
)

// Notification backends.
const (
	NotifierLog     = "log"
	NotifierDesktop = "desktop"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownBackend is returned for an unsupported store backend.
	errUnknownBackend = errors.New("unknown store backend")
	// errUnknownMode is returned for an unsupported engine mode.
	errUnknownMode = errors.New("unknown engine mode")
	// errUnknownNotifier is returned for an unsupported notification backend.
	errUnknownNotifier = errors.New("unknown notification backend")
	// errNegativeDuration is returned when an interval is negative.
	errNegativeDuration = errors.New("duration must not be negative")
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults on an empty configuration.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file at the default path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigFilename {
			return Default(), nil
		}

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

// Validate checks the provided settings and fills defaults for empty fields.
//
//nolint:cyclop // A flat list of field checks reads best.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		settings.ServerAddress = DefaultServerAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	// Set default timeout if not specified
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if err := validateStore(&settings.Store); err != nil {
		return err
	}

	if err := validateEngine(&settings.Engine); err != nil {
		return err
	}

	return validateNotification(&settings.Notification)
}

// validateStore checks the store section.
func validateStore(store *StoreConfig) error {
	if store.Backend == "" {
		store.Backend = StoreBackendFile
	}

	if store.Key == "" {
		store.Key = DefaultStoreKey
	}

	switch store.Backend {
	case StoreBackendFile:
		if store.Path == "" {
			store.Path = DefaultStoreFilename
		}
	case StoreBackendSQLite:
		if store.Path == "" {
			store.Path = "alarm-clock.db"
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, store.Backend)
	}

	return nil
}

// validateEngine checks the engine section.
func validateEngine(engine *EngineConfig) error {
	if engine.Mode == "" {
		engine.Mode = ModeAnalytic
	}

	if engine.Mode != ModePoll && engine.Mode != ModeAnalytic {
		return fmt.Errorf("%w: %q", errUnknownMode, engine.Mode)
	}

	if engine.PollInterval < 0 || engine.LateGrace < 0 {
		return errNegativeDuration
	}

	if engine.PollInterval == 0 {
		engine.PollInterval = DefaultPollInterval
	}

	if engine.LateGrace == 0 {
		engine.LateGrace = DefaultLateGrace
	}

	return nil
}

// validateNotification checks the notification section.
func validateNotification(notification *NotificationConfig) error {
	if notification.Backend == "" {
		notification.Backend = NotifierLog
	}

	if notification.Backend != NotifierLog && notification.Backend != NotifierDesktop {
		return fmt.Errorf("%w: %q", errUnknownNotifier, notification.Backend)
	}

	if notification.ChannelID == "" {
		notification.ChannelID = DefaultChannelID
	}

	if notification.ChannelName == "" {
		notification.ChannelName = DefaultChannelName
	}

	if notification.ChannelDescription == "" {
		notification.ChannelDescription = DefaultChannelDescription
	}

	if notification.Body == "" {
		notification.Body = DefaultNotificationBody
	}

	return nil
}
