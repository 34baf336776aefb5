// Package container provides dependency injection and lifecycle management
// for the travel desk engine.
package container

import (
	"fmt"
	"time"
)

// Storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Notification channels
const (
	ChannelLog  = "log"
	ChannelSMTP = "smtp"
	ChannelLark = "lark"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Storage      StorageConfig
	Notification NotificationConfig
	Partner      PartnerConfig
	Dispatcher   DispatcherConfig
	AutoClose    AutoCloseConfig
	Server       ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	// Driver is "local" or "s3"
	Driver   string
	LocalDir string
	S3       S3Config
}

// S3Config holds S3-compatible object store settings.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

// NotificationConfig lists the delivery channels and their settings.
type NotificationConfig struct {
	// Channels is any combination of "log", "smtp" and "lark"
	Channels []string

	// ActionBaseURL prefixes approval links in notifications
	ActionBaseURL string

	SMTP SMTPConfig
	Lark LarkConfig
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	TLS      bool
}

// LarkConfig holds Lark app credentials for direct messages.
type LarkConfig struct {
	AppID     string
	AppSecret string
}

// PartnerConfig holds booking partner settings. An empty BaseURL disables
// outbound finalize calls.
type PartnerConfig struct {
	BaseURL        string
	APIKey         string
	CallbackSecret string
	Timeout        time.Duration

	// CallbackTolerance bounds the age of signed callbacks
	CallbackTolerance time.Duration
}

// DispatcherConfig bounds asynchronous event handling.
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	HandlerTimeout time.Duration
	DrainTimeout   time.Duration
}

// AutoCloseConfig controls the periodic auto-close sweep.
type AutoCloseConfig struct {
	Enabled      bool
	Interval     time.Duration
	SweepTimeout time.Duration
	RunOnStart   bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/travel.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Driver:   StorageDriverLocal,
			LocalDir: "data/files",
		},
		Notification: NotificationConfig{
			Channels: []string{ChannelLog},
		},
		Partner: PartnerConfig{
			Timeout:           15 * time.Second,
			CallbackTolerance: 5 * time.Minute,
		},
		Dispatcher: DispatcherConfig{
			Workers:        4,
			QueueSize:      256,
			HandlerTimeout: 30 * time.Second,
			DrainTimeout:   10 * time.Second,
		},
		AutoClose: AutoCloseConfig{
			Enabled:      true,
			Interval:     time.Hour,
			SweepTimeout: 5 * time.Minute,
			RunOnStart:   true,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local driver")
		}
	case StorageDriverS3:
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.endpoint and storage.s3.bucket are required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	for _, ch := range c.Notification.Channels {
		switch ch {
		case ChannelLog:
		case ChannelSMTP:
			if c.Notification.SMTP.Host == "" || c.Notification.SMTP.Port == "" || c.Notification.SMTP.From == "" {
				return fmt.Errorf("notification.smtp host, port and from are required for the smtp channel")
			}
		case ChannelLark:
			if c.Notification.Lark.AppID == "" || c.Notification.Lark.AppSecret == "" {
				return fmt.Errorf("notification.lark app_id and app_secret are required for the lark channel")
			}
		default:
			return fmt.Errorf("unknown notification channel %q", ch)
		}
	}

	if c.Partner.BaseURL != "" && c.Partner.CallbackSecret == "" {
		return fmt.Errorf("partner.callback_secret is required when partner.base_url is set")
	}

	if c.AutoClose.Enabled && c.AutoClose.Interval <= 0 {
		return fmt.Errorf("autoclose.interval must be positive")
	}

	return nil
}
