package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/travel-desk/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Notification NotificationConfig `mapstructure:"notification"`
	Partner      PartnerConfig      `mapstructure:"partner"`
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher"`
	AutoClose    AutoCloseConfig    `mapstructure:"autoclose"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Driver   string   `mapstructure:"driver"`
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

// S3Config holds S3-compatible object store configuration
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// NotificationConfig holds notification channel configuration
type NotificationConfig struct {
	Channels      []string   `mapstructure:"channels"`
	ActionBaseURL string     `mapstructure:"action_base_url"`
	SMTP          SMTPConfig `mapstructure:"smtp"`
	Lark          LarkConfig `mapstructure:"lark"`
}

// SMTPConfig holds SMTP relay configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
}

// PartnerConfig holds booking partner configuration
type PartnerConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	CallbackSecret    string        `mapstructure:"callback_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CallbackTolerance time.Duration `mapstructure:"callback_tolerance"`
}

// DispatcherConfig holds async event handling configuration
type DispatcherConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
}

// AutoCloseConfig holds auto-close sweep configuration
type AutoCloseConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout"`
	RunOnStart   bool          `mapstructure:"run_on_start"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional YAML file, a .env file in the
// working directory, and environment variables, in increasing precedence.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("TRAVEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)

	// Database defaults
	v.SetDefault("database.path", "data/travel.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Storage defaults
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "data/files")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_ssl", true)

	// Notification defaults
	v.SetDefault("notification.channels", []string{"log"})
	v.SetDefault("notification.smtp.port", "587")
	v.SetDefault("notification.smtp.tls", true)

	// Partner defaults
	v.SetDefault("partner.timeout", 15*time.Second)
	v.SetDefault("partner.callback_tolerance", 5*time.Minute)

	// Dispatcher defaults
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.queue_size", 256)
	v.SetDefault("dispatcher.handler_timeout", 30*time.Second)
	v.SetDefault("dispatcher.drain_timeout", 10*time.Second)

	// Auto-close defaults
	v.SetDefault("autoclose.enabled", true)
	v.SetDefault("autoclose.interval", time.Hour)
	v.SetDefault("autoclose.sweep_timeout", 5*time.Minute)
	v.SetDefault("autoclose.run_on_start", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("notification.smtp.password", "SMTP_PASSWORD")
	_ = v.BindEnv("notification.lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("notification.lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = v.BindEnv("partner.api_key", "PARTNER_API_KEY")
	_ = v.BindEnv("partner.callback_secret", "PARTNER_CALLBACK_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required")
		}
	case "s3":
		if c.Storage.S3.Endpoint == "" {
			return fmt.Errorf("storage.s3.endpoint is required")
		}
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("storage.driver must be local or s3, got %q", c.Storage.Driver)
	}

	for _, ch := range c.Notification.Channels {
		switch ch {
		case "log":
		case "smtp":
			if c.Notification.SMTP.Host == "" {
				return fmt.Errorf("notification.smtp.host is required")
			}
			if err := utils.ValidateEmail(c.Notification.SMTP.From); err != nil {
				return fmt.Errorf("notification.smtp.from: %w", err)
			}
		case "lark":
			if c.Notification.Lark.AppID == "" {
				return fmt.Errorf("notification.lark.app_id is required")
			}
			if c.Notification.Lark.AppSecret == "" {
				return fmt.Errorf("notification.lark.app_secret is required")
			}
		default:
			return fmt.Errorf("unknown notification channel %q", ch)
		}
	}

	if c.Notification.ActionBaseURL != "" {
		if err := utils.ValidateBaseURL(c.Notification.ActionBaseURL); err != nil {
			return fmt.Errorf("notification.action_base_url: %w", err)
		}
	}

	if c.Partner.BaseURL != "" {
		if err := utils.ValidateBaseURL(c.Partner.BaseURL); err != nil {
			return fmt.Errorf("partner.base_url: %w", err)
		}
		if c.Partner.CallbackSecret == "" {
			return fmt.Errorf("partner.callback_secret is required when partner.base_url is set")
		}
	}

	if c.AutoClose.Enabled && c.AutoClose.Interval <= 0 {
		return fmt.Errorf("autoclose.interval must be positive")
	}

	return nil
}
