package config

import (
	"github.com/garyjia/travel-desk/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Storage: container.StorageConfig{
			Driver:   c.Storage.Driver,
			LocalDir: c.Storage.LocalDir,
			S3: container.S3Config{
				Endpoint:        c.Storage.S3.Endpoint,
				AccessKeyID:     c.Storage.S3.AccessKeyID,
				SecretAccessKey: c.Storage.S3.SecretAccessKey,
				Bucket:          c.Storage.S3.Bucket,
				Region:          c.Storage.S3.Region,
				UseSSL:          c.Storage.S3.UseSSL,
			},
		},
		Notification: container.NotificationConfig{
			Channels:      append([]string(nil), c.Notification.Channels...),
			ActionBaseURL: c.Notification.ActionBaseURL,
			SMTP: container.SMTPConfig{
				Host:     c.Notification.SMTP.Host,
				Port:     c.Notification.SMTP.Port,
				Username: c.Notification.SMTP.Username,
				Password: c.Notification.SMTP.Password,
				From:     c.Notification.SMTP.From,
				TLS:      c.Notification.SMTP.TLS,
			},
			Lark: container.LarkConfig{
				AppID:     c.Notification.Lark.AppID,
				AppSecret: c.Notification.Lark.AppSecret,
			},
		},
		Partner: container.PartnerConfig{
			BaseURL:           c.Partner.BaseURL,
			APIKey:            c.Partner.APIKey,
			CallbackSecret:    c.Partner.CallbackSecret,
			Timeout:           c.Partner.Timeout,
			CallbackTolerance: c.Partner.CallbackTolerance,
		},
		Dispatcher: container.DispatcherConfig{
			Workers:        c.Dispatcher.Workers,
			QueueSize:      c.Dispatcher.QueueSize,
			HandlerTimeout: c.Dispatcher.HandlerTimeout,
			DrainTimeout:   c.Dispatcher.DrainTimeout,
		},
		AutoClose: container.AutoCloseConfig{
			Enabled:      c.AutoClose.Enabled,
			Interval:     c.AutoClose.Interval,
			SweepTimeout: c.AutoClose.SweepTimeout,
			RunOnStart:   c.AutoClose.RunOnStart,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			RateLimitRPS:   c.Server.RateLimitRPS,
			RateLimitBurst: c.Server.RateLimitBurst,
		},
	}
}
