package container

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/travel-desk/internal/application/dispatcher"
	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/application/service"
	"github.com/garyjia/travel-desk/internal/domain/event"
	infraLark "github.com/garyjia/travel-desk/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-desk/internal/infrastructure/external/mail"
	"github.com/garyjia/travel-desk/internal/infrastructure/external/notify"
	"github.com/garyjia/travel-desk/internal/infrastructure/external/partner"
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-desk/internal/infrastructure/storage"
	"github.com/garyjia/travel-desk/internal/infrastructure/worker"
	"github.com/garyjia/travel-desk/migrations"
	"github.com/garyjia/travel-desk/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.TxManager
}

// PartnerBundle holds the outbound partner client and the callback verifier.
type PartnerBundle struct {
	Partner  port.BookingPartner
	Verifier *partner.Verifier
}

// ServiceDeps holds everything ProvideServices needs.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	FileStore  port.FileStore
	Notifier   port.Notifier
	Partner    port.BookingPartner
	Dispatcher dispatcher.Dispatcher
	ActionURL  string
	Logger     *zap.Logger
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
// The embedded schema is used unless cfg.MigrationsDir is set.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(ctx, database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var schema fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		schema = os.DirFS(cfg.MigrationsDir)
	}
	if _, err := database.NewMigrator(db, logger).Migrate(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Trips:     repository.NewTripRepository(sqlDB, logger),
		Approvals: repository.NewApprovalRepository(sqlDB, logger),
		Segments:  repository.NewSegmentRepository(sqlDB, logger),
		Files:     repository.NewFileRepository(sqlDB, logger),
		Users:     repository.NewUserRepository(sqlDB, logger),
	}, nil
}

// ProvideFileStore creates the blob store for the configured driver.
func ProvideFileStore(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (port.FileStore, error) {
	switch cfg.Driver {
	case StorageDriverLocal, "":
		return storage.NewDiskStore(cfg.LocalDir, logger), nil
	case StorageDriverS3:
		s3, err := storage.NewS3FileStorage(storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			UseSSL:          cfg.S3.UseSSL,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx, cfg.S3.Region); err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ProvideNotifier builds one notifier fanning out to every configured channel.
func ProvideNotifier(cfg *NotificationConfig, logger *zap.Logger) (port.Notifier, error) {
	channels := make([]port.Notifier, 0, len(cfg.Channels))
	for _, name := range cfg.Channels {
		switch name {
		case ChannelLog:
			channels = append(channels, notify.NewLogNotifier(logger))
		case ChannelSMTP:
			channels = append(channels, mail.NewSMTPNotifier(mail.Config{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
				TLS:      cfg.SMTP.TLS,
			}, logger))
		case ChannelLark:
			messenger := infraLark.NewMessenger(infraLark.Config{
				AppID:     cfg.Lark.AppID,
				AppSecret: cfg.Lark.AppSecret,
			}, logger)
			channels = append(channels, infraLark.NewNotifier(messenger, logger))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}

	if len(channels) == 0 {
		logger.Warn("No notification channels configured, falling back to log")
		channels = append(channels, notify.NewLogNotifier(logger))
	}

	return notify.NewMultiNotifier(channels...), nil
}

// ProvidePartner creates the partner client, or a logging no-op when no
// endpoint is configured.
func ProvidePartner(cfg *PartnerConfig, logger *zap.Logger) *PartnerBundle {
	bundle := &PartnerBundle{}

	if cfg.BaseURL != "" {
		bundle.Partner = partner.NewClient(partner.Config{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			CallbackSecret: cfg.CallbackSecret,
			Timeout:        cfg.Timeout,
		}, logger)
	} else {
		bundle.Partner = partner.NewNoopPartner(logger)
	}

	if cfg.CallbackSecret != "" {
		bundle.Verifier = partner.NewVerifier(cfg.CallbackSecret, cfg.CallbackTolerance)
	}

	return bundle
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *DispatcherConfig, logger *zap.Logger) dispatcher.Dispatcher {
	opts := []dispatcher.Option{
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
		dispatcher.WithWorkers(cfg.Workers),
		dispatcher.WithQueueSize(cfg.QueueSize),
	}
	if cfg.HandlerTimeout > 0 {
		opts = append(opts, dispatcher.WithHandlerTimeout(cfg.HandlerTimeout))
	}
	if cfg.DrainTimeout > 0 {
		opts = append(opts, dispatcher.WithDrainTimeout(cfg.DrainTimeout))
	}
	return dispatcher.NewDispatcher(opts...)
}

// ProvideServices creates all application services and subscribes the
// event-driven ones to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	repos := deps.Repos
	logger := &zapLoggerAdapter{logger: deps.Logger}

	resolver := service.NewApproverResolver(repos.Users, logger)
	ledger := service.NewApprovalLedger(repos.Approvals)

	bundle := &ServiceBundle{
		Trips: service.NewTripService(
			repos.Trips, repos.Segments, repos.Approvals, repos.Files, repos.Users,
			resolver, ledger, deps.TxManager, deps.Dispatcher, logger,
		),
		Cancellations: service.NewCancellationService(
			repos.Trips, repos.Users, ledger, deps.TxManager, deps.Dispatcher, logger,
		),
		Reschedules: service.NewRescheduleService(
			repos.Trips, repos.Segments, repos.Files, deps.FileStore, deps.TxManager, deps.Dispatcher, logger,
		),
		Documents: service.NewDocumentService(
			repos.Trips, repos.Files, repos.Users, deps.FileStore, storage.ObjectKey, logger,
		),
		AutoClose: service.NewAutoCloseService(
			repos.Trips, repos.Segments, deps.TxManager, deps.Dispatcher, logger,
		),
		Notifications: service.NewNotificationService(
			repos.Trips, repos.Users, deps.Notifier, deps.ActionURL, logger,
		),
		Booking: service.NewBookingService(deps.Partner, logger),
	}

	bundle.Notifications.Register(deps.Dispatcher)
	bundle.Booking.Register(deps.Dispatcher)
	logSubscriptions(deps.Dispatcher, deps.Logger)

	return bundle, nil
}

func logSubscriptions(d dispatcher.Dispatcher, logger *zap.Logger) {
	for _, typ := range event.AllTypes() {
		handlers := d.ListHandlers(typ)
		names := make([]string, len(handlers))
		for i, h := range handlers {
			names[i] = h.Name
		}
		if len(names) == 0 {
			logger.Debug("No handlers subscribed", zap.String("event_type", typ.String()))
			continue
		}
		logger.Info("Event handlers subscribed",
			zap.String("event_type", typ.String()),
			zap.Strings("handlers", names))
	}
}

// ProvideWorkers creates the worker supervisor. The auto-close worker is only
// registered when enabled.
func ProvideWorkers(cfg *AutoCloseConfig, sweeper service.AutoCloseService, logger *zap.Logger) (*worker.Supervisor, error) {
	supervisor := worker.NewSupervisor(logger)

	if !cfg.Enabled {
		logger.Info("Auto-close worker disabled")
		return supervisor, nil
	}

	err := supervisor.Register(worker.NewAutoCloseWorker(worker.AutoCloseWorkerConfig{
		Interval:     cfg.Interval,
		RunOnStart:   cfg.RunOnStart,
		SweepTimeout: cfg.SweepTimeout,
	}, sweeper, logger))
	if err != nil {
		return nil, err
	}
	return supervisor, nil
}
