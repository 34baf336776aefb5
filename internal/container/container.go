package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-desk/internal/application/dispatcher"
	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/garyjia/travel-desk/internal/application/service"
	"github.com/garyjia/travel-desk/internal/infrastructure/external/partner"
	"github.com/garyjia/travel-desk/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-desk/internal/infrastructure/worker"
	httpserver "github.com/garyjia/travel-desk/internal/interfaces/http"
	"github.com/garyjia/travel-desk/pkg/database"
)

// workerStopTimeout bounds how long Close waits for a running sweep
const workerStopTimeout = 30 * time.Second

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.TxManager
	repositories *RepositoryBundle

	// Infrastructure - External
	fileStore port.FileStore
	notifier  port.Notifier
	partner   *PartnerBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Workers
	workers *worker.Supervisor

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Trips     port.TripRepository
	Approvals port.ApprovalRepository
	Segments  port.SegmentRepository
	Files     port.FileRepository
	Users     port.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Trips         service.TripService
	Cancellations service.CancellationService
	Reschedules   service.RescheduleService
	Documents     service.DocumentService
	AutoClose     service.AutoCloseService
	Notifications service.NotificationService
	Booking       service.BookingService
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components. Components are initialized in
// dependency order:
// 1. Database and repositories
// 2. File store, notifier and booking partner
// 3. Dispatcher
// 4. Application services and event subscriptions
// 5. Workers (only when startWorkers is set)
func (c *Container) Start(ctx context.Context, startWorkers bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initExternal(); err != nil {
		return fmt.Errorf("failed to initialize external adapters: %w", err)
	}
	c.logger.Info("External adapters initialized")

	c.dispatcher = ProvideDispatcher(&c.config.Dispatcher, c.logger)

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		FileStore:  c.fileStore,
		Notifier:   c.notifier,
		Partner:    c.partner.Partner,
		Dispatcher: c.dispatcher,
		ActionURL:  c.config.Notification.ActionBaseURL,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	workers, err := ProvideWorkers(&c.config.AutoClose, c.services.AutoClose, c.logger)
	if err != nil {
		return fmt.Errorf("failed to build workers: %w", err)
	}
	c.workers = workers
	if startWorkers {
		if err := c.workers.Start(c.ctx); err != nil {
			return fmt.Errorf("failed to start workers: %w", err)
		}
		c.logger.Info("Workers started")
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// shutdownStep is one component to release during Close
type shutdownStep struct {
	name string
	fn   func() error
}

// shutdownSteps lists the started components in release order: workers
// first, then the dispatcher so queued notifications still reach the
// database, then the database itself.
func (c *Container) shutdownSteps() []shutdownStep {
	var steps []shutdownStep
	if c.workers != nil && c.workers.Running() {
		steps = append(steps, shutdownStep{"workers", func() error { return c.workers.Stop(workerStopTimeout) }})
	}
	if c.dispatcher != nil {
		steps = append(steps, shutdownStep{"dispatcher", c.dispatcher.Close})
	}
	if c.database != nil {
		steps = append(steps, shutdownStep{"database", c.database.Close})
	}
	return steps
}

// Close releases every started component. It keeps going past failures and
// returns them joined.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	if c.cancel != nil {
		c.cancel()
	}

	var errs []error
	for _, step := range c.shutdownSteps() {
		if err := step.fn(); err != nil {
			c.logger.Error("Shutdown step failed", zap.String("component", step.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", step.name, err))
			continue
		}
		c.logger.Info("Component closed", zap.String("component", step.name))
	}

	c.closed.Store(true)
	c.ready.Store(false)
	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports whether the container can serve requests. It implements
// the HTTP health checker.
func (c *Container) Health(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container not ready")
	}
	if err := c.database.Health(ctx); err != nil {
		return err
	}
	return nil
}

// HTTPServices assembles the services exposed over HTTP.
func (c *Container) HTTPServices() httpserver.Services {
	svc := httpserver.Services{
		Trips:         c.services.Trips,
		Cancellations: c.services.Cancellations,
		Reschedules:   c.services.Reschedules,
		Documents:     c.services.Documents,
		AutoClose:     c.services.AutoClose,
		Directory:     c.repositories.Users,
		Health:        c,
	}
	// A nil *partner.Verifier must not become a non-nil interface
	if c.partner.Verifier != nil {
		svc.Verifier = c.partner.Verifier
	}
	return svc
}

// NewHTTPServer builds the HTTP server from the container's services.
func (c *Container) NewHTTPServer() *httpserver.Server {
	return httpserver.NewServer(httpserver.ServerConfig{
		Host:           c.config.Server.Host,
		Port:           c.config.Server.Port,
		ReadTimeout:    c.config.Server.ReadTimeout,
		WriteTimeout:   c.config.Server.WriteTimeout,
		RateLimitRPS:   c.config.Server.RateLimitRPS,
		RateLimitBurst: c.config.Server.RateLimitBurst,
	}, c.HTTPServices(), &zapLoggerAdapter{logger: c.logger})
}

// initDatabase opens the database and builds the repositories.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle.DB
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.database.DB, c.logger)
	if err != nil {
		c.database.Close()
		return err
	}
	c.repositories = repos
	return nil
}

// initExternal builds the blob store, notifier and partner adapters.
func (c *Container) initExternal() error {
	store, err := ProvideFileStore(c.ctx, &c.config.Storage, c.logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	c.fileStore = store

	notifier, err := ProvideNotifier(&c.config.Notification, c.logger)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	c.notifier = notifier

	c.partner = ProvidePartner(&c.config.Partner, c.logger)
	return nil
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Notifier returns the combined notification channel.
func (c *Container) Notifier() port.Notifier {
	return c.notifier
}

// Verifier returns the partner callback verifier, nil when unconfigured.
func (c *Container) Verifier() *partner.Verifier {
	return c.partner.Verifier
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker supervisor.
func (c *Container) Workers() *worker.Supervisor {
	return c.workers
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// used by services, the dispatcher and the HTTP layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
