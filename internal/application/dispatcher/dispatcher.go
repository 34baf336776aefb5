package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/travel-desk/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
}

// Stats counts async deliveries since the dispatcher was created
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Dispatcher routes events to named handlers. Deliveries go through a bounded
// queue served by a fixed set of workers.
type Dispatcher interface {
	// SubscribeNamed registers handler under name. A second registration with
	// the same name for the same event type replaces the first.
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// DispatchAsync queues one delivery per handler and returns at once.
	// Handlers keep the values of ctx but not its cancellation. Deliveries
	// that do not fit in the queue are dropped and counted.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Stats reports async delivery counters
	Stats() Stats

	// Close stops accepting events, drains the queue up to the drain timeout,
	// then cancels whatever is still running
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type subscription struct {
	name    string
	handler Handler
}

type delivery struct {
	ctx context.Context
	evt *event.Event
	sub subscription
}

type queueDispatcher struct {
	mu   sync.RWMutex
	subs map[event.Type][]subscription

	logger         Logger
	workers        int
	queueSize      int
	handlerTimeout time.Duration
	drainTimeout   time.Duration

	queue   chan delivery
	sendMu  sync.RWMutex
	closed  atomic.Bool
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures the dispatcher
type Option func(*queueDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *queueDispatcher) {
		d.logger = logger
	}
}

// WithWorkers sets the number of async workers
func WithWorkers(n int) Option {
	return func(d *queueDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the async queue capacity
func WithQueueSize(n int) Option {
	return func(d *queueDispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithHandlerTimeout bounds each async handler invocation
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *queueDispatcher) {
		d.handlerTimeout = timeout
	}
}

// WithDrainTimeout bounds how long Close waits for queued deliveries
func WithDrainTimeout(timeout time.Duration) Option {
	return func(d *queueDispatcher) {
		d.drainTimeout = timeout
	}
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(opts ...Option) Dispatcher {
	d := &queueDispatcher{
		subs:           make(map[event.Type][]subscription),
		workers:        4,
		queueSize:      256,
		handlerTimeout: 30 * time.Second,
		drainTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.queue = make(chan delivery, d.queueSize)
	d.baseCtx, d.cancel = context.WithCancel(context.Background())

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *queueDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[eventType]
	replaced := false
	for i := range list {
		if list[i].name == name {
			list[i].handler = handler
			replaced = true
			break
		}
	}
	if !replaced {
		d.subs[eventType] = append(list, subscription{name: name, handler: handler})
	}

	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name, "replaced", replaced)
}

func (d *queueDispatcher) snapshot(eventType event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]subscription(nil), d.subs[eventType]...)
}

func (d *queueDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	subs := d.snapshot(evt.Type)
	if d.closed.Load() {
		d.dropped.Add(int64(len(subs)))
		d.logWarn("Event dropped, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, sub := range subs {
		select {
		case d.queue <- delivery{ctx: detached, evt: evt, sub: sub}:
		default:
			d.dropped.Add(1)
			d.logWarn("Event dropped, dispatch queue is full",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"trip_id", evt.TripID,
				"handler_name", sub.name,
				"queue_size", d.queueSize,
			)
		}
	}
}

func (d *queueDispatcher) work() {
	defer d.wg.Done()
	for dl := range d.queue {
		d.deliver(dl)
	}
}

func (d *queueDispatcher) deliver(dl delivery) {
	ctx, cancel := context.WithTimeout(dl.ctx, d.handlerTimeout)
	defer cancel()
	stop := context.AfterFunc(d.baseCtx, cancel)
	defer stop()

	if err := d.run(ctx, dl.evt, dl.sub); err != nil {
		d.failed.Add(1)
		d.logError("Async handler failed",
			"event_type", dl.evt.Type,
			"event_id", dl.evt.ID,
			"trip_id", dl.evt.TripID,
			"handler_name", dl.sub.name,
			"error", err,
		)
		return
	}
	d.delivered.Add(1)
}

// run invokes one handler, converting a panic into an error
func (d *queueDispatcher) run(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, evt)
}

func (d *queueDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	subs := d.snapshot(eventType)
	infos := make([]HandlerInfo, len(subs))
	for i, s := range subs {
		infos[i] = HandlerInfo{Name: s.name, EventType: eventType}
	}
	return infos
}

func (d *queueDispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *queueDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	// Wait out producers mid-send, then seal the queue.
	d.sendMu.Lock()
	close(d.queue)
	d.sendMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.drainTimeout):
		d.logError("Async handlers still running after drain timeout, cancelling",
			"drain_timeout", d.drainTimeout.String(),
			"queued", len(d.queue),
		)
		d.cancel()
		<-done
	}
	d.cancel()

	stats := d.Stats()
	d.logInfo("Dispatcher closed",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)
	return nil
}

func (d *queueDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *queueDispatcher) logWarn(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Warn(msg, kv...)
	}
}

func (d *queueDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
