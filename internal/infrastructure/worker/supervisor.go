package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner is a long-running background task. Run blocks until ctx is
// cancelled; returning earlier with an error gets it restarted.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// RunnerStatus is a snapshot of one supervised runner
type RunnerStatus struct {
	Name      string `json:"name"`
	Running   bool   `json:"running"`
	Restarts  int    `json:"restarts"`
	LastError string `json:"last_error,omitempty"`
}

// Supervisor runs registered runners on their own goroutines and restarts
// any that fail while the supervisor is up
type Supervisor struct {
	logger       *zap.Logger
	restartDelay time.Duration

	mu      sync.Mutex
	runners []Runner
	status  map[string]*RunnerStatus
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSupervisor creates an empty supervisor
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{
		logger:       logger,
		restartDelay: 5 * time.Second,
		status:       make(map[string]*RunnerStatus),
	}
}

// Register adds a runner. Names must be unique.
func (s *Supervisor) Register(r Runner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cannot register %s while running", r.Name())
	}
	if _, dup := s.status[r.Name()]; dup {
		return fmt.Errorf("runner %s already registered", r.Name())
	}
	s.runners = append(s.runners, r)
	s.status[r.Name()] = &RunnerStatus{Name: r.Name()}
	s.logger.Info("Worker registered", zap.String("worker_name", r.Name()))
	return nil
}

// Start launches every registered runner
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("workers already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, r := range s.runners {
		s.status[r.Name()].Running = true
		s.wg.Add(1)
		go s.supervise(runCtx, r)
	}
	s.logger.Info("Workers started", zap.Int("count", len(s.runners)))
	return nil
}

func (s *Supervisor) supervise(ctx context.Context, r Runner) {
	defer s.wg.Done()
	defer s.update(r.Name(), func(st *RunnerStatus) { st.Running = false })

	for {
		err := s.runSafely(ctx, r)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("returned before shutdown")
		}

		s.update(r.Name(), func(st *RunnerStatus) {
			st.Restarts++
			st.LastError = err.Error()
		})
		s.logger.Error("Worker failed, restarting",
			zap.String("worker_name", r.Name()),
			zap.Duration("delay", s.restartDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.restartDelay):
		}
	}
}

func (s *Supervisor) runSafely(ctx context.Context, r Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Run(ctx)
}

func (s *Supervisor) update(name string, fn func(*RunnerStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.status[name])
}

// Stop cancels every runner and waits up to timeout for them to return
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Workers stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("workers still running after %s", timeout)
	}
}

// Status returns a snapshot per runner in registration order
func (s *Supervisor) Status() []RunnerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunnerStatus, 0, len(s.runners))
	for _, r := range s.runners {
		out = append(out, *s.status[r.Name()])
	}
	return out
}

// Count returns the number of registered runners
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runners)
}

// Running reports whether Start has been called without a matching Stop
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
