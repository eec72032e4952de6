package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/pkg/log"
)

// ShutdownTimeout bounds how long Close waits for background workers.
const ShutdownTimeout = 10 * time.Second

// State is the state of the service's background workers.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting, StateStopping},
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Lifecycle tracks the workers started by Service.Start: the template
// watcher and the metrics endpoint. Workers share one context, cancelled
// by Shutdown.
type Lifecycle struct {
	logger log.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLifecycle returns a Lifecycle in StateStopped.
func NewLifecycle(logger log.Logger) *Lifecycle {
	return &Lifecycle{logger: log.OrNoop(logger)}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Begin moves to StateStarting and returns the context workers run under.
// It fails with domain.ErrAlreadyRunning unless the lifecycle is stopped
// or crashed.
func (l *Lifecycle) Begin(ctx context.Context) (context.Context, error) {
	l.mu.Lock()
	if l.state != StateStopped && l.state != StateCrashed {
		l.mu.Unlock()
		return nil, domain.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	from := l.state
	l.state = StateStarting
	l.mu.Unlock()

	l.logTransition(from, StateStarting, "start requested")
	return ctx, nil
}

// Ready moves from StateStarting to StateRunning.
func (l *Lifecycle) Ready() error {
	return l.move(StateRunning, "started")
}

// Fail cancels the workers and moves to StateCrashed.
func (l *Lifecycle) Fail(reason string) {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	_ = l.move(StateCrashed, reason)
}

// Go runs fn as a tracked worker.
func (l *Lifecycle) Go(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

// Shutdown cancels the workers, waits at most timeout for them to return
// and moves to StateStopped. It returns domain.ErrNotRunning when there
// is nothing to stop and domain.ErrShutdownTimeout when workers are still
// running after timeout.
func (l *Lifecycle) Shutdown(timeout time.Duration) error {
	if err := l.move(StateStopping, "close requested"); err != nil {
		return domain.ErrNotRunning
	}
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		l.logger.Warn("workers still running after shutdown timeout", log.Duration("timeout", timeout))
		err = domain.ErrShutdownTimeout
	}
	_ = l.move(StateStopped, "closed")
	return err
}

func (l *Lifecycle) move(to State, reason string) error {
	l.mu.Lock()
	from := l.state
	if !allowed(from, to) {
		l.mu.Unlock()
		if from == StateStopped || from == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = to
	l.mu.Unlock()

	l.logTransition(from, to, reason)
	return nil
}

func (l *Lifecycle) logTransition(from, to State, reason string) {
	l.logger.Info("state transition",
		log.String("from", from.String()),
		log.String("to", to.String()),
		log.String("reason", reason),
	)
}
