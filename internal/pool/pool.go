package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

// Environment apply results reported to Metrics.
const (
	EnvOK      = "ok"
	EnvWarning = "warning"
	EnvError   = "error"
	EnvSkipped = "skipped"
)

// Config holds the pool configuration.
type Config struct {
	Address     string
	Credentials ports.Credentials

	// MaxSessions bounds the number of open sessions.
	MaxSessions int

	// IdleTimeout closes idle sessions older than this on the next
	// Acquire. Zero keeps idle sessions forever.
	IdleTimeout time.Duration

	// Environment is applied once to every new session.
	Environment domain.EnvironmentSpec

	// EnvironmentTimeout bounds the environment command. It is not tied
	// to the acquiring caller's context. Zero means
	// DefaultEnvironmentTimeout.
	EnvironmentTimeout time.Duration
}

// DefaultEnvironmentTimeout is used when Config.EnvironmentTimeout is zero.
const DefaultEnvironmentTimeout = 30 * time.Second

// Stats is a snapshot of the pool's session counts.
type Stats struct {
	Open  int
	Idle  int
	InUse int
	Max   int
}

// Option configures optional behavior of a Pool.
type Option func(*Pool)

// WithLogger sets the logger. If not provided, a no-op logger is used.
func WithLogger(l log.Logger) Option {
	return func(p *Pool) { p.logger = log.OrNoop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(p *Pool) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithListener registers a lifecycle listener. Listeners are called in
// registration order.
func WithListener(l Listener) Option {
	return func(p *Pool) { p.listeners = append(p.listeners, l) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// Pool is a bounded pool of host sessions. It is safe for concurrent use.
type Pool struct {
	dialer    ports.Dialer
	cfg       Config
	logger    log.Logger
	metrics   Metrics
	listeners []Listener
	now       func() time.Time

	// slots holds one token per checked-out session or in-flight creation.
	slots chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	idle    []*Session
	open    int
	pending int
	inUse   int
	closed  bool
}

// New creates a pool. No session is established until Acquire or Prefill.
func New(dialer ports.Dialer, cfg Config, opts ...Option) (*Pool, error) {
	if dialer == nil {
		return nil, fmt.Errorf("%w: nil dialer", domain.ErrInvalidConfig)
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("%w: max sessions must be positive", domain.ErrInvalidConfig)
	}
	if cfg.EnvironmentTimeout <= 0 {
		cfg.EnvironmentTimeout = DefaultEnvironmentTimeout
	}
	p := &Pool{
		dialer:  dialer,
		cfg:     cfg,
		logger:  log.NewNoopLogger(),
		metrics: nopMetrics{},
		now:     time.Now,
		slots:   make(chan struct{}, cfg.MaxSessions),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(log.String("address", cfg.Address))
	return p, nil
}

// Acquire returns a session for exclusive use until Release or
// CloseSession. It blocks while the pool is at capacity.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	start := p.now()
	s, err := p.acquire(ctx)
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrPoolClosed):
		result = "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	case err != nil:
		result = "error"
	}
	p.metrics.AcquireObserved(p.now().Sub(start), result)
	return s, err
}

func (p *Pool) acquire(ctx context.Context) (*Session, error) {
	select {
	case <-p.done:
		return nil, domain.ErrPoolClosed
	default:
	}

	select {
	case p.slots <- struct{}{}:
	case <-p.done:
		return nil, domain.ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s, expired, err := p.takeIdle()
	for _, e := range expired {
		p.destroy(e, "expired")
	}
	if err != nil {
		<-p.slots
		return nil, err
	}
	if s != nil {
		p.emit(func(l Listener) { l.SessionAcquired(s) })
		p.publish()
		return s, nil
	}

	s, err = p.create(ctx)

	p.mu.Lock()
	p.pending--
	if err != nil {
		p.mu.Unlock()
		<-p.slots
		return nil, err
	}
	if p.closed {
		s.state = stateClosed
		p.mu.Unlock()
		p.destroy(s, "shutdown")
		<-p.slots
		return nil, domain.ErrPoolClosed
	}
	p.open++
	p.inUse++
	s.state = stateCheckedOut
	p.mu.Unlock()

	p.emit(func(l Listener) { l.SessionAcquired(s) })
	p.publish()
	return s, nil
}

// takeIdle pops the most recently used idle session, removing expired
// ones. When it returns no session it has reserved a pending creation.
func (p *Pool) takeIdle() (*Session, []*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, domain.ErrPoolClosed
	}

	var expired []*Session
	if p.cfg.IdleTimeout > 0 {
		now := p.now()
		kept := p.idle[:0]
		for _, s := range p.idle {
			if now.Sub(s.lastUsed) > p.cfg.IdleTimeout {
				s.state = stateClosed
				p.open--
				expired = append(expired, s)
				continue
			}
			kept = append(kept, s)
		}
		p.idle = kept
	}

	if n := len(p.idle); n > 0 {
		s := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		s.state = stateCheckedOut
		p.inUse++
		return s, expired, nil
	}
	p.pending++
	return nil, expired, nil
}

// create dials a new session and applies the environment to it.
func (p *Pool) create(ctx context.Context) (*Session, error) {
	host, err := p.dialer.Dial(ctx, p.cfg.Address, p.cfg.Credentials)
	if err != nil {
		p.logger.Error("connect failed", log.Err(err))
		return nil, &domain.ConnectionError{Address: p.cfg.Address, Err: err}
	}
	now := p.now()
	s := &Session{
		id:        uuid.NewString(),
		host:      host,
		pool:      p,
		createdAt: now,
		lastUsed:  now,
	}
	p.applyEnvironment(ctx, s)
	p.metrics.SessionCreated()
	p.logger.Info("session created",
		log.String("session", s.id),
		log.String("host_session", host.ID()),
		log.Bool("environment_applied", s.envApplied),
	)
	p.emit(func(l Listener) { l.SessionCreated(s) })
	return s, nil
}

func (p *Pool) applyEnvironment(ctx context.Context, s *Session) {
	env := p.cfg.Environment
	if env.Empty() {
		s.envApplied = true
		p.metrics.EnvironmentResult(EnvSkipped)
		return
	}
	cmd := env.Command()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.EnvironmentTimeout)
	defer cancel()
	ok, msgs, err := s.host.RunCommand(ctx, cmd)
	switch {
	case err != nil:
		s.envErr = &domain.EnvironmentError{Command: cmd, Err: err}
		p.metrics.EnvironmentResult(EnvError)
		p.logger.Error("environment not applied, session keeps host defaults",
			log.String("session", s.id),
			log.Err(s.envErr),
		)
	case !ok:
		s.envApplied = true
		s.warnings = msgs
		p.metrics.EnvironmentResult(EnvWarning)
		p.logger.Warn("environment applied with messages",
			log.String("session", s.id),
			log.Err(&domain.EnvironmentApplyWarning{Command: cmd, Messages: msgs}),
			log.Strings("messages", domain.MessageTexts(msgs)),
		)
	default:
		s.envApplied = true
		p.metrics.EnvironmentResult(EnvOK)
	}
}

// Release returns s to the idle set. A session whose environment was never
// applied is closed instead. Releasing a session that is not checked out
// is logged and ignored.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	if s.pool != p || s.state != stateCheckedOut {
		p.mu.Unlock()
		p.logger.Warn("release of a session that is not checked out", log.String("session", s.id))
		return
	}
	p.inUse--
	if p.closed || !s.envApplied {
		reason := "shutdown"
		if !p.closed {
			reason = "environment"
		}
		s.state = stateClosed
		p.open--
		p.mu.Unlock()
		<-p.slots
		p.destroy(s, reason)
		p.publish()
		return
	}
	s.state = stateIdle
	s.lastUsed = p.now()
	p.idle = append(p.idle, s)
	p.mu.Unlock()

	<-p.slots
	p.emit(func(l Listener) { l.SessionReleased(s) })
	p.publish()
}

// CloseSession disconnects s and removes it from the pool. It is
// idempotent and valid for idle and checked-out sessions.
func (p *Pool) CloseSession(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	if s.pool != p || s.state == stateClosed {
		p.mu.Unlock()
		return
	}
	freeSlot := false
	switch s.state {
	case stateIdle:
		for i, is := range p.idle {
			if is == s {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)
				break
			}
		}
	case stateCheckedOut:
		p.inUse--
		freeSlot = true
	}
	s.state = stateClosed
	p.open--
	p.mu.Unlock()

	if freeSlot {
		<-p.slots
	}
	p.destroy(s, "closed")
	p.publish()
}

// Prefill establishes sessions until n are idle or the pool is full.
func (p *Pool) Prefill(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		select {
		case p.slots <- struct{}{}:
		default:
			return nil
		}
		p.mu.Lock()
		if p.closed || p.open+p.pending >= p.cfg.MaxSessions {
			p.mu.Unlock()
			<-p.slots
			return nil
		}
		p.pending++
		p.mu.Unlock()

		s, err := p.create(ctx)

		p.mu.Lock()
		p.pending--
		if err != nil {
			p.mu.Unlock()
			<-p.slots
			return err
		}
		if p.closed {
			s.state = stateClosed
			p.mu.Unlock()
			<-p.slots
			p.destroy(s, "shutdown")
			return domain.ErrPoolClosed
		}
		p.open++
		s.state = stateIdle
		p.idle = append(p.idle, s)
		p.mu.Unlock()
		<-p.slots
	}
	p.publish()
	return nil
}

// Close closes idle sessions and fails pending and future Acquire calls
// with domain.ErrPoolClosed. Checked-out sessions are closed when they are
// released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	for _, s := range idle {
		s.state = stateClosed
	}
	p.open -= len(idle)
	close(p.done)
	p.mu.Unlock()

	for _, s := range idle {
		p.destroy(s, "shutdown")
	}
	p.emit(func(l Listener) { l.PoolClosed() })
	p.publish()
	p.logger.Info("pool closed")
	return nil
}

// Stats returns current session counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Open: p.open, Idle: len(p.idle), InUse: p.inUse, Max: p.cfg.MaxSessions}
}

// Environment returns the environment applied to new sessions.
func (p *Pool) Environment() domain.EnvironmentSpec { return p.cfg.Environment }

func (p *Pool) destroy(s *Session, reason string) {
	s.host.DisconnectAllServices()
	p.metrics.SessionClosed(reason)
	p.logger.Info("session closed", log.String("session", s.id), log.String("reason", reason))
	if reason == "expired" {
		p.emit(func(l Listener) { l.SessionExpired(s) })
	}
	p.emit(func(l Listener) { l.SessionClosed(s) })
}

func (p *Pool) publish() {
	st := p.Stats()
	p.metrics.SetSessions(st.Idle, st.InUse)
}

func (p *Pool) emit(fn func(Listener)) {
	for _, l := range p.listeners {
		fn(l)
	}
}
