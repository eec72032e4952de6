package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bft-labs/hostcall/internal/adapters/loopback"
	"github.com/bft-labs/hostcall/internal/adapters/metrics"
	"github.com/bft-labs/hostcall/internal/binder"
	"github.com/bft-labs/hostcall/internal/cliconfig"
	"github.com/bft-labs/hostcall/internal/credential"
	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/extract"
	"github.com/bft-labs/hostcall/internal/invoker"
	"github.com/bft-labs/hostcall/internal/marshal"
	"github.com/bft-labs/hostcall/internal/pcml"
	"github.com/bft-labs/hostcall/internal/pool"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

// Service holds the components built from a Config.
type Service struct {
	cfg    cliconfig.Config
	logger log.Logger

	metrics    *metrics.Collector
	host       *loopback.Host
	pool       *pool.Pool
	store      *pcml.Store
	watcher    *pcml.Watcher
	marshaller *marshal.Marshaller

	lifecycle *Lifecycle
	server    *http.Server

	custom ports.Dialer
}

// Option configures optional behavior of a Service.
type Option func(*Service)

// WithDialer replaces the configured driver with d.
func WithDialer(d ports.Dialer) Option {
	return func(s *Service) {
		s.custom = d
	}
}

// New validates cfg and builds the service. Nothing connects to the host
// until an invoker is created.
func New(cfg cliconfig.Config, logger log.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	logger = log.OrNoop(logger)

	creds, err := credential.Credentials(cfg.User, cfg.PasswordB64)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.New(),
		lifecycle: NewLifecycle(logger),
	}
	for _, opt := range opts {
		opt(s)
	}

	dialer, err := s.dialer()
	if err != nil {
		return nil, err
	}

	s.pool, err = pool.New(dialer, pool.Config{
		Address:     cfg.Address,
		Credentials: creds,
		MaxSessions: cfg.MaxSessions,
		IdleTimeout: cfg.IdleTimeout,
		Environment: domain.NewEnvironmentSpec(cfg.Libraries...),
	}, pool.WithLogger(logger), pool.WithMetrics(s.metrics))
	if err != nil {
		return nil, err
	}

	s.store = pcml.NewStore(cfg.TemplateDir, logger)
	if cfg.WatchTemplates {
		s.watcher = pcml.NewWatcher(s.store, pcml.DefaultDebounce, logger)
	}

	var ex extract.Extractor = extract.Structural{}
	if cfg.Extractor == cliconfig.ExtractorTextual {
		ex = extract.Textual{}
	}
	s.marshaller = marshal.New(ex, binder.New(logger), logger)

	logger.Debug("service configured",
		log.String("driver", cfg.Driver),
		log.String("address", cfg.Address),
		log.Strings("libraries", cfg.Libraries),
		log.Int("max_sessions", cfg.MaxSessions),
		log.String("extractor", cfg.Extractor),
	)
	return s, nil
}

func (s *Service) dialer() (ports.Dialer, error) {
	if s.custom != nil {
		return s.custom, nil
	}
	switch s.cfg.Driver {
	case cliconfig.DriverLoopback:
		s.host = loopback.New()
		s.host.HandleFallback(loopback.Echo)
		return s.host, nil
	}
	return nil, fmt.Errorf("%w: unsupported driver %q", domain.ErrInvalidConfig, s.cfg.Driver)
}

// Start runs the background workers: the template watcher and the metrics
// endpoint, when configured.
func (s *Service) Start(ctx context.Context) error {
	ctx, err := s.lifecycle.Begin(ctx)
	if err != nil {
		return err
	}

	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			s.lifecycle.Fail("template watcher failed")
			return fmt.Errorf("watch templates: %w", err)
		}
	}

	if s.cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			if s.watcher != nil {
				s.watcher.Stop()
			}
			s.lifecycle.Fail("metrics listener failed")
			return fmt.Errorf("metrics listener: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		s.lifecycle.Go(func() {
			s.logger.Info("metrics endpoint listening", log.String("addr", ln.Addr().String()))
			if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics endpoint failed", log.Err(err))
			}
		})
	}

	return s.lifecycle.Ready()
}

// Close stops the background workers and closes the pool. It is safe to
// call whether or not Start was called.
func (s *Service) Close() error {
	var errs []error
	if st := s.lifecycle.State(); st == StateStarting || st == StateRunning {
		if s.watcher != nil {
			s.watcher.Stop()
		}
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			errs = append(errs, s.server.Shutdown(ctx))
			cancel()
		}
		errs = append(errs, s.lifecycle.Shutdown(ShutdownTimeout))
	}
	errs = append(errs, s.pool.Close())
	return errors.Join(errs...)
}

// NewInvoker acquires a session, waiting at most the configured acquire
// timeout, and returns an invoker for target.
func (s *Service) NewInvoker(ctx context.Context, target invoker.Target) (*invoker.Invoker, error) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()
	return invoker.New(actx, s.pool, s.store, target,
		invoker.WithLogger(s.logger),
		invoker.WithMarshaller(s.marshaller),
		invoker.WithMetrics(s.metrics),
	)
}

// InvokeContext derives the per-call context bounded by the configured
// invoke timeout.
func (s *Service) InvokeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.InvokeTimeout)
}

// State returns the lifecycle state of the background workers.
func (s *Service) State() State { return s.lifecycle.State() }

// Pool returns the session pool.
func (s *Service) Pool() *pool.Pool { return s.pool }

// Templates returns the template store.
func (s *Service) Templates() *pcml.Store { return s.store }

// Metrics returns the metrics collector.
func (s *Service) Metrics() *metrics.Collector { return s.metrics }

// Loopback returns the in-process host when the loopback driver is in
// use, for registering procedure handlers; otherwise nil.
func (s *Service) Loopback() *loopback.Host { return s.host }

// Config returns the validated configuration.
func (s *Service) Config() cliconfig.Config { return s.cfg }
