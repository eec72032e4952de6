// Package hostcall invokes procedures of service programs on a legacy host.
//
// Example usage:
//
//	cfg := hostcall.DefaultConfig()
//	cfg.Address = "host.example.com"
//	cfg.User = "APPUSER"
//	cfg.Libraries = []string{"APPLIB", "QGPL"}
//	c, err := hostcall.New(cfg, hostcall.WithDialer(myDriver))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	inv, err := c.Connect(ctx, hostcall.Target{ServiceProgram: "ACCTSVC", Library: "APPLIB"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inv.Disconnect()
//	_ = inv.BindTemplate("GETBAL")
//	_ = inv.MarshalFields(req, "GETBAL.request")
//	if err := inv.Invoke(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	balance := inv.Double("GETBAL.balance")
package hostcall

import (
	"context"

	"github.com/bft-labs/hostcall/internal/app"
	"github.com/bft-labs/hostcall/internal/cliconfig"
	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/invoker"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

// Config holds the client configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Target names the service program an invoker calls into.
type Target = invoker.Target

// Invoker drives one procedure call sequence on a pooled session.
type Invoker = invoker.Invoker

// Driver-facing types. A Dialer passed to WithDialer replaces the
// configured driver.
type (
	Dialer        = ports.Dialer
	HostSession   = ports.HostSession
	ProcedureCall = ports.ProcedureCall
	CallFrame     = ports.CallFrame
	Credentials   = ports.Credentials
	Message       = domain.Message
)

// Errors returned by the client and its invokers.
var (
	ErrPoolClosed       = domain.ErrPoolClosed
	ErrInvalidConfig    = domain.ErrInvalidConfig
	ErrInvalidState     = domain.ErrInvalidState
	ErrIncompleteInputs = domain.ErrIncompleteInputs
	ErrTemplateNotFound = domain.ErrTemplateNotFound
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Option configures optional behavior of a Client.
type Option func(*options)

type options struct {
	logger log.Logger
	dialer Dialer
}

// WithLogger sets the logger. If not provided, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialer sets the driver used to open host sessions.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// Client owns the session pool and template store built from a Config.
type Client struct {
	svc *app.Service
}

// New validates cfg and builds a client. No session is opened until
// Connect is called.
func New(cfg Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var appOpts []app.Option
	if o.dialer != nil {
		appOpts = append(appOpts, app.WithDialer(o.dialer))
	}
	svc, err := app.New(cfg, o.logger, appOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{svc: svc}, nil
}

// Start runs the background workers enabled by the configuration.
func (c *Client) Start(ctx context.Context) error {
	return c.svc.Start(ctx)
}

// Connect acquires a session and returns an invoker bound to target.
func (c *Client) Connect(ctx context.Context, target Target) (*Invoker, error) {
	return c.svc.NewInvoker(ctx, target)
}

// Close stops the background workers and closes every pooled session.
func (c *Client) Close() error {
	return c.svc.Close()
}
