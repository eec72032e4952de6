// Package invoker is the caller-facing facade for one remote procedure
// call sequence: acquire a session, bind a template, set inputs, invoke,
// read outputs, disconnect.
//
// An Invoker is not safe for concurrent use; give each goroutine its own.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/marshal"
	"github.com/bft-labs/hostcall/internal/pool"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

// SessionSource hands out pooled sessions. *pool.Pool implements it.
type SessionSource interface {
	Acquire(ctx context.Context) (*pool.Session, error)
	Release(s *pool.Session)
	CloseSession(s *pool.Session)
}

// Metrics receives invocation measurements.
type Metrics interface {
	InvocationObserved(procedure, result string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) InvocationObserved(string, string, time.Duration) {}

// Target names the service program to call.
type Target struct {
	ServiceProgram string
	Library        string
}

// ProgramPath returns the fully qualified integrated file system path of
// the service program.
func (t Target) ProgramPath() string {
	return fmt.Sprintf("/QSYS.LIB/%s.LIB/%s.SRVPGM",
		strings.ToUpper(strings.TrimSpace(t.Library)),
		strings.ToUpper(strings.TrimSpace(t.ServiceProgram)))
}

func (t Target) validate() error {
	if strings.TrimSpace(t.ServiceProgram) == "" || strings.TrimSpace(t.Library) == "" {
		return fmt.Errorf("%w: service program and library are required", domain.ErrInvalidConfig)
	}
	return nil
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(inv *Invoker) { inv.logger = log.OrNoop(l) }
}

// WithMarshaller sets the marshaller used for objects and single slots.
func WithMarshaller(m *marshal.Marshaller) Option {
	return func(inv *Invoker) {
		if m != nil {
			inv.marshaller = m
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(inv *Invoker) {
		if m != nil {
			inv.metrics = m
		}
	}
}

// Invoker drives a single session through template binding and calls.
type Invoker struct {
	source      SessionSource
	loader      ports.TemplateLoader
	target      Target
	programPath string

	marshaller *marshal.Marshaller
	logger     log.Logger
	metrics    Metrics

	state     State
	session   *pool.Session
	doc       ports.Document
	procedure string

	// incomplete holds marshalling passes that failed since the template
	// was bound, keyed by prefix and index.
	incomplete map[string]error

	// envChanged is set once a caller command has run on the session; the
	// session no longer matches the pool environment.
	envChanged bool
}

// New acquires a session from source and prepares calls against target.
// Acquire errors are returned unchanged.
func New(ctx context.Context, source SessionSource, loader ports.TemplateLoader, target Target, opts ...Option) (*Invoker, error) {
	if source == nil || loader == nil {
		return nil, fmt.Errorf("%w: session source and template loader are required", domain.ErrInvalidConfig)
	}
	if err := target.validate(); err != nil {
		return nil, err
	}
	inv := &Invoker{
		source:      source,
		loader:      loader,
		target:      target,
		programPath: target.ProgramPath(),
		logger:      log.NewNoopLogger(),
		metrics:     nopMetrics{},
		incomplete:  make(map[string]error),
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.marshaller == nil {
		inv.marshaller = marshal.New(nil, nil, inv.logger)
	}
	inv.logger = inv.logger.With(log.String("program", inv.programPath))

	s, err := source.Acquire(ctx)
	if err != nil {
		inv.logger.Error("acquire session failed", log.Err(err))
		return nil, err
	}
	inv.session = s
	inv.logger = inv.logger.With(log.String("session", s.ID()))
	inv.transition(StateConnected, "session acquired")
	return inv, nil
}

// State returns the current state.
func (inv *Invoker) State() State { return inv.state }

// Session returns the pooled session, or nil once disconnected.
func (inv *Invoker) Session() *pool.Session { return inv.session }

// ProgramPath returns the resolved service program path.
func (inv *Invoker) ProgramPath() string { return inv.programPath }

// Document returns the bound call document, or nil.
func (inv *Invoker) Document() ports.Document { return inv.doc }

// Procedure returns the procedure the bound template calls.
func (inv *Invoker) Procedure() string { return inv.procedure }

// BindTemplate loads the template called name and binds it to the service
// program. The procedure called by Invoke is name. On failure the previous
// binding, if any, is kept.
func (inv *Invoker) BindTemplate(name string) error {
	if inv.state == StateDisconnected {
		return inv.invalid("bind template")
	}
	doc, err := inv.loader.Load(inv.session.Host(), name)
	if err == nil {
		err = doc.SetPath(name, inv.programPath)
	}
	if err != nil {
		terr := &domain.TemplateError{Name: name, Err: err}
		inv.logger.Error("bind template failed", log.String("template", name), log.Err(err))
		return terr
	}
	inv.doc = doc
	inv.procedure = name
	clear(inv.incomplete)
	inv.transition(StateTemplateBound, "template "+name)
	return nil
}

// SetValue binds value to the slot at path.
func (inv *Invoker) SetValue(path string, value any) error {
	if !inv.state.hasDocument() {
		return inv.invalid("set value")
	}
	return inv.marshaller.Binder().Bind(inv.doc, path, value)
}

// SetValueAt binds value to element index of the repeated slot at path.
func (inv *Invoker) SetValueAt(path string, index int, value any) error {
	if !inv.state.hasDocument() {
		return inv.invalid("set value")
	}
	return inv.marshaller.Binder().BindAt(inv.doc, path, index, value)
}

// MarshalFields binds the fields of obj under prefix. A failed pass blocks
// Invoke until the same pass succeeds or a template is bound again.
func (inv *Invoker) MarshalFields(obj any, prefix string) error {
	if !inv.state.hasDocument() {
		return inv.invalid("marshal")
	}
	return inv.track(prefix, -1, inv.marshaller.MarshalFields(inv.doc, obj, prefix))
}

// MarshalFieldsAt binds the fields of obj to element index of the
// repeated group at prefix.
func (inv *Invoker) MarshalFieldsAt(obj any, prefix string, index int) error {
	if !inv.state.hasDocument() {
		return inv.invalid("marshal")
	}
	return inv.track(prefix, index, inv.marshaller.MarshalFieldsAt(inv.doc, obj, prefix, index))
}

// UnmarshalFields fills the fields of dst from prefix.
func (inv *Invoker) UnmarshalFields(dst any, prefix string) error {
	if !inv.state.hasDocument() {
		return inv.invalid("unmarshal")
	}
	return inv.marshaller.UnmarshalFields(inv.doc, dst, prefix)
}

// UnmarshalFieldsAt fills the fields of dst from element index of the
// repeated group at prefix.
func (inv *Invoker) UnmarshalFieldsAt(dst any, prefix string, index int) error {
	if !inv.state.hasDocument() {
		return inv.invalid("unmarshal")
	}
	return inv.marshaller.UnmarshalFieldsAt(inv.doc, dst, prefix, index)
}

func (inv *Invoker) track(prefix string, index int, err error) error {
	key := passKey(prefix, index)
	if err != nil {
		inv.incomplete[key] = err
		return err
	}
	delete(inv.incomplete, key)
	return nil
}

func passKey(prefix string, index int) string {
	if index < 0 {
		return prefix
	}
	return fmt.Sprintf("%s[%d]", prefix, index)
}

// String reads the slot at path, or "" when it cannot be read.
func (inv *Invoker) String(path string) string {
	if !inv.readable(path) {
		return ""
	}
	return inv.marshaller.Binder().ReadString(inv.doc, path)
}

// StringAt reads element index of the repeated slot at path.
func (inv *Invoker) StringAt(path string, index int) string {
	if !inv.readable(path) {
		return ""
	}
	return inv.marshaller.Binder().ReadStringAt(inv.doc, path, index)
}

// Int reads the integer slot at path, or 0.
func (inv *Invoker) Int(path string) int {
	if !inv.readable(path) {
		return 0
	}
	return inv.marshaller.Binder().ReadInt(inv.doc, path)
}

// IntAt reads element index of the repeated integer slot at path.
func (inv *Invoker) IntAt(path string, index int) int {
	if !inv.readable(path) {
		return 0
	}
	return inv.marshaller.Binder().ReadIntAt(inv.doc, path, index)
}

// Double reads the decimal or integer slot at path, or 0.
func (inv *Invoker) Double(path string) float64 {
	if !inv.readable(path) {
		return 0
	}
	return inv.marshaller.Binder().ReadDouble(inv.doc, path)
}

// DoubleAt reads element index of the repeated slot at path.
func (inv *Invoker) DoubleAt(path string, index int) float64 {
	if !inv.readable(path) {
		return 0
	}
	return inv.marshaller.Binder().ReadDoubleAt(inv.doc, path, index)
}

func (inv *Invoker) readable(path string) bool {
	if inv.state.hasDocument() {
		return true
	}
	inv.logger.Warn("read failed, returning zero value",
		log.Err(&domain.ReadFailure{Path: path, Index: -1, Err: inv.stateErr("read")}))
	return false
}

// Invoke calls the bound procedure. On failure the returned error is a
// *domain.InvocationError carrying the host's messages and the invoker
// stays bound to the template.
func (inv *Invoker) Invoke(ctx context.Context) error {
	if !inv.state.hasDocument() {
		return inv.invalid("invoke")
	}
	if len(inv.incomplete) > 0 {
		err := fmt.Errorf("%w: %s", domain.ErrIncompleteInputs, strings.Join(inv.incompletePasses(), ", "))
		inv.logger.Error("invoke refused", log.Err(err))
		return err
	}

	start := time.Now()
	err := inv.doc.Invoke(ctx, inv.procedure)
	elapsed := time.Since(start)
	if err != nil {
		var ierr *domain.InvocationError
		if !errors.As(err, &ierr) {
			ierr = &domain.InvocationError{Procedure: inv.procedure, Err: err}
		}
		inv.metrics.InvocationObserved(inv.procedure, "error", elapsed)
		inv.logger.Error("invoke failed",
			log.String("procedure", inv.procedure),
			log.Strings("messages", domain.MessageTexts(ierr.Messages)),
			log.Duration("elapsed", elapsed),
			log.Err(ierr.Err),
		)
		if inv.state != StateTemplateBound {
			inv.transition(StateTemplateBound, "invoke failed")
		}
		return ierr
	}
	inv.metrics.InvocationObserved(inv.procedure, "ok", elapsed)
	inv.logger.Debug("invoked", log.String("procedure", inv.procedure), log.Duration("elapsed", elapsed))
	inv.transition(StateInvoked, "invoke "+inv.procedure)
	return nil
}

func (inv *Invoker) incompletePasses() []string {
	keys := make([]string, 0, len(inv.incomplete))
	for k := range inv.incomplete {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExecuteCommand runs a host command on the invoker's session. Host
// messages are logged and returned.
func (inv *Invoker) ExecuteCommand(ctx context.Context, text string) (bool, []domain.Message, error) {
	if inv.state == StateDisconnected {
		return false, nil, inv.invalid("execute command")
	}
	inv.envChanged = true
	ok, msgs, err := inv.session.Host().RunCommand(ctx, text)
	switch {
	case err != nil:
		inv.logger.Error("command failed", log.String("command", text), log.Err(err))
	case !ok:
		inv.logger.Warn("command reported failure",
			log.String("command", text),
			log.Strings("messages", domain.MessageTexts(msgs)))
	default:
		for _, m := range msgs {
			inv.logger.Info("command message", log.String("command", text), log.String("message", m.String()))
		}
	}
	return ok, msgs, err
}

// SetLibraryList replaces the session's library list. A command that runs
// but reports failure returns a *domain.EnvironmentApplyWarning.
func (inv *Invoker) SetLibraryList(ctx context.Context, libraries ...string) error {
	env := domain.NewEnvironmentSpec(libraries...)
	if env.Empty() {
		return fmt.Errorf("%w: empty library list", domain.ErrInvalidConfig)
	}
	cmd := env.Command()
	ok, msgs, err := inv.ExecuteCommand(ctx, cmd)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return err
		}
		return &domain.EnvironmentError{Command: cmd, Err: err}
	}
	if !ok {
		return &domain.EnvironmentApplyWarning{Command: cmd, Messages: msgs}
	}
	return nil
}

// Disconnect ends the session's host services and returns it to the pool.
// A session that ran ExecuteCommand or SetLibraryList is closed instead,
// so the pool only hands out sessions in its own environment. It is
// idempotent.
func (inv *Invoker) Disconnect() {
	if inv.state == StateDisconnected {
		return
	}
	s := inv.session
	inv.session = nil
	inv.doc = nil
	inv.procedure = ""
	clear(inv.incomplete)
	s.Host().DisconnectAllServices()
	if inv.envChanged {
		inv.envChanged = false
		inv.logger.Info("closing session with a changed environment", log.String("session", s.ID()))
		inv.source.CloseSession(s)
	} else {
		inv.source.Release(s)
	}
	inv.transition(StateDisconnected, "disconnect")
}

func (inv *Invoker) transition(to State, reason string) {
	from := inv.state
	inv.state = to
	inv.logger.Debug("state transition",
		log.String("from", from.String()),
		log.String("to", to.String()),
		log.String("reason", reason),
	)
}

func (inv *Invoker) stateErr(op string) error {
	return fmt.Errorf("%w: %s in state %s", domain.ErrInvalidState, op, inv.state)
}

func (inv *Invoker) invalid(op string) error {
	err := inv.stateErr(op)
	inv.logger.Error("operation not allowed", log.Err(err))
	return err
}
