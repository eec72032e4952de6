// Package loopback implements an in-process host. Sessions keep a library
// list changed by CHGLIBL and dispatch procedure calls to Go handlers.
// It backs the test suites and the CLI's dry-run driver.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/ports"
)

// ErrProgramNotFound is returned for calls without a registered handler.
var ErrProgramNotFound = errors.New("loopback: program not found")

// Handler serves one procedure call. It reads inputs from and writes
// outputs to call.Frame.
type Handler func(ctx context.Context, call ports.ProcedureCall) ([]domain.Message, error)

// CommandFunc overrides command execution for a session. Returning
// handled=false falls through to the built-in commands.
type CommandFunc func(sessionID, text string) (handled, ok bool, msgs []domain.Message, err error)

// Host is a set of loopback sessions sharing handlers.
type Host struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
	dialErr  error
	command  CommandFunc

	dials      atomic.Int64
	commands   atomic.Int64
	calls      atomic.Int64
	disconnect atomic.Int64
	nextID     atomic.Int64
}

// New creates an empty Host.
func New() *Host {
	return &Host{handlers: make(map[string]Handler)}
}

// Handle registers fn for procedure of the program at programPath.
func (h *Host) Handle(programPath, procedure string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[handlerKey(programPath, procedure)] = fn
}

// HandleFallback registers fn for calls without a specific handler.
func (h *Host) HandleFallback(fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallback = fn
}

// FailDial makes subsequent dials fail with err; nil restores dialing.
func (h *Host) FailDial(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dialErr = err
}

// OnCommand installs a command override.
func (h *Host) OnCommand(fn CommandFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.command = fn
}

// Dials returns the number of successful dials.
func (h *Host) Dials() int64 { return h.dials.Load() }

// Commands returns the number of commands run across all sessions.
func (h *Host) Commands() int64 { return h.commands.Load() }

// Calls returns the number of procedure calls.
func (h *Host) Calls() int64 { return h.calls.Load() }

// Disconnects returns how many times DisconnectAllServices was called.
func (h *Host) Disconnects() int64 { return h.disconnect.Load() }

// Dial implements ports.Dialer.
func (h *Host) Dial(ctx context.Context, address string, creds ports.Credentials) (ports.HostSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	err := h.dialErr
	h.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	h.dials.Add(1)
	return &Session{
		host: h,
		id:   fmt.Sprintf("loopback-%d", h.nextID.Add(1)),
		user: creds.User,
	}, nil
}

func (h *Host) handler(programPath, procedure string) Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if fn, ok := h.handlers[handlerKey(programPath, procedure)]; ok {
		return fn
	}
	return h.fallback
}

func handlerKey(programPath, procedure string) string {
	return strings.ToUpper(programPath) + "#" + procedure
}

// Session is a loopback host session.
type Session struct {
	host *Host
	id   string
	user string

	mu           sync.Mutex
	libraries    []string
	commands     []string
	disconnected bool
}

// ID implements ports.HostSession.
func (s *Session) ID() string { return s.id }

// LibraryList returns the session's current library list.
func (s *Session) LibraryList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.libraries...)
}

// History returns every command the session ran.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Disconnected reports whether DisconnectAllServices was called.
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// RunCommand implements ports.HostSession. CHGLIBL replaces the library
// list; any other command is reported as not found.
func (s *Session) RunCommand(ctx context.Context, text string) (bool, []domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	s.host.commands.Add(1)
	s.mu.Lock()
	s.commands = append(s.commands, text)
	s.mu.Unlock()

	s.host.mu.RLock()
	override := s.host.command
	s.host.mu.RUnlock()
	if override != nil {
		if handled, ok, msgs, err := override(s.id, text); handled {
			return ok, msgs, err
		}
	}

	verb, args, _ := strings.Cut(strings.TrimSpace(text), " ")
	switch strings.ToUpper(verb) {
	case "CHGLIBL":
		libs, ok := parseLibl(args)
		if !ok {
			return false, []domain.Message{{ID: "CPD0043", Text: "Keyword LIBL not valid for this command", Severity: 30}}, nil
		}
		s.mu.Lock()
		s.libraries = libs
		s.mu.Unlock()
		return true, nil, nil
	default:
		return false, []domain.Message{{ID: "CPD0030", Text: fmt.Sprintf("Command %s in library *LIBL not found", strings.ToUpper(verb)), Severity: 30}}, nil
	}
}

// CallProcedure implements ports.HostSession.
func (s *Session) CallProcedure(ctx context.Context, call ports.ProcedureCall) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.host.calls.Add(1)
	fn := s.host.handler(call.ProgramPath, call.Procedure)
	if fn == nil {
		return []domain.Message{{ID: "MCH3401", Text: "Cannot resolve to object " + call.ProgramPath, Severity: 40}},
			fmt.Errorf("%w: %s %s", ErrProgramNotFound, call.ProgramPath, call.Procedure)
	}
	return fn(ctx, call)
}

// DisconnectAllServices implements ports.HostSession.
func (s *Session) DisconnectAllServices() {
	s.host.disconnect.Add(1)
	s.mu.Lock()
	s.disconnected = true
	s.mu.Unlock()
}

// parseLibl extracts the library names from "LIBL(A B C)".
func parseLibl(args string) ([]string, bool) {
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(strings.ToUpper(args), "LIBL(") || !strings.HasSuffix(args, ")") {
		return nil, false
	}
	return strings.Fields(args[len("LIBL(") : len(args)-1]), true
}

// Echo is a Handler that leaves the frame unchanged, so inputoutput
// parameters come back as sent.
func Echo(ctx context.Context, call ports.ProcedureCall) ([]domain.Message, error) {
	return nil, nil
}

var (
	_ ports.Dialer      = (*Host)(nil)
	_ ports.HostSession = (*Session)(nil)
)
