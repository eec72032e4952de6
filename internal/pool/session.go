package pool

import (
	"time"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/ports"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateCheckedOut
	stateClosed
)

// Session is a pooled host session. Environment fields are written once at
// creation and are read-only afterwards.
type Session struct {
	id        string
	host      ports.HostSession
	pool      *Pool
	createdAt time.Time

	envApplied bool
	envErr     error
	warnings   []domain.Message

	// guarded by pool.mu
	state    sessionState
	lastUsed time.Time
}

// ID returns the pool-assigned identity.
func (s *Session) ID() string { return s.id }

// Host returns the underlying host session.
func (s *Session) Host() ports.HostSession { return s.host }

// CreatedAt returns when the session was established.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// EnvironmentApplied reports whether the environment command ran on this
// session. It is false only when the command could not be run at all.
func (s *Session) EnvironmentApplied() bool { return s.envApplied }

// EnvironmentError returns why the environment could not be applied.
func (s *Session) EnvironmentError() error { return s.envErr }

// Warnings returns the host messages reported while applying the
// environment.
func (s *Session) Warnings() []domain.Message {
	return append([]domain.Message(nil), s.warnings...)
}
