package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPoolClosed is returned by Acquire after the pool has been closed.
	ErrPoolClosed = errors.New("hostcall: pool closed")

	// ErrUnknownPath is returned when a path is not declared by the template.
	ErrUnknownPath = errors.New("hostcall: unknown parameter path")

	// ErrIndexMismatch is returned when an index is given for a scalar slot,
	// or omitted for a repeated one.
	ErrIndexMismatch = errors.New("hostcall: index does not match slot dimensions")

	// ErrIndexOutOfRange is returned for an index outside the declared count.
	ErrIndexOutOfRange = errors.New("hostcall: index out of range")

	// ErrNoValue is returned when reading a slot that holds no value.
	ErrNoValue = errors.New("hostcall: slot has no value")

	// ErrInvalidState is returned when an invoker operation is not valid in
	// its current state.
	ErrInvalidState = errors.New("hostcall: invalid invoker state")

	// ErrIncompleteInputs is returned by Invoke after a marshalling pass
	// failed part way through.
	ErrIncompleteInputs = errors.New("hostcall: inputs partially bound")

	// ErrTemplateNotFound is returned when no template exists for a name.
	ErrTemplateNotFound = errors.New("hostcall: template not found")

	// ErrNotStruct is returned when a marshalling source is not a struct.
	ErrNotStruct = errors.New("hostcall: object is not a struct")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("hostcall: invalid configuration")

	// ErrAlreadyRunning is returned when Start() is called on a running service.
	ErrAlreadyRunning = errors.New("hostcall: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped service.
	ErrNotRunning = errors.New("hostcall: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("hostcall: shutdown timeout")
)

// ConnectionError reports that a host session could not be established.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("hostcall: connect %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// EnvironmentError reports that the environment command could not run at
// all on a new session. The session is still usable but its library list
// is whatever the host defaulted to.
type EnvironmentError struct {
	Command string
	Err     error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("hostcall: apply environment %q: %v", e.Command, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// EnvironmentApplyWarning carries the messages the host returned when the
// environment command ran but did not complete cleanly. It is never
// returned from Acquire.
type EnvironmentApplyWarning struct {
	Command  string
	Messages []Message
}

func (w *EnvironmentApplyWarning) Error() string {
	return fmt.Sprintf("hostcall: environment %q applied with messages: %s", w.Command, joinMessages(w.Messages))
}

// BindingError reports a failed write into a call document.
type BindingError struct {
	Path  string
	Index int // -1 when the slot is not indexed
	Err   error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("hostcall: bind %s: %v", slotRef(e.Path, e.Index), e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// ReadFailure reports a failed read from a call document. Readers recover
// from it locally and return the zero value.
type ReadFailure struct {
	Path  string
	Index int
	Err   error
}

func (e *ReadFailure) Error() string {
	return fmt.Sprintf("hostcall: read %s: %v", slotRef(e.Path, e.Index), e.Err)
}

func (e *ReadFailure) Unwrap() error { return e.Err }

// TemplateError reports that a call-document template could not be bound.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("hostcall: template %q: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// InvocationError reports a host-side procedure failure together with the
// diagnostic messages the host returned.
type InvocationError struct {
	Procedure string
	Messages  []Message
	Err       error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "hostcall: invoke %s", e.Procedure)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, " [%s]", joinMessages(e.Messages))
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error { return e.Err }

func slotRef(path string, index int) string {
	if index < 0 {
		return path
	}
	return fmt.Sprintf("%s[%d]", path, index)
}

func joinMessages(msgs []Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.String()
	}
	return strings.Join(parts, "; ")
}
