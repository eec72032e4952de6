package ports

import (
	"context"

	"github.com/bft-labs/hostcall/internal/domain"
)

// CallFrame gives typed access to the slots of a call document.
type CallFrame interface {
	// Lookup returns the declared slot for path.
	Lookup(path domain.Path) (domain.Slot, bool)

	// SetValue stores v in the slot addressed by path and index. The value's
	// kind must match the slot's kind.
	SetValue(path domain.Path, index []int, v domain.Value) error

	// Value returns the value held by the slot addressed by path and index.
	Value(path domain.Path, index []int) (domain.Value, error)
}

// Document is a call document created from a template and bound to a
// session.
type Document interface {
	CallFrame

	// Name returns the template name.
	Name() string

	// Slots returns every declared slot in document order.
	Slots() []domain.Slot

	// SetPath binds the procedure to a fully qualified program path.
	SetPath(procedure, programPath string) error

	// Invoke calls procedure on the host with the document's current values.
	Invoke(ctx context.Context, procedure string) error
}

// TemplateLoader loads call-document templates.
type TemplateLoader interface {
	Load(session HostSession, name string) (Document, error)
}
