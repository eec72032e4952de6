package pcml

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bft-labs/hostcall/internal/coerce"
	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/ports"
)

var errNoProgramPath = errors.New("program path not set")

// Document is a call document created from a Template and bound to a host
// session. It is owned by a single caller and is not safe for concurrent
// use.
type Document struct {
	tmpl        *Template
	session     ports.HostSession
	values      map[string]domain.Value
	procedure   string
	programPath string
}

// NewDocument creates an empty document for t on session.
func NewDocument(t *Template, session ports.HostSession) *Document {
	return &Document{
		tmpl:        t,
		session:     session,
		values:      make(map[string]domain.Value),
		programPath: t.Path,
	}
}

// Name returns the template name.
func (d *Document) Name() string { return d.tmpl.Name }

// Template returns the parsed template.
func (d *Document) Template() *Template { return d.tmpl }

// Slots returns every declared slot in document order.
func (d *Document) Slots() []domain.Slot { return d.tmpl.Slots() }

// Lookup implements ports.CallFrame.
func (d *Document) Lookup(p domain.Path) (domain.Slot, bool) { return d.tmpl.Lookup(p) }

// SetValue implements ports.CallFrame.
func (d *Document) SetValue(p domain.Path, index []int, v domain.Value) error {
	slot, err := d.slot(p, index)
	if err != nil {
		return err
	}
	if v == nil || v.Kind() != slot.Kind {
		return fmt.Errorf("%w: %s slot %s", coerce.ErrKind, slot.Kind, slot.Path)
	}
	d.values[valueKey(slot.Path, index)] = v
	return nil
}

// Value implements ports.CallFrame.
func (d *Document) Value(p domain.Path, index []int) (domain.Value, error) {
	slot, err := d.slot(p, index)
	if err != nil {
		return nil, err
	}
	v, ok := d.values[valueKey(slot.Path, index)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoValue, slot.Path)
	}
	return v, nil
}

// Reset clears every bound value.
func (d *Document) Reset() {
	clear(d.values)
}

// SetPath binds procedure to the program at programPath.
func (d *Document) SetPath(procedure, programPath string) error {
	procedure, programPath = strings.TrimSpace(procedure), strings.TrimSpace(programPath)
	if procedure == "" || programPath == "" {
		return fmt.Errorf("set path: procedure and program path are required")
	}
	d.procedure = procedure
	d.programPath = programPath
	return nil
}

// ProgramPath returns the bound program path.
func (d *Document) ProgramPath() string { return d.programPath }

// Invoke calls procedure on the session with the document's values. Host
// messages are attached to the returned *domain.InvocationError.
func (d *Document) Invoke(ctx context.Context, procedure string) error {
	if d.programPath == "" {
		return &domain.InvocationError{Procedure: procedure, Err: errNoProgramPath}
	}
	exported := procedure
	if procedure == d.tmpl.Program && d.tmpl.EntryPoint != "" {
		exported = d.tmpl.EntryPoint
	}
	msgs, err := d.session.CallProcedure(ctx, ports.ProcedureCall{
		ProgramPath: d.programPath,
		Procedure:   exported,
		Frame:       d,
	})
	if err != nil {
		return &domain.InvocationError{Procedure: procedure, Messages: msgs, Err: err}
	}
	return nil
}

func (d *Document) slot(p domain.Path, index []int) (domain.Slot, error) {
	slot, ok := d.tmpl.Lookup(p)
	if !ok {
		return domain.Slot{}, fmt.Errorf("%w: %s", domain.ErrUnknownPath, p)
	}
	if err := slot.CheckIndex(index); err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

func valueKey(path string, index []int) string {
	if len(index) == 0 {
		return path
	}
	var b strings.Builder
	b.WriteString(path)
	for _, i := range index {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(']')
	}
	return b.String()
}

var _ ports.Document = (*Document)(nil)
