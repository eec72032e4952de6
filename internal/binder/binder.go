// Package binder writes values into call-document slots and reads them
// back.
//
// Writes are strict: an unknown path, an index that does not match the
// slot's dimensions or a value that cannot be coerced fails with a
// *domain.BindingError and leaves the document untouched. Reads are
// lenient: any failure is logged as a *domain.ReadFailure and the kind's
// zero value is returned, so harvesting many optional outputs never has
// to branch on each field.
package binder

import (
	"github.com/bft-labs/hostcall/internal/coerce"
	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

const noIndex = -1

// Binder binds values to document slots.
type Binder struct {
	logger log.Logger
}

// New creates a Binder. A nil logger discards read diagnostics.
func New(logger log.Logger) *Binder {
	return &Binder{logger: log.OrNoop(logger)}
}

// Bind writes value into the scalar slot at path.
func (b *Binder) Bind(doc ports.CallFrame, path string, value any) error {
	return b.bind(doc, path, noIndex, value)
}

// BindAt writes value into element index of the repeated slot at path.
func (b *Binder) BindAt(doc ports.CallFrame, path string, index int, value any) error {
	if index < 0 {
		return &domain.BindingError{Path: path, Index: index, Err: domain.ErrIndexOutOfRange}
	}
	return b.bind(doc, path, index, value)
}

func (b *Binder) bind(doc ports.CallFrame, path string, index int, value any) error {
	slot, p, idx, err := resolve(doc, path, index)
	if err != nil {
		return &domain.BindingError{Path: path, Index: index, Err: err}
	}
	v, err := coerce.ToSlot(slot, value)
	if err != nil {
		return &domain.BindingError{Path: path, Index: index, Err: err}
	}
	if err := doc.SetValue(p, idx, v); err != nil {
		return &domain.BindingError{Path: path, Index: index, Err: err}
	}
	return nil
}

// ReadString returns the scalar slot at path rendered as text, or "".
func (b *Binder) ReadString(doc ports.CallFrame, path string) string {
	return b.readString(doc, path, noIndex)
}

// ReadStringAt returns element index of the slot at path as text, or "".
func (b *Binder) ReadStringAt(doc ports.CallFrame, path string, index int) string {
	if !b.validIndex(path, index) {
		return ""
	}
	return b.readString(doc, path, index)
}

// ReadInt returns the integer slot at path, or 0.
func (b *Binder) ReadInt(doc ports.CallFrame, path string) int {
	return b.readInt(doc, path, noIndex)
}

// ReadIntAt returns element index of the integer slot at path, or 0.
func (b *Binder) ReadIntAt(doc ports.CallFrame, path string, index int) int {
	if !b.validIndex(path, index) {
		return 0
	}
	return b.readInt(doc, path, index)
}

// ReadDouble returns the decimal slot at path as float64, or 0.
func (b *Binder) ReadDouble(doc ports.CallFrame, path string) float64 {
	return b.readDouble(doc, path, noIndex)
}

// ReadDoubleAt returns element index of the decimal slot at path as
// float64, or 0.
func (b *Binder) ReadDoubleAt(doc ports.CallFrame, path string, index int) float64 {
	if !b.validIndex(path, index) {
		return 0
	}
	return b.readDouble(doc, path, index)
}

func (b *Binder) readString(doc ports.CallFrame, path string, index int) string {
	v, ok := b.read(doc, path, index)
	if !ok {
		return ""
	}
	return coerce.AsString(v)
}

func (b *Binder) readInt(doc ports.CallFrame, path string, index int) int {
	v, ok := b.read(doc, path, index)
	if !ok {
		return 0
	}
	i, err := coerce.AsInt(v)
	if err != nil {
		b.failed(path, index, err)
		return 0
	}
	return i
}

func (b *Binder) readDouble(doc ports.CallFrame, path string, index int) float64 {
	v, ok := b.read(doc, path, index)
	if !ok {
		return 0
	}
	f, err := coerce.AsFloat(v)
	if err != nil {
		b.failed(path, index, err)
		return 0
	}
	return f
}

func (b *Binder) read(doc ports.CallFrame, path string, index int) (domain.Value, bool) {
	_, p, idx, err := resolve(doc, path, index)
	if err != nil {
		b.failed(path, index, err)
		return nil, false
	}
	v, err := doc.Value(p, idx)
	if err != nil {
		b.failed(path, index, err)
		return nil, false
	}
	return v, true
}

func (b *Binder) validIndex(path string, index int) bool {
	if index < 0 {
		b.failed(path, index, domain.ErrIndexOutOfRange)
		return false
	}
	return true
}

func (b *Binder) failed(path string, index int, err error) {
	rf := &domain.ReadFailure{Path: path, Index: index, Err: err}
	b.logger.Warn("read failed, returning zero value",
		log.String("path", path),
		log.Int("index", index),
		log.Err(rf),
	)
}

// resolve parses path and checks it against the document schema.
func resolve(doc ports.CallFrame, path string, index int) (domain.Slot, domain.Path, []int, error) {
	p, err := domain.ParsePath(path)
	if err != nil {
		return domain.Slot{}, domain.Path{}, nil, err
	}
	slot, ok := doc.Lookup(p)
	if !ok {
		return domain.Slot{}, domain.Path{}, nil, domain.ErrUnknownPath
	}
	var idx []int
	if index != noIndex {
		idx = []int{index}
	}
	if err := slot.CheckIndex(idx); err != nil {
		return domain.Slot{}, domain.Path{}, nil, err
	}
	return slot, p, idx, nil
}
