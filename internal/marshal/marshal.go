// Package marshal binds every primitive field of an object into a call
// document under a parameter-path prefix, and reads them back.
//
// A marshalling pass is fail-fast: the first field that cannot be bound
// aborts the pass and fields processed before it stay bound. The
// unmarshal path uses the binder's lenient reads instead.
package marshal

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bft-labs/hostcall/internal/binder"
	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/extract"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

const noIndex = -1

// Marshaller orchestrates field extraction and binding.
type Marshaller struct {
	extractor extract.Extractor
	binder    *binder.Binder
	logger    log.Logger
}

// New creates a Marshaller. A nil extractor selects extract.Structural.
func New(ex extract.Extractor, b *binder.Binder, logger log.Logger) *Marshaller {
	if ex == nil {
		ex = extract.Structural{}
	}
	logger = log.OrNoop(logger)
	if b == nil {
		b = binder.New(logger)
	}
	return &Marshaller{extractor: ex, binder: b, logger: logger}
}

// Binder returns the binder used for individual slots.
func (m *Marshaller) Binder() *binder.Binder { return m.binder }

// MarshalFields binds each field of obj to prefix.<field>.
func (m *Marshaller) MarshalFields(doc ports.CallFrame, obj any, prefix string) error {
	return m.marshal(doc, obj, prefix, noIndex)
}

// MarshalFieldsAt binds each field of obj to element index of the repeated
// group at prefix.
func (m *Marshaller) MarshalFieldsAt(doc ports.CallFrame, obj any, prefix string, index int) error {
	if index < 0 {
		return &domain.BindingError{Path: prefix, Index: index, Err: domain.ErrIndexOutOfRange}
	}
	return m.marshal(doc, obj, prefix, index)
}

func (m *Marshaller) marshal(doc ports.CallFrame, obj any, prefix string, index int) error {
	fields, err := m.extractor.Extract(obj)
	if err != nil {
		m.logger.Error("marshal pass aborted", log.String("prefix", prefix), log.Err(err))
		return &domain.BindingError{Path: prefix, Index: index, Err: err}
	}
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		if !f.Located {
			m.logger.Debug("field value not located, binding zero value", log.String("path", path))
		}
		v, err := f.Value()
		if err == nil {
			if index == noIndex {
				err = m.binder.Bind(doc, path, v)
			} else {
				err = m.binder.BindAt(doc, path, index, v)
			}
		} else {
			err = &domain.BindingError{Path: path, Index: index, Err: err}
		}
		if err != nil {
			m.logger.Error("marshal pass aborted",
				log.String("prefix", prefix),
				log.String("field", f.Name),
				log.Int("index", index),
				log.Err(err),
			)
			return err
		}
	}
	return nil
}

// UnmarshalFields fills the settable fields of the struct dst points to
// from prefix.<field>. Unreadable slots leave the zero value in place.
func (m *Marshaller) UnmarshalFields(doc ports.CallFrame, dst any, prefix string) error {
	return m.unmarshal(doc, dst, prefix, noIndex)
}

// UnmarshalFieldsAt fills dst from element index of the group at prefix.
func (m *Marshaller) UnmarshalFieldsAt(doc ports.CallFrame, dst any, prefix string, index int) error {
	return m.unmarshal(doc, dst, prefix, index)
}

func (m *Marshaller) unmarshal(doc ports.CallFrame, dst any, prefix string, index int) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: unmarshal needs a non-nil struct pointer, got %T", domain.ErrNotStruct, dst)
	}
	rv = rv.Elem()
	for _, d := range extract.DeclaredFields(rv.Type()) {
		fv := rv.Field(d.Index)
		if !fv.CanSet() {
			continue
		}
		path := joinPath(prefix, d.Name)
		switch d.Kind {
		case domain.KindString:
			fv.SetString(m.readString(doc, path, index))
		case domain.KindInteger:
			m.setInt(fv, path, m.readInt(doc, path, index))
		case domain.KindDecimal:
			fv.SetFloat(m.readDouble(doc, path, index))
		}
	}
	return nil
}

func (m *Marshaller) setInt(fv reflect.Value, path string, i int) {
	if fv.CanInt() {
		if fv.OverflowInt(int64(i)) {
			m.logger.Warn("integer does not fit field", log.String("path", path), log.Int("value", i))
			return
		}
		fv.SetInt(int64(i))
		return
	}
	if i < 0 || fv.OverflowUint(uint64(i)) {
		m.logger.Warn("integer does not fit field", log.String("path", path), log.Int("value", i))
		return
	}
	fv.SetUint(uint64(i))
}

func (m *Marshaller) readString(doc ports.CallFrame, path string, index int) string {
	if index == noIndex {
		return m.binder.ReadString(doc, path)
	}
	return m.binder.ReadStringAt(doc, path, index)
}

func (m *Marshaller) readInt(doc ports.CallFrame, path string, index int) int {
	if index == noIndex {
		return m.binder.ReadInt(doc, path)
	}
	return m.binder.ReadIntAt(doc, path, index)
}

func (m *Marshaller) readDouble(doc ports.CallFrame, path string, index int) float64 {
	if index == noIndex {
		return m.binder.ReadDouble(doc, path)
	}
	return m.binder.ReadDoubleAt(doc, path, index)
}

func joinPath(prefix, name string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
