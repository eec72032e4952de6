package extract

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/bft-labs/hostcall/internal/coerce"
	"github.com/bft-labs/hostcall/internal/domain"
)

// TagName is the struct tag that renames or skips a field.
const TagName = "pcml"

// Field is one extracted field.
type Field struct {
	// Name is the parameter name the field binds to.
	Name string

	Kind domain.Kind

	// Located is false when the textual extractor could not find the
	// field's value; Value is then the kind's zero value.
	Located bool

	value any
	text  string
	raw   bool
}

// Value returns the field as string, int64, uint64 or float64. Text captured by
// the textual extractor is parsed here, so a malformed number surfaces as
// an error for this field only.
func (f Field) Value() (any, error) {
	if f.raw {
		return coerce.Parse(f.Kind, f.text)
	}
	return f.value, nil
}

// Extractor produces the declared fields of an object in declaration order.
type Extractor interface {
	Extract(obj any) ([]Field, error)
}

// Declared describes a struct field eligible for extraction.
type Declared struct {
	Name   string
	GoName string
	Kind   domain.Kind
	Index  int
}

var declaredCache sync.Map // reflect.Type -> []Declared

// DeclaredFields returns the eligible fields of struct type t.
func DeclaredFields(t reflect.Type) []Declared {
	if cached, ok := declaredCache.Load(t); ok {
		return cached.([]Declared)
	}
	var out []Declared
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := sf.Name
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		kind, ok := kindOf(sf.Type.Kind())
		if !ok {
			continue
		}
		out = append(out, Declared{Name: name, GoName: sf.Name, Kind: kind, Index: i})
	}
	declaredCache.Store(t, out)
	return out
}

func kindOf(k reflect.Kind) (domain.Kind, bool) {
	switch k {
	case reflect.String:
		return domain.KindString, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return domain.KindInteger, true
	case reflect.Float32, reflect.Float64:
		return domain.KindDecimal, true
	}
	return 0, false
}

// structValue dereferences obj down to a struct value.
func structValue(obj any) (reflect.Value, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %T", domain.ErrNotStruct, obj)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %T", domain.ErrNotStruct, obj)
	}
	return rv, nil
}
