package extract

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bft-labs/hostcall/internal/coerce"
)

// Textual extracts field values from the object's rendered form.
//
// Objects implementing fmt.Stringer are expected to render as
// "Type[name=value, other=value]". Other objects are rendered with %+v and
// searched for "GoName:value" pairs separated by blanks.
type Textual struct{}

// Extract implements Extractor.
func (Textual) Extract(obj any) ([]Field, error) {
	rv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	r := renderObject(obj, rv)
	decl := DeclaredFields(rv.Type())
	out := make([]Field, 0, len(decl))
	for _, d := range decl {
		key := d.Name
		if r.goNames {
			key = d.GoName
		}
		text, ok := locate(r.text, key+r.assign, r.sep)
		if !ok {
			out = append(out, Field{Name: d.Name, Kind: d.Kind, value: coerce.Zero(d.Kind)})
			continue
		}
		out = append(out, Field{Name: d.Name, Kind: d.Kind, Located: true, text: text, raw: true})
	}
	return out, nil
}

type rendering struct {
	text    string
	assign  string
	sep     byte
	goNames bool
}

func renderObject(obj any, rv reflect.Value) rendering {
	if s, ok := obj.(fmt.Stringer); ok {
		return rendering{text: s.String(), assign: "=", sep: ','}
	}
	return rendering{text: fmt.Sprintf("%+v", rv.Interface()), assign: ":", sep: ' ', goNames: true}
}

// locate finds key at a token boundary in s and returns the text between
// it and the next separator or closing bracket at nesting depth zero. An
// empty value region counts as not found.
func locate(s, key string, sep byte) (string, bool) {
	from := 0
	for {
		i := strings.Index(s[from:], key)
		if i < 0 {
			return "", false
		}
		i += from
		if i == 0 || isBoundary(s[i-1]) {
			v, ok := scanValue(s[i+len(key):], sep)
			if !ok || v == "" {
				return "", false
			}
			return v, true
		}
		from = i + 1
	}
}

func isBoundary(c byte) bool {
	switch c {
	case '[', '{', '(', ',', ' ', '\t':
		return true
	}
	return false
}

func scanValue(v string, sep byte) (string, bool) {
	depth := 0
	for j := 0; j < len(v); j++ {
		switch c := v[j]; c {
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			if depth == 0 {
				return v[:j], true
			}
			depth--
		default:
			if c == sep && depth == 0 {
				return v[:j], true
			}
		}
	}
	return "", false
}

var _ Extractor = Textual{}
