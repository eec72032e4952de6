package extract

import (
	"github.com/bft-labs/hostcall/internal/domain"
)

// Structural reads field values directly through reflection. Unexported
// fields are read as well.
type Structural struct{}

// Extract implements Extractor.
func (Structural) Extract(obj any) ([]Field, error) {
	rv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	decl := DeclaredFields(rv.Type())
	out := make([]Field, 0, len(decl))
	for _, d := range decl {
		fv := rv.Field(d.Index)
		f := Field{Name: d.Name, Kind: d.Kind, Located: true}
		switch d.Kind {
		case domain.KindString:
			f.value = fv.String()
		case domain.KindInteger:
			if fv.CanInt() {
				f.value = fv.Int()
			} else {
				f.value = fv.Uint()
			}
		case domain.KindDecimal:
			f.value = fv.Float()
		}
		out = append(out, f)
	}
	return out, nil
}

var _ Extractor = Structural{}
