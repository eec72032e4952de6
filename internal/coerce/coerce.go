// Package coerce converts between Go values, text and the typed values
// held by call-document slots.
package coerce

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bft-labs/hostcall/internal/domain"
)

var (
	// ErrUnsupported is returned for Go values that have no slot mapping.
	ErrUnsupported = errors.New("unsupported value type")

	// ErrRange is returned for numbers that do not fit the slot.
	ErrRange = errors.New("value out of range")

	// ErrLength is returned for strings longer than the slot.
	ErrLength = errors.New("value exceeds declared length")

	// ErrKind is returned when a stored value cannot be read as the
	// requested kind.
	ErrKind = errors.New("kind mismatch")
)

// ToSlot converts v into a Value of the slot's kind, enforcing the declared
// length, range and scale.
func ToSlot(slot domain.Slot, v any) (domain.Value, error) {
	switch slot.Kind {
	case domain.KindString:
		s, err := ToString(v)
		if err != nil {
			return nil, err
		}
		if slot.Length > 0 && utf8.RuneCountInString(s) > slot.Length {
			return nil, fmt.Errorf("%w: %d > %d", ErrLength, utf8.RuneCountInString(s), slot.Length)
		}
		return domain.StringValue(s), nil
	case domain.KindInteger:
		i, err := ToInt64(v)
		if err != nil {
			return nil, err
		}
		if err := checkIntRange(slot, i); err != nil {
			return nil, err
		}
		return domain.IntValue(i), nil
	case domain.KindDecimal:
		d, err := ToDecimal(v, slot.Scale)
		if err != nil {
			return nil, err
		}
		if slot.Length > 0 && d.Digits() > slot.Length {
			return nil, fmt.Errorf("%w: %s needs %d digits, slot has %d", domain.ErrDecimalOverflow, d, d.Digits(), slot.Length)
		}
		return domain.DecimalValue(d), nil
	default:
		panic(fmt.Sprintf("coerce: unknown kind %d", slot.Kind))
	}
}

// ToString renders v as slot text.
func ToString(v any) (string, error) {
	if dv, ok := v.(domain.Value); ok {
		return dv.String(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupported, v)
}

// ToInt64 converts v to an integer. Text is parsed after trimming blanks;
// floats are accepted only when integral.
func ToInt64(v any) (int64, error) {
	switch t := v.(type) {
	case domain.IntValue:
		return int64(t), nil
	case domain.DecimalValue:
		d, err := domain.Decimal(t).Rescale(0)
		if err != nil || !d.Equal(domain.Decimal(t)) {
			return 0, fmt.Errorf("%w: %s is not integral", ErrRange, t)
		}
		return d.Unscaled(), nil
	case domain.StringValue:
		return parseInt(string(t))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return parseInt(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrRange, u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrRange, f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrUnsupported, v)
}

// ToDecimal converts v to a Decimal with exactly scale fractional digits.
func ToDecimal(v any, scale int32) (domain.Decimal, error) {
	var d domain.Decimal
	var err error
	switch t := v.(type) {
	case domain.DecimalValue:
		d = domain.Decimal(t)
	case domain.IntValue:
		d = domain.NewDecimal(int64(t), 0)
	case domain.StringValue:
		d, err = domain.ParseDecimal(string(t))
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.String:
			d, err = domain.ParseDecimal(rv.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			d = domain.NewDecimal(rv.Int(), 0)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if rv.Uint() > math.MaxInt64 {
				return domain.Decimal{}, fmt.Errorf("%w: %d", ErrRange, rv.Uint())
			}
			d = domain.NewDecimal(int64(rv.Uint()), 0)
		case reflect.Float32, reflect.Float64:
			return domain.DecimalFromFloat(rv.Float(), scale)
		default:
			return domain.Decimal{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
		}
	}
	if err != nil {
		return domain.Decimal{}, err
	}
	return d.Rescale(scale)
}

// Parse converts raw text to the Go value of kind: string, int64 or
// float64.
func Parse(kind domain.Kind, raw string) (any, error) {
	switch kind {
	case domain.KindString:
		return raw, nil
	case domain.KindInteger:
		return parseInt(raw)
	case domain.KindDecimal:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as decimal: %w", raw, err)
		}
		return f, nil
	default:
		panic(fmt.Sprintf("coerce: unknown kind %d", kind))
	}
}

// Zero returns the Go zero value Parse would produce for kind.
func Zero(kind domain.Kind) any {
	switch kind {
	case domain.KindString:
		return ""
	case domain.KindInteger:
		return int64(0)
	case domain.KindDecimal:
		return float64(0)
	default:
		panic(fmt.Sprintf("coerce: unknown kind %d", kind))
	}
}

// AsString renders any stored value as text.
func AsString(v domain.Value) string {
	return v.String()
}

// AsInt reads an integer slot value.
func AsInt(v domain.Value) (int, error) {
	i, ok := v.(domain.IntValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s slot read as integer", ErrKind, v.Kind())
	}
	if int64(i) > math.MaxInt || int64(i) < math.MinInt {
		return 0, fmt.Errorf("%w: %d", ErrRange, i)
	}
	return int(i), nil
}

// AsFloat reads a decimal or integer slot value as float64.
func AsFloat(v domain.Value) (float64, error) {
	switch t := v.(type) {
	case domain.DecimalValue:
		return domain.Decimal(t).Float64(), nil
	case domain.IntValue:
		return float64(t), nil
	}
	return 0, fmt.Errorf("%w: %s slot read as decimal", ErrKind, v.Kind())
}

func parseInt(s string) (int64, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q as integer: %w", s, err)
	}
	return i, nil
}

func checkIntRange(slot domain.Slot, i int64) error {
	var lo, hi int64
	switch {
	case slot.Unsigned && slot.Length == 2:
		lo, hi = 0, math.MaxUint16
	case slot.Unsigned && slot.Length == 4:
		lo, hi = 0, math.MaxUint32
	case slot.Unsigned:
		lo, hi = 0, math.MaxInt64
	case slot.Length == 2:
		lo, hi = math.MinInt16, math.MaxInt16
	case slot.Length == 4:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		lo, hi = math.MinInt64, math.MaxInt64
	}
	if i < lo || i > hi {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrRange, i, lo, hi)
	}
	return nil
}
