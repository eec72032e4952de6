package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxDigits is the largest number of decimal digits a Decimal can hold.
const MaxDigits = 18

var (
	// ErrDecimalSyntax is returned for text that is not a plain decimal number.
	ErrDecimalSyntax = errors.New("invalid decimal syntax")

	// ErrDecimalOverflow is returned when a value needs more than MaxDigits
	// digits or more than a slot's declared precision.
	ErrDecimalOverflow = errors.New("decimal overflow")
)

// Decimal is a fixed point number: unscaled * 10^-scale. It mirrors the
// packed and zoned decimal types of the host.
type Decimal struct {
	unscaled int64
	scale    int32
}

// NewDecimal returns unscaled * 10^-scale.
func NewDecimal(unscaled int64, scale int32) Decimal {
	return Decimal{unscaled: unscaled, scale: scale}
}

// ParseDecimal parses an optionally signed number such as "-12.50".
// Exponents are not accepted.
func ParseDecimal(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	orig := s
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" && frac == "" {
		return Decimal{}, fmt.Errorf("%w: %q", ErrDecimalSyntax, orig)
	}
	for _, c := range intPart + frac {
		if c < '0' || c > '9' {
			return Decimal{}, fmt.Errorf("%w: %q", ErrDecimalSyntax, orig)
		}
	}
	digits := strings.TrimLeft(intPart+frac, "0")
	for len(digits) > MaxDigits && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
		digits = digits[:len(digits)-1]
	}
	if len(digits) > MaxDigits {
		return Decimal{}, fmt.Errorf("%w: %q", ErrDecimalOverflow, orig)
	}
	var u int64
	if digits != "" {
		var err error
		u, err = strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return Decimal{}, fmt.Errorf("%w: %q", ErrDecimalOverflow, orig)
		}
	}
	if neg {
		u = -u
	}
	return Decimal{unscaled: u, scale: int32(len(frac))}, nil
}

// DecimalFromFloat rounds f to scale fractional digits.
func DecimalFromFloat(f float64, scale int32) (Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Decimal{}, fmt.Errorf("%w: %v", ErrDecimalSyntax, f)
	}
	return ParseDecimal(strconv.FormatFloat(f, 'f', int(scale), 64))
}

// Unscaled returns the integer coefficient.
func (d Decimal) Unscaled() int64 { return d.unscaled }

// Scale returns the number of fractional digits.
func (d Decimal) Scale() int32 { return d.scale }

// Digits returns the number of significant digits of the coefficient.
func (d Decimal) Digits() int {
	if d.unscaled == 0 {
		return 0
	}
	return len(strconv.FormatUint(absUint(d.unscaled), 10))
}

// Rescale returns d with exactly scale fractional digits, rounding half
// away from zero when digits are dropped.
func (d Decimal) Rescale(scale int32) (Decimal, error) {
	switch {
	case scale == d.scale:
		return d, nil
	case scale > d.scale:
		diff := scale - d.scale
		if d.unscaled == 0 {
			return Decimal{scale: scale}, nil
		}
		if int(diff)+d.Digits() > MaxDigits {
			return Decimal{}, ErrDecimalOverflow
		}
		return Decimal{unscaled: d.unscaled * pow10(diff), scale: scale}, nil
	default:
		diff := d.scale - scale
		if diff > MaxDigits {
			return Decimal{scale: scale}, nil
		}
		p := pow10(diff)
		q, r := d.unscaled/p, d.unscaled%p
		if r < 0 {
			r = -r
		}
		if r*2 >= p {
			if d.unscaled < 0 {
				q--
			} else {
				q++
			}
		}
		return Decimal{unscaled: q, scale: scale}, nil
	}
}

// Float64 converts d to the nearest float64. Precision beyond what a
// float64 can represent is lost.
func (d Decimal) Float64() float64 {
	f, _ := strconv.ParseFloat(d.String(), 64)
	return f
}

// Equal reports whether d and o denote the same number.
func (d Decimal) Equal(o Decimal) bool {
	s := d.scale
	if o.scale > s {
		s = o.scale
	}
	a, errA := d.Rescale(s)
	b, errB := o.Rescale(s)
	if errA != nil || errB != nil {
		return d.String() == o.String()
	}
	return a.unscaled == b.unscaled
}

func (d Decimal) String() string {
	digits := strconv.FormatUint(absUint(d.unscaled), 10)
	sign := ""
	if d.unscaled < 0 {
		sign = "-"
	}
	if d.scale <= 0 {
		return sign + digits + strings.Repeat("0", int(-d.scale))
	}
	if pad := int(d.scale) + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	cut := len(digits) - int(d.scale)
	return sign + digits[:cut] + "." + digits[cut:]
}

func absUint(v int64) uint64 {
	if v >= 0 {
		return uint64(v)
	}
	return uint64(-(v + 1)) + 1
}

func pow10(n int32) int64 {
	p := int64(1)
	for i := int32(0); i < n; i++ {
		p *= 10
	}
	return p
}
