package domain

import (
	"fmt"
	"strconv"
)

// Kind is the primitive type of a slot.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInteger
	KindDecimal
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string", "char":
		return KindString, nil
	case "integer", "int":
		return KindInteger, nil
	case "decimal", "double":
		return KindDecimal, nil
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// Value is the closed variant stored in a slot. It is implemented only by
// StringValue, IntValue and DecimalValue.
type Value interface {
	Kind() Kind
	String() string
	sealed()
}

// StringValue holds character data.
type StringValue string

// IntValue holds binary integer data.
type IntValue int64

// DecimalValue holds packed or zoned decimal data.
type DecimalValue Decimal

func (StringValue) Kind() Kind  { return KindString }
func (IntValue) Kind() Kind     { return KindInteger }
func (DecimalValue) Kind() Kind { return KindDecimal }

func (v StringValue) String() string  { return string(v) }
func (v IntValue) String() string     { return strconv.FormatInt(int64(v), 10) }
func (v DecimalValue) String() string { return Decimal(v).String() }

func (StringValue) sealed()  {}
func (IntValue) sealed()     {}
func (DecimalValue) sealed() {}

// ZeroValue returns the zero Value for kind.
func ZeroValue(k Kind) Value {
	switch k {
	case KindString:
		return StringValue("")
	case KindInteger:
		return IntValue(0)
	case KindDecimal:
		return DecimalValue{}
	default:
		panic(fmt.Sprintf("domain: unknown kind %d", k))
	}
}
