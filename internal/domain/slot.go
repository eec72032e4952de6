package domain

import "fmt"

// Usage tells whether a parameter is sent to the host, returned, or both.
type Usage uint8

const (
	UsageInherit Usage = iota
	UsageInput
	UsageOutput
	UsageInputOutput
)

func (u Usage) String() string {
	switch u {
	case UsageInput:
		return "input"
	case UsageOutput:
		return "output"
	case UsageInputOutput:
		return "inputoutput"
	default:
		return "inherit"
	}
}

// Slot is one primitive parameter declared by a call-document template.
type Slot struct {
	// Path is the canonical path relative to the program.
	Path string

	Kind Kind

	// Length is the character length for strings, the byte length (2, 4
	// or 8) for integers and the number of digits for decimals.
	Length int

	// Scale is the number of fractional digits of a decimal slot.
	Scale int32

	// Unsigned marks integer slots declared with an unsigned precision.
	Unsigned bool

	// Counts holds the repetition count of every array element on the path,
	// outermost first. A scalar slot has no counts.
	Counts []int

	Usage Usage
}

// Dims returns the number of indices needed to address one element.
func (s Slot) Dims() int { return len(s.Counts) }

// CheckIndex validates index against the slot's dimensions. A nil index
// addresses a scalar slot.
func (s Slot) CheckIndex(index []int) error {
	if len(index) != len(s.Counts) {
		return fmt.Errorf("%w: %s needs %d indices, got %d", ErrIndexMismatch, s.Path, len(s.Counts), len(index))
	}
	for i, n := range index {
		if n < 0 || n >= s.Counts[i] {
			return fmt.Errorf("%w: %s index %d not in [0,%d)", ErrIndexOutOfRange, s.Path, n, s.Counts[i])
		}
	}
	return nil
}
