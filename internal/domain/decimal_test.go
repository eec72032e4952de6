package domain

import (
	"errors"
	"testing"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in        string
		wantStr   string
		wantScale int32
	}{
		{"-12.50", "-12.50", 2},
		{"0.05", "0.05", 2},
		{".5", "0.5", 1},
		{"+7", "7", 0},
		{"  42.0 ", "42.0", 1},
		{"000123", "123", 0},
		{"0", "0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDecimal(tt.in)
			if err != nil {
				t.Fatalf("ParseDecimal(%q) error = %v", tt.in, err)
			}
			if got := d.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
			if d.Scale() != tt.wantScale {
				t.Errorf("Scale() = %d, want %d", d.Scale(), tt.wantScale)
			}
		})
	}
}

func TestParseDecimal_Errors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrDecimalSyntax},
		{"-", ErrDecimalSyntax},
		{"abc", ErrDecimalSyntax},
		{"1e5", ErrDecimalSyntax},
		{"1.2.3", ErrDecimalSyntax},
		{"1234567890123456789", ErrDecimalOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if _, err := ParseDecimal(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("ParseDecimal(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestParseDecimal_TrailingZerosDoNotOverflow(t *testing.T) {
	d, err := ParseDecimal("1.5000000000000000000000")
	if err != nil {
		t.Fatalf("ParseDecimal() error = %v", err)
	}
	if !d.Equal(NewDecimal(15, 1)) {
		t.Errorf("got %s, want 1.5", d)
	}
}

func TestDecimal_Rescale(t *testing.T) {
	tests := []struct {
		name  string
		in    Decimal
		scale int32
		want  string
	}{
		{"round up", NewDecimal(12345, 3), 2, "12.35"},
		{"round down", NewDecimal(12344, 3), 2, "12.34"},
		{"negative half away from zero", NewDecimal(-12345, 3), 2, "-12.35"},
		{"widen", NewDecimal(15, 1), 3, "1.500"},
		{"same", NewDecimal(15, 1), 1, "1.5"},
		{"zero widen", NewDecimal(0, 0), 4, "0.0000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Rescale(tt.scale)
			if err != nil {
				t.Fatalf("Rescale() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Rescale(%d) = %s, want %s", tt.scale, got, tt.want)
			}
		})
	}
}

func TestDecimal_RescaleOverflow(t *testing.T) {
	d := NewDecimal(123456789012345678, 0)
	if _, err := d.Rescale(1); !errors.Is(err, ErrDecimalOverflow) {
		t.Errorf("Rescale() error = %v, want ErrDecimalOverflow", err)
	}
}

func TestDecimal_String(t *testing.T) {
	tests := []struct {
		in   Decimal
		want string
	}{
		{NewDecimal(12, -2), "1200"},
		{NewDecimal(-5, 3), "-0.005"},
		{NewDecimal(123456, 2), "1234.56"},
		{Decimal{}, "0"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDecimal_Float64(t *testing.T) {
	if got := NewDecimal(123456, 2).Float64(); got != 1234.56 {
		t.Errorf("Float64() = %v, want 1234.56", got)
	}
	if got := NewDecimal(-1, 1).Float64(); got != -0.1 {
		t.Errorf("Float64() = %v, want -0.1", got)
	}
}

func TestDecimalFromFloat(t *testing.T) {
	d, err := DecimalFromFloat(3.14159, 2)
	if err != nil {
		t.Fatalf("DecimalFromFloat() error = %v", err)
	}
	if d.String() != "3.14" {
		t.Errorf("got %s, want 3.14", d)
	}
	var zero float64
	if _, err := DecimalFromFloat(zero/zero, 2); !errors.Is(err, ErrDecimalSyntax) {
		t.Errorf("NaN error = %v, want ErrDecimalSyntax", err)
	}
}

func TestDecimal_Digits(t *testing.T) {
	if got := NewDecimal(0, 3).Digits(); got != 0 {
		t.Errorf("Digits() = %d, want 0", got)
	}
	if got := NewDecimal(-123, 1).Digits(); got != 3 {
		t.Errorf("Digits() = %d, want 3", got)
	}
}
