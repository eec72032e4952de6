package credential

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "padded", in: "c2VjcmV0MQ==", want: "secret1"},
		{name: "unpadded", in: "c2VjcmV0MQ", want: "secret1"},
		{name: "surrounding blanks", in: "  c2VjcmV0  ", want: "secret"},
		{name: "not base64", in: "!!!", wantErr: true},
		{name: "empty", in: " ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	if _, err := Decode(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("Decode(\"\") error = %v, want ErrEmpty", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	got, err := Decode(Encode("pa55 w0rd"))
	if err != nil || got != "pa55 w0rd" {
		t.Errorf("Decode(Encode()) = %q, %v", got, err)
	}
}

func TestCredentials(t *testing.T) {
	c, err := Credentials(" APPUSER ", "")
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if c.User != "APPUSER" || c.Password != "" {
		t.Errorf("Credentials() = %+v", c)
	}

	c, err = Credentials("APPUSER", "c2VjcmV0")
	if err != nil || c.Password != "secret" {
		t.Errorf("Credentials() = %+v, %v", c, err)
	}

	if _, err := Credentials("APPUSER", "%%%"); err == nil {
		t.Error("Credentials() expected error for invalid encoding")
	}
}
