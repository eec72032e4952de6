// Package credential decodes the host password supplied in configuration.
// The password is stored base64 encoded and decoded once at startup.
package credential

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/bft-labs/hostcall/internal/ports"
)

// ErrEmpty is returned when no encoded password is configured.
var ErrEmpty = errors.New("credential: empty password")

// Decode returns the plaintext of a base64 encoded password. Padded
// standard encoding is tried first, then unpadded.
func Decode(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", ErrEmpty
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		var rawErr error
		b, rawErr = base64.RawStdEncoding.DecodeString(encoded)
		if rawErr != nil {
			return "", fmt.Errorf("credential: decode password: %w", err)
		}
	}
	return string(b), nil
}

// Encode returns the configuration form of a plaintext password.
func Encode(plain string) string {
	return base64.StdEncoding.EncodeToString([]byte(plain))
}

// Credentials builds host credentials for user. An empty encoded password
// yields an empty password.
func Credentials(user, encoded string) (ports.Credentials, error) {
	c := ports.Credentials{User: strings.TrimSpace(user)}
	if strings.TrimSpace(encoded) == "" {
		return c, nil
	}
	pw, err := Decode(encoded)
	if err != nil {
		return ports.Credentials{}, err
	}
	c.Password = pw
	return c, nil
}
