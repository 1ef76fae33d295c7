package ctf

import (
	"fmt"
	"net/mail"
	"strings"
)

const (
	MinPasswordLen = 6
	// MaxPasswordLen is bcrypt's input limit in bytes.
	MaxPasswordLen = 72
)

// NormalizeEmail trims s and accepts only a bare address, so the stored
// email is exactly the one used to log in and receive mail.
func NormalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return addr.Address, nil
}

func ValidatePassword(p string) error {
	switch {
	case len(p) < MinPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLen)
	case len(p) > MaxPasswordLen:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, MaxPasswordLen)
	}
	return nil
}
