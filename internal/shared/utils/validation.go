package utils

import (
	"fmt"
	"regexp"
)

// String length limits
const (
	MaxPasswordLength = 128
	MaxLineLength     = 64 * 1024 // longest shell line accepted over the wire
)

// Regular expressions for validation
var (
	// UsernamePattern: leading letter or underscore, 3-20 chars total.
	UsernamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{2,19}$`)
	// GroupPattern mirrors UsernamePattern; groups share the namespace rules.
	GroupPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{2,19}$`)
	// EnvNamePattern: letters/digits/underscore, leading non-digit.
	EnvNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ReservedUsernames cannot be registered through useradd.
var ReservedUsernames = map[string]bool{
	"root":   true,
	"admin":  true,
	"system": true,
	"guest":  true,
}

// ValidateUsername checks username format.
func ValidateUsername(name string) error {
	if !UsernamePattern.MatchString(name) {
		return fmt.Errorf("invalid username %q: must be 3-20 characters, start with a letter or underscore", name)
	}
	return nil
}

// ValidatePassword checks password constraints.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password exceeds %d characters", MaxPasswordLength)
	}
	return nil
}

// ValidateEnvName checks an environment variable name.
func ValidateEnvName(name string) error {
	if !EnvNamePattern.MatchString(name) {
		return fmt.Errorf("invalid variable name %q", name)
	}
	return nil
}
