// Package validate implements the client-side form field rules.
//
// Validators are pure and synchronous; they never touch the network.
package validate

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// Field names.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldNewPassword     = "newPassword"
	FieldCurrentPassword = "currentPassword"
)

// Length bounds (characters, not bytes).
const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
	PasswordMinLen = 6
	PasswordMaxLen = 20
)

// Public, stable errors. Their text is shown to the user as field feedback.
var (
	ErrUsernameCharset = errors.New("Username can only contain Latin lowercase letters, numbers, '_', '-', '.' and must begin with the letter")
	ErrUsernameLength  = errors.New("Username must contain 3 - 20 symbols")
	ErrEmailFormat     = errors.New("Non correct email format")
	ErrPasswordLength  = errors.New("Password must contain 6 - 20 symbols")
)

var (
	usernameRe = regexp.MustCompile(`^[a-z][a-z0-9_.\-]*$`)
	emailRe    = regexp.MustCompile(`(?i)^[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}$`)
)

// Username checks the charset rule first, then the length rule.
func Username(v string) error {
	if !usernameRe.MatchString(v) {
		return ErrUsernameCharset
	}
	n := utf8.RuneCountInString(v)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return ErrUsernameLength
	}
	return nil
}

// Email checks the local@domain.tld shape.
func Email(v string) error {
	if !emailRe.MatchString(v) {
		return ErrEmailFormat
	}
	return nil
}

// Password checks the length rule.
func Password(v string) error {
	n := utf8.RuneCountInString(v)
	if n < PasswordMinLen || n > PasswordMaxLen {
		return ErrPasswordLength
	}
	return nil
}

// OptionalPassword accepts the empty string, otherwise applies Password.
func OptionalPassword(v string) error {
	if v == "" {
		return nil
	}
	return Password(v)
}

// Rule validates one field value.
type Rule func(string) error

// DefaultRules maps every known field name to its rule.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		FieldUsername:        Username,
		FieldEmail:           Email,
		FieldPassword:        Password,
		FieldNewPassword:     OptionalPassword,
		FieldCurrentPassword: Password,
	}
}

// Field validates value under the default rule for name. Unknown fields always pass.
func Field(name, value string) error {
	rule, ok := DefaultRules()[name]
	if !ok {
		return nil
	}
	return rule(value)
}
