package config

import (
	"errors"
	"strings"
)

var (
	// ErrMissingField is returned when a required field is absent or empty.
	ErrMissingField = errors.New("required field missing")

	// ErrAbsolutePath is returned when a target path that must be joined
	// onto a base directory is absolute.
	ErrAbsolutePath = errors.New("path must be relative")

	// ErrNoCopysets is returned when the document has no copysets key.
	ErrNoCopysets = errors.New("no copysets defined")
)

// Error reports a malformed or invalid configuration document.
type Error struct {
	// Path is the configuration file, if known.
	Path string
	// Copyset is the name of the offending copyset, if known.
	Copyset string
	// Field locates the problem, e.g. "copysets[0].targets[2].events".
	Field string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Copyset != "" {
		b.WriteString(" (copyset ")
		b.WriteString(e.Copyset)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err came from loading or validating
// configuration.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}
