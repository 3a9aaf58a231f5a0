// Package config defines the copyset document that drives the copier and
// the daemon settings bound from flags and environment.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/containercopier/container-copier/internal/mask"
)

// DefaultPath is where the daemon looks for its copyset document.
const DefaultPath = "/config/container-copier.toml"

// Config is the parsed copyset document. It is immutable once loaded.
type Config struct {
	Copysets []Copyset `toml:"copysets" yaml:"copysets" json:"copysets" jsonschema:"required"`

	// path is the file the document was loaded from, for error messages.
	path string
}

// Copyset groups file copy rules that share base directories and a
// default event mask.
type Copyset struct {
	// Name identifies the copyset in logs.
	Name string `toml:"name" yaml:"name" json:"name" jsonschema:"required"`
	// Source is the base directory target sources are relative to.
	Source string `toml:"source" yaml:"source" json:"source" jsonschema:"required"`
	// Target is the base directory target destinations are relative to.
	Target string `toml:"target" yaml:"target" json:"target" jsonschema:"required"`
	// Events is the default event list. Absent means CREATE, DELETE, MODIFY.
	Events EventList `toml:"events,omitempty" yaml:"events,omitempty" json:"events,omitempty"`
	// Targets are the individual files to mirror, in order.
	Targets []Target `toml:"targets" yaml:"targets" json:"targets"`
}

// Target is one file to mirror within a copyset.
type Target struct {
	// Source is relative to the copyset source directory.
	Source string `toml:"source" yaml:"source" json:"source" jsonschema:"required"`
	// Target is relative to the copyset target directory. Defaults to Source.
	Target string `toml:"target,omitempty" yaml:"target,omitempty" json:"target,omitempty"`
	// Events overrides the copyset event list for this target only.
	Events EventList `toml:"events,omitempty" yaml:"events,omitempty" json:"events,omitempty"`
}

// EventList is a list of event names as written in the document. A nil
// list means the field was absent.
type EventList []string

// JSONSchema implements jsonschema.JSONSchema for the schema command.
func (EventList) JSONSchema() *jsonschema.Schema {
	return mask.Schema()
}

// Mask resolves the list, falling back when the list is absent.
func (l EventList) Mask(fallback mask.Mask) (mask.Mask, error) {
	if l == nil {
		return fallback, nil
	}
	if len(l) == 0 {
		return 0, fmt.Errorf("event list must not be empty")
	}
	return mask.Parse(l)
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Mask returns the copyset default event mask.
func (c Copyset) Mask() (mask.Mask, error) {
	return c.Events.Mask(mask.Default())
}

// RelativeTarget returns the destination path relative to the copyset
// target directory.
func (t Target) RelativeTarget() string {
	if t.Target == "" {
		return t.Source
	}
	return t.Target
}

// Validate checks every copyset and target. The first problem found is
// returned as an *Error.
func (c *Config) Validate() error {
	for i, set := range c.Copysets {
		field := fmt.Sprintf("copysets[%d]", i)
		if err := set.validate(); err != nil {
			return &Error{Path: c.path, Copyset: set.Name, Field: field + err.field, Err: err.err}
		}
	}
	return nil
}

type fieldError struct {
	field string
	err   error
}

func (c Copyset) validate() *fieldError {
	if c.Name == "" {
		return &fieldError{".name", ErrMissingField}
	}
	if c.Source == "" {
		return &fieldError{".source", ErrMissingField}
	}
	if c.Target == "" {
		return &fieldError{".target", ErrMissingField}
	}
	if _, err := c.Mask(); err != nil {
		return &fieldError{".events", err}
	}
	for i, target := range c.Targets {
		prefix := fmt.Sprintf(".targets[%d]", i)
		if target.Source == "" {
			return &fieldError{prefix + ".source", ErrMissingField}
		}
		if filepath.IsAbs(target.Source) {
			return &fieldError{prefix + ".source", fmt.Errorf("%w: %s", ErrAbsolutePath, target.Source)}
		}
		if filepath.IsAbs(target.Target) {
			return &fieldError{prefix + ".target", fmt.Errorf("%w: %s", ErrAbsolutePath, target.Target)}
		}
		if _, err := target.Events.Mask(0); err != nil {
			return &fieldError{prefix + ".events", err}
		}
	}
	return nil
}
