// Package registry holds the ordered application list that dispatch codes
// index into, and the parser that turns a serial line into a code.
package registry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyCode marks a blank line. Callers treat it as a no-op.
	ErrEmptyCode = errors.New("empty dispatch code")
	// ErrInvalidCode marks a line that is not a base-10 integer.
	ErrInvalidCode = errors.New("invalid dispatch code")
	// ErrOutOfRange marks a code outside 0 <= code < Len().
	ErrOutOfRange = errors.New("dispatch code out of range")
)

// Registry is an immutable, index-addressed list of application commands.
type Registry struct {
	apps []string
}

// Entry pairs a dispatch code with the application it launches.
type Entry struct {
	Code        int
	Application string
}

// New copies names into a registry. Blank names are rejected so a code can
// never resolve to an empty command.
func New(names []string) (*Registry, error) {
	if len(names) == 0 {
		return nil, errors.New("application registry is empty")
	}
	apps := make([]string, len(names))
	for i, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, fmt.Errorf("application registry entry %d is blank", i)
		}
		apps[i] = trimmed
	}
	return &Registry{apps: apps}, nil
}

// Len returns the number of registered applications.
func (r *Registry) Len() int {
	return len(r.apps)
}

// Lookup resolves a dispatch code. Both bounds are enforced.
func (r *Registry) Lookup(code int) (string, error) {
	if code < 0 || code >= len(r.apps) {
		return "", fmt.Errorf("%w: %d (valid 0-%d)", ErrOutOfRange, code, len(r.apps)-1)
	}
	return r.apps[code], nil
}

// Entries lists every code and its application in code order.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.apps))
	for i, app := range r.apps {
		entries[i] = Entry{Code: i, Application: app}
	}
	return entries
}

// Names returns a copy of the application names in code order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.apps...)
}

// ParseCode trims surrounding whitespace and parses the remainder as a
// base-10 integer.
func ParseCode(line string) (int, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return 0, ErrEmptyCode
	}
	code, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidCode, trimmed, err)
	}
	return code, nil
}
