// Package logging assembles structured slog loggers and formatting helpers used
// across serialapps.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standard field names (event_type, error_hint,
// impact, component, session_id) so every diagnostic the daemon writes has
// the same shape. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
