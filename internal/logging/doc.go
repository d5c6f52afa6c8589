// Package logging assembles structured slog loggers and formatting helpers used
// across taskq services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so lane workers can automatically
// tag log lines with task IDs, lanes, and run IDs. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
