// Package logging builds the slog loggers used across the daemon and CLI.
//
// It provides console and JSON handlers with multi-writer file output,
// shared field-name constants so every component logs item, stage, and run
// identifiers the same way, and a fanout handler for teeing records into
// additional sinks.
package logging
