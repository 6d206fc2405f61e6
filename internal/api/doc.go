// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal library models into transport-friendly DTOs
// that the CLI and other consumers can render without coupling to internal
// types.
//
// # Key Types
//
// Recording: transport representation of a library item with progress,
// artifact paths, tags, and error metadata.
//
// PipelineStatus: daemon running state, library counts, stage health, and
// last processed item.
//
// DaemonStatus: aggregated runtime information.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (library.Status,
// library.ContentType) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Metadata is passed through as json.RawMessage to
// avoid double-encoding.
package api
