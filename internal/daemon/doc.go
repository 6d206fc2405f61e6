// Package daemon hosts the long-running archivist process: it owns the
// library store, the processing pipeline, and the HTTP API, and uses a file
// lock to guarantee a single instance per machine.
package daemon
