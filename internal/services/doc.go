// Package services holds the shared error taxonomy and context plumbing for
// the external service clients and pipeline stages.
//
// Stage errors are tagged with sentinel markers (validation, quota, external
// tool, ...) via Wrap so the pipeline manager and the run event stream can
// classify failures without string matching.
package services
