// Package preflight validates external dependencies and directory access
// before the daemon starts processing. Checks return structured results so
// the daemon can log failures with remediation hints and the status command
// can render them.
package preflight
