// Package config loads and validates archivist's TOML configuration.
//
// Configuration is resolved in three steps: Default() seeds every field,
// Load() overlays the user's config.toml, then normalize/Validate expand
// user paths and reject values that would break the daemon. Callers always
// receive a fully-populated Config and never need to re-check for blanks.
package config
