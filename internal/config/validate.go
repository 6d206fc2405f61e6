package config

import (
	"fmt"
	"strings"
)

var validLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks the configuration for values that would break the daemon at
// runtime. It is called after normalize, so empty fields are already filled.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return fmt.Errorf("paths.staging_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return fmt.Errorf("paths.library_dir must not be empty")
	}
	if c.Paths.StagingDir == c.Paths.LibraryDir {
		return fmt.Errorf("paths.staging_dir and paths.library_dir must differ")
	}
	if _, ok := validLogFormats[strings.ToLower(c.Logging.Format)]; !ok {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if _, ok := validLogLevels[strings.ToLower(c.Logging.Level)]; !ok {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}
