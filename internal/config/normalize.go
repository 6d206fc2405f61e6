package config

import "strings"

// normalize expands user paths and backfills empty fields with defaults so the
// rest of the codebase never re-checks for blanks.
func (c *Config) normalize() error {
	defaults := Default()

	var err error
	if c.Paths.StagingDir, err = expandOrDefault(c.Paths.StagingDir, defaults.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.LibraryDir, err = expandOrDefault(c.Paths.LibraryDir, defaults.Paths.LibraryDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandOrDefault(c.Paths.LogDir, defaults.Paths.LogDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaults.Paths.APIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	if strings.TrimSpace(c.Transcriber.BaseURL) == "" {
		c.Transcriber.BaseURL = defaults.Transcriber.BaseURL
	}
	if strings.TrimSpace(c.Transcriber.Model) == "" {
		c.Transcriber.Model = defaults.Transcriber.Model
	}
	if c.Transcriber.TimeoutSeconds <= 0 {
		c.Transcriber.TimeoutSeconds = defaults.Transcriber.TimeoutSeconds
	}

	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = defaults.LLM.BaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaults.LLM.Model
	}
	if strings.TrimSpace(c.LLM.EmbeddingsModel) == "" {
		c.LLM.EmbeddingsModel = defaults.LLM.EmbeddingsModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaults.LLM.TimeoutSeconds
	}

	if strings.TrimSpace(c.Extract.FFmpegBinary) == "" {
		c.Extract.FFmpegBinary = defaults.Extract.FFmpegBinary
	}
	if c.Extract.TimeoutSeconds <= 0 {
		c.Extract.TimeoutSeconds = defaults.Extract.TimeoutSeconds
	}

	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaults.Notifications.RequestTimeout
	}
	if c.Notifications.DedupWindowSeconds <= 0 {
		c.Notifications.DedupWindowSeconds = defaults.Notifications.DedupWindowSeconds
	}

	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaults.Workflow.QueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaults.Workflow.ErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaults.Workflow.HeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaults.Workflow.HeartbeatTimeout
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaults.Logging.RetentionDays
	}

	return nil
}

func expandOrDefault(value, fallback string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = fallback
	}
	return ExpandPath(trimmed)
}
