package preflight

import (
	"context"

	"archivist/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDiskSpace("Library disk space", cfg.Paths.LibraryDir),
		CheckBinary("FFmpeg", cfg.Extract.FFmpegBinary),
	}

	if cfg.Transcriber.BaseURL != "" {
		results = append(results, CheckTranscriber(ctx, cfg))
	}
	if cfg.LLM.APIKey != "" {
		results = append(results, CheckLLM(ctx, cfg))
	}
	return results
}
