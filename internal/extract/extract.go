// Package extract implements the first pipeline stage: pulling a mono 16kHz
// audio track out of video and audio uploads, or the raw text out of
// text-bearing uploads, so downstream stages have a uniform input.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"archivist/internal/config"
	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/progress"
	"archivist/internal/services"
	"archivist/internal/stage"
	"archivist/internal/staging"
)

const (
	audioArtifactName = "audio.wav"
	textArtifactName  = "extracted.txt"
)

// Extractor prepares uploaded sources for transcription or document
// generation.
type Extractor struct {
	cfg           *config.Config
	logger        *slog.Logger
	hub           *progress.Hub
	paths         *staging.Manager
	ffmpegBinary  string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// New constructs the extract stage handler.
func New(cfg *config.Config, logger *slog.Logger, hub *progress.Hub, paths *staging.Manager) *Extractor {
	binary := strings.TrimSpace(cfg.Extract.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Extractor{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "extract"),
		hub:          hub,
		paths:        paths,
		ffmpegBinary: binary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// Prepare validates the item has a promoted source file to work from.
func (e *Extractor) Prepare(ctx context.Context, item *library.Item) error {
	if strings.TrimSpace(item.LibraryPath) == "" {
		return services.Wrap(services.ErrValidation, "extract", "prepare",
			"Item has no library source file; finalize the upload first", nil)
	}
	if _, err := os.Stat(item.LibraryPath); err != nil {
		return services.Wrap(services.ErrValidation, "extract", "prepare",
			"Source file is missing from the library", err)
	}
	item.InitProgress("Preparing media", "Extraction started")
	return nil
}

// Execute produces the extracted artifact and records its path on the item.
func (e *Extractor) Execute(ctx context.Context, item *library.Item) error {
	pub := e.hub.NewPublisher(item.ID)
	pub.Progress(progress.StageExtract, 10, "Reading source file")

	var (
		artifact string
		err      error
	)
	if item.ContentType.HasEmbeddedText() {
		artifact, err = e.extractText(item)
	} else {
		artifact, err = e.extractAudio(ctx, item, pub)
	}
	if err != nil {
		return err
	}

	item.ExtractedPath = artifact
	item.SetProgressComplete("Preparing media", "Extraction complete")
	pub.Progress(progress.StageExtract, 100, "Completed")
	e.logger.Info("extraction complete",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("artifact", artifact),
	)
	return nil
}

func (e *Extractor) extractAudio(ctx context.Context, item *library.Item, pub *progress.Publisher) (string, error) {
	dest := e.paths.ArtifactPath(item, audioArtifactName)
	pub.Progress(progress.StageExtract, 40, "Extracting audio track")

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", item.LibraryPath,
		"-vn", "-ac", "1", "-ar", "16000",
		dest,
	}
	if err := e.run(ctx, e.ffmpegBinary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "extract", "ffmpeg",
			"Audio extraction failed; check the source file is a valid recording", err)
	}
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "extract", "verify output",
			"Audio extraction produced no output", err)
	}
	return dest, nil
}

func (e *Extractor) extractText(item *library.Item) (string, error) {
	data, err := os.ReadFile(item.LibraryPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "extract", "read source",
			"Could not read the uploaded document", err)
	}
	if !utf8.Valid(data) {
		return "", services.Wrap(services.ErrValidation, "extract", "decode source",
			"Document is not valid UTF-8 text", nil)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "extract", "decode source",
			"Document contains no text", nil)
	}
	dest := e.paths.ArtifactPath(item, textArtifactName)
	if err := os.WriteFile(dest, []byte(text+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write extracted text: %w", err)
	}
	return dest, nil
}

func (e *Extractor) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// HealthCheck verifies the ffmpeg binary is available.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(e.ffmpegBinary); err != nil {
		return stage.Unhealthy("extract", fmt.Sprintf("ffmpeg not found: %v", err))
	}
	return stage.Healthy("extract")
}
