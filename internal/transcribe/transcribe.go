// Package transcribe implements the speech-to-text pipeline stage. It streams
// transcript segments to the item's run feed as they arrive and persists the
// full transcript beside the source file.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"archivist/internal/config"
	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/progress"
	"archivist/internal/services"
	"archivist/internal/services/transcriber"
	"archivist/internal/stage"
	"archivist/internal/staging"
)

const transcriptArtifactName = "transcript.txt"

// Client is the slice of the transcription service this stage needs.
type Client interface {
	Transcribe(ctx context.Context, audioPath string, onSegment func(transcriber.Segment)) (transcriber.Result, error)
	HealthCheck(ctx context.Context) error
}

// Transcriber converts extracted audio into text.
type Transcriber struct {
	cfg    *config.Config
	logger *slog.Logger
	hub    *progress.Hub
	paths  *staging.Manager
	client Client
}

// New constructs the transcribe stage handler.
func New(cfg *config.Config, logger *slog.Logger, hub *progress.Hub, paths *staging.Manager, client Client) *Transcriber {
	return &Transcriber{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcribe"),
		hub:    hub,
		paths:  paths,
		client: client,
	}
}

// Prepare validates the extracted audio artifact exists.
func (t *Transcriber) Prepare(ctx context.Context, item *library.Item) error {
	if item.ContentType.HasEmbeddedText() {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare",
			"Text content does not require transcription", nil)
	}
	if strings.TrimSpace(item.ExtractedPath) == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare",
			"No extracted audio found; run extraction first", nil)
	}
	if _, err := os.Stat(item.ExtractedPath); err != nil {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare",
			"Extracted audio file is missing", err)
	}
	item.InitProgress("Transcribing", "Transcription started")
	return nil
}

// Execute transcribes the audio and writes the transcript artifact.
func (t *Transcriber) Execute(ctx context.Context, item *library.Item) error {
	pub := t.hub.NewPublisher(item.ID)
	pub.Progress(progress.StageTranscribe, 10, "Uploading audio for transcription")

	result, err := t.client.Transcribe(ctx, item.ExtractedPath, func(seg transcriber.Segment) {
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			pub.TranscriptChunk(text + " ")
		}
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcribe", "speech-to-text",
			"Transcription service failed", err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return services.Wrap(services.ErrExternalTool, "transcribe", "speech-to-text",
			"Transcription returned no text", nil)
	}

	dest := t.paths.ArtifactPath(item, transcriptArtifactName)
	if err := os.WriteFile(dest, []byte(result.Text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}

	item.TranscriptPath = dest
	item.SetProgressComplete("Transcribing", "Transcription complete")
	pub.Progress(progress.StageTranscribe, 100, "Completed")
	t.logger.Info("transcription complete",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("segments", len(result.Segments)),
		logging.Int("characters", len(result.Text)),
	)
	return nil
}

// HealthCheck verifies the transcription service is reachable.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if t.client == nil {
		return stage.Unhealthy("transcribe", "no transcription client configured")
	}
	if err := t.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("transcribe", err.Error())
	}
	return stage.Healthy("transcribe")
}
