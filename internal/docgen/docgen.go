// Package docgen implements the document generation pipeline stage. It turns a
// transcript or extracted text into a structured markdown document via the
// configured language model and streams the result to the item's run feed.
package docgen

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
	"archivist/internal/services/llm"
	"archivist/internal/stage"
	"archivist/internal/staging"
)

const documentArtifactName = "document.md"

// Client is the slice of the language model service this stage needs.
type Client interface {
	GenerateDocument(ctx context.Context, title, sourceText string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Generator produces the markdown document for a processed item.
type Generator struct {
	cfg    *config.Config
	logger *slog.Logger
	hub    *progress.Hub
	paths  *staging.Manager
	client Client
}

// New constructs the document generation stage handler.
func New(cfg *config.Config, logger *slog.Logger, hub *progress.Hub, paths *staging.Manager, client Client) *Generator {
	return &Generator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "docgen"),
		hub:    hub,
		paths:  paths,
		client: client,
	}
}

// sourcePath picks the text input for the document. Spoken content reads the
// transcript; text-bearing content reads the extraction output directly.
func sourcePath(item *library.Item) string {
	if item.ContentType.HasEmbeddedText() {
		return item.ExtractedPath
	}
	return item.TranscriptPath
}

// Prepare validates the source text artifact exists.
func (g *Generator) Prepare(ctx context.Context, item *library.Item) error {
	src := sourcePath(item)
	if strings.TrimSpace(src) == "" {
		return services.Wrap(services.ErrValidation, "docgen", "prepare",
			"No source text found; run the earlier stages first", nil)
	}
	if _, err := os.Stat(src); err != nil {
		return services.Wrap(services.ErrValidation, "docgen", "prepare",
			"Source text file is missing", err)
	}
	item.InitProgress("Generating document", "Document generation started")
	return nil
}

// Execute generates the document and writes the markdown artifact.
func (g *Generator) Execute(ctx context.Context, item *library.Item) error {
	pub := g.hub.NewPublisher(item.ID)
	pub.Progress(progress.StageDocument, 10, "Reading source text")

	src := sourcePath(item)
	data, err := os.ReadFile(src)
	if err != nil {
		return services.Wrap(services.ErrValidation, "docgen", "read source",
			"Could not read the source text", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return services.Wrap(services.ErrValidation, "docgen", "read source",
			"Source text is empty", nil)
	}

	pub.Progress(progress.StageDocument, 30, "Generating document")
	doc, err := g.client.GenerateDocument(ctx, item.Title, text)
	if err != nil {
		if llm.IsQuotaError(err) {
			return services.Wrap(services.ErrQuota, "docgen", "language model",
				"Language model quota exhausted; check your plan and billing", err)
		}
		return services.Wrap(services.ErrExternalTool, "docgen", "language model",
			"Document generation failed", err)
	}
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return services.Wrap(services.ErrExternalTool, "docgen", "language model",
			"Language model returned an empty document", nil)
	}

	for _, para := range strings.Split(doc, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		pub.DocumentChunk(para + "\n\n")
	}

	dest := g.paths.ArtifactPath(item, documentArtifactName)
	if err := os.WriteFile(dest, []byte(doc+"\n"), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	item.DocumentPath = dest
	item.SetProgressComplete("Generating document", "Document generated")
	pub.Progress(progress.StageDocument, 100, "Completed")
	g.logger.Info("document generated",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("characters", len(doc)),
	)
	return nil
}

// HealthCheck verifies the language model endpoint is reachable.
func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	if g.client == nil {
		return stage.Unhealthy("docgen", "no language model client configured")
	}
	if err := g.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("docgen", err.Error())
	}
	return stage.Healthy("docgen")
}
