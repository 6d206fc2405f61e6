// Package embeddings implements the final pipeline stage. It splits the
// generated document into chunks, requests an embedding vector for each, and
// writes the vectors to a JSON artifact beside the document.
package embeddings

import (
	"context"
	"encoding/json"
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

const (
	embeddingsArtifactName = "embeddings.json"

	// chunkTargetChars bounds each embedding input. Paragraphs accumulate
	// into a chunk until the next one would push it past the target.
	chunkTargetChars = 1000
)

// Client is the slice of the language model service this stage needs.
type Client interface {
	Embeddings(ctx context.Context, inputs []string) ([][]float64, error)
	HealthCheck(ctx context.Context) error
}

// Chunk pairs a document excerpt with its embedding vector.
type Chunk struct {
	Index  int       `json:"index"`
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

// Artifact is the persisted embeddings payload.
type Artifact struct {
	Model  string  `json:"model"`
	Chunks []Chunk `json:"chunks"`
}

// Embedder computes and stores embedding vectors for a generated document.
type Embedder struct {
	cfg    *config.Config
	logger *slog.Logger
	hub    *progress.Hub
	paths  *staging.Manager
	client Client
}

// New constructs the embeddings stage handler.
func New(cfg *config.Config, logger *slog.Logger, hub *progress.Hub, paths *staging.Manager, client Client) *Embedder {
	return &Embedder{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "embeddings"),
		hub:    hub,
		paths:  paths,
		client: client,
	}
}

// Prepare validates the generated document exists.
func (e *Embedder) Prepare(ctx context.Context, item *library.Item) error {
	if strings.TrimSpace(item.DocumentPath) == "" {
		return services.Wrap(services.ErrValidation, "embeddings", "prepare",
			"No generated document found; run document generation first", nil)
	}
	if _, err := os.Stat(item.DocumentPath); err != nil {
		return services.Wrap(services.ErrValidation, "embeddings", "prepare",
			"Generated document file is missing", err)
	}
	item.InitProgress("Embedding", "Embedding started")
	return nil
}

// Execute chunks the document, embeds each chunk, and writes the artifact.
func (e *Embedder) Execute(ctx context.Context, item *library.Item) error {
	pub := e.hub.NewPublisher(item.ID)
	pub.Progress(progress.StageEmbeddings, 10, "Reading document")

	data, err := os.ReadFile(item.DocumentPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "embeddings", "read document",
			"Could not read the generated document", err)
	}
	inputs := SplitDocument(string(data))
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "embeddings", "chunk document",
			"Generated document contains no text to embed", nil)
	}

	pub.Progress(progress.StageEmbeddings, 40, fmt.Sprintf("Embedding %d chunks", len(inputs)))
	vectors, err := e.client.Embeddings(ctx, inputs)
	if err != nil {
		if llm.IsQuotaError(err) {
			return services.Wrap(services.ErrQuota, "embeddings", "language model",
				"Embedding quota exhausted; check your plan and billing", err)
		}
		return services.Wrap(services.ErrExternalTool, "embeddings", "language model",
			"Embedding request failed", err)
	}
	if len(vectors) != len(inputs) {
		return services.Wrap(services.ErrExternalTool, "embeddings", "language model",
			fmt.Sprintf("Embedding count mismatch: sent %d chunks, got %d vectors", len(inputs), len(vectors)), nil)
	}

	artifact := Artifact{Model: e.cfg.LLM.EmbeddingsModel}
	for i, input := range inputs {
		artifact.Chunks = append(artifact.Chunks, Chunk{Index: i, Text: input, Vector: vectors[i]})
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	dest := e.paths.ArtifactPath(item, embeddingsArtifactName)
	if err := os.WriteFile(dest, payload, 0o644); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}

	item.EmbeddingsPath = dest
	item.SetProgressComplete("Embedding", "Embeddings stored")
	pub.Progress(progress.StageEmbeddings, 100, "Completed")
	e.logger.Info("embeddings stored",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("chunks", len(inputs)),
	)
	return nil
}

// SplitDocument breaks markdown text into embedding-sized chunks on paragraph
// boundaries. A single oversized paragraph becomes its own chunk rather than
// being split mid-sentence.
func SplitDocument(text string) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > chunkTargetChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

// HealthCheck verifies the embeddings endpoint is reachable.
func (e *Embedder) HealthCheck(ctx context.Context) stage.Health {
	if e.client == nil {
		return stage.Unhealthy("embeddings", "no language model client configured")
	}
	if err := e.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("embeddings", err.Error())
	}
	return stage.Healthy("embeddings")
}
