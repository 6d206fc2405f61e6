package main

import (
	"log/slog"

	"archivist/internal/config"
	"archivist/internal/daemon"
	"archivist/internal/docgen"
	"archivist/internal/embeddings"
	"archivist/internal/extract"
	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/pipeline"
	"archivist/internal/progress"
	"archivist/internal/services/llm"
	"archivist/internal/services/transcriber"
	"archivist/internal/staging"
	"archivist/internal/transcribe"
)

// buildDaemon assembles the store, stage handlers, pipeline manager, and
// daemon around the loaded configuration.
func buildDaemon(cfg *config.Config, logger *slog.Logger, logHub *logging.StreamHub) (*daemon.Daemon, error) {
	store, err := library.Open(cfg)
	if err != nil {
		return nil, err
	}

	hub := progress.NewHub(0)
	paths := staging.NewManager(cfg)

	speechClient := transcriber.NewClient(transcriber.Config{
		BaseURL:        cfg.Transcriber.BaseURL,
		APIKey:         cfg.Transcriber.APIKey,
		Model:          cfg.Transcriber.Model,
		Language:       cfg.Transcriber.Language,
		TimeoutSeconds: cfg.Transcriber.TimeoutSeconds,
	})
	llmClient := llm.NewClient(llm.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		EmbeddingsModel: cfg.LLM.EmbeddingsModel,
		TimeoutSeconds:  cfg.LLM.TimeoutSeconds,
	})

	manager := pipeline.NewManager(cfg, store, logger, hub)
	manager.ConfigureStages(pipeline.StageSet{
		Extractor:    extract.New(cfg, logger, hub, paths),
		Transcriber:  transcribe.New(cfg, logger, hub, paths, speechClient),
		DocGenerator: docgen.New(cfg, logger, hub, paths, llmClient),
		Embedder:     embeddings.New(cfg, logger, hub, paths, llmClient),
	})

	return daemon.New(daemon.Options{
		Config:   cfg,
		Store:    store,
		Logger:   logger,
		Pipeline: manager,
		Hub:      hub,
		LogHub:   logHub,
	})
}
