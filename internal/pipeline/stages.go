package pipeline

import (
	"archivist/internal/library"
	"archivist/internal/progress"
	"archivist/internal/stage"
)

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Extractor    stage.Handler
	Transcriber  stage.Handler
	DocGenerator stage.Handler
	Embedder     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      library.Status
	processingStatus library.Status
	doneStatus       library.Status
}

// ConfigureStages registers the concrete stage handlers the pipeline will run.
//
// Spoken content walks uploaded > extracted > transcribed > doc_generated >
// completed. Text-bearing content skips transcription, so at extracted the
// document stage takes over; that fork lives in textOverrides and is resolved
// per item by stageFor.
func (m *Manager) ConfigureStages(set StageSet) {
	byStart := make(map[library.Status]pipelineStage)
	textOverrides := make(map[library.Status]pipelineStage)
	order := make([]library.Status, 0, 4)

	add := func(stg pipelineStage) {
		byStart[stg.startStatus] = stg
		order = append(order, stg.startStatus)
	}

	if set.Extractor != nil {
		add(pipelineStage{
			name:             progress.StageExtract,
			handler:          set.Extractor,
			startStatus:      library.StatusUploaded,
			processingStatus: library.StatusExtracting,
			doneStatus:       library.StatusExtracted,
		})
	}
	if set.Transcriber != nil {
		add(pipelineStage{
			name:             progress.StageTranscribe,
			handler:          set.Transcriber,
			startStatus:      library.StatusExtracted,
			processingStatus: library.StatusTranscribing,
			doneStatus:       library.StatusTranscribed,
		})
	}
	if set.DocGenerator != nil {
		docStage := pipelineStage{
			name:             progress.StageDocument,
			handler:          set.DocGenerator,
			startStatus:      library.StatusTranscribed,
			processingStatus: library.StatusDocGenerating,
			doneStatus:       library.StatusDocGenerated,
		}
		add(docStage)
		docStage.startStatus = library.StatusExtracted
		textOverrides[library.StatusExtracted] = docStage
	}
	if set.Embedder != nil {
		add(pipelineStage{
			name:             progress.StageEmbeddings,
			handler:          set.Embedder,
			startStatus:      library.StatusDocGenerated,
			processingStatus: library.StatusEmbedding,
			doneStatus:       library.StatusCompleted,
		})
	}

	processing := make([]library.Status, 0, len(byStart))
	seen := make(map[library.Status]struct{})
	for _, stg := range byStart {
		if stg.processingStatus == "" {
			continue
		}
		if _, ok := seen[stg.processingStatus]; ok {
			continue
		}
		seen[stg.processingStatus] = struct{}{}
		processing = append(processing, stg.processingStatus)
	}

	m.mu.Lock()
	m.stageByStart = byStart
	m.textOverrides = textOverrides
	m.statusOrder = order
	m.processingStatuses = processing
	m.mu.Unlock()
}

// stageFor resolves the next stage for an item, honoring the text-content
// fork at extracted.
func (m *Manager) stageFor(item *library.Item) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if item.ContentType.HasEmbeddedText() {
		if stg, ok := m.textOverrides[item.Status]; ok {
			return stg, true
		}
	}
	stg, ok := m.stageByStart[item.Status]
	return stg, ok
}
