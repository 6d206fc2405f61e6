package pipeline

import (
	"context"

	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/stage"
)

// StatusSummary represents lightweight pipeline diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastItem    *library.Item
	Library     library.HealthSummary
	StageHealth map[string]stage.Health
}

// Status returns the latest pipeline information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastItem := m.lastItem
	stages := make([]pipelineStage, 0, len(m.statusOrder))
	for _, status := range m.statusOrder {
		stages = append(stages, m.stageByStart[status])
	}
	m.mu.RUnlock()

	health, err := m.store.Health(ctx)
	if err != nil {
		m.logger.Warn("failed to read library health", logging.Error(err))
	}

	stageHealth := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		stageHealth[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, Library: health, StageHealth: stageHealth}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastItem != nil {
		cp := *lastItem
		summary.LastItem = &cp
	}
	return summary
}
