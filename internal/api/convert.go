package api

import (
	"encoding/json"
	"slices"

	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/pipeline"
)

// FromItem converts a library record to its API representation.
func FromItem(item *library.Item) Recording {
	if item == nil {
		return Recording{}
	}

	dto := Recording{
		ID:             item.ID,
		Title:          item.Title,
		ContentType:    string(item.ContentType),
		Status:         string(item.Status),
		SourceFileName: item.SourceFileName,
		LibraryPath:    item.LibraryPath,
		TranscriptPath: item.TranscriptPath,
		DocumentPath:   item.DocumentPath,
		EmbeddingsPath: item.EmbeddingsPath,
		Progress: Progress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		ErrorMessage:  item.ErrorMessage,
		ErrorCategory: item.ErrorCategory,
	}

	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if item.DeletedAt != nil {
		dto.DeletedAt = item.DeletedAt.UTC().Format(dateTimeFormat)
	}
	if raw := item.MetadataJSON; raw != "" {
		dto.Metadata = json.RawMessage(raw)
	}
	return dto
}

// FromItems converts a slice of library records into API DTOs.
func FromItems(items []*library.Item) []Recording {
	if len(items) == 0 {
		return nil
	}
	out := make([]Recording, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item))
	}
	return out
}

// FromCollection converts a collection record.
func FromCollection(c *library.Collection) Collection {
	if c == nil {
		return Collection{}
	}
	dto := Collection{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ItemCount:   c.ItemCount,
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromTag converts a tag record.
func FromTag(tg *library.Tag) Tag {
	if tg == nil {
		return Tag{}
	}
	dto := Tag{ID: tg.ID, Name: tg.Name}
	if !tg.CreatedAt.IsZero() {
		dto.CreatedAt = tg.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromHealthSummary converts library health counts.
func FromHealthSummary(h library.HealthSummary) LibraryCounts {
	return LibraryCounts{
		Total:      h.Total,
		Uploading:  h.Uploading,
		Ready:      h.Ready,
		Processing: h.Processing,
		Failed:     h.Failed,
		Completed:  h.Completed,
	}
}

// FromLogEvents converts captured log records for transport.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		converted := LogEvent{
			Sequence:  evt.Sequence,
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Stage:     evt.Stage,
			ItemID:    evt.ItemID,
		}
		if !evt.Timestamp.IsZero() {
			converted.Timestamp = evt.Timestamp.UTC().Format(dateTimeFormat)
		}
		out = append(out, converted)
	}
	return out
}

// FromStatusSummary converts a pipeline status summary to API payload.
func FromStatusSummary(summary pipeline.StatusSummary) PipelineStatus {
	healthNames := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		healthNames = append(healthNames, name)
	}
	slices.Sort(healthNames)

	health := make([]StageHealth, 0, len(healthNames))
	for _, name := range healthNames {
		h := summary.StageHealth[name]
		health = append(health, StageHealth{
			Name:   name,
			Ready:  h.Ready,
			Detail: h.Detail,
		})
	}

	status := PipelineStatus{
		Running:     summary.Running,
		Library:     FromHealthSummary(summary.Library),
		StageHealth: health,
	}
	if summary.LastError != "" {
		status.LastError = summary.LastError
	}
	if summary.LastItem != nil {
		last := FromItem(summary.LastItem)
		status.LastItem = &last
	}
	return status
}
