package library

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a library item.
type Status string

const (
	StatusUploading     Status = "uploading"
	StatusUploaded      Status = "uploaded"
	StatusExtracting    Status = "extracting"
	StatusExtracted     Status = "extracted"
	StatusTranscribing  Status = "transcribing"
	StatusTranscribed   Status = "transcribed"
	StatusDocGenerating Status = "doc_generating"
	StatusDocGenerated  Status = "doc_generated"
	StatusEmbedding     Status = "embedding"
	StatusCompleted     Status = "completed"
	StatusError         Status = "error"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusUploading,
	StatusUploaded,
	StatusExtracting,
	StatusExtracted,
	StatusTranscribing,
	StatusTranscribed,
	StatusDocGenerating,
	StatusDocGenerated,
	StatusEmbedding,
	StatusCompleted,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting:    {},
	StatusTranscribing:  {},
	StatusDocGenerating: {},
	StatusEmbedding:     {},
}

// ContentType classifies what kind of media an item holds. The type decides
// which pipeline stages run: text-bearing content skips transcription.
type ContentType string

const (
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentScreen   ContentType = "screen"
	ContentDocument ContentType = "document"
	ContentText     ContentType = "text"
)

var contentTypeSet = map[ContentType]struct{}{
	ContentVideo:    {},
	ContentAudio:    {},
	ContentScreen:   {},
	ContentDocument: {},
	ContentText:     {},
}

// ParseContentType converts a string into a known ContentType.
func ParseContentType(value string) (ContentType, bool) {
	normalized := ContentType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := contentTypeSet[normalized]
	return normalized, ok
}

// HasEmbeddedText reports whether the content carries its own text and can
// skip the transcription stages.
func (c ContentType) HasEmbeddedText() bool {
	return c == ContentDocument || c == ContentText
}

// ProcessingStep identifies a pipeline stage for reprocess requests.
type ProcessingStep string

const (
	StepExtract    ProcessingStep = "extract"
	StepTranscribe ProcessingStep = "transcribe"
	StepDocument   ProcessingStep = "document"
	StepEmbeddings ProcessingStep = "embeddings"
	StepAll        ProcessingStep = "all"
)

// ParseProcessingStep converts a string into a known ProcessingStep.
func ParseProcessingStep(value string) (ProcessingStep, bool) {
	step := ProcessingStep(strings.ToLower(strings.TrimSpace(value)))
	switch step {
	case StepExtract, StepTranscribe, StepDocument, StepEmbeddings, StepAll:
		return step, true
	}
	return "", false
}

// StartStatusForStep returns the status an item must be rolled back to so the
// pipeline re-runs from the given step. Text-bearing content never passes
// through the transcription statuses, so its document step restarts from
// extracted instead of transcribed.
func StartStatusForStep(step ProcessingStep, contentType ContentType) (Status, bool) {
	switch step {
	case StepAll, StepExtract:
		return StatusUploaded, true
	case StepTranscribe:
		if contentType.HasEmbeddedText() {
			return "", false
		}
		return StatusExtracted, true
	case StepDocument:
		if contentType.HasEmbeddedText() {
			return StatusExtracted, true
		}
		return StatusTranscribed, true
	case StepEmbeddings:
		return StatusDocGenerated, true
	}
	return "", false
}

// HealthSummary describes aggregated library counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Uploading  int
	Ready      int
	Processing int
	Failed     int
	Completed  int
}

// Item represents a library item persisted in SQLite.
type Item struct {
	ID              int64
	Title           string
	ContentType     ContentType
	Status          Status
	SourceFileName  string
	StagedPath      string
	LibraryPath     string
	ExtractedPath   string
	TranscriptPath  string
	DocumentPath    string
	EmbeddingsPath  string
	MetadataJSON    string
	ErrorMessage    string
	ErrorCategory   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	DeletedAt       *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsDeleted reports whether the item has been soft deleted.
func (i Item) IsDeleted() bool {
	return i.DeletedAt != nil
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved to support resume scenarios.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
	i.ErrorCategory = ""
}

// SetProgress updates all three progress fields atomically.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as errored with the given message and category.
// Clears the heartbeat and resets progress fields.
func (i *Item) SetFailed(message, category string) {
	i.Status = StatusError
	i.ErrorMessage = message
	i.ErrorCategory = category
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// Collection groups library items for browsing.
type Collection struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	ItemCount   int
}

// Tag is a free-form label attached to library items.
type Tag struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
