package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Recording describes a library item in a transport-friendly format.
type Recording struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	ContentType    string          `json:"contentType"`
	Status         string          `json:"status"`
	SourceFileName string          `json:"sourceFileName,omitempty"`
	LibraryPath    string          `json:"libraryPath,omitempty"`
	TranscriptPath string          `json:"transcriptPath,omitempty"`
	DocumentPath   string          `json:"documentPath,omitempty"`
	EmbeddingsPath string          `json:"embeddingsPath,omitempty"`
	Progress       Progress        `json:"progress"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	ErrorCategory  string          `json:"errorCategory,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	DeletedAt      string          `json:"deletedAt,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// Progress captures stage progress information for a recording.
type Progress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Collection describes a named grouping of recordings.
type Collection struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ItemCount   int    `json:"itemCount"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// Tag describes a label attached to recordings.
type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// PipelineStatus summarizes pipeline execution state.
type PipelineStatus struct {
	Running     bool          `json:"running"`
	Library     LibraryCounts `json:"library"`
	LastError   string        `json:"lastError,omitempty"`
	LastItem    *Recording    `json:"lastItem,omitempty"`
	StageHealth []StageHealth `json:"stageHealth"`
}

// LibraryCounts aggregates item counts per key lifecycle states.
type LibraryCounts struct {
	Total      int `json:"total"`
	Uploading  int `json:"uploading"`
	Ready      int `json:"ready"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	LibraryDBPath string         `json:"libraryDbPath"`
	LockFilePath  string         `json:"lockFilePath"`
	Pipeline      PipelineStatus `json:"pipeline"`
}

// CreateRecordingRequest is the payload for POST /api/recordings.
type CreateRecordingRequest struct {
	Title          string `json:"title"`
	ContentType    string `json:"contentType"`
	SourceFileName string `json:"sourceFileName"`
}

// CreateRecordingResponse returns the created recording and its upload URL.
type CreateRecordingResponse struct {
	Recording Recording `json:"recording"`
	UploadURL string    `json:"uploadUrl"`
}

// UploadResponse reports the staged byte count after a PUT upload.
type UploadResponse struct {
	Recording Recording `json:"recording"`
	BytesSize int64     `json:"bytes"`
}

// MetadataRequest sets free-form metadata on a recording.
type MetadataRequest struct {
	Title    string          `json:"title,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

// CollectionRequest creates a collection.
type CollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TagRequest creates a tag.
type TagRequest struct {
	Name string `json:"name"`
}

// RecordingListResponse wraps a collection of recordings.
type RecordingListResponse struct {
	Recordings []Recording `json:"recordings"`
	Total      int         `json:"total"`
}

// RecordingResponse wraps a single recording.
type RecordingResponse struct {
	Recording Recording `json:"recording"`
}

// CollectionListResponse wraps the known collections.
type CollectionListResponse struct {
	Collections []Collection `json:"collections"`
}

// TagListResponse wraps the known tags.
type TagListResponse struct {
	Tags []Tag `json:"tags"`
}

// LogEvent is one structured log line exposed over the API.
type LogEvent struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component,omitempty"`
	Stage     string `json:"stage,omitempty"`
	ItemID    int64  `json:"itemId,omitempty"`
}

// LogStreamResponse carries a page of log events plus the follow cursor.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
