package progress

import (
	"encoding/json"
	"time"
)

// EventType discriminates the variants pushed over a run's event stream.
type EventType string

const (
	EventProgress        EventType = "progress"
	EventLog             EventType = "log"
	EventTranscriptChunk EventType = "transcript_chunk"
	EventDocumentChunk   EventType = "document_chunk"
	EventComplete        EventType = "complete"
	EventError           EventType = "error"
	EventHeartbeat       EventType = "heartbeat"
)

// StreamEvent is one unit pushed from the daemon to a stream consumer. The
// JSON shape is the wire contract shared by the SSE endpoints and the client
// transport; changing field names here breaks deployed consumers.
type StreamEvent struct {
	Type      EventType       `json:"type"`
	Step      string          `json:"step,omitempty"`
	Progress  *int            `json:"progress,omitempty"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorDetail is the structured payload carried in the Data field of error
// events. Type uses the run error taxonomy (api, data, quota, ...).
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorType classifies a failed run for the consumer-facing recovery panel.
type ErrorType string

const (
	ErrorAPI     ErrorType = "api"
	ErrorNetwork ErrorType = "network"
	ErrorData    ErrorType = "data"
	ErrorQuota   ErrorType = "quota"
	ErrorUnknown ErrorType = "unknown"
)

var knownErrorTypes = map[ErrorType]struct{}{
	ErrorAPI:     {},
	ErrorNetwork: {},
	ErrorData:    {},
	ErrorQuota:   {},
	ErrorUnknown: {},
}

// ParseErrorType normalizes a category string, falling back to unknown.
func ParseErrorType(value string) ErrorType {
	typ := ErrorType(value)
	if _, ok := knownErrorTypes[typ]; ok {
		return typ
	}
	return ErrorUnknown
}

// RunError is the typed error record a terminal error event produces.
type RunError struct {
	Type      ErrorType
	Message   string
	Details   string
	Timestamp time.Time
}

func intPtr(v int) *int { return &v }

// NewProgressEvent builds a progress event for the given pipeline step.
func NewProgressEvent(step string, percent int, message string) StreamEvent {
	return StreamEvent{
		Type:      EventProgress,
		Step:      step,
		Progress:  intPtr(percent),
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// NewChunkEvent builds a transcript or document chunk event.
func NewChunkEvent(kind EventType, text string) StreamEvent {
	return StreamEvent{Type: kind, Message: text, Timestamp: time.Now().UTC()}
}

// NewLogEvent builds an informational log event.
func NewLogEvent(message string) StreamEvent {
	return StreamEvent{Type: EventLog, Message: message, Timestamp: time.Now().UTC()}
}

// NewCompleteEvent builds the terminal success event.
func NewCompleteEvent(message string) StreamEvent {
	return StreamEvent{Type: EventComplete, Message: message, Timestamp: time.Now().UTC()}
}

// NewHeartbeatEvent builds a keepalive event carrying no state change.
func NewHeartbeatEvent() StreamEvent {
	return StreamEvent{Type: EventHeartbeat, Message: "heartbeat", Timestamp: time.Now().UTC()}
}

// NewErrorEvent builds the terminal failure event with a categorized payload.
func NewErrorEvent(category, message, details string) StreamEvent {
	data, _ := json.Marshal(ErrorDetail{Type: category, Details: details})
	return StreamEvent{
		Type:      EventError,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
