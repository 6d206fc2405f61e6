package progress

import (
	"encoding/json"
	"strings"
	"time"
)

// StageStatus is the lifecycle of one displayed pipeline stage.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageError      StageStatus = "error"
)

// Stage is one user-visible step of a processing run. Stages live in
// insertion order, which the reducer treats as pipeline order.
type Stage struct {
	ID       string
	Label    string
	Status   StageStatus
	Progress int
	Benefit  string
	Sublabel string
}

// completedLabelPlaceholder is the server's generic completion message; it
// never replaces a more descriptive label already on screen.
const completedLabelPlaceholder = "Completed"

const defaultProgressPercent = 50

// autoAdvancePercent is the optimistic progress shown for a stage the reducer
// predicts has started but has not yet reported.
const autoAdvancePercent = 5

const speedSmoothing = 0.7

// Reducer folds a run's stream events into an ordered stage list plus the
// auxiliary scalars consumers render: streamed text, speed estimate, elapsed
// time, and the terminal completion or error state.
//
// A reducer belongs to exactly one run and is not safe for concurrent use;
// the transport is its only writer.
type Reducer struct {
	stages []*Stage
	index  map[string]*Stage

	activeID  string
	text      strings.Builder
	textKind  string
	speed     float64
	lastChunk time.Time
	startedAt time.Time
	logs      []string

	done   bool
	runErr *RunError

	now func() time.Time
}

// NewReducer builds a reducer pre-populated with placeholder stages so the
// consumer sees the full pipeline before the first event arrives. Pass the
// result of PipelineFor, or nil to populate stages lazily from events.
func NewReducer(stageIDs []string) *Reducer {
	r := &Reducer{
		index: make(map[string]*Stage, len(stageIDs)),
		now:   time.Now,
	}
	for _, id := range stageIDs {
		r.ensureStage(id)
	}
	return r
}

// ensureStage returns the stage for id, creating a pending placeholder on
// first reference. Unknown ids fall back to the raw id as the label.
func (r *Reducer) ensureStage(id string) *Stage {
	if st, ok := r.index[id]; ok {
		return st
	}
	st := &Stage{ID: id, Label: id, Status: StagePending}
	if cfg, ok := stageConfigs[id]; ok {
		st.Label = cfg.Label
		st.Benefit = cfg.Benefit
		st.Sublabel = cfg.Sublabel
	}
	r.stages = append(r.stages, st)
	r.index[id] = st
	return st
}

// Apply folds one event into the run state. Events arriving after a terminal
// complete or error are ignored.
func (r *Reducer) Apply(evt StreamEvent) {
	if r.done || r.runErr != nil {
		return
	}
	if r.startedAt.IsZero() {
		r.startedAt = r.now()
	}

	switch evt.Type {
	case EventProgress:
		r.applyProgress(evt)
	case EventTranscriptChunk:
		r.applyChunk("transcript", evt.Message)
	case EventDocumentChunk:
		r.applyChunk("document", evt.Message)
	case EventComplete:
		r.applyComplete()
	case EventError:
		r.applyError(evt)
	case EventLog:
		r.logs = append(r.logs, evt.Message)
	case EventHeartbeat:
		// Keepalive only.
	default:
		// Unrecognized event types are skipped so newer daemons can add
		// variants without breaking older consumers.
	}
}

func (r *Reducer) applyProgress(evt StreamEvent) {
	if evt.Step == "" {
		return
	}
	st := r.ensureStage(MapJobTypeToStageID(evt.Step))
	wasCompleted := st.Status == StageCompleted

	percent := defaultProgressPercent
	if evt.Progress != nil {
		percent = clampPercent(*evt.Progress)
	}
	st.Progress = percent
	if percent == 100 {
		st.Status = StageCompleted
	} else {
		st.Status = StageInProgress
		r.activeID = st.ID
	}
	if msg := strings.TrimSpace(evt.Message); msg != "" && msg != completedLabelPlaceholder {
		st.Label = msg
	}

	// Optimistically start the next stage the moment this one completes so
	// the display never sits frozen between backend jobs. The prediction can
	// be wrong if the server runs stages out of list order.
	if st.Status == StageCompleted && !wasCompleted {
		r.autoAdvance()
	}
}

func (r *Reducer) autoAdvance() {
	for _, st := range r.stages {
		if st.Status == StagePending {
			st.Status = StageInProgress
			st.Progress = autoAdvancePercent
			r.activeID = st.ID
			return
		}
	}
}

func (r *Reducer) applyChunk(kind, text string) {
	r.text.WriteString(text)
	r.textKind = kind

	now := r.now()
	prev := r.lastChunk
	if prev.IsZero() {
		prev = r.startedAt
	}
	if dt := now.Sub(prev).Seconds(); dt > 0 {
		instant := float64(len(text)) / dt
		if r.speed == 0 {
			r.speed = instant
		} else {
			r.speed = r.speed*speedSmoothing + instant*(1-speedSmoothing)
		}
	}
	r.lastChunk = now
}

// applyComplete forces every started stage to a finished state. Error stages
// are deliberately left untouched so a completed run never masks a failure
// the consumer has already been shown.
func (r *Reducer) applyComplete() {
	for _, st := range r.stages {
		if st.Status == StageInProgress || st.Status == StageCompleted {
			st.Status = StageCompleted
			st.Progress = 100
		}
	}
	r.done = true
}

func (r *Reducer) applyError(evt StreamEvent) {
	var detail ErrorDetail
	if len(evt.Data) > 0 {
		_ = json.Unmarshal(evt.Data, &detail)
	}
	typ := ErrorAPI
	if detail.Type != "" {
		typ = ParseErrorType(detail.Type)
	}
	timestamp := evt.Timestamp
	if timestamp.IsZero() {
		timestamp = r.now()
	}
	r.runErr = &RunError{
		Type:      typ,
		Message:   evt.Message,
		Details:   detail.Details,
		Timestamp: timestamp,
	}
	if st, ok := r.index[r.activeID]; ok && st.Status == StageInProgress {
		st.Status = StageError
	}
}

// Fail records a transport-level failure (connection drop before a terminal
// event). It follows the same terminal semantics as a server error event.
func (r *Reducer) Fail(typ ErrorType, message string) {
	if r.done || r.runErr != nil {
		return
	}
	r.runErr = &RunError{Type: typ, Message: message, Timestamp: r.now()}
	if st, ok := r.index[r.activeID]; ok && st.Status == StageInProgress {
		st.Status = StageError
	}
}

// Stages returns a snapshot of the stage list in pipeline order.
func (r *Reducer) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	for i, st := range r.stages {
		out[i] = *st
	}
	return out
}

// Done reports whether the run reached terminal success.
func (r *Reducer) Done() bool { return r.done }

// Err returns the terminal error record, if any.
func (r *Reducer) Err() *RunError { return r.runErr }

// Terminal reports whether the run can accept further events.
func (r *Reducer) Terminal() bool { return r.done || r.runErr != nil }

// Text returns the accumulated streamed transcript or document text.
func (r *Reducer) Text() string { return r.text.String() }

// TextKind reports which chunk variant filled the text buffer.
func (r *Reducer) TextKind() string { return r.textKind }

// Speed returns the smoothed processing speed in characters per second.
func (r *Reducer) Speed() float64 { return r.speed }

// Logs returns the informational log lines received so far.
func (r *Reducer) Logs() []string {
	return append([]string(nil), r.logs...)
}

// ActiveStageID returns the stage currently marked in progress.
func (r *Reducer) ActiveStageID() string { return r.activeID }

// Elapsed returns the wall time since the first event.
func (r *Reducer) Elapsed() time.Duration {
	if r.startedAt.IsZero() {
		return 0
	}
	return r.now().Sub(r.startedAt)
}

// OverallProgress averages stage progress into a single 0-100 figure.
func (r *Reducer) OverallProgress() int {
	if len(r.stages) == 0 {
		return 0
	}
	total := 0
	for _, st := range r.stages {
		total += st.Progress
	}
	return total / len(r.stages)
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
