package progress

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func newTestReducer(t *testing.T, contentType string) (*Reducer, *time.Time) {
	t.Helper()
	r := NewReducer(PipelineFor(contentType))
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, &clock
}

func progressEvent(step string, percent int, message string) StreamEvent {
	return StreamEvent{Type: EventProgress, Step: step, Progress: intPtr(percent), Message: message}
}

func stageByID(t *testing.T, r *Reducer, id string) Stage {
	t.Helper()
	for _, st := range r.Stages() {
		if st.ID == id {
			return st
		}
	}
	t.Fatalf("stage %q not found", id)
	return Stage{}
}

func TestReducerPrePopulatesPipeline(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	stages := r.Stages()
	want := []string{StageExtract, StageTranscribe, StageDocument, StageEmbeddings}
	if len(stages) != len(want) {
		t.Fatalf("got %d stages, want %d", len(stages), len(want))
	}
	for i, id := range want {
		if stages[i].ID != id {
			t.Fatalf("stage[%d] = %q, want %q", i, stages[i].ID, id)
		}
		if stages[i].Status != StagePending {
			t.Fatalf("stage %q starts %q, want pending", id, stages[i].Status)
		}
	}
}

func TestReducerTextPipelineSkipsTranscribe(t *testing.T) {
	r, _ := newTestReducer(t, "document")
	for _, st := range r.Stages() {
		if st.ID == StageTranscribe {
			t.Fatal("document pipeline must not contain the transcribe stage")
		}
	}
}

func TestAutoAdvanceOnEachCompletion(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	steps := []string{StageExtract, StageTranscribe, StageDocument}
	next := []string{StageTranscribe, StageDocument, StageEmbeddings}

	for i, step := range steps {
		r.Apply(progressEvent(step, 100, "Completed"))
		advanced := stageByID(t, r, next[i])
		if advanced.Status != StageInProgress {
			t.Fatalf("after completing %q, %q is %q, want in_progress", step, next[i], advanced.Status)
		}
		if advanced.Progress != 5 {
			t.Fatalf("auto-advanced stage progress = %d, want 5", advanced.Progress)
		}
		if r.ActiveStageID() != next[i] {
			t.Fatalf("active stage = %q, want %q", r.ActiveStageID(), next[i])
		}
	}
}

func TestReplayedCompletionDoesNotAdvanceTwice(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(progressEvent(StageExtract, 100, "Completed"))
	// Knock the auto-advanced stage back down via a fresh progress report,
	// then replay the completion. The guard is a fresh transition into
	// completed, so the replay must not advance anything further.
	r.Apply(progressEvent(StageTranscribe, 10, "Transcribing..."))
	r.Apply(progressEvent(StageExtract, 100, "Completed"))

	if st := stageByID(t, r, StageDocument); st.Status != StagePending {
		t.Fatalf("document stage = %q after replay, want pending", st.Status)
	}
}

func TestProgressDefaultsAndLabelRules(t *testing.T) {
	r, _ := newTestReducer(t, "video")

	// Missing percent defaults to 50.
	r.Apply(StreamEvent{Type: EventProgress, Step: StageExtract, Message: "Reading file"})
	st := stageByID(t, r, StageExtract)
	if st.Progress != 50 || st.Status != StageInProgress {
		t.Fatalf("defaulted stage = %+v", st)
	}
	if st.Label != "Reading file" {
		t.Fatalf("label = %q, want event message", st.Label)
	}

	// The literal placeholder never overwrites a descriptive label.
	r.Apply(progressEvent(StageExtract, 100, "Completed"))
	if st := stageByID(t, r, StageExtract); st.Label != "Reading file" {
		t.Fatalf("placeholder overwrote label: %q", st.Label)
	}

	// Empty messages preserve the existing label too.
	r.Apply(progressEvent(StageTranscribe, 20, ""))
	if st := stageByID(t, r, StageTranscribe); st.Label == "" {
		t.Fatal("empty message cleared label")
	}
}

func TestUnknownStepCreatesLazyStage(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(progressEvent("watermark", 30, ""))
	st := stageByID(t, r, "watermark")
	if st.Status != StageInProgress || st.Progress != 30 {
		t.Fatalf("lazy stage = %+v", st)
	}
	// Identity fallback keeps the raw id visible when nothing better exists.
	if st.Label != "watermark" {
		t.Fatalf("lazy stage label = %q, want raw job type", st.Label)
	}
}

func TestCompleteForcesStartedStagesOnly(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(progressEvent(StageExtract, 100, "Completed"))
	r.Apply(progressEvent(StageTranscribe, 40, "Transcribing..."))
	r.Apply(StreamEvent{Type: EventError, Message: "transcription failed"})

	// The run is terminal; reset terminality to exercise the complete rule
	// against a list containing an error stage.
	r.runErr = nil
	r.Apply(StreamEvent{Type: EventComplete})

	if !r.Done() {
		t.Fatal("run not marked done")
	}
	if st := stageByID(t, r, StageExtract); st.Status != StageCompleted || st.Progress != 100 {
		t.Fatalf("extract = %+v", st)
	}
	// complete never touches error stages.
	if st := stageByID(t, r, StageTranscribe); st.Status != StageError {
		t.Fatalf("error stage overwritten by complete: %+v", st)
	}
	// Untouched pending stages stay pending.
	if st := stageByID(t, r, StageEmbeddings); st.Status != StagePending {
		t.Fatalf("pending stage mutated by complete: %+v", st)
	}
}

func TestErrorMarksExactlyActiveStage(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(progressEvent(StageExtract, 100, "Completed"))
	r.Apply(progressEvent(StageTranscribe, 60, "Transcribing..."))

	data, _ := json.Marshal(ErrorDetail{Type: "quota", Details: "plan limit reached"})
	r.Apply(StreamEvent{Type: EventError, Message: "processing failed", Data: data})

	if st := stageByID(t, r, StageTranscribe); st.Status != StageError {
		t.Fatalf("active stage = %q, want error", st.Status)
	}
	if st := stageByID(t, r, StageExtract); st.Status != StageCompleted {
		t.Fatalf("completed stage touched by error: %q", st.Status)
	}
	if st := stageByID(t, r, StageDocument); st.Status != StagePending {
		t.Fatalf("pending stage touched by error: %q", st.Status)
	}

	runErr := r.Err()
	if runErr == nil {
		t.Fatal("missing run error")
	}
	if runErr.Type != ErrorQuota || runErr.Details != "plan limit reached" {
		t.Fatalf("run error = %+v", runErr)
	}

	// Terminal: later events are ignored.
	r.Apply(progressEvent(StageDocument, 10, ""))
	if st := stageByID(t, r, StageDocument); st.Status != StagePending {
		t.Fatal("event applied after terminal error")
	}
}

func TestErrorWithoutDataDefaultsToAPI(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(progressEvent(StageExtract, 10, ""))
	r.Apply(StreamEvent{Type: EventError, Message: "boom"})
	if err := r.Err(); err == nil || err.Type != ErrorAPI {
		t.Fatalf("run error = %+v, want api type", err)
	}
}

func TestSpeedSmoothing(t *testing.T) {
	r, clock := newTestReducer(t, "video")
	r.Apply(progressEvent(StageTranscribe, 10, "Transcribing...")) // pins the run start time

	// First chunk: instantaneous rate, no prior to smooth against.
	*clock = clock.Add(2 * time.Second)
	r.Apply(StreamEvent{Type: EventTranscriptChunk, Message: "aaaaaaaaaa"}) // 10 chars over 2s
	if got := r.Speed(); math.Abs(got-5.0) > 1e-9 {
		t.Fatalf("first chunk speed = %v, want 5", got)
	}

	// Second chunk: 0.7*prev + 0.3*instant.
	*clock = clock.Add(1 * time.Second)
	r.Apply(StreamEvent{Type: EventTranscriptChunk, Message: "aaaaaaaaaaaaaaaaaaaa"}) // 20 chars over 1s
	want := 5.0*0.7 + 20.0*0.3
	if got := r.Speed(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("smoothed speed = %v, want %v", got, want)
	}

	// Zero elapsed time must not divide; speed is unchanged.
	r.Apply(StreamEvent{Type: EventTranscriptChunk, Message: "zzz"})
	if got := r.Speed(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("zero-interval chunk changed speed: %v", got)
	}

	if r.TextKind() != "transcript" {
		t.Fatalf("text kind = %q", r.TextKind())
	}
	if r.Text() != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaazzz" {
		t.Fatalf("text buffer = %q", r.Text())
	}
}

func TestScenarioPartialDocumentProgress(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(progressEvent("transcription", 100, "Completed"))
	r.Apply(progressEvent("generate_document", 40, "Summarizing..."))

	transcribe := stageByID(t, r, StageTranscribe)
	if transcribe.Status != StageCompleted || transcribe.Progress != 100 {
		t.Fatalf("transcribe = %+v", transcribe)
	}
	document := stageByID(t, r, StageDocument)
	if document.Status != StageInProgress || document.Progress != 40 || document.Label != "Summarizing..." {
		t.Fatalf("document = %+v", document)
	}
	// Document never reached 100, so nothing beyond it may be advanced.
	if st := stageByID(t, r, StageEmbeddings); st.Status != StagePending {
		t.Fatalf("embeddings prematurely advanced: %+v", st)
	}
}

func TestLogAndHeartbeatLeaveStagesAlone(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(StreamEvent{Type: EventLog, Message: "worker assigned"})
	r.Apply(StreamEvent{Type: EventHeartbeat})
	r.Apply(StreamEvent{Type: EventType("mystery"), Message: "ignored"})

	for _, st := range r.Stages() {
		if st.Status != StagePending {
			t.Fatalf("stage %q mutated by non-progress event", st.ID)
		}
	}
	logs := r.Logs()
	if len(logs) != 1 || logs[0] != "worker assigned" {
		t.Fatalf("logs = %v", logs)
	}
}

func TestTransportFailureMarksNetworkError(t *testing.T) {
	r, _ := newTestReducer(t, "video")
	r.Apply(progressEvent(StageExtract, 10, ""))
	r.Fail(ErrorNetwork, "connection lost")

	if err := r.Err(); err == nil || err.Type != ErrorNetwork {
		t.Fatalf("run error = %+v", err)
	}
	if st := stageByID(t, r, StageExtract); st.Status != StageError {
		t.Fatalf("active stage = %q, want error", st.Status)
	}
	// Fail after terminal is a no-op.
	r.Fail(ErrorUnknown, "again")
	if r.Err().Type != ErrorNetwork {
		t.Fatal("terminal error overwritten")
	}
}

func TestOverallProgressAverages(t *testing.T) {
	r, _ := newTestReducer(t, "document")
	r.Apply(progressEvent(StageExtract, 100, ""))
	r.Apply(progressEvent(StageDocument, 40, ""))
	// extract 100, document 40, embeddings 0 → 46
	if got := r.OverallProgress(); got != 46 {
		t.Fatalf("overall progress = %d", got)
	}
}
