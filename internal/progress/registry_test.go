package progress

import "testing"

func TestMapJobTypeToStageID(t *testing.T) {
	tests := []struct {
		jobType string
		want    string
	}{
		{"extract_audio", StageExtract},
		{"extract_text", StageExtract},
		{"transcription", StageTranscribe},
		{"generate_document", StageDocument},
		{"doc_generation", StageDocument},
		{"generate_embeddings", StageEmbeddings},
		{"extract", StageExtract},
		{"future_job", "future_job"},
	}
	for _, tc := range tests {
		if got := MapJobTypeToStageID(tc.jobType); got != tc.want {
			t.Errorf("MapJobTypeToStageID(%q) = %q, want %q", tc.jobType, got, tc.want)
		}
	}
}

func TestStageConfigForUnknownJobType(t *testing.T) {
	if _, ok := StageConfigFor("future_job"); ok {
		t.Fatal("unknown job type reported as known")
	}
	cfg, ok := StageConfigFor("transcription")
	if !ok || cfg.Label == "" {
		t.Fatalf("transcription config = %+v, ok=%v", cfg, ok)
	}
}

func TestPipelineFor(t *testing.T) {
	full := PipelineFor("video")
	if len(full) != 4 || full[1] != StageTranscribe {
		t.Fatalf("video pipeline = %v", full)
	}
	if got := PipelineFor("audio"); len(got) != 4 {
		t.Fatalf("audio pipeline = %v", got)
	}
	for _, ct := range []string{"document", "text"} {
		for _, id := range PipelineFor(ct) {
			if id == StageTranscribe {
				t.Fatalf("%s pipeline contains transcribe", ct)
			}
		}
	}
}

func TestParseErrorType(t *testing.T) {
	for _, known := range []string{"api", "network", "data", "quota", "unknown"} {
		if got := ParseErrorType(known); string(got) != known {
			t.Errorf("ParseErrorType(%q) = %q", known, got)
		}
	}
	if got := ParseErrorType("disk_full"); got != ErrorUnknown {
		t.Errorf("ParseErrorType(disk_full) = %q, want unknown", got)
	}
}
