package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"archivist/internal/client"
	"archivist/internal/progress"
)

func sseHandler(t *testing.T, events ...progress.StreamEvent) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		for _, evt := range events {
			payload, err := json.Marshal(evt)
			if err != nil {
				t.Errorf("marshal event: %v", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func TestFollowRunRendersStagesAndSummary(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		progress.NewProgressEvent("extract_audio", 40, "Preparing media"),
		progress.NewProgressEvent("extract_audio", 100, "Completed"),
		progress.NewProgressEvent("transcription", 100, "Completed"),
		progress.NewProgressEvent("generate_document", 100, "Completed"),
		progress.NewProgressEvent("generate_embeddings", 100, "Completed"),
		progress.NewCompleteEvent("Processing complete"),
	))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	api := client.New(server.URL)
	follower, err := followRun(ctx, &out, "audio", false,
		func(streamCtx context.Context) (*client.Transport, error) {
			return api.FollowFinalize(streamCtx, 1, true)
		})
	if err != nil {
		t.Fatalf("followRun: %v", err)
	}
	if runErr := follower.runError(); runErr != nil {
		t.Fatalf("unexpected run error: %v", runErr)
	}

	rendered := out.String()
	for _, want := range []string{"Preparing media", "Transcribing", "Generating document", "Indexing"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("output missing %q:\n%s", want, rendered)
		}
	}
	if !strings.Contains(rendered, "✔") {
		t.Errorf("output has no completed stage markers:\n%s", rendered)
	}
}

func TestFollowRunReportsServerError(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		progress.NewProgressEvent("transcription", 30, "Transcribing"),
		progress.NewErrorEvent("quota", "transcription quota exhausted", "plan limit reached"),
	))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	api := client.New(server.URL)
	follower, err := followRun(ctx, &out, "audio", false,
		func(streamCtx context.Context) (*client.Transport, error) {
			return api.FollowReprocess(streamCtx, 1, "transcribe")
		})
	if err != nil {
		t.Fatalf("followRun: %v", err)
	}

	runErr := follower.runError()
	if runErr == nil || runErr.Type != progress.ErrorQuota {
		t.Fatalf("run error = %+v, want quota", runErr)
	}
	if got := follower.failedStage(); got != progress.StageTranscribe {
		t.Errorf("failedStage = %q, want %q", got, progress.StageTranscribe)
	}

	var panel bytes.Buffer
	renderRunError(&panel, 9, runErr)
	if !strings.Contains(panel.String(), "quota") || !strings.Contains(panel.String(), "plan limit reached") {
		t.Errorf("error panel missing detail:\n%s", panel.String())
	}
}

func TestFollowRunTreatsDropAsNetworkError(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		progress.NewProgressEvent("extract_audio", 50, "Preparing media"),
	))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	api := client.New(server.URL)
	follower, err := followRun(ctx, &out, "audio", false,
		func(streamCtx context.Context) (*client.Transport, error) {
			return api.FollowUpload(streamCtx, 1)
		})
	if err != nil {
		t.Fatalf("followRun: %v", err)
	}
	runErr := follower.runError()
	if runErr == nil || runErr.Type != progress.ErrorNetwork {
		t.Fatalf("run error = %+v, want network", runErr)
	}
	if got := follower.failedStage(); got != progress.StageExtract {
		t.Errorf("failedStage = %q, want %q", got, progress.StageExtract)
	}
}

func TestRemediationHintsCoverEveryCategory(t *testing.T) {
	for _, typ := range []progress.ErrorType{
		progress.ErrorAPI, progress.ErrorNetwork, progress.ErrorData,
		progress.ErrorQuota, progress.ErrorUnknown,
	} {
		if remediationHints[typ] == "" {
			t.Errorf("no remediation hint for %q", typ)
		}
	}
}
