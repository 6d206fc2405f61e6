package transcriber_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"archivist/internal/services/transcriber"
	"archivist/internal/testsupport"
)

func TestTranscribeStreamsSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("language") != "en" {
			t.Errorf("language field = %q", r.FormValue("language"))
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Write([]byte(`{
            "language": "en",
            "segments": [
                {"start": 0, "end": 2.5, "text": "hello"},
                {"start": 2.5, "end": 4.0, "text": "world"}
            ]
        }`))
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "clip.wav")
	testsupport.WriteFile(t, audio, 128)

	client := transcriber.NewClient(transcriber.Config{BaseURL: server.URL, Language: "en"})
	var streamed []string
	result, err := client.Transcribe(context.Background(), audio, func(seg transcriber.Segment) {
		streamed = append(streamed, seg.Text)
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.Text != "hello world" {
		t.Fatalf("joined text = %q", result.Text)
	}
	if len(streamed) != 2 || streamed[0] != "hello" || streamed[1] != "world" {
		t.Fatalf("streamed segments = %v", streamed)
	}
}

func TestTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "clip.wav")
	testsupport.WriteFile(t, audio, 16)

	client := transcriber.NewClient(transcriber.Config{BaseURL: server.URL})
	if _, err := client.Transcribe(context.Background(), audio, nil); err == nil {
		t.Fatal("expected error from 503 response")
	}
}

func TestTranscribeRequiresConfig(t *testing.T) {
	client := transcriber.NewClient(transcriber.Config{})
	if _, err := client.Transcribe(context.Background(), "/tmp/a.wav", nil); err == nil {
		t.Fatal("expected error without base url")
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := transcriber.NewClient(transcriber.Config{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}
