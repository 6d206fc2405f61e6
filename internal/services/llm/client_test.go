package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"archivist/internal/services/llm"
)

func chatResponse(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func newClient(t *testing.T, baseURL string, opts ...llm.Option) *llm.Client {
	t.Helper()
	cfg := llm.Config{APIKey: "test-key", BaseURL: baseURL, Model: "test-model"}
	opts = append(opts, llm.WithSleeper(func(time.Duration) {}))
	return llm.NewClient(cfg, opts...)
}

func TestGenerateDocument(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(chatResponse("# Standup Notes\n\nSummary here.")))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	doc, err := client.GenerateDocument(context.Background(), "Standup", "we shipped the thing")
	if err != nil {
		t.Fatalf("GenerateDocument failed: %v", err)
	}
	if doc == "" {
		t.Fatal("empty document")
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
}

func TestGenerateDocumentRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(chatResponse("recovered")))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	doc, err := client.GenerateDocument(context.Background(), "", "text")
	if err != nil {
		t.Fatalf("GenerateDocument failed: %v", err)
	}
	if doc != "recovered" {
		t.Fatalf("document = %q", doc)
	}
	if calls.Load() != 2 {
		t.Fatalf("server called %d times", calls.Load())
	}
}

func TestGenerateDocumentDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if _, err := client.GenerateDocument(context.Background(), "", "text"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("server called %d times, want 1", calls.Load())
	}
}

func TestIsQuotaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newClient(t, server.URL, llm.WithRetryMaxAttempts(1))
	_, err := client.GenerateDocument(context.Background(), "", "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if !llm.IsQuotaError(err) {
		t.Fatalf("IsQuotaError = false for %v", err)
	}
}

func TestEmbeddingsOrderedByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Return vectors out of order; the client must reassemble by index.
		w.Write([]byte(`{"data":[
            {"index":1,"embedding":[0.2]},
            {"index":0,"embedding":[0.1]}
        ]}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	vectors, err := client.Embeddings(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embeddings failed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 0.1 || vectors[1][0] != 0.2 {
		t.Fatalf("vectors = %v", vectors)
	}
}

func TestEmbeddingsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if _, err := client.Embeddings(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error for short vector list")
	}
}

func TestGenerateDocumentRequiresInputs(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:0")
	if _, err := client.GenerateDocument(context.Background(), "t", "   "); err == nil {
		t.Fatal("expected error for empty source text")
	}

	noKey := llm.NewClient(llm.Config{BaseURL: "http://127.0.0.1:0", Model: "m"})
	if _, err := noKey.GenerateDocument(context.Background(), "t", "text"); err == nil {
		t.Fatal("expected error without api key")
	}
}
