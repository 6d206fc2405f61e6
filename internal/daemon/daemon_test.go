package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"archivist/internal/config"
	"archivist/internal/daemon"
	"archivist/internal/library"
	"archivist/internal/logging"
	"archivist/internal/pipeline"
	"archivist/internal/progress"
	"archivist/internal/stage"
	"archivist/internal/testsupport"
)

type passStage struct {
	name string
}

func (s passStage) Prepare(context.Context, *library.Item) error { return nil }
func (s passStage) Execute(context.Context, *library.Item) error { return nil }
func (s passStage) HealthCheck(context.Context) stage.Health     { return stage.Healthy(s.name) }

func stubStageSet() pipeline.StageSet {
	return pipeline.StageSet{
		Extractor:    passStage{name: "extract"},
		Transcriber:  passStage{name: "transcribe"},
		DocGenerator: passStage{name: "document"},
		Embedder:     passStage{name: "embeddings"},
	}
}

type harness struct {
	daemon *daemon.Daemon
	store  *library.Store
	cfg    *config.Config
	base   string
	client *http.Client
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	hub := progress.NewHub(64)

	mgr := pipeline.NewManager(cfg, store, logging.NewNop(), hub)
	mgr.ConfigureStages(stubStageSet())

	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Store:    store,
		Logger:   logging.NewNop(),
		Pipeline: mgr,
		Hub:      hub,
	})
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	return &harness{
		daemon: d,
		store:  store,
		cfg:    cfg,
		base:   "http://" + d.APIAddr(),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *harness) request(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		payload = bytes.NewReader(encoded)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, h.base+path, payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, buf.Bytes()
}

func (h *harness) waitForStatus(t *testing.T, id int64, want library.Status) *library.Item {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		default:
		}
		item, err := h.store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	h := newHarness(t)

	hub := progress.NewHub(64)
	mgr := pipeline.NewManager(h.cfg, h.store, logging.NewNop(), hub)
	mgr.ConfigureStages(stubStageSet())
	second, err := daemon.New(daemon.Options{
		Config:   h.cfg,
		Store:    h.store,
		Logger:   logging.NewNop(),
		Pipeline: mgr,
		Hub:      hub,
	})
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail lock acquisition")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUploadLifecycleOverAPI(t *testing.T) {
	h := newHarness(t)

	resp, body := h.request(t, http.MethodPost, "/api/recordings", map[string]string{
		"title":          "Weekly Sync",
		"contentType":    "video",
		"sourceFileName": "sync.mp4",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", resp.StatusCode, body)
	}
	var created struct {
		Recording struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"recording"`
		UploadURL string `json:"uploadUrl"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Recording.Status != string(library.StatusUploading) {
		t.Fatalf("new recording status = %q", created.Recording.Status)
	}
	if created.UploadURL == "" {
		t.Fatal("expected upload URL")
	}

	req, err := http.NewRequest(http.MethodPut, h.base+created.UploadURL, strings.NewReader("fake video bytes"))
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	uploadResp, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	uploadResp.Body.Close()
	if uploadResp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", uploadResp.StatusCode)
	}

	resp, body = h.request(t, http.MethodPost, fmt.Sprintf("/api/recordings/%d/finalize", created.Recording.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize status = %d body = %s", resp.StatusCode, body)
	}

	final := h.waitForStatus(t, created.Recording.ID, library.StatusCompleted)
	if final.LibraryPath == "" {
		t.Fatal("expected library path after finalize")
	}

	resp, body = h.request(t, http.MethodGet, fmt.Sprintf("/api/recordings/%d", created.Recording.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("show status = %d", resp.StatusCode)
	}
	var shown struct {
		Recording struct {
			Status string `json:"status"`
		} `json:"recording"`
	}
	if err := json.Unmarshal(body, &shown); err != nil {
		t.Fatalf("decode show response: %v", err)
	}
	if shown.Recording.Status != string(library.StatusCompleted) {
		t.Fatalf("recording status = %q", shown.Recording.Status)
	}
}

func TestFinalizeStreamEmitsTerminalEvent(t *testing.T) {
	h := newHarness(t)

	item, err := h.daemon.CreateRecording(context.Background(), "Stream Me", "audio", "stream.m4a")
	if err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/recordings/%d/upload", h.base, item.ID), strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	uploadResp, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	uploadResp.Body.Close()

	streamResp, err := h.client.Get(fmt.Sprintf(
		"%s/api/recordings/%d/finalize/stream?startProcessing=true", h.base, item.ID))
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer streamResp.Body.Close()
	if ct := streamResp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := testsupport.ReadSSE(t, streamResp.Body, 30*time.Second)
	last := events[len(events)-1]
	if last.Type != progress.EventComplete {
		t.Fatalf("terminal event type = %q", last.Type)
	}
}

func TestStatusEndpointReportsPipeline(t *testing.T) {
	h := newHarness(t)

	resp, body := h.request(t, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var status struct {
		Running  bool `json:"running"`
		PID      int  `json:"pid"`
		Pipeline struct {
			Running     bool `json:"running"`
			StageHealth []struct {
				Name  string `json:"name"`
				Ready bool   `json:"ready"`
			} `json:"stageHealth"`
		} `json:"pipeline"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || !status.Pipeline.Running {
		t.Fatalf("expected running daemon and pipeline, got %+v", status)
	}
	if len(status.Pipeline.StageHealth) != 4 {
		t.Fatalf("stage health entries = %d", len(status.Pipeline.StageHealth))
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("secret"))

	resp, err := h.client.Get(h.base + "/api/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, h.base+"/api/status", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = h.client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", resp.StatusCode)
	}
}

func TestMetadataTagsAndCollections(t *testing.T) {
	h := newHarness(t)

	item, err := h.daemon.CreateRecording(context.Background(), "Tagged", "text", "notes.md")
	if err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	resp, body := h.request(t, http.MethodPost, fmt.Sprintf("/api/recordings/%d/metadata", item.ID), map[string]any{
		"title":    "Tagged Notes",
		"metadata": map[string]string{"speaker": "casey"},
		"tags":     []string{"meetings", "q3"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metadata status = %d body = %s", resp.StatusCode, body)
	}
	var updated struct {
		Recording struct {
			Title string   `json:"title"`
			Tags  []string `json:"tags"`
		} `json:"recording"`
	}
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("decode metadata response: %v", err)
	}
	if updated.Recording.Title != "Tagged Notes" {
		t.Fatalf("title = %q", updated.Recording.Title)
	}
	if len(updated.Recording.Tags) != 2 {
		t.Fatalf("tags = %v", updated.Recording.Tags)
	}

	resp, body = h.request(t, http.MethodPost, "/api/collections", map[string]string{
		"name":        "Quarterly",
		"description": "Q3 reviews",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("collection status = %d body = %s", resp.StatusCode, body)
	}
	var collection struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &collection); err != nil {
		t.Fatalf("decode collection: %v", err)
	}

	resp, _ = h.request(t, http.MethodPost, fmt.Sprintf("/api/collections/%d/items", collection.ID), map[string]int64{
		"recordingId": item.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add to collection status = %d", resp.StatusCode)
	}

	resp, body = h.request(t, http.MethodGet,
		fmt.Sprintf("/api/recordings?collection=%d", collection.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered list status = %d", resp.StatusCode)
	}
	var listed struct {
		Recordings []struct {
			ID int64 `json:"id"`
		} `json:"recordings"`
	}
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Recordings) != 1 || listed.Recordings[0].ID != item.ID {
		t.Fatalf("filtered recordings = %+v", listed.Recordings)
	}
}

func TestDeleteAndRestoreOverAPI(t *testing.T) {
	h := newHarness(t)

	item, err := h.daemon.CreateRecording(context.Background(), "Ephemeral", "text", "scratch.txt")
	if err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	resp, _ := h.request(t, http.MethodDelete, fmt.Sprintf("/api/recordings/%d", item.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, body := h.request(t, http.MethodGet, "/api/recordings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listed.Total != 0 {
		t.Fatalf("expected empty list after soft delete, total = %d", listed.Total)
	}

	resp, _ = h.request(t, http.MethodPost, fmt.Sprintf("/api/recordings/%d/restore", item.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore status = %d", resp.StatusCode)
	}

	restored, err := h.store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if restored == nil || restored.DeletedAt != nil {
		t.Fatalf("expected restored item, got %+v", restored)
	}
}

func TestReprocessRejectsInvalidStep(t *testing.T) {
	h := newHarness(t)

	item, err := h.daemon.CreateRecording(context.Background(), "Redo", "audio", "redo.m4a")
	if err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	resp, _ := h.request(t, http.MethodPost,
		fmt.Sprintf("/api/recordings/%d/reprocess?step=bogus", item.ID), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
