package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"archivist/internal/client"
	"archivist/internal/progress"
)

func TestClientSendsAuthAndStandardHeaders(t *testing.T) {
	var gotAuth, gotAccept, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"running":true,"pid":1,"libraryDbPath":"","lockFilePath":"","pipeline":{"running":true,"library":{},"stageHealth":[]}}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("secret"))
	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q", gotAccept)
	}
	if !strings.HasPrefix(gotAgent, "archivist-cli/") {
		t.Fatalf("User-Agent = %q", gotAgent)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"recording not found"}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.GetRecording(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error type = %T", err)
	}
	if statusErr.HTTPStatus() != http.StatusNotFound {
		t.Fatalf("status = %d", statusErr.HTTPStatus())
	}
	if statusErr.Error() != "recording not found" {
		t.Fatalf("message = %q", statusErr.Error())
	}
}

func TestClientUploadFlow(t *testing.T) {
	var uploaded []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/api/recordings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"recording":{"id":7,"title":"Demo","contentType":"audio","status":"uploading","progress":{"stage":"","percent":0,"message":""}},"uploadUrl":"/api/recordings/7/upload"}`)
	})
	mux.HandleFunc("/api/recordings/7/upload", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		uploaded = body
		fmt.Fprintf(w, `{"recording":{"id":7,"title":"Demo","contentType":"audio","status":"uploading","progress":{"stage":"","percent":0,"message":""}},"bytes":%d}`, len(body))
	})
	mux.HandleFunc("/api/recordings/7/finalize", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"recording":{"id":7,"title":"Demo","contentType":"audio","status":"uploaded","progress":{"stage":"","percent":0,"message":""}}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := client.New(srv.URL)
	ctx := context.Background()

	created, err := c.CreateRecording(ctx, "Demo", "audio", "demo.m4a")
	if err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}
	if created.Recording.ID != 7 || created.UploadURL == "" {
		t.Fatalf("create response = %+v", created)
	}

	upload, err := c.Upload(ctx, created.Recording.ID, "demo.m4a", strings.NewReader("audio bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if upload.BytesSize != int64(len("audio bytes")) {
		t.Fatalf("bytes = %d", upload.BytesSize)
	}
	if string(uploaded) != "audio bytes" {
		t.Fatalf("uploaded = %q", uploaded)
	}

	finalized, err := c.Finalize(ctx, created.Recording.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if finalized.Status != "uploaded" {
		t.Fatalf("status = %q", finalized.Status)
	}
}

type collectingSubscriber struct {
	mu           sync.Mutex
	events       []progress.StreamEvent
	disconnected []error
}

func (s *collectingSubscriber) HandleEvent(evt progress.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *collectingSubscriber) HandleDisconnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = append(s.disconnected, err)
}

func (s *collectingSubscriber) snapshot() ([]progress.StreamEvent, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]progress.StreamEvent(nil), s.events...), len(s.disconnected)
}

func sseServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}))
}

func eventJSON(t *testing.T, evt progress.StreamEvent) string {
	t.Helper()
	encoded, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(encoded)
}

func TestTransportForwardsEventsAndDropsMalformedFrames(t *testing.T) {
	srv := sseServer(t, []string{
		eventJSON(t, progress.NewProgressEvent("transcription", 40, "Transcribing")),
		`{"type": not-json`,
		eventJSON(t, progress.NewCompleteEvent("done")),
	})
	defer srv.Close()

	c := client.New(srv.URL)
	transport, err := c.FollowUpload(context.Background(), 1)
	if err != nil {
		t.Fatalf("FollowUpload failed: %v", err)
	}
	sub := &collectingSubscriber{}
	transport.SetSubscriber(sub)
	defer transport.Close()

	select {
	case <-transport.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not finish")
	}

	events, disconnects := sub.snapshot()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (malformed frame dropped)", len(events))
	}
	if events[1].Type != progress.EventComplete {
		t.Fatalf("last event = %q", events[1].Type)
	}
	if disconnects != 0 {
		t.Fatalf("disconnects = %d after terminal event", disconnects)
	}
}

func TestTransportReportsDisconnectBeforeTerminal(t *testing.T) {
	srv := sseServer(t, []string{
		eventJSON(t, progress.NewProgressEvent("transcription", 40, "Transcribing")),
	})
	defer srv.Close()

	c := client.New(srv.URL)
	transport, err := c.FollowUpload(context.Background(), 1)
	if err != nil {
		t.Fatalf("FollowUpload failed: %v", err)
	}
	sub := &collectingSubscriber{}
	transport.SetSubscriber(sub)

	select {
	case <-transport.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not finish")
	}

	events, disconnects := sub.snapshot()
	if len(events) != 1 {
		t.Fatalf("events = %d", len(events))
	}
	if disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1 for drop before terminal", disconnects)
	}
}

func TestTransportCloseIsIdempotent(t *testing.T) {
	srv := sseServer(t, []string{
		eventJSON(t, progress.NewProgressEvent("transcription", 10, "Starting")),
	})
	defer srv.Close()

	c := client.New(srv.URL)
	transport, err := c.FollowUpload(context.Background(), 1)
	if err != nil {
		t.Fatalf("FollowUpload failed: %v", err)
	}
	sub := &collectingSubscriber{}
	transport.SetSubscriber(sub)

	transport.Close()
	transport.Close()

	_, disconnects := sub.snapshot()
	if disconnects != 0 {
		t.Fatalf("disconnects = %d, explicit close must be silent", disconnects)
	}
}

func TestTransportSubscriberSwapKeepsConnection(t *testing.T) {
	var connections int
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		connections++
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n\n", eventJSON(t, progress.NewProgressEvent("transcription", 10, "First")))
		flusher.Flush()
		<-release
		fmt.Fprintf(w, "data: %s\n\n", eventJSON(t, progress.NewCompleteEvent("done")))
		flusher.Flush()
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	transport, err := c.FollowUpload(context.Background(), 1)
	if err != nil {
		t.Fatalf("FollowUpload failed: %v", err)
	}
	defer transport.Close()

	first := &collectingSubscriber{}
	transport.SetSubscriber(first)
	deadline := time.After(10 * time.Second)
	for {
		events, _ := first.snapshot()
		if len(events) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first subscriber saw no events")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	second := &collectingSubscriber{}
	transport.SetSubscriber(second)
	close(release)

	select {
	case <-transport.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not finish")
	}

	events, _ := second.snapshot()
	if len(events) != 1 || events[0].Type != progress.EventComplete {
		t.Fatalf("second subscriber events = %+v", events)
	}
	if connections != 1 {
		t.Fatalf("connections = %d, swap must not reconnect", connections)
	}
}
