package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"archivist/internal/library"
	"archivist/internal/progress"
)

// sseHeartbeatInterval bounds how long a live stream stays silent before a
// heartbeat event is injected.
const sseHeartbeatInterval = 15 * time.Second

// streamUpload attaches to the item's live feed so a client can watch upload
// and processing events as they arrive.
func (s *apiServer) streamUpload(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	feed := s.daemon.hub.Feed(id)
	if feed == nil {
		feed = s.daemon.hub.OpenRun(id)
	}
	s.streamFeed(w, r, feed)
}

// streamFinalize promotes the staged upload and streams processing events.
// With startProcessing unset or false, the stream ends once the upload is
// confirmed in the library.
func (s *apiServer) streamFinalize(w http.ResponseWriter, r *http.Request, id int64) {
	startProcessing := r.URL.Query().Get("startProcessing") == "true"

	// Open the feed before finalizing so the queue transition and the first
	// pipeline events are never missed.
	feed := s.daemon.hub.OpenRun(id)
	item, err := s.daemon.Finalize(r.Context(), id)
	if err != nil {
		s.writeError(w, statusForActionError(err), err.Error())
		return
	}
	if !startProcessing {
		s.daemon.hub.NewPublisher(id).Complete(fmt.Sprintf("Upload complete: %s", item.Title))
	}
	s.streamFeed(w, r, feed)
}

// streamReprocess rolls the item back for the requested step and streams the
// rerun.
func (s *apiServer) streamReprocess(w http.ResponseWriter, r *http.Request, id int64) {
	stepValue := r.URL.Query().Get("step")
	if strings.TrimSpace(stepValue) == "" {
		stepValue = string(library.StepAll)
	}
	step, ok := library.ParseProcessingStep(stepValue)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid processing step")
		return
	}

	feed := s.daemon.hub.OpenRun(id)
	if _, err := s.daemon.Reprocess(r.Context(), id, step); err != nil {
		s.writeError(w, statusForActionError(err), err.Error())
		return
	}
	s.daemon.hub.Publish(id, progress.NewLogEvent(fmt.Sprintf("Reprocessing from step %q", step)))
	s.streamFeed(w, r, feed)
}

// streamFeed renders a feed as server-sent events until the terminal event
// arrives or the client disconnects. Heartbeats keep idle connections alive.
func (s *apiServer) streamFeed(w http.ResponseWriter, r *http.Request, feed *progress.Feed) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var since uint64
	for {
		fetchCtx, cancel := context.WithTimeout(r.Context(), sseHeartbeatInterval)
		events, _, err := feed.Fetch(fetchCtx, since, 64, true)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return
		}

		if len(events) == 0 {
			if feed.Closed() {
				return
			}
			if writeSSE(w, progress.NewHeartbeatEvent()) != nil {
				return
			}
			flusher.Flush()
			continue
		}

		terminal := false
		for _, evt := range events {
			since = evt.Seq
			if writeSSE(w, evt.Event) != nil {
				return
			}
			if evt.Event.Type == progress.EventComplete || evt.Event.Type == progress.EventError {
				terminal = true
			}
		}
		flusher.Flush()
		if terminal {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, evt progress.StreamEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return nil
}
