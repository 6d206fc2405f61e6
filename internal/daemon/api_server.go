package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"archivist/internal/api"
	"archivist/internal/config"
	"archivist/internal/library"
	"archivist/internal/logging"
)

type apiServer struct {
	bind       string
	logger     *slog.Logger
	daemon     *Daemon
	librarySvc *api.LibraryService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		librarySvc: api.NewLibraryService(d.store),
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(token, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", protect(srv.handleStatus))
	mux.HandleFunc("/api/logs", protect(srv.handleLogs))
	mux.HandleFunc("/api/recordings", protect(srv.handleRecordings))
	mux.HandleFunc("/api/recordings/", protect(srv.handleRecordingItem))
	mux.HandleFunc("/api/tags", protect(srv.handleTags))
	mux.HandleFunc("/api/tags/", protect(srv.handleTagItem))
	mux.HandleFunc("/api/collections", protect(srv.handleCollections))
	mux.HandleFunc("/api/collections/", protect(srv.handleCollectionItem))
	mux.HandleFunc("/api/notifications/test", protect(srv.handleTestNotification))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when binding to port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		LibraryDBPath: status.LibraryDBPath,
		LockFilePath:  status.LockFilePath,
		Pipeline:      api.FromStatusSummary(status.Pipeline),
	})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: nil, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")

	var (
		events []logging.LogEvent
		next   uint64
	)
	if since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		fetched, cursor, err := hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		events, next = fetched, cursor
	}

	converted := api.FromLogEvents(events)
	if filterItem, _ := strconv.ParseInt(query.Get("item"), 10, 64); filterItem != 0 {
		filtered := converted[:0]
		for _, evt := range converted {
			if evt.ItemID == filterItem {
				filtered = append(filtered, evt)
			}
		}
		converted = filtered
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: converted, Next: next})
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecordings(w, r)
	case http.MethodPost:
		s.createRecording(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listRecordings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := library.ListOptions{
		Tag:            strings.TrimSpace(query.Get("tag")),
		Search:         strings.TrimSpace(query.Get("search")),
		SortBy:         strings.TrimSpace(query.Get("sort")),
		SortDescending: query.Get("order") != "asc",
		IncludeDeleted: query.Get("deleted") == "include",
		OnlyDeleted:    query.Get("deleted") == "only",
	}
	for _, value := range query["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			opts.Statuses = append(opts.Statuses, library.Status(trimmed))
		}
	}
	if id, err := strconv.ParseInt(query.Get("collection"), 10, 64); err == nil {
		opts.CollectionID = id
	}
	opts.Limit, _ = strconv.Atoi(query.Get("limit"))
	opts.Offset, _ = strconv.Atoi(query.Get("offset"))

	recordings, err := s.librarySvc.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{
		Recordings: recordings,
		Total:      len(recordings),
	})
}

func (s *apiServer) createRecording(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := s.daemon.CreateRecording(r.Context(), req.Title, req.ContentType, req.SourceFileName)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.CreateRecordingResponse{
		Recording: api.FromItem(item),
		UploadURL: fmt.Sprintf("/api/recordings/%d/upload", item.ID),
	})
}

func (s *apiServer) handleRecordingItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid recording id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.showRecording(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteRecording(w, r, id)
	case action == "upload" && r.Method == http.MethodPut:
		s.uploadRecording(w, r, id)
	case action == "upload/stream" && r.Method == http.MethodGet:
		s.streamUpload(w, r, id)
	case action == "finalize" && r.Method == http.MethodPost:
		s.finalizeRecording(w, r, id)
	case action == "finalize/stream" && r.Method == http.MethodGet:
		s.streamFinalize(w, r, id)
	case action == "reprocess" && r.Method == http.MethodPost:
		s.reprocessRecording(w, r, id)
	case action == "reprocess/stream" && r.Method == http.MethodGet:
		s.streamReprocess(w, r, id)
	case action == "metadata" && r.Method == http.MethodPost:
		s.setMetadata(w, r, id)
	case action == "restore" && r.Method == http.MethodPost:
		s.restoreRecording(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) showRecording(w http.ResponseWriter, r *http.Request, id int64) {
	recording, err := s.librarySvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recording == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: *recording})
}

func (s *apiServer) uploadRecording(w http.ResponseWriter, r *http.Request, id int64) {
	defer r.Body.Close()
	fileName := strings.TrimSpace(r.URL.Query().Get("filename"))
	item, written, err := s.daemon.StageUpload(r.Context(), id, fileName, r.Body)
	if err != nil {
		s.writeError(w, statusForActionError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		Recording: api.FromItem(item),
		BytesSize: written,
	})
}

func (s *apiServer) finalizeRecording(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.Finalize(r.Context(), id)
	if err != nil {
		s.writeError(w, statusForActionError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: api.FromItem(item)})
}

func (s *apiServer) reprocessRecording(w http.ResponseWriter, r *http.Request, id int64) {
	step, ok := library.ParseProcessingStep(r.URL.Query().Get("step"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid processing step")
		return
	}
	item, err := s.daemon.Reprocess(r.Context(), id, step)
	if err != nil {
		s.writeError(w, statusForActionError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: api.FromItem(item)})
}

func (s *apiServer) setMetadata(w http.ResponseWriter, r *http.Request, id int64) {
	var req api.MetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := s.daemon.SetMetadata(r.Context(), id, req.Title, req.Metadata, req.Tags)
	if err != nil {
		s.writeError(w, statusForActionError(err), err.Error())
		return
	}
	recording := api.FromItem(item)
	if tags, err := s.daemon.store.ItemTags(r.Context(), id); err == nil {
		recording.Tags = tags
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Recording: recording})
}

func (s *apiServer) deleteRecording(w http.ResponseWriter, r *http.Request, id int64) {
	permanent := r.URL.Query().Get("permanent") == "true"
	deleted, err := s.daemon.DeleteRecording(r.Context(), id, permanent)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *apiServer) restoreRecording(w http.ResponseWriter, r *http.Request, id int64) {
	restored, err := s.daemon.RestoreRecording(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !restored {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"restored": true})
}

func (s *apiServer) handleTags(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tags, err := s.daemon.store.ListTags(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]api.Tag, 0, len(tags))
		for _, tag := range tags {
			out = append(out, api.FromTag(tag))
		}
		s.writeJSON(w, http.StatusOK, api.TagListResponse{Tags: out})
	case http.MethodPost:
		var req api.TagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		tag, err := s.daemon.store.CreateTag(r.Context(), req.Name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, api.FromTag(tag))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTagItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/tags/"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	deleted, err := s.daemon.store.DeleteTag(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *apiServer) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		collections, err := s.daemon.store.ListCollections(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]api.Collection, 0, len(collections))
		for _, c := range collections {
			out = append(out, api.FromCollection(c))
		}
		s.writeJSON(w, http.StatusOK, api.CollectionListResponse{Collections: out})
	case http.MethodPost:
		var req api.CollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		collection, err := s.daemon.store.CreateCollection(r.Context(), req.Name, req.Description)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, api.FromCollection(collection))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleCollectionItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/collections/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		collection, err := s.daemon.store.GetCollection(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if collection == nil {
			s.writeError(w, http.StatusNotFound, "collection not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromCollection(collection))
	case action == "" && r.Method == http.MethodDelete:
		deleted, err := s.daemon.store.DeleteCollection(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !deleted {
			s.writeError(w, http.StatusNotFound, "collection not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	case action == "items" && r.Method == http.MethodPost:
		var req struct {
			RecordingID int64 `json:"recordingId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.daemon.store.AddToCollection(r.Context(), id, req.RecordingID); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"added": true})
	case strings.HasPrefix(action, "items/") && r.Method == http.MethodDelete:
		itemID, err := strconv.ParseInt(strings.TrimPrefix(action, "items/"), 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid recording id")
			return
		}
		removed, err := s.daemon.store.RemoveFromCollection(r.Context(), id, itemID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !removed {
			s.writeError(w, http.StatusNotFound, "recording not in collection")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, detail, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", detail, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "detail": detail})
}

// statusForActionError maps daemon action failures to HTTP status codes.
func statusForActionError(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "not awaiting"), strings.Contains(msg, "cannot"):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
