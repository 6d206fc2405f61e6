package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"archivist/internal/api"
	"archivist/internal/logging"
)

const userAgent = "archivist-cli/0.1.0"

// Client talks to the archivist daemon's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger used for transport diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a client for the daemon at baseURL (scheme and host, no path).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the JSON error payload the daemon returns on failures.
type apiError struct {
	Error string `json:"error"`
}

// StatusError carries the HTTP status of a failed API call.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon returned status %d", e.StatusCode)
}

// HTTPStatus exposes the status code for error classification.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into out (which may be nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var payload apiError
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	return &StatusError{StatusCode: resp.StatusCode}
}

// CreateRecording registers a recording and returns its upload URL.
func (c *Client) CreateRecording(ctx context.Context, title, contentType, sourceFileName string) (api.CreateRecordingResponse, error) {
	var out api.CreateRecordingResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/recordings", api.CreateRecordingRequest{
		Title:          title,
		ContentType:    contentType,
		SourceFileName: sourceFileName,
	}, &out)
	return out, err
}

// Upload streams the source file to the daemon's staging area.
func (c *Client) Upload(ctx context.Context, id int64, fileName string, body io.Reader) (api.UploadResponse, error) {
	var out api.UploadResponse
	path := fmt.Sprintf("/api/recordings/%d/upload", id)
	if fileName != "" {
		path += "?filename=" + url.QueryEscape(fileName)
	}
	req, err := c.newRequest(ctx, http.MethodPut, path, body)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("upload recording %d: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return out, c.decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode upload response: %w", err)
	}
	return out, nil
}

// Finalize promotes the staged upload into the library.
func (c *Client) Finalize(ctx context.Context, id int64) (api.Recording, error) {
	var out api.RecordingResponse
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/recordings/%d/finalize", id), nil, &out)
	return out.Recording, err
}

// ListParams filters and pages recording listings.
type ListParams struct {
	Statuses     []string
	CollectionID int64
	Tag          string
	Search       string
	SortBy       string
	Ascending    bool
	Deleted      string // "", "include", "only"
	Limit        int
	Offset       int
}

func (p ListParams) encode() string {
	values := url.Values{}
	for _, status := range p.Statuses {
		values.Add("status", status)
	}
	if p.CollectionID != 0 {
		values.Set("collection", strconv.FormatInt(p.CollectionID, 10))
	}
	if p.Tag != "" {
		values.Set("tag", p.Tag)
	}
	if p.Search != "" {
		values.Set("search", p.Search)
	}
	if p.SortBy != "" {
		values.Set("sort", p.SortBy)
	}
	if p.Ascending {
		values.Set("order", "asc")
	}
	if p.Deleted != "" {
		values.Set("deleted", p.Deleted)
	}
	if p.Limit > 0 {
		values.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		values.Set("offset", strconv.Itoa(p.Offset))
	}
	if encoded := values.Encode(); encoded != "" {
		return "?" + encoded
	}
	return ""
}

// ListRecordings fetches recordings matching the filters.
func (c *Client) ListRecordings(ctx context.Context, params ListParams) ([]api.Recording, error) {
	var out api.RecordingListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/recordings"+params.encode(), nil, &out)
	return out.Recordings, err
}

// GetRecording fetches one recording with its tags.
func (c *Client) GetRecording(ctx context.Context, id int64) (api.Recording, error) {
	var out api.RecordingResponse
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/recordings/%d", id), nil, &out)
	return out.Recording, err
}

// SetMetadata updates title, metadata, and tags.
func (c *Client) SetMetadata(ctx context.Context, id int64, req api.MetadataRequest) (api.Recording, error) {
	var out api.RecordingResponse
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/recordings/%d/metadata", id), req, &out)
	return out.Recording, err
}

// DeleteRecording removes a recording; permanent also deletes its files.
func (c *Client) DeleteRecording(ctx context.Context, id int64, permanent bool) error {
	path := fmt.Sprintf("/api/recordings/%d", id)
	if permanent {
		path += "?permanent=true"
	}
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// RestoreRecording clears a soft delete.
func (c *Client) RestoreRecording(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/recordings/%d/restore", id), nil, nil)
}

// Reprocess queues a recording for rerun from the given step.
func (c *Client) Reprocess(ctx context.Context, id int64, step string) (api.Recording, error) {
	var out api.RecordingResponse
	path := fmt.Sprintf("/api/recordings/%d/reprocess?step=%s", id, url.QueryEscape(step))
	err := c.doJSON(ctx, http.MethodPost, path, nil, &out)
	return out.Recording, err
}

// ListTags fetches every known tag.
func (c *Client) ListTags(ctx context.Context) ([]api.Tag, error) {
	var out api.TagListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, &out)
	return out.Tags, err
}

// CreateTag registers a tag.
func (c *Client) CreateTag(ctx context.Context, name string) (api.Tag, error) {
	var out api.Tag
	err := c.doJSON(ctx, http.MethodPost, "/api/tags", api.TagRequest{Name: name}, &out)
	return out, err
}

// DeleteTag removes a tag everywhere.
func (c *Client) DeleteTag(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/tags/%d", id), nil, nil)
}

// ListCollections fetches every collection with item counts.
func (c *Client) ListCollections(ctx context.Context) ([]api.Collection, error) {
	var out api.CollectionListResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/collections", nil, &out)
	return out.Collections, err
}

// CreateCollection registers a collection.
func (c *Client) CreateCollection(ctx context.Context, name, description string) (api.Collection, error) {
	var out api.Collection
	err := c.doJSON(ctx, http.MethodPost, "/api/collections", api.CollectionRequest{
		Name:        name,
		Description: description,
	}, &out)
	return out, err
}

// DeleteCollection removes a collection (not its recordings).
func (c *Client) DeleteCollection(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/collections/%d", id), nil, nil)
}

// AddToCollection places a recording in a collection.
func (c *Client) AddToCollection(ctx context.Context, collectionID, recordingID int64) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/collections/%d/items", collectionID),
		map[string]int64{"recordingId": recordingID}, nil)
}

// RemoveFromCollection removes a recording from a collection.
func (c *Client) RemoveFromCollection(ctx context.Context, collectionID, recordingID int64) error {
	return c.doJSON(ctx, http.MethodDelete,
		fmt.Sprintf("/api/collections/%d/items/%d", collectionID, recordingID), nil, nil)
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/notifications/test", nil, nil)
}

// Status fetches the daemon status snapshot.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// LogParams controls log fetching.
type LogParams struct {
	Since  uint64
	Limit  int
	Follow bool
	ItemID int64
}

// Logs fetches buffered daemon log events; with Follow set the call blocks
// until new events arrive past the cursor.
func (c *Client) Logs(ctx context.Context, params LogParams) (api.LogStreamResponse, error) {
	values := url.Values{}
	if params.Since > 0 {
		values.Set("since", strconv.FormatUint(params.Since, 10))
	}
	if params.Limit > 0 {
		values.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Follow {
		values.Set("follow", "true")
	}
	if params.ItemID != 0 {
		values.Set("item", strconv.FormatInt(params.ItemID, 10))
	}
	path := "/api/logs"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out api.LogStreamResponse
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}
