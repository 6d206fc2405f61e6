package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"archivist/internal/logging"
	"archivist/internal/progress"
)

// Subscriber receives the events of one run. HandleDisconnect fires only when
// the connection drops before a terminal event; a drop after complete or error
// is silent.
type Subscriber interface {
	HandleEvent(progress.StreamEvent)
	HandleDisconnect(err error)
}

// Transport is one live SSE connection to a run stream. It owns exactly one
// connection for its lifetime; retrying a run means closing this transport and
// opening a new one.
type Transport struct {
	cancel context.CancelFunc
	body   io.ReadCloser
	logger *slog.Logger

	mu         sync.Mutex
	subscriber Subscriber
	terminal   bool
	pending    []progress.StreamEvent
	pendingErr error

	closeOnce sync.Once
	done      chan struct{}
}

// SetSubscriber replaces the event consumer without reconnecting. Events that
// arrived before the first subscriber was set are replayed to it in order.
func (t *Transport) SetSubscriber(sub Subscriber) {
	t.mu.Lock()
	pending := t.pending
	pendingErr := t.pendingErr
	t.pending = nil
	t.pendingErr = nil
	t.subscriber = sub
	t.mu.Unlock()
	if sub == nil {
		return
	}
	for _, evt := range pending {
		sub.HandleEvent(evt)
	}
	if pendingErr != nil {
		sub.HandleDisconnect(pendingErr)
	}
}

// Close tears the connection down. Safe to call any number of times and after
// the stream has already ended.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.terminal = true
		t.mu.Unlock()
		t.cancel()
		_ = t.body.Close()
	})
	<-t.done
}

// Done is closed once the read loop has finished.
func (t *Transport) Done() <-chan struct{} { return t.done }

func (t *Transport) dispatch(evt progress.StreamEvent) {
	t.mu.Lock()
	sub := t.subscriber
	if evt.Type == progress.EventComplete || evt.Type == progress.EventError {
		t.terminal = true
	}
	if sub == nil {
		t.pending = append(t.pending, evt)
	}
	t.mu.Unlock()
	if sub != nil {
		sub.HandleEvent(evt)
	}
}

func (t *Transport) disconnect(err error) {
	t.mu.Lock()
	terminal := t.terminal
	sub := t.subscriber
	if !terminal && sub == nil {
		t.pendingErr = err
	}
	t.mu.Unlock()
	if terminal || sub == nil {
		return
	}
	sub.HandleDisconnect(err)
}

func (t *Transport) readLoop() {
	defer close(t.done)

	scanner := bufio.NewScanner(t.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		var evt progress.StreamEvent
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			// A malformed frame never terminates the run.
			t.logger.Warn("dropping malformed stream event", logging.Error(err))
			continue
		}
		t.dispatch(evt)
	}

	err := scanner.Err()
	if err == nil {
		err = errors.New("stream connection closed")
	}
	t.disconnect(err)
}

// openStream issues the SSE request and starts the read loop.
func (c *Client) openStream(ctx context.Context, path string) (*Transport, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Streams outlive any sane request timeout; reuse the transport but not
	// the client-level deadline.
	httpClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer cancel()
		return nil, c.decodeError(resp)
	}

	t := &Transport{
		cancel: cancel,
		body:   resp.Body,
		logger: c.logger,
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// FollowUpload attaches to an item's live event stream.
func (c *Client) FollowUpload(ctx context.Context, id int64) (*Transport, error) {
	return c.openStream(ctx, fmt.Sprintf("/api/recordings/%d/upload/stream", id))
}

// FollowFinalize finalizes the upload server-side and streams the processing
// run.
func (c *Client) FollowFinalize(ctx context.Context, id int64, startProcessing bool) (*Transport, error) {
	path := fmt.Sprintf("/api/recordings/%d/finalize/stream", id)
	if startProcessing {
		path += "?startProcessing=true"
	}
	return c.openStream(ctx, path)
}

// FollowReprocess rolls the item back to the given step and streams the rerun.
func (c *Client) FollowReprocess(ctx context.Context, id int64, step string) (*Transport, error) {
	path := fmt.Sprintf("/api/recordings/%d/reprocess/stream?step=%s", id, url.QueryEscape(step))
	return c.openStream(ctx, path)
}
