package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogEvent is one captured log record, sequenced for cursor-based tailing.
type LogEvent struct {
	Sequence  uint64
	Timestamp time.Time
	Level     string
	Message   string
	Component string
	Stage     string
	ItemID    int64
}

// StreamHub buffers recent log events so the API can serve live tails without
// touching log files. It is a slog.Handler; wire it in via TeeHandler.
type StreamHub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []LogEvent
	nextSeq  uint64
}

// NewStreamHub creates a hub retaining up to capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 2048
	}
	h := &StreamHub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Enabled implements slog.Handler.
func (h *StreamHub) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler by capturing the record into the ring.
func (h *StreamHub) Handle(_ context.Context, record slog.Record) error {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}
	record.Attrs(func(attr slog.Attr) bool {
		switch attr.Key {
		case FieldComponent:
			evt.Component = attr.Value.String()
		case FieldStage:
			evt.Stage = attr.Value.String()
		case FieldItemID:
			evt.ItemID = attr.Value.Int64()
		}
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	return nil
}

// WithAttrs implements slog.Handler. Attrs are resolved per-record in Handle,
// so the hub itself is shared unchanged.
func (h *StreamHub) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &attrStreamHandler{hub: h, attrs: attrs}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *StreamHub) WithGroup(string) slog.Handler { return h }

// Tail returns the most recent events (up to limit) plus the follow cursor.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.buffer) {
		limit = len(h.buffer)
	}
	out := make([]LogEvent, limit)
	copy(out, h.buffer[len(h.buffer)-limit:])
	return out, h.nextSeq
}

// Fetch returns buffered events with sequence greater than since. When wait
// is true and nothing is pending, it blocks until an event arrives or the
// context ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var cancelWait func()
	if wait {
		waitCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		cancelWait = func() { h.cond.Broadcast() }
		go func() {
			<-waitCtx.Done()
			cancelWait()
		}()
	}

	for {
		pending := h.pendingLocked(since, limit)
		if len(pending) > 0 {
			return pending, pending[len(pending)-1].Sequence, nil
		}
		if !wait {
			return nil, since, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, since, err
		}
		h.cond.Wait()
	}
}

func (h *StreamHub) pendingLocked(since uint64, limit int) []LogEvent {
	idx := len(h.buffer)
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			idx = i
			break
		}
	}
	pending := h.buffer[idx:]
	if len(pending) == 0 {
		return nil
	}
	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]LogEvent, len(pending))
	copy(out, pending)
	return out
}

type attrStreamHandler struct {
	hub   *StreamHub
	attrs []slog.Attr
}

func (a *attrStreamHandler) Enabled(context.Context, slog.Level) bool { return true }

func (a *attrStreamHandler) Handle(ctx context.Context, record slog.Record) error {
	clone := record.Clone()
	clone.AddAttrs(a.attrs...)
	return a.hub.Handle(ctx, clone)
}

func (a *attrStreamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(a.attrs)+len(attrs))
	merged = append(merged, a.attrs...)
	merged = append(merged, attrs...)
	return &attrStreamHandler{hub: a.hub, attrs: merged}
}

func (a *attrStreamHandler) WithGroup(string) slog.Handler { return a }
