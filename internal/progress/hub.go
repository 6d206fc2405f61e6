package progress

import (
	"context"
	"sync"
	"time"
)

// SequencedEvent pairs a stream event with its position in the run's feed.
type SequencedEvent struct {
	Seq   uint64
	Event StreamEvent
}

// Feed buffers the events of one processing run and wakes waiters as new
// events arrive. A feed closes after its terminal event; Fetch then drains
// whatever remains without blocking.
type Feed struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []SequencedEvent
	nextSeq  uint64
	closed   bool
}

func newFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = 512
	}
	f := &Feed{capacity: capacity}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Publish appends an event to the feed. Terminal events (complete, error)
// close the feed; later publishes are dropped.
func (f *Feed) Publish(evt StreamEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.nextSeq++
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(f.buffer) == f.capacity {
		copy(f.buffer, f.buffer[1:])
		f.buffer = f.buffer[:f.capacity-1]
	}
	f.buffer = append(f.buffer, SequencedEvent{Seq: f.nextSeq, Event: evt})
	if evt.Type == EventComplete || evt.Type == EventError {
		f.closed = true
	}
	f.cond.Broadcast()
}

// Closed reports whether the feed has seen its terminal event.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Fetch returns buffered events with sequence greater than since. When wait
// is true and no events are pending, Fetch blocks until one arrives, the feed
// closes, or the context ends.
func (f *Feed) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]SequencedEvent, uint64, error) {
	if limit <= 0 || limit > f.capacity {
		limit = f.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				f.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		events, next := f.snapshotLocked(since, limit)
		if len(events) > 0 || !wait || f.closed {
			return events, next, ctxErr(ctx)
		}
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
		f.cond.Wait()
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
	}
}

func (f *Feed) snapshotLocked(since uint64, limit int) ([]SequencedEvent, uint64) {
	if len(f.buffer) == 0 {
		return nil, f.nextSeq
	}
	start := -1
	for i, evt := range f.buffer {
		if evt.Seq > since {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, f.nextSeq
	}
	end := start + limit
	if end > len(f.buffer) {
		end = len(f.buffer)
	}
	out := make([]SequencedEvent, end-start)
	copy(out, f.buffer[start:end])
	return out, f.nextSeq
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// Hub owns the active run feeds, keyed by library item id. Exactly one feed
// exists per item; starting a new run replaces the previous feed so stale
// cursors cannot observe a fresh run mid-stream.
type Hub struct {
	mu       sync.Mutex
	capacity int
	feeds    map[int64]*Feed
}

// NewHub constructs a hub whose feeds each buffer capacity events.
func NewHub(capacity int) *Hub {
	return &Hub{capacity: capacity, feeds: make(map[int64]*Feed)}
}

// OpenRun replaces any existing feed for the item with a fresh one and
// returns it. Call at the start of every upload, finalize, or reprocess run.
func (h *Hub) OpenRun(itemID int64) *Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	feed := newFeed(h.capacity)
	h.feeds[itemID] = feed
	return feed
}

// Feed returns the current feed for an item, or nil when no run is active.
func (h *Hub) Feed(itemID int64) *Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.feeds[itemID]
}

// Publish forwards an event to the item's current feed, if any.
func (h *Hub) Publish(itemID int64, evt StreamEvent) {
	if feed := h.Feed(itemID); feed != nil {
		feed.Publish(evt)
	}
}

// Publisher is the narrow emit surface handed to pipeline stages for one run.
type Publisher struct {
	hub    *Hub
	itemID int64
}

// NewPublisher binds a publisher to one item's run feed.
func (h *Hub) NewPublisher(itemID int64) *Publisher {
	return &Publisher{hub: h, itemID: itemID}
}

// Progress emits a progress event for the given step.
func (p *Publisher) Progress(step string, percent int, message string) {
	p.hub.Publish(p.itemID, NewProgressEvent(step, percent, message))
}

// TranscriptChunk streams a piece of freshly transcribed text.
func (p *Publisher) TranscriptChunk(text string) {
	p.hub.Publish(p.itemID, NewChunkEvent(EventTranscriptChunk, text))
}

// DocumentChunk streams a piece of the generated document.
func (p *Publisher) DocumentChunk(text string) {
	p.hub.Publish(p.itemID, NewChunkEvent(EventDocumentChunk, text))
}

// Log emits an informational line that never affects stage state.
func (p *Publisher) Log(message string) {
	p.hub.Publish(p.itemID, NewLogEvent(message))
}

// Complete emits the terminal success event and closes the feed.
func (p *Publisher) Complete(message string) {
	p.hub.Publish(p.itemID, NewCompleteEvent(message))
}

// Error emits the terminal failure event and closes the feed.
func (p *Publisher) Error(category, message, details string) {
	p.hub.Publish(p.itemID, NewErrorEvent(category, message, details))
}
