package progress

import (
	"context"
	"testing"
	"time"
)

func TestFeedPublishAndFetch(t *testing.T) {
	feed := newFeed(8)
	feed.Publish(NewLogEvent("one"))
	feed.Publish(NewProgressEvent(StageExtract, 10, "working"))

	events, next, err := feed.Fetch(context.Background(), 0, 10, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 2 || next != 2 {
		t.Fatalf("got %d events, next=%d", len(events), next)
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("sequences = %d, %d", events[0].Seq, events[1].Seq)
	}

	// Cursor past the end returns nothing.
	events, _, _ = feed.Fetch(context.Background(), next, 10, false)
	if len(events) != 0 {
		t.Fatalf("unexpected events past cursor: %d", len(events))
	}
}

func TestFeedCapacityDropsOldest(t *testing.T) {
	feed := newFeed(2)
	feed.Publish(NewLogEvent("a"))
	feed.Publish(NewLogEvent("b"))
	feed.Publish(NewLogEvent("c"))

	events, _, _ := feed.Fetch(context.Background(), 0, 10, false)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Event.Message != "b" || events[1].Event.Message != "c" {
		t.Fatalf("buffer = %q, %q", events[0].Event.Message, events[1].Event.Message)
	}
	// Sequence numbers keep counting even when the buffer drops entries.
	if events[0].Seq != 2 {
		t.Fatalf("oldest retained seq = %d", events[0].Seq)
	}
}

func TestFeedClosesOnTerminalEvent(t *testing.T) {
	feed := newFeed(8)
	feed.Publish(NewCompleteEvent("done"))
	if !feed.Closed() {
		t.Fatal("feed open after complete")
	}
	feed.Publish(NewLogEvent("late"))
	events, _, _ := feed.Fetch(context.Background(), 0, 10, false)
	if len(events) != 1 {
		t.Fatalf("publish after close accepted: %d events", len(events))
	}

	errFeed := newFeed(8)
	errFeed.Publish(NewErrorEvent("api", "boom", ""))
	if !errFeed.Closed() {
		t.Fatal("feed open after error")
	}
}

func TestFeedFetchBlocksUntilPublish(t *testing.T) {
	feed := newFeed(8)
	got := make(chan int, 1)
	go func() {
		events, _, _ := feed.Fetch(context.Background(), 0, 10, true)
		got <- len(events)
	}()

	time.Sleep(20 * time.Millisecond)
	feed.Publish(NewLogEvent("wake"))

	select {
	case n := <-got:
		if n != 1 {
			t.Fatalf("woke with %d events", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never woke")
	}
}

func TestFeedFetchHonorsContext(t *testing.T) {
	feed := newFeed(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := feed.Fetch(ctx, 0, 10, true)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch ignored cancellation")
	}
}

func TestHubOpenRunReplacesFeed(t *testing.T) {
	hub := NewHub(8)
	first := hub.OpenRun(7)
	first.Publish(NewLogEvent("stale"))

	second := hub.OpenRun(7)
	if hub.Feed(7) != second {
		t.Fatal("hub kept the old feed")
	}
	events, _, _ := second.Fetch(context.Background(), 0, 10, false)
	if len(events) != 0 {
		t.Fatal("fresh feed saw events from the previous run")
	}
}

func TestPublisherRoutesToFeed(t *testing.T) {
	hub := NewHub(8)
	feed := hub.OpenRun(3)
	pub := hub.NewPublisher(3)

	pub.Progress("transcription", 25, "Transcribing...")
	pub.TranscriptChunk("hello ")
	pub.Log("note")
	pub.Complete("Processing complete")

	events, _, _ := feed.Fetch(context.Background(), 0, 10, false)
	if len(events) != 4 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Event.Type != EventProgress || events[0].Event.Step != "transcription" {
		t.Fatalf("first event = %+v", events[0].Event)
	}
	if events[3].Event.Type != EventComplete {
		t.Fatalf("last event = %+v", events[3].Event)
	}
	if !feed.Closed() {
		t.Fatal("complete did not close the feed")
	}

	// Publishing to an item with no open run is a silent no-op.
	hub.NewPublisher(99).Log("nowhere")
}
