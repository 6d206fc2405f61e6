package logging

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

func TestStreamHubTailReturnsRecentEvents(t *testing.T) {
	hub := NewStreamHub(16)
	logger := slog.New(hub)
	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("line %d", i))
	}

	events, next := hub.Tail(3)
	if len(events) != 3 {
		t.Fatalf("Tail(3) returned %d events", len(events))
	}
	if events[0].Message != "line 2" || events[2].Message != "line 4" {
		t.Errorf("Tail window = %q..%q", events[0].Message, events[2].Message)
	}
	if next != 5 {
		t.Errorf("cursor = %d, want 5", next)
	}
}

func TestStreamHubEvictsOldestAtCapacity(t *testing.T) {
	hub := NewStreamHub(3)
	logger := slog.New(hub)
	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("line %d", i))
	}

	events, _ := hub.Tail(0)
	if len(events) != 3 {
		t.Fatalf("buffer holds %d events, want 3", len(events))
	}
	if events[0].Message != "line 2" {
		t.Errorf("oldest retained = %q, want line 2", events[0].Message)
	}
	if events[0].Sequence != 3 {
		t.Errorf("sequence numbering restarted: %d", events[0].Sequence)
	}
}

func TestStreamHubFetchAdvancesCursor(t *testing.T) {
	hub := NewStreamHub(16)
	logger := slog.New(hub)
	logger.Info("first")
	logger.Info("second")

	events, next, err := hub.Fetch(context.Background(), 0, 1, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Message != "first" {
		t.Fatalf("first page = %+v", events)
	}

	events, next, err = hub.Fetch(context.Background(), next, 10, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Message != "second" {
		t.Fatalf("second page = %+v", events)
	}

	events, _, err = hub.Fetch(context.Background(), next, 10, false)
	if err != nil || len(events) != 0 {
		t.Fatalf("drained fetch = %+v, %v", events, err)
	}
}

func TestStreamHubFetchWaitsForNewEvents(t *testing.T) {
	hub := NewStreamHub(16)
	logger := slog.New(hub)

	type result struct {
		events []LogEvent
		err    error
	}
	done := make(chan result, 1)
	go func() {
		events, _, err := hub.Fetch(context.Background(), 0, 10, true)
		done <- result{events, err}
	}()

	time.Sleep(20 * time.Millisecond)
	logger.Info("arrived")

	select {
	case res := <-done:
		if res.err != nil || len(res.events) != 1 || res.events[0].Message != "arrived" {
			t.Fatalf("blocking fetch = %+v, %v", res.events, res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake after publish")
	}
}

func TestStreamHubFetchHonorsContext(t *testing.T) {
	hub := NewStreamHub(16)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if err == nil {
		t.Fatal("Fetch returned without error on cancelled context")
	}
}

func TestStreamHubCapturesComponentAttrs(t *testing.T) {
	hub := NewStreamHub(16)
	logger := slog.New(hub).With(slog.String(FieldComponent, "pipeline"))
	logger.Info("stage started", slog.String(FieldStage, "extract"), slog.Int64(FieldItemID, 7))

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatal("no event captured")
	}
	evt := events[0]
	if evt.Component != "pipeline" || evt.Stage != "extract" || evt.ItemID != 7 {
		t.Errorf("captured attrs = %+v", evt)
	}
}
