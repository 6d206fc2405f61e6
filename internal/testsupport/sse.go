package testsupport

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"archivist/internal/progress"
)

// ReadSSE consumes a server-sent event body until the terminal event arrives
// or the timeout elapses, returning every decoded event. Heartbeats are
// skipped.
func ReadSSE(t testing.TB, body io.Reader, timeout time.Duration) []progress.StreamEvent {
	t.Helper()

	type result struct {
		events []progress.StreamEvent
		err    error
	}
	done := make(chan result, 1)

	go func() {
		var events []progress.StreamEvent
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var evt progress.StreamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
				done <- result{events: events, err: err}
				return
			}
			if evt.Type == progress.EventHeartbeat {
				continue
			}
			events = append(events, evt)
			if evt.Type == progress.EventComplete || evt.Type == progress.EventError {
				break
			}
		}
		done <- result{events: events, err: scanner.Err()}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("read sse stream: %v", res.err)
		}
		if len(res.events) == 0 {
			t.Fatal("sse stream produced no events")
		}
		return res.events
	case <-time.After(timeout):
		t.Fatal("timed out reading sse stream")
		return nil
	}
}
