package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"archivist/internal/client"
	"archivist/internal/progress"
)

// remediationHints gives one recovery suggestion per error category.
var remediationHints = map[progress.ErrorType]string{
	progress.ErrorAPI:     "The daemon rejected the request. Check `archivist daemon status` and the daemon logs.",
	progress.ErrorNetwork: "The connection to the daemon was lost. Verify the daemon is running and reachable.",
	progress.ErrorData:    "The source file could not be processed. Verify it opens locally, then upload it again.",
	progress.ErrorQuota:   "A remote service quota was exhausted. Wait for the quota to reset or switch API keys.",
	progress.ErrorUnknown: "Check `archivist logs --item <id>` for details.",
}

// runFollower renders one processing run as it streams. It is the transport's
// subscriber: events fold into the reducer and status changes print as they
// happen.
type runFollower struct {
	out       io.Writer
	showText  bool
	startedAt time.Time

	mu      sync.Mutex
	reducer *progress.Reducer
	printed map[string]progress.StageStatus
	labels  map[string]string
	textual bool

	finished   chan struct{}
	finishOnce sync.Once
}

func newRunFollower(out io.Writer, reducer *progress.Reducer, showText bool) *runFollower {
	return &runFollower{
		out:       out,
		showText:  showText,
		startedAt: time.Now(),
		reducer:   reducer,
		printed:   make(map[string]progress.StageStatus),
		labels:    make(map[string]string),
		finished:  make(chan struct{}),
	}
}

func (f *runFollower) HandleEvent(evt progress.StreamEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reducer.Apply(evt)

	switch evt.Type {
	case progress.EventLog:
		if msg := strings.TrimSpace(evt.Message); msg != "" {
			fmt.Fprintf(f.out, "  %s\n", msg)
		}
	case progress.EventTranscriptChunk, progress.EventDocumentChunk:
		if f.showText {
			if f.textual {
				fmt.Fprint(f.out, evt.Message)
			} else {
				fmt.Fprintf(f.out, "\n%s", evt.Message)
				f.textual = true
			}
		}
	}
	f.printStageChanges()

	if f.reducer.Terminal() {
		f.endText()
		f.finish()
	}
}

func (f *runFollower) HandleDisconnect(err error) {
	f.mu.Lock()
	f.reducer.Fail(progress.ErrorNetwork, err.Error())
	f.endText()
	f.mu.Unlock()
	f.finish()
}

func (f *runFollower) finish() {
	f.finishOnce.Do(func() { close(f.finished) })
}

// endText terminates an open streamed-text block with a newline so the stage
// lines that follow start at column zero.
func (f *runFollower) endText() {
	if f.textual {
		fmt.Fprintln(f.out)
		f.textual = false
	}
}

// printStageChanges emits one line per stage status transition.
func (f *runFollower) printStageChanges() {
	for _, st := range f.reducer.Stages() {
		prev, seen := f.printed[st.ID]
		if seen && prev == st.Status && f.labels[st.ID] == st.Label {
			continue
		}
		switch st.Status {
		case progress.StageInProgress:
			f.endText()
			fmt.Fprintf(f.out, "▸ %s\n", st.Label)
		case progress.StageCompleted:
			f.endText()
			fmt.Fprintf(f.out, "✔ %s\n", st.Label)
		case progress.StageError:
			f.endText()
			fmt.Fprintf(f.out, "✘ %s\n", st.Label)
		}
		f.printed[st.ID] = st.Status
		f.labels[st.ID] = st.Label
	}
}

func (f *runFollower) wait(ctx context.Context) error {
	select {
	case <-f.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// summary prints elapsed time and the streamed-text speed once a run ends
// successfully.
func (f *runFollower) summary() {
	f.mu.Lock()
	defer f.mu.Unlock()
	elapsed := time.Since(f.startedAt).Round(time.Second)
	if speed := f.reducer.Speed(); speed > 0 {
		fmt.Fprintf(f.out, "Done in %s (%.0f chars/s)\n", elapsed, speed)
		return
	}
	fmt.Fprintf(f.out, "Done in %s\n", elapsed)
}

func (f *runFollower) runError() *progress.RunError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reducer.Err()
}

// failedStage returns the stage id marked errored, if any.
func (f *runFollower) failedStage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range f.reducer.Stages() {
		if st.Status == progress.StageError {
			return st.ID
		}
	}
	return ""
}

func renderRunError(out io.Writer, id int64, runErr *progress.RunError) {
	fmt.Fprintf(out, "\nProcessing failed (%s): %s\n", runErr.Type, runErr.Message)
	if runErr.Details != "" {
		fmt.Fprintf(out, "  %s\n", runErr.Details)
	}
	hint, ok := remediationHints[runErr.Type]
	if !ok {
		hint = remediationHints[progress.ErrorUnknown]
	}
	fmt.Fprintf(out, "  %s\n", strings.ReplaceAll(hint, "<id>", fmt.Sprint(id)))
}

// followRun attaches a fresh reducer to a newly opened stream and blocks until
// the run reaches a terminal state. Retrying a run goes through followRun again
// with a new open call; a transport and its reducer are never reused.
func followRun(ctx context.Context, out io.Writer, contentType string, showText bool,
	open func(context.Context) (*client.Transport, error)) (*runFollower, error) {

	transport, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer transport.Close()

	reducer := progress.NewReducer(progress.PipelineFor(contentType))
	follower := newRunFollower(out, reducer, showText)
	transport.SetSubscriber(follower)

	if err := follower.wait(ctx); err != nil {
		return nil, err
	}
	return follower, nil
}

// followProcessing renders a processing run and retries once over a fresh
// stream when the connection drops mid-run. The retry resumes from the failed
// stage so completed work is not repeated.
func followProcessing(cmd *cobra.Command, ctx *commandContext, id int64, contentType string,
	open func(context.Context) (*client.Transport, error)) error {

	out := cmd.OutOrStdout()
	follower, err := followRun(cmd.Context(), out, contentType, true, open)
	if err != nil {
		return err
	}

	if runErr := follower.runError(); runErr != nil && runErr.Type == progress.ErrorNetwork {
		step := follower.failedStage()
		if step == "" {
			step = "all"
		}
		fmt.Fprintf(out, "\nConnection lost, retrying from %s...\n", step)
		follower, err = followRun(cmd.Context(), out, contentType, true,
			func(retryCtx context.Context) (*client.Transport, error) {
				return ctx.apiClient().FollowReprocess(retryCtx, id, step)
			})
		if err != nil {
			return err
		}
	}

	if runErr := follower.runError(); runErr != nil {
		renderRunError(out, id, runErr)
		return fmt.Errorf("processing recording %d failed: %s", id, runErr.Message)
	}
	follower.summary()
	return nil
}
