// Package progress defines the live progress contract for processing runs:
// the StreamEvent wire shape, the static stage registry, the event reducer
// consumers fold events through, and the per-run feed hub the daemon's SSE
// endpoints serve from.
//
// The reducer implements the display state machine: stages move pending →
// in_progress → completed with a side transition to error, the next pending
// stage is optimistically started whenever one completes, and complete/error
// events are terminal for the run. The daemon and the CLI share this package
// so both sides of the stream agree on semantics.
package progress
