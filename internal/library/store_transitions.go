package library

import (
	"context"
	"fmt"
	"time"
)

// processingRollbackCase maps each in-flight status back to the start of its
// stage. Text-bearing content never passes through the transcription statuses,
// so its document stage restarts from extracted.
const processingRollbackCase = `CASE status
    WHEN 'extracting' THEN 'uploaded'
    WHEN 'transcribing' THEN 'extracted'
    WHEN 'doc_generating' THEN
        CASE WHEN content_type IN ('document', 'text') THEN 'extracted' ELSE 'transcribed' END
    WHEN 'embedding' THEN 'doc_generated'
    ELSE status
END`

// ResetStuckProcessing resets items in processing states back to the start of
// their current stage. Called on daemon startup to recover from a crash.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE library_items
         SET status = `+processingRollbackCase+`,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusExtracting,
		StatusTranscribing,
		StatusDocGenerating,
		StatusEmbedding,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE library_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items stuck in processing back to the start
// of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE library_items
        SET status = `+processingRollbackCase+`,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (?, ?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		now.Format(time.RFC3339Nano),
		StatusExtracting,
		StatusTranscribing,
		StatusDocGenerating,
		StatusEmbedding,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RollbackForStep rewinds an item so the pipeline re-runs from the given step.
// The item must not be mid-processing; reprocessing an in-flight item would
// race the worker that owns it.
func (s *Store) RollbackForStep(ctx context.Context, id int64, step ProcessingStep) (*Item, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d not found", id)
	}
	if item.IsProcessing() {
		return nil, fmt.Errorf("item %d is processing (%s); wait for the current run", id, item.Status)
	}

	target, ok := StartStatusForStep(step, item.ContentType)
	if !ok {
		return nil, fmt.Errorf("step %q does not apply to %s content", step, item.ContentType)
	}

	item.Status = target
	item.ErrorMessage = ""
	item.ErrorCategory = ""
	item.ProgressStage = ""
	item.ProgressPercent = 0
	item.ProgressMessage = ""
	item.LastHeartbeat = nil
	if err := s.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// RetryFailed moves errored items back to uploaded for a full reprocess.
// With no ids, every errored item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE library_items
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, error_category = NULL, updated_at = ?
            WHERE status = ? AND deleted_at IS NULL`,
			StatusUploaded,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusError,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusUploaded, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE library_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, error_category = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusError) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}
