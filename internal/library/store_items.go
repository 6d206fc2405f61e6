package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewItem inserts a fresh item awaiting its staged upload.
func (s *Store) NewItem(ctx context.Context, title string, contentType ContentType, sourceFileName string) (*Item, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO library_items (
            title, content_type, status, source_file_name, created_at, updated_at,
            progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(title),
		contentType,
		StatusUploading,
		nullableString(sourceFileName),
		timestamp,
		timestamp,
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a library item by identifier, including soft-deleted items.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM library_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing library item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE library_items
         SET title = ?, content_type = ?, status = ?, source_file_name = ?,
             staged_path = ?, library_path = ?, extracted_path = ?, transcript_path = ?,
             document_path = ?, embeddings_path = ?, metadata_json = ?, error_message = ?,
             error_category = ?, updated_at = ?, progress_stage = ?, progress_percent = ?,
             progress_message = ?, last_heartbeat = ?, deleted_at = ?
         WHERE id = ?`,
		nullableString(item.Title),
		item.ContentType,
		item.Status,
		nullableString(item.SourceFileName),
		nullableString(item.StagedPath),
		nullableString(item.LibraryPath),
		nullableString(item.ExtractedPath),
		nullableString(item.TranscriptPath),
		nullableString(item.DocumentPath),
		nullableString(item.EmbeddingsPath),
		nullableString(item.MetadataJSON),
		nullableString(item.ErrorMessage),
		nullableString(item.ErrorCategory),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		nullableTime(item.DeletedAt),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// ListOptions narrow and order the items returned by List.
type ListOptions struct {
	Statuses       []Status
	CollectionID   int64
	Tag            string
	Search         string
	SortBy         string // created_at | updated_at | title
	SortDescending bool
	Limit          int
	Offset         int
	IncludeDeleted bool
	OnlyDeleted    bool
}

var sortColumns = map[string]string{
	"":           "created_at",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
}

// List returns library items matching the given options.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Item, error) {
	var (
		conditions []string
		args       []any
	)

	query := `SELECT ` + itemColumns + ` FROM library_items`
	if opts.CollectionID != 0 {
		query += ` JOIN collection_items ON collection_items.item_id = library_items.id`
		conditions = append(conditions, `collection_items.collection_id = ?`)
		args = append(args, opts.CollectionID)
	}
	if opts.Tag != "" {
		query += ` JOIN item_tags ON item_tags.item_id = library_items.id
            JOIN tags ON tags.id = item_tags.tag_id`
		conditions = append(conditions, `tags.name = ?`)
		args = append(args, opts.Tag)
	}
	if len(opts.Statuses) > 0 {
		conditions = append(conditions, `status IN (`+makePlaceholders(len(opts.Statuses))+`)`)
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	if opts.Search != "" {
		conditions = append(conditions, `(title LIKE ? OR source_file_name LIKE ?)`)
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern)
	}
	switch {
	case opts.OnlyDeleted:
		conditions = append(conditions, `deleted_at IS NOT NULL`)
	case !opts.IncludeDeleted:
		conditions = append(conditions, `deleted_at IS NULL`)
	}

	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}

	column, ok := sortColumns[opts.SortBy]
	if !ok {
		return nil, fmt.Errorf("unknown sort column %q", opts.SortBy)
	}
	query += ` ORDER BY library_items.` + column
	if opts.SortDescending {
		query += ` DESC`
	}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list library items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ItemsByStatus returns live items matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	return s.List(ctx, ListOptions{Statuses: []Status{status}})
}

// NextForStatuses returns the oldest live item matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + itemColumns + ` FROM library_items
        WHERE status IN (` + placeholders + `) AND deleted_at IS NULL
        ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Delete soft-deletes an item. The row and its artifacts survive so Restore
// can bring the item back.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE library_items SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Purge permanently removes an item row. Tag and collection memberships
// cascade away with it.
func (s *Store) Purge(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM library_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("purge item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Restore clears the soft-delete marker on an item.
func (s *Store) Restore(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE library_items SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`,
		now, id,
	)
	if err != nil {
		return false, fmt.Errorf("restore item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Health returns aggregate counts over the live portion of the library.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM library_items WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("library health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch status := Status(statusStr); {
		case status == StatusUploading:
			summary.Uploading += count
		case status == StatusCompleted:
			summary.Completed += count
		case status == StatusError:
			summary.Failed += count
		case IsProcessingStatus(status):
			summary.Processing += count
		default:
			summary.Ready += count
		}
	}
	return summary, rows.Err()
}
