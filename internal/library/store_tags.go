package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateTag inserts a tag, returning the existing one when the name is taken.
func (s *Store) CreateTag(ctx context.Context, name string) (*Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, errors.New("tag name is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT OR IGNORE INTO tags (name, created_at) VALUES (?, ?)`,
		name, now,
	); err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	return s.GetTagByName(ctx, name)
}

// GetTagByName fetches a tag by its normalized name.
func (s *Store) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM tags WHERE name = ?`, name)
	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// DeleteTag removes a tag; item associations cascade away.
func (s *Store) DeleteTag(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// TagItem attaches a tag to an item, creating the tag when needed.
func (s *Store) TagItem(ctx context.Context, itemID int64, name string) error {
	tag, err := s.CreateTag(ctx, name)
	if err != nil {
		return err
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)`,
		itemID, tag.ID,
	); err != nil {
		return fmt.Errorf("tag item: %w", err)
	}
	return nil
}

// UntagItem removes a tag from an item.
func (s *Store) UntagItem(ctx context.Context, itemID int64, name string) (bool, error) {
	tag, err := s.GetTagByName(ctx, name)
	if err != nil {
		return false, err
	}
	if tag == nil {
		return false, nil
	}
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM item_tags WHERE item_id = ? AND tag_id = ?`,
		itemID, tag.ID,
	)
	if err != nil {
		return false, fmt.Errorf("untag item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ItemTags returns the tag names attached to an item, ordered by name.
func (s *Store) ItemTags(ctx context.Context, itemID int64) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.name FROM tags t JOIN item_tags it ON it.tag_id = t.id
        WHERE it.item_id = ? ORDER BY t.name`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("item tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanTag(scanner interface{ Scan(dest ...any) error }) (*Tag, error) {
	var (
		id         int64
		name       string
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &name, &createdRaw); err != nil {
		return nil, err
	}
	tag := &Tag{ID: id, Name: name}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		tag.CreatedAt = created
	}
	return tag, nil
}
