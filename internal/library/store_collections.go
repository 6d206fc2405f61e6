package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateCollection inserts a named collection. Names are unique.
func (s *Store) CreateCollection(ctx context.Context, name, description string) (*Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("collection name is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO collections (name, description, created_at) VALUES (?, ?, ?)`,
		name,
		nullableString(description),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCollection(ctx, id)
}

// GetCollection fetches a collection with its item count.
func (s *Store) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT c.id, c.name, c.description, c.created_at,
            (SELECT COUNT(1) FROM collection_items ci WHERE ci.collection_id = c.id)
        FROM collections c WHERE c.id = ?`,
		id,
	)
	col, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// ListCollections returns all collections ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT c.id, c.name, c.description, c.created_at,
            (SELECT COUNT(1) FROM collection_items ci WHERE ci.collection_id = c.id)
        FROM collections c ORDER BY c.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, col)
	}
	return collections, rows.Err()
}

// DeleteCollection removes a collection; memberships cascade away.
func (s *Store) DeleteCollection(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete collection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AddToCollection places an item in a collection. Adding twice is a no-op.
func (s *Store) AddToCollection(ctx context.Context, collectionID, itemID int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT OR IGNORE INTO collection_items (collection_id, item_id, added_at) VALUES (?, ?, ?)`,
		collectionID, itemID, now,
	); err != nil {
		return fmt.Errorf("add to collection: %w", err)
	}
	return nil
}

// RemoveFromCollection takes an item out of a collection.
func (s *Store) RemoveFromCollection(ctx context.Context, collectionID, itemID int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM collection_items WHERE collection_id = ? AND item_id = ?`,
		collectionID, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("remove from collection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanCollection(scanner interface{ Scan(dest ...any) error }) (*Collection, error) {
	var (
		id          int64
		name        string
		description sql.NullString
		createdRaw  sql.NullString
		count       int
	)
	if err := scanner.Scan(&id, &name, &description, &createdRaw, &count); err != nil {
		return nil, err
	}
	col := &Collection{ID: id, Name: name, Description: description.String, ItemCount: count}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		col.CreatedAt = created
	}
	return col, nil
}
