package api

import (
	"context"

	"archivist/internal/library"
)

// LibraryReader abstracts the store interactions needed for API queries.
type LibraryReader interface {
	List(ctx context.Context, opts library.ListOptions) ([]*library.Item, error)
	GetByID(ctx context.Context, id int64) (*library.Item, error)
	ItemTags(ctx context.Context, itemID int64) ([]string, error)
}

// LibraryService exposes read-only library operations returning API DTOs.
type LibraryService struct {
	store LibraryReader
}

// NewLibraryService constructs a LibraryService around the provided reader.
func NewLibraryService(store LibraryReader) *LibraryService {
	if store == nil {
		return nil
	}
	return &LibraryService{store: store}
}

// List returns recordings matching the provided filters.
func (s *LibraryService) List(ctx context.Context, opts library.ListOptions) ([]Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return FromItems(items), nil
}

// Describe fetches a single recording with its tags attached.
func (s *LibraryService) Describe(ctx context.Context, id int64) (*Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromItem(item)
	if tags, err := s.store.ItemTags(ctx, id); err == nil {
		dto.Tags = tags
	}
	return &dto, nil
}
