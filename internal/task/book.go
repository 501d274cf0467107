// Package task keeps the image task records of providers that complete
// generation synchronously.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/davidbz/uniai/internal/domain"
)

// Book appends and queries task records stored under task_<provider>.
type Book struct {
	store domain.KeyValueStore
	key   string
	mu    sync.Mutex
}

// NewBook creates the task book of one provider.
func NewBook(store domain.KeyValueStore, provider string) *Book {
	return &Book{store: store, key: "task_" + provider}
}

// Key returns the side-store key of this book.
func (b *Book) Key() string {
	return b.key
}

// Append stores one more record.
func (b *Book) Append(ctx context.Context, record domain.TaskRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.load(ctx)
	if err != nil {
		return err
	}
	records = append(records, record)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := b.store.SetItem(ctx, b.key, data); err != nil {
		return fmt.Errorf("failed to store tasks: %w", err)
	}
	return nil
}

// List returns every record, or those matching id when id is non-empty.
func (b *Book) List(ctx context.Context, id string) ([]domain.TaskRecord, error) {
	b.mu.Lock()
	records, err := b.load(ctx)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if id == "" {
		return records, nil
	}

	matched := make([]domain.TaskRecord, 0, 1)
	for _, r := range records {
		if r.ID == id {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (b *Book) load(ctx context.Context) ([]domain.TaskRecord, error) {
	data, err := b.store.GetItem(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	records := []domain.TaskRecord{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return records, nil
}
