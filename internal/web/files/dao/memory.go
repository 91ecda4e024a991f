package dao

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/file-vault/file-vault/internal/web/files/model"
)

// MemoryBlobs keeps blob objects in process memory. It backs mock mode and
// tests, replacing the separate throwaway server variants of earlier designs.
type MemoryBlobs struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBlobs creates an empty in-memory blob store.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{objects: make(map[string][]byte)}
}

func (b *MemoryBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "read payload for %q", key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *MemoryBlobs) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.objects[key]
	if !ok {
		return nil, 0, errors.Wrapf(model.ErrNotFound, "object %q", key)
	}

	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (b *MemoryBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *MemoryBlobs) URL(key string) string {
	return "memory://" + key
}

// Has reports whether an object exists, for inspecting orphans in tests.
func (b *MemoryBlobs) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok
}

// Keys lists every stored object key.
func (b *MemoryBlobs) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MemoryRecords keeps file records in process memory.
type MemoryRecords struct {
	mu      sync.RWMutex
	records map[string]*model.FileRecord
}

// NewMemoryRecords creates an empty in-memory record store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string]*model.FileRecord)}
}

func (r *MemoryRecords) Create(ctx context.Context, record *model.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *record
	r.records[record.ID] = &clone
	return nil
}

func (r *MemoryRecords) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.FileRecord, 0)
	for _, record := range r.records {
		if record.OwnerID == ownerID {
			clone := *record
			out = append(out, &clone)
		}
	}

	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRecords) GetByIDOwner(ctx context.Context, id, ownerID string) (*model.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok || record.OwnerID != ownerID {
		return nil, errors.Wrapf(model.ErrNotFound, "record %q", id)
	}

	clone := *record
	return &clone, nil
}

func (r *MemoryRecords) UpdateMetadata(ctx context.Context, id, ownerID string, patch model.MetadataPatch) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || record.OwnerID != ownerID {
		return nil, errors.Wrapf(model.ErrNotFound, "record %q", id)
	}

	if patch.Description != nil {
		record.Description = *patch.Description
	}
	if patch.Tags != nil {
		record.Tags = *patch.Tags
	}
	record.UpdatedAt = time.Now().UTC()

	clone := *record
	return &clone, nil
}

func (r *MemoryRecords) Delete(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || record.OwnerID != ownerID {
		return errors.Wrapf(model.ErrNotFound, "record %q", id)
	}

	delete(r.records, id)
	return nil
}

func (r *MemoryRecords) SearchByOwner(ctx context.Context, ownerID, query string) ([]*model.FileRecord, error) {
	needle := strings.ToLower(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.FileRecord, 0)
	for _, record := range r.records {
		if record.OwnerID != ownerID {
			continue
		}
		if matchesQuery(record, needle) {
			clone := *record
			out = append(out, &clone)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesQuery(record *model.FileRecord, needle string) bool {
	if strings.Contains(strings.ToLower(record.FileName), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(record.Description), needle) {
		return true
	}
	for _, tag := range record.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func sortNewestFirst(records []*model.FileRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
