// Package memstorage keeps resources in process memory. Used by the CLI and in tests.
package memstorage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/UnendingLoop/ImageVariants/internal/model"
)

type entry struct {
	data        []byte
	contentType string
}

type MemoryStorage struct {
	mu       sync.RWMutex
	objects  map[model.Handle]entry
	released map[model.Handle]bool
	stored   int
	releases int
}

func New() *MemoryStorage {
	return &MemoryStorage{
		objects:  make(map[model.Handle]entry),
		released: make(map[model.Handle]bool),
	}
}

func (s *MemoryStorage) Store(ctx context.Context, data []byte, contentType string) (model.Handle, error) {
	if data == nil {
		return "", model.ErrNilResourceContent
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h := model.NewResourceKey("mem/", contentType)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[h] = entry{data: bytes.Clone(data), contentType: contentType}
	s.stored++

	return h, nil
}

func (s *MemoryStorage) Release(ctx context.Context, h model.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released[h] {
		return model.ErrResourceReleased
	}
	if _, ok := s.objects[h]; !ok {
		return model.ErrResourceNotFound
	}
	delete(s.objects, h)
	s.released[h] = true
	s.releases++

	return nil
}

func (s *MemoryStorage) ReadBytes(ctx context.Context, h model.Handle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(e.data), nil
}

func (s *MemoryStorage) Open(ctx context.Context, h model.Handle) (io.ReadCloser, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(h)
	if err != nil {
		return nil, "", err
	}
	return io.NopCloser(bytes.NewReader(e.data)), e.contentType, nil
}

func (s *MemoryStorage) lookup(h model.Handle) (entry, error) {
	if s.released[h] {
		return entry{}, model.ErrResourceReleased
	}
	e, ok := s.objects[h]
	if !ok {
		return entry{}, model.ErrResourceNotFound
	}
	return e, nil
}

// Counts reports how many resources were ever stored and released.
func (s *MemoryStorage) Counts() (stored, released int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stored, s.releases
}

// Live returns the number of resources currently held.
func (s *MemoryStorage) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
