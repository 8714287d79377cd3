package service

import (
	"context"
	"errors"
	"sync"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK RESPOSITORY

type mockRepo struct {
	createOriginalFn func(ctx context.Context, o *model.Original) error
	getOriginalFn    func(ctx context.Context, id string) (*model.Original, error)
	saveVariantFn    func(ctx context.Context, v *model.VariantRecord) error
	getVariantFn     func(ctx context.Context, id string) (*model.VariantRecord, error)
	findFn           func(ctx context.Context, originalID, fingerprint string) (*model.VariantRecord, error)
	listVariantsFn   func(ctx context.Context, originalID string) ([]model.VariantRecord, error)
	deleteVariantFn  func(ctx context.Context, id string) error
}

func (m *mockRepo) CreateOriginal(ctx context.Context, o *model.Original) error {
	return m.createOriginalFn(ctx, o)
}

func (m *mockRepo) GetOriginal(ctx context.Context, id string) (*model.Original, error) {
	return m.getOriginalFn(ctx, id)
}

func (m *mockRepo) SaveVariant(ctx context.Context, v *model.VariantRecord) error {
	return m.saveVariantFn(ctx, v)
}

func (m *mockRepo) GetVariant(ctx context.Context, id string) (*model.VariantRecord, error) {
	return m.getVariantFn(ctx, id)
}

func (m *mockRepo) FindVariantByFingerprint(ctx context.Context, originalID, fingerprint string) (*model.VariantRecord, error) {
	return m.findFn(ctx, originalID, fingerprint)
}

func (m *mockRepo) ListVariants(ctx context.Context, originalID string) ([]model.VariantRecord, error) {
	return m.listVariantsFn(ctx, originalID)
}

func (m *mockRepo) DeleteVariant(ctx context.Context, id string) error {
	return m.deleteVariantFn(ctx, id)
}

// MEMORY REPOSITORY - хранит записи в map, для сценариев из нескольких шагов

type memRepo struct {
	mu        sync.Mutex
	originals map[string]model.Original
	variants  map[string]model.VariantRecord
	saves     int
	failSaves int // столько следующих SaveVariant упадут
}

func newMemRepo() *memRepo {
	return &memRepo{originals: map[string]model.Original{}, variants: map[string]model.VariantRecord{}}
}

func (m *memRepo) CreateOriginal(_ context.Context, o *model.Original) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.originals[o.UID.String()] = *o
	return nil
}

func (m *memRepo) GetOriginal(_ context.Context, id string) (*model.Original, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.originals[id]
	if !ok {
		return nil, model.ErrOriginalNotFound
	}
	return &o, nil
}

func (m *memRepo) SaveVariant(_ context.Context, v *model.VariantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failSaves > 0 {
		m.failSaves--
		return errors.New("db down")
	}
	if old, ok := m.variants[v.UID.String()]; ok {
		v2 := *v
		v2.CreatedAt = old.CreatedAt
		m.variants[v.UID.String()] = v2
		return nil
	}
	m.variants[v.UID.String()] = *v
	return nil
}

func (m *memRepo) failNextSaves(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSaves = n
}

func (m *memRepo) GetVariant(_ context.Context, id string) (*model.VariantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return nil, model.ErrVariantNotFound
	}
	return &v, nil
}

func (m *memRepo) FindVariantByFingerprint(_ context.Context, originalID, fingerprint string) (*model.VariantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.variants {
		if v.OriginalUID.String() == originalID && v.Fingerprint == fingerprint {
			return &v, nil
		}
	}
	return nil, model.ErrVariantNotFound
}

func (m *memRepo) ListVariants(_ context.Context, originalID string) ([]model.VariantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []model.VariantRecord{}
	for _, v := range m.variants {
		if v.OriginalUID.String() == originalID {
			res = append(res, v)
		}
	}
	return res, nil
}

func (m *memRepo) DeleteVariant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.variants[id]; !ok {
		return model.ErrVariantNotFound
	}
	delete(m.variants, id)
	return nil
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}
