package worker

import (
	"context"
	"sync"

	kafkago "github.com/segmentio/kafka-go"
)

type mockWarmService struct {
	warmFn func(ctx context.Context, id string) error
}

func (m *mockWarmService) WarmPresets(ctx context.Context, id string) error {
	return m.warmFn(ctx, id)
}

//----------------------------------

type mockCommitter struct {
	mu        sync.Mutex
	committed []kafkago.Message
	commitErr error
}

func (m *mockCommitter) Commit(ctx context.Context, msg kafkago.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = append(m.committed, msg)
	return nil
}

func (m *mockCommitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}
