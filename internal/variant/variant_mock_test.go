package variant

import (
	"context"
	"fmt"
	"sync"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/storage/memstorage"
)

// MOCK TRANSFORMER - считает размеры по цепочке без реального декодирования

type mockTransformer struct {
	mu      sync.Mutex
	store   *memstorage.MemoryStorage
	width   int
	height  int
	err     error
	sources []model.Handle
	calls   int
	panics  int

	// если gate задан - Transform сообщает о входе в entered и ждет gate
	gate    chan struct{}
	entered chan struct{}
}

func (m *mockTransformer) Transform(ctx context.Context, source model.Handle, specs []adjustment.Spec) (Rendition, error) {
	m.mu.Lock()
	m.calls++
	m.sources = append(m.sources, source)
	gate, entered, failure := m.gate, m.entered, m.err
	w, h := m.width, m.height
	boom := m.panics > 0
	if boom {
		m.panics--
	}
	m.mu.Unlock()

	if boom {
		panic("image: NewNRGBA Rectangle has huge or negative dimensions")
	}

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if failure != nil {
		return Rendition{}, failure
	}

	for _, s := range specs {
		switch p := s.Params.(type) {
		case adjustment.Resize:
			switch {
			case p.Width > 0 && p.Height > 0:
				w, h = p.Width, p.Height
			case p.Width > 0:
				h = h * p.Width / w
				w = p.Width
			default:
				w = w * p.Height / h
				h = p.Height
			}
		case adjustment.Crop:
			if p.AspectRatio.IsZero() {
				w, h = p.Width, p.Height
			} else if w > h {
				w = h
			} else {
				h = w
			}
		case adjustment.Rotate:
			if p.Degrees != 180 {
				w, h = h, w
			}
		}
	}

	handle, err := m.store.Store(ctx, []byte(fmt.Sprintf("%dx%d", w, h)), model.PNG)
	if err != nil {
		return Rendition{}, &model.TransformError{Op: "store", Err: err}
	}
	return Rendition{Resource: handle, Width: w, Height: h}, nil
}

func (m *mockTransformer) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockTransformer) panicTimes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics = n
}

func (m *mockTransformer) setGate(gate, entered chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate, m.entered = gate, entered
}

func (m *mockTransformer) stats() (int, []model.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, append([]model.Handle(nil), m.sources...)
}

// MOCK RELEASER - падает заданное число раз, потом отдает в хранилище

type flakyReleaser struct {
	mu       sync.Mutex
	store    *memstorage.MemoryStorage
	failures int
}

func (f *flakyReleaser) Release(ctx context.Context, h model.Handle) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return fmt.Errorf("storage is down")
	}
	f.mu.Unlock()
	return f.store.Release(ctx, h)
}
