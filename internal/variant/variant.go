// Package variant provides the derived rendition of an original image: an exclusively owned
// adjustment chain plus the resource rendered from it.
//
// A Variant is always consistent: whenever a reader gets a result, the adjustments, the resource
// and the dimensions belong to the same completed render. Mutators on one Variant are serialized;
// distinct Variants never block each other.
package variant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/UnendingLoop/ImageVariants/internal/metrics"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/mwlogger"
	"github.com/google/uuid"
)

var (
	errNilOriginal = errors.New("variant needs an original image")
	errNotRendered = errors.New("variant has not been rendered yet")
)

// Rendition is what one transform call produced.
type Rendition struct {
	Resource model.Handle
	Width    int
	Height   int
}

// Transformer - контракт сервиса трансформации: всегда работает с нетронутым исходником,
// ошибки возвращает как model.TransformError
type Transformer interface {
	Transform(ctx context.Context, source model.Handle, adjustments []adjustment.Spec) (Rendition, error)
}

type ResourceReleaser interface {
	Release(ctx context.Context, h model.Handle) error
}

// Snapshot is a consistent view of a Ready variant.
type Snapshot struct {
	ID          uuid.UUID
	OriginalID  uuid.UUID
	PresetID    string
	Name        string
	Adjustments []adjustment.Spec
	Fingerprint string
	Resource    model.Handle
	Width       int
	Height      int
}

type Variant struct {
	id          uuid.UUID
	original    Asset
	presetID    string
	transformer Transformer
	releaser    ResourceReleaser

	// writeMu serializes mutators (refresh, destroy)
	writeMu sync.Mutex

	mu          sync.RWMutex
	name        string
	chain       *adjustment.Chain
	rendition   Rendition
	hasResource bool
	state       model.VariantState
	err         error
	done        chan struct{}
}

func (v *Variant) ID() uuid.UUID { return v.id }

func (v *Variant) Original() Asset { return v.original }

func (v *Variant) PresetID() string { return v.presetID }

// Title is the original's title; variants have none of their own.
func (v *Variant) Title() string { return v.original.Title() }

func (v *Variant) Caption() string { return v.original.Caption() }

func (v *Variant) Name() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.name
}

// SetName changes the identifying label; it doesn't affect the rendition.
func (v *Variant) SetName(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.name = name
}

// State never blocks.
func (v *Variant) State() model.VariantState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Err returns the stored failure, if any.
func (v *Variant) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Snapshot waits while a render is in flight, then returns the consistent Ready state or the
// stored failure.
func (v *Variant) Snapshot(ctx context.Context) (Snapshot, error) {
	for {
		v.mu.RLock()
		if v.state != model.StateRendering {
			snap, err := v.snapshotLocked()
			v.mu.RUnlock()
			return snap, err
		}
		done := v.done
		v.mu.RUnlock()

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-done:
		}
	}
}

func (v *Variant) snapshotLocked() (Snapshot, error) {
	switch v.state {
	case model.StateReady:
	case model.StateFailed:
		return Snapshot{}, v.err
	case model.StateDestroyed:
		return Snapshot{}, model.ErrVariantDestroyed
	default:
		return Snapshot{}, errNotRendered
	}

	return Snapshot{
		ID:          v.id,
		OriginalID:  v.original.ID(),
		PresetID:    v.presetID,
		Name:        v.name,
		Adjustments: v.chain.Ordered(),
		Fingerprint: v.chain.Fingerprint(),
		Resource:    v.rendition.Resource,
		Width:       v.rendition.Width,
		Height:      v.rendition.Height,
	}, nil
}

func (v *Variant) Resource(ctx context.Context) (model.Handle, error) {
	s, err := v.Snapshot(ctx)
	return s.Resource, err
}

// ResourceHandle makes Variant an Asset.
func (v *Variant) ResourceHandle(ctx context.Context) (model.Handle, error) {
	return v.Resource(ctx)
}

func (v *Variant) Width(ctx context.Context) (int, error) {
	s, err := v.Snapshot(ctx)
	return s.Width, err
}

func (v *Variant) Height(ctx context.Context) (int, error) {
	s, err := v.Snapshot(ctx)
	return s.Height, err
}

func (v *Variant) Adjustments(ctx context.Context) ([]adjustment.Spec, error) {
	s, err := v.Snapshot(ctx)
	return s.Adjustments, err
}

// Chain returns a copy of the current chain without waiting for a render. For a Failed variant it
// is the chain that failed to render.
func (v *Variant) Chain() *adjustment.Chain {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.chain.Clone()
}

// AddAdjustment merges spec into the chain by kind and re-renders from the original.
// A failed render leaves the variant Failed with the new chain; a failed release of the previous
// resource leaves everything as it was.
func (v *Variant) AddAdjustment(ctx context.Context, spec adjustment.Spec) (adjustment.InsertResult, error) {
	spec, err := adjustment.New(spec.Params)
	if err != nil {
		return adjustment.Inserted, &model.ConfigurationError{Index: -1, Err: err}
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	v.mu.RLock()
	state := v.state
	next := v.chain.Clone()
	v.mu.RUnlock()

	if state == model.StateDestroyed {
		return adjustment.Inserted, model.ErrVariantDestroyed
	}

	res := next.Insert(spec)
	return res, v.refresh(ctx, next)
}

// Refresh re-renders the current chain, e.g. to recover from a transient transform failure.
func (v *Variant) Refresh(ctx context.Context) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	v.mu.RLock()
	state := v.state
	next := v.chain.Clone()
	v.mu.RUnlock()

	if state == model.StateDestroyed {
		return model.ErrVariantDestroyed
	}
	return v.refresh(ctx, next)
}

// refresh must be called with writeMu held. The previous resource is released before the new one
// is rendered, so at most one derived resource exists per variant at any time.
func (v *Variant) refresh(ctx context.Context, next *adjustment.Chain) (err error) {
	logger := mwlogger.LoggerFromContext(ctx)

	source, err := v.original.ResourceHandle(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve original resource: %w", err)
	}

	v.mu.Lock()
	prevState, prevErr := v.state, v.err
	prev, hadResource := v.rendition, v.hasResource
	done := make(chan struct{})
	v.state = model.StateRendering
	v.done = done
	v.mu.Unlock()
	defer close(done)
	// runs before close(done): readers must never see a closed done with state still Rendering
	defer func() {
		if r := recover(); r != nil {
			err = v.recoverRender(ctx, next, r)
		}
	}()

	if hadResource {
		switch err := v.releaser.Release(ctx, prev.Resource); {
		case err == nil:
			metrics.ResourceReleased()
		case resourceGone(err):
			// ключ уже удален (например, упал persist до рестарта) - просто рендерим заново
			logger.Warn().Err(err).Str("variant", v.id.String()).
				Str("resource", string(prev.Resource)).Msg("Previous variant resource is already gone")
		default:
			v.mu.Lock()
			v.state, v.err = prevState, prevErr
			v.mu.Unlock()
			logger.Error().Err(err).Str("variant", v.id.String()).Msg("Failed to release previous variant resource")
			return fmt.Errorf("failed to release previous resource: %w", err)
		}
	}

	v.mu.Lock()
	v.rendition, v.hasResource = Rendition{}, false
	v.mu.Unlock()

	started := time.Now()
	r, err := v.transformer.Transform(ctx, source, next.Ordered())

	v.mu.Lock()
	defer v.mu.Unlock()

	v.chain = next
	if err != nil {
		v.state, v.err = model.StateFailed, err
		outcome := metrics.OutcomeFailed
		if model.IsUnreadable(err) {
			outcome = metrics.OutcomeUnreadable
		}
		metrics.RenderObserved(outcome, time.Since(started))
		logger.Error().Err(err).Str("variant", v.id.String()).Msg("Variant render failed")
		return err
	}

	v.rendition, v.hasResource = r, true
	v.state, v.err = model.StateReady, nil
	metrics.RenderObserved(metrics.OutcomeOK, time.Since(started))
	logger.Debug().
		Str("variant", v.id.String()).
		Str("resource", string(r.Resource)).
		Int("adjustments", next.Len()).
		Msg("Variant rendered")
	return nil
}

// recoverRender turns a panic during a render into a Failed state.
func (v *Variant) recoverRender(ctx context.Context, next *adjustment.Chain, r any) error {
	err := &model.TransformError{Op: "render", Err: fmt.Errorf("panic: %v", r)}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == model.StateRendering {
		v.chain = next
		v.state, v.err = model.StateFailed, err
	}
	metrics.RenderObserved(metrics.OutcomeFailed, 0)
	mwlogger.LoggerFromContext(ctx).Error().Err(err).Str("variant", v.id.String()).Msg("Variant render panicked")
	return err
}

// resourceGone reports a handle the store no longer knows about.
func resourceGone(err error) bool {
	return errors.Is(err, model.ErrResourceNotFound) || errors.Is(err, model.ErrResourceReleased)
}

// Destroy releases the held resource. Further reads fail with model.ErrVariantDestroyed.
// Calling it twice is a no-op.
func (v *Variant) Destroy(ctx context.Context) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	v.mu.Lock()
	if v.state == model.StateDestroyed {
		v.mu.Unlock()
		return nil
	}
	h, had := v.rendition.Resource, v.hasResource
	v.rendition, v.hasResource = Rendition{}, false
	v.state, v.err = model.StateDestroyed, model.ErrVariantDestroyed
	v.mu.Unlock()

	if !had {
		return nil
	}
	if err := v.releaser.Release(ctx, h); err != nil {
		if resourceGone(err) {
			return nil
		}
		return fmt.Errorf("failed to release resource of destroyed variant: %w", err)
	}
	metrics.ResourceReleased()
	return nil
}

// Forbidden mutators. None of them touches the variant.

func (v *Variant) SetResource(model.Handle) error {
	return &model.UnsupportedOperationError{Op: "SetResource", Rule: model.ErrSetResource}
}

func (v *Variant) SetTitle(string) error {
	return &model.UnsupportedOperationError{Op: "SetTitle", Rule: model.ErrSetTitle}
}

func (v *Variant) AddTag(string) error {
	return &model.UnsupportedOperationError{Op: "AddTag", Rule: model.ErrAddTag}
}

func (v *Variant) SetTags([]string) error {
	return &model.UnsupportedOperationError{Op: "SetTags", Rule: model.ErrAddTag}
}

func (v *Variant) AddVariant(*Variant) error {
	return &model.UnsupportedOperationError{Op: "AddVariant", Rule: model.ErrNestedVariant}
}
