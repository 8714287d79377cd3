package variant

import (
	"context"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/google/uuid"
)

// Factory builds variants wired to one transformer and one resource store.
type Factory struct {
	transformer Transformer
	releaser    ResourceReleaser
}

func NewFactory(t Transformer, r ResourceReleaser) *Factory {
	return &Factory{transformer: t, releaser: r}
}

type Option func(*Variant)

func WithID(id uuid.UUID) Option {
	return func(v *Variant) { v.id = id }
}

func WithName(name string) Option {
	return func(v *Variant) { v.name = name }
}

func WithPreset(id string) Option {
	return func(v *Variant) { v.presetID = id }
}

// WithChain renders the variant with a copy of c instead of the empty chain.
func WithChain(c *adjustment.Chain) Option {
	return func(v *Variant) {
		if c != nil {
			v.chain = c.Clone()
		}
	}
}

// New derives a variant from original and renders it right away.
//
// If rendering fails, New returns the variant in the Failed state together with the error, so
// callers can still inspect it; the stored error is reported by every later read.
// Passing a *Variant as original is rejected and returns a nil variant.
func (f *Factory) New(ctx context.Context, original Asset, opts ...Option) (*Variant, error) {
	if original == nil {
		return nil, errNilOriginal
	}
	if _, nested := original.(*Variant); nested {
		return nil, &model.UnsupportedOperationError{Op: "New", Rule: model.ErrNestedVariant}
	}

	v := f.blank(original, opts...)

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	if err := v.refresh(ctx, v.chain.Clone()); err != nil {
		v.mu.Lock()
		if v.state == model.StateUninitialized {
			v.state, v.err = model.StateFailed, err
		}
		v.mu.Unlock()
		return v, err
	}
	return v, nil
}

// RestoreData describes a variant rendered earlier and persisted.
type RestoreData struct {
	ID        uuid.UUID
	Name      string
	PresetID  string
	Chain     *adjustment.Chain
	Rendition Rendition
}

// Restore rehydrates a Ready variant without rendering. The resource in d becomes owned by it.
func (f *Factory) Restore(original Asset, d RestoreData) (*Variant, error) {
	if original == nil {
		return nil, errNilOriginal
	}
	if _, nested := original.(*Variant); nested {
		return nil, &model.UnsupportedOperationError{Op: "Restore", Rule: model.ErrNestedVariant}
	}
	if d.Rendition.Resource == "" {
		return nil, errNotRendered
	}

	v := f.blank(original, WithID(d.ID), WithName(d.Name), WithPreset(d.PresetID), WithChain(d.Chain))
	v.rendition, v.hasResource = d.Rendition, true
	v.state = model.StateReady
	return v, nil
}

func (f *Factory) blank(original Asset, opts ...Option) *Variant {
	v := &Variant{
		id:          uuid.New(),
		original:    original,
		transformer: f.transformer,
		releaser:    f.releaser,
		chain:       adjustment.NewChain(),
		state:       model.StateUninitialized,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.id == uuid.Nil {
		v.id = uuid.New()
	}
	return v
}
