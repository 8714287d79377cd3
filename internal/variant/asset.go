package variant

import (
	"context"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/google/uuid"
)

// Asset is anything a variant can be derived from. *Variant satisfies it too, which is why
// Factory.New has to reject it explicitly.
type Asset interface {
	ID() uuid.UUID
	Title() string
	Caption() string
	ResourceHandle(ctx context.Context) (model.Handle, error)
}

// OriginalAsset adapts a persisted original to Asset.
type OriginalAsset struct {
	rec model.Original
}

func FromOriginal(o model.Original) *OriginalAsset {
	return &OriginalAsset{rec: o}
}

func (a *OriginalAsset) ID() uuid.UUID { return a.rec.UID }

func (a *OriginalAsset) Title() string { return a.rec.Title }

func (a *OriginalAsset) Caption() string { return a.rec.Caption }

func (a *OriginalAsset) ContentType() string { return a.rec.ContentType }

func (a *OriginalAsset) ResourceHandle(context.Context) (model.Handle, error) {
	if a.rec.ResourceKey == "" {
		return "", model.ErrEmptySource
	}
	return model.Handle(a.rec.ResourceKey), nil
}

func (a *OriginalAsset) Record() model.Original { return a.rec }
