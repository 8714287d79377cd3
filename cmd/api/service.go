package main

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageVariants/internal/model"
)

type VariantAPIService interface {
	UploadOriginal(ctx context.Context, data *model.OriginalCreateData) (*model.Original, error)
	GetOriginal(ctx context.Context, id string) (*model.Original, error)
	CreateVariant(ctx context.Context, originalID string, req *model.VariantCreateData) (*model.VariantRecord, error)
	ListVariants(ctx context.Context, originalID string) ([]model.VariantRecord, error)
	GetVariant(ctx context.Context, id string) (*model.VariantRecord, error)
	AddAdjustment(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error)
	DeleteVariant(ctx context.Context, id string) error
	ListPresets(ctx context.Context) []model.PresetInfo
}
