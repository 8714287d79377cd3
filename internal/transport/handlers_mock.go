package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/gin-gonic/gin"
)

type mockVariantService struct {
	uploadFn        func(ctx context.Context, d *model.OriginalCreateData) (*model.Original, error)
	getOriginalFn   func(ctx context.Context, id string) (*model.Original, error)
	createFn        func(ctx context.Context, originalID string, req *model.VariantCreateData) (*model.VariantRecord, error)
	listFn          func(ctx context.Context, originalID string) ([]model.VariantRecord, error)
	getFn           func(ctx context.Context, id string) (*model.VariantRecord, error)
	addAdjustmentFn func(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error)
	loadResultFn    func(ctx context.Context, id string) (io.ReadCloser, string, error)
	deleteFn        func(ctx context.Context, id string) error
	presetsFn       func(ctx context.Context) []model.PresetInfo
}

func (m *mockVariantService) UploadOriginal(ctx context.Context, d *model.OriginalCreateData) (*model.Original, error) {
	return m.uploadFn(ctx, d)
}

func (m *mockVariantService) GetOriginal(ctx context.Context, id string) (*model.Original, error) {
	return m.getOriginalFn(ctx, id)
}

func (m *mockVariantService) CreateVariant(ctx context.Context, originalID string, req *model.VariantCreateData) (*model.VariantRecord, error) {
	return m.createFn(ctx, originalID, req)
}

func (m *mockVariantService) ListVariants(ctx context.Context, originalID string) ([]model.VariantRecord, error) {
	return m.listFn(ctx, originalID)
}

func (m *mockVariantService) GetVariant(ctx context.Context, id string) (*model.VariantRecord, error) {
	return m.getFn(ctx, id)
}

func (m *mockVariantService) AddAdjustment(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error) {
	return m.addAdjustmentFn(ctx, id, req)
}

func (m *mockVariantService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockVariantService) DeleteVariant(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockVariantService) ListPresets(ctx context.Context) []model.PresetInfo {
	return m.presetsFn(ctx)
}

func init() {
	gin.SetMode(gin.TestMode)
}
