// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/mwlogger"
	"github.com/wb-go/wbf/ginext"
)

// DefaultMaxUploadSize ограничивает размер загружаемого оригинала, если в конфиге не задано иное
const DefaultMaxUploadSize int64 = 20 << 20

type VariantHandler struct {
	service       VariantService
	maxUploadSize int64
}

type VariantService interface {
	UploadOriginal(ctx context.Context, data *model.OriginalCreateData) (*model.Original, error)
	GetOriginal(ctx context.Context, id string) (*model.Original, error)
	CreateVariant(ctx context.Context, originalID string, req *model.VariantCreateData) (*model.VariantRecord, error)
	ListVariants(ctx context.Context, originalID string) ([]model.VariantRecord, error)
	GetVariant(ctx context.Context, id string) (*model.VariantRecord, error)
	AddAdjustment(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) // прям скачать результат
	DeleteVariant(ctx context.Context, id string) error                       // удалить как в базе, так и в хранилище
	ListPresets(ctx context.Context) []model.PresetInfo
}

func NewVariantHandler(svc VariantService, maxUploadSize int64) *VariantHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &VariantHandler{
		service:       svc,
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes вешает все эндпоинты на движок
func (h *VariantHandler) RegisterRoutes(e *ginext.Engine) {
	e.GET("/ping", h.SimplePinger)
	e.GET("/presets", h.ListPresets)

	e.POST("/originals", h.UploadOriginal)
	e.GET("/originals/:id", h.GetOriginal)
	e.GET("/originals/:id/variants", h.ListVariants)
	e.POST("/originals/:id/variants", h.CreateVariant)

	e.GET("/variants/:id", h.GetVariant)
	e.GET("/variants/:id/result", h.LoadResult)
	e.POST("/variants/:id/adjustments", h.AddAdjustment)
	e.DELETE("/variants/:id", h.DeleteVariant)
}

func (h *VariantHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h *VariantHandler) UploadOriginal(ctx *ginext.Context) {
	// парсинг исходника
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(ctx.Request.Context(), imageFile)

	if imageHeader.Size > h.maxUploadSize {
		ctx.JSON(413, map[string]string{"error": "image is too large"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(imageFile, h.maxUploadSize+1))
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to read image"})
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		ctx.JSON(413, map[string]string{"error": "image is too large"})
		return
	}

	// собираем все в структуру
	raw := model.OriginalCreateData{
		Title:       ctx.PostForm("title"),
		Caption:     ctx.PostForm("caption"),
		ContentType: imageHeader.Header.Get("Content-Type"),
		Data:        data,
	}

	// передаем в сервис
	res, err := h.service.UploadOriginal(ctx.Request.Context(), &raw)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h *VariantHandler) GetOriginal(ctx *ginext.Context) {
	res, err := h.service.GetOriginal(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h *VariantHandler) ListVariants(ctx *ginext.Context) {
	res, err := h.service.ListVariants(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h *VariantHandler) CreateVariant(ctx *ginext.Context) {
	var req model.VariantCreateData

	// пустое тело - копия оригинала
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
			return
		}
	}

	res, err := h.service.CreateVariant(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h *VariantHandler) GetVariant(ctx *ginext.Context) {
	res, err := h.service.GetVariant(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h *VariantHandler) AddAdjustment(ctx *ginext.Context) {
	var req model.AdjustmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse request body"})
		return
	}

	res, err := h.service.AddAdjustment(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h *VariantHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(ctx.Request.Context(), res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		mwlogger.LoggerFromContext(ctx.Request.Context()).Error().Err(err).
			Int64("written", n).Str("variant", id).Msg("Failed to write variant result")
	}
}

func (h *VariantHandler) DeleteVariant(ctx *ginext.Context) {
	if err := h.service.DeleteVariant(ctx.Request.Context(), ctx.Param("id")); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

func (h *VariantHandler) ListPresets(ctx *ginext.Context) {
	ctx.JSON(200, h.service.ListPresets(ctx.Request.Context()))
}
