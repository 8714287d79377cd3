// Package service provides business-logic for the app
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/adjustment"
	"github.com/UnendingLoop/ImageVariants/internal/metrics"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/mwlogger"
	"github.com/UnendingLoop/ImageVariants/internal/repository"
	"github.com/UnendingLoop/ImageVariants/internal/storage"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type VariantService struct {
	repo      repository.ImageRepo
	publisher TaskPublisher
	storage   storage.ResourceStore
	factory   *variant.Factory
	presets   PresetCatalog
	live      *registry
}

func NewVariantService(repo repository.ImageRepo, pub TaskPublisher, strg storage.ResourceStore, factory *variant.Factory, presets PresetCatalog) *VariantService {
	return &VariantService{
		repo:      repo,
		publisher: pub,
		storage:   strg,
		factory:   factory,
		presets:   presets,
		live:      newRegistry(),
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// PresetCatalog - контракт каталога пресетов
type PresetCatalog interface {
	Instantiate(ctx context.Context, id string, original variant.Asset, opts ...variant.Option) (*variant.Variant, error)
	Chain(id string) (*adjustment.Chain, error)
	Infos() []model.PresetInfo
	Warm() []string
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// сколько раз перечитываем результат, если его ресурс отпустили между снапшотом и чтением
const loadAttempts = 3

//--------------------ORIGINALS

func (s *VariantService) UploadOriginal(ctx context.Context, data *model.OriginalCreateData) (*model.Original, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// Валидируем исходник
	orig, err := validateNormalizeOriginal(data)
	if err != nil {
		return nil, err
	}

	// кладем в хранилище сорсник
	h, err := s.storage.Store(ctx, data.Data, orig.ContentType)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save original in Storage")
		return nil, model.ErrCommon500
	}
	orig.ResourceKey = string(h)

	// шлем в базу
	if err := s.repo.CreateOriginal(ctx, orig); err != nil {
		logger.Error().Err(err).Msg("Failed to create original in DB")
		if rErr := s.storage.Release(ctx, h); rErr != nil {
			logger.Error().Err(rErr).Str("resource", string(h)).Msg("Failed to release orphaned original")
		}
		return nil, model.ErrCommon500
	}

	// кладем событие в очередь - прогрев пресетов не критичен для загрузки
	if s.publisher != nil {
		event, _ := json.Marshal(model.UploadEvent{
			OriginalUID: orig.UID,
			ContentType: orig.ContentType,
			Width:       orig.Width,
			Height:      orig.Height,
		})
		if err := s.publisher.SendWithRetry(ctx, retryStrategy, []byte(orig.UID.String()), event); err != nil {
			logger.Warn().Err(err).Msg(fmt.Sprintf("Failed to publish upload of original %q", orig.UID))
		}
	}

	return orig, nil
}

func (s *VariantService) GetOriginal(ctx context.Context, id string) (*model.Original, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := s.repo.GetOriginal(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrOriginalNotFound):
			return nil, err // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch original %q from DB", id))
			return nil, model.ErrCommon500
		}
	}
	return res, nil
}

//--------------------VARIANTS

// CreateVariant derives a variant from a preset or from inline adjustments. If the original
// already has a variant with the same chain, that one is returned instead of rendering again.
func (s *VariantService) CreateVariant(ctx context.Context, originalID string, req *model.VariantCreateData) (*model.VariantRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if req == nil {
		req = &model.VariantCreateData{}
	}

	orig, err := s.GetOriginal(ctx, originalID)
	if err != nil {
		return nil, err
	}

	chain, err := s.resolveChain(req)
	if err != nil {
		return nil, err
	}

	// ищем такой же вариант
	existing, err := s.repo.FindVariantByFingerprint(ctx, originalID, chain.Fingerprint())
	switch {
	case err == nil && existing.ResourceKey != "":
		logger.Debug().Str("variant", existing.UID.String()).Msg("Variant with the same adjustments already exists")
		return existing, nil
	case err != nil && !errors.Is(err, model.ErrVariantNotFound):
		logger.Error().Err(err).Msg("Failed to look up variant by fingerprint")
		return nil, model.ErrCommon500
	}

	asset := variant.FromOriginal(*orig)
	opts := []variant.Option{}
	if req.Name != "" {
		opts = append(opts, variant.WithName(req.Name))
	}

	var v *variant.Variant
	if req.Preset != "" {
		v, err = s.presets.Instantiate(ctx, req.Preset, asset, opts...)
	} else {
		v, err = s.factory.New(ctx, asset, append(opts, variant.WithChain(chain))...)
	}
	if err != nil {
		if v != nil {
			s.destroy(ctx, v)
		}
		return nil, s.renderError(ctx, err)
	}

	now := time.Now().UTC()
	rec, err := s.persist(ctx, v, &now)
	if err != nil {
		s.destroy(ctx, v)
		return nil, err
	}

	s.live.put(v)
	return rec, nil
}

func (s *VariantService) resolveChain(req *model.VariantCreateData) (*adjustment.Chain, error) {
	if req.Preset != "" && len(req.Adjustments) > 0 {
		return nil, model.ErrAmbiguousVariant
	}
	if req.Preset != "" {
		return s.presets.Chain(req.Preset)
	}
	return adjustment.FromRequests(req.Adjustments)
}

// GetVariant waits for an in-flight render and returns the variant's current state.
func (s *VariantService) GetVariant(ctx context.Context, id string) (*model.VariantRecord, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	snap, err := e.v.Snapshot(ctx)
	if err != nil {
		return nil, s.renderError(ctx, err)
	}
	return recordFromSnapshot(snap, e.createdAt, nil), nil
}

// AddAdjustment merges one adjustment into the variant's chain and re-renders it.
func (s *VariantService) AddAdjustment(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	spec, err := adjustment.FromRequest(req)
	if err != nil {
		return nil, err // 400
	}

	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	// мутация и запись в базу идут одним куском, иначе базу может перезаписать старый рендер
	e.mu.Lock()
	defer e.mu.Unlock()

	res, renderErr := e.v.AddAdjustment(ctx, spec)
	if renderErr != nil && e.v.State() == model.StateFailed {
		// старый ресурс уже отпущен - в базе не должно остаться ссылки на него
		if err := s.persistFailed(ctx, e); err != nil {
			logger.Error().Err(err).Str("variant", id).Msg("Failed to persist failed variant")
		}
	}
	if renderErr != nil {
		return nil, s.renderError(ctx, renderErr)
	}

	now := time.Now().UTC()
	rec, err := s.persist(ctx, e.v, &now)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = e.createdAt
	logger.Info().Str("variant", id).Str("result", res.String()).Msg("Adjustment applied")
	return rec, nil
}

// LoadResult opens the rendered resource of the variant.
func (s *VariantService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	e, err := s.entry(ctx, id)
	if err != nil {
		return nil, "", err
	}

	for range loadAttempts {
		snap, err := e.v.Snapshot(ctx)
		if err != nil {
			return nil, "", s.renderError(ctx, err)
		}

		// достаем из хранилища
		data, cType, err := s.storage.Open(ctx, snap.Resource)
		switch {
		case err == nil:
			return data, cType, nil
		case errors.Is(err, model.ErrResourceReleased), errors.Is(err, model.ErrResourceNotFound):
			// либо успели перерендерить, либо ключ в базе протух - тогда рендерим заново
			if err := s.rerenderStale(ctx, e, snap.Resource); err != nil {
				return nil, "", err
			}
			continue
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch variant %q from Storage", id))
			return nil, "", model.ErrCommon500
		}
	}
	return nil, "", model.ErrCommon500
}

func (s *VariantService) DeleteVariant(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	e, err := s.entry(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// удаляем из базы
	if err := s.repo.DeleteVariant(ctx, id); err != nil {
		switch {
		case errors.Is(err, model.ErrVariantNotFound):
			s.live.remove(e.v.ID())
			return err // 404
		default:
			logger.Error().Err(err).Msg("Failed to delete variant from DB")
			return model.ErrCommon500
		}
	}
	s.live.remove(e.v.ID())

	// отпускаем ресурс варианта
	if err := e.v.Destroy(ctx); err != nil {
		logger.Error().Err(err).Str("variant", id).Msg("Failed to release resource of deleted variant")
		return model.ErrCommon500
	}
	return nil
}

func (s *VariantService) ListVariants(ctx context.Context, originalID string) ([]model.VariantRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if _, err := s.GetOriginal(ctx, originalID); err != nil {
		return nil, err
	}

	res, err := s.repo.ListVariants(ctx, originalID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch variants list from DB")
		return nil, model.ErrCommon500
	}
	return res, nil
}

func (s *VariantService) ListPresets(context.Context) []model.PresetInfo {
	return s.presets.Infos()
}

// WarmPresets renders every warm preset for the original unless an equal variant exists already.
func (s *VariantService) WarmPresets(ctx context.Context, originalID string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	if _, err := s.GetOriginal(ctx, originalID); err != nil {
		return err
	}

	var errs []error
	for _, id := range s.presets.Warm() {
		status := "ok"
		if _, err := s.CreateVariant(ctx, originalID, &model.VariantCreateData{Preset: id}); err != nil {
			status = "failed"
			errs = append(errs, fmt.Errorf("preset %q: %w", id, err))
		}
		metrics.PresetWarmups.WithLabelValues(id, status).Inc()
		logger.Debug().Str("original", originalID).Str("preset", id).Str("status", status).Msg("Preset warm-up")
	}
	return errors.Join(errs...)
}

//--------------------HELPERS

// entry returns the live variant, rehydrating it from the DB on first access.
func (s *VariantService) entry(ctx context.Context, id string) (*liveEntry, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrIncorrectID
	}
	if e, ok := s.live.get(uid); ok {
		return e, nil
	}

	rec, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrVariantNotFound):
			return nil, err // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch variant %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	orig, err := s.repo.GetOriginal(ctx, rec.OriginalUID.String())
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch original of variant %q from DB", id))
		return nil, model.ErrCommon500
	}

	chain, err := adjustment.FromRequests(rec.Adjustments)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Variant %q has malformed adjustments in DB", id))
		return nil, model.ErrCommon500
	}

	asset := variant.FromOriginal(*orig)
	var v *variant.Variant
	if rec.ResourceKey != "" {
		v, err = s.factory.Restore(asset, variant.RestoreData{
			ID:       rec.UID,
			Name:     rec.Name,
			PresetID: rec.PresetID,
			Chain:    chain,
			Rendition: variant.Rendition{
				Resource: model.Handle(rec.ResourceKey),
				Width:    rec.Width,
				Height:   rec.Height,
			},
		})
	} else {
		// прошлый рендер упал - пробуем заново
		v, err = s.factory.New(ctx, asset,
			variant.WithID(rec.UID), variant.WithName(rec.Name), variant.WithPreset(rec.PresetID), variant.WithChain(chain))
	}
	if err != nil && v == nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to restore variant %q", id))
		return nil, model.ErrCommon500
	}

	e, loaded := s.live.putIfAbsent(v, rec.CreatedAt)
	if loaded && rec.ResourceKey == "" {
		// параллельный запрос успел раньше - наш рендер лишний
		s.destroy(ctx, v)
	}
	return e, nil
}

func (s *VariantService) persist(ctx context.Context, v *variant.Variant, now *time.Time) (*model.VariantRecord, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	snap, err := v.Snapshot(ctx)
	if err != nil {
		return nil, s.renderError(ctx, err)
	}

	rec := recordFromSnapshot(snap, now, now)
	if err := s.repo.SaveVariant(ctx, rec); err != nil {
		logger.Error().Err(err).Msg("Failed to save variant in DB")
		return nil, model.ErrCommon500
	}
	return rec, nil
}

func (s *VariantService) persistFailed(ctx context.Context, e *liveEntry) error {
	now := time.Now().UTC()
	chain := e.v.Chain()
	return s.repo.SaveVariant(ctx, &model.VariantRecord{
		UID:         e.v.ID(),
		OriginalUID: e.v.Original().ID(),
		PresetID:    e.v.PresetID(),
		Name:        e.v.Name(),
		Adjustments: chain.Requests(),
		Fingerprint: chain.Fingerprint(),
		CreatedAt:   e.createdAt,
		UpdatedAt:   &now,
	})
}

// rerenderStale renders the variant again if it still points at the resource the store has lost.
func (s *VariantService) rerenderStale(ctx context.Context, e *liveEntry, stale model.Handle) error {
	logger := mwlogger.LoggerFromContext(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.v.Snapshot(ctx)
	if err != nil {
		return s.renderError(ctx, err)
	}
	if snap.Resource != stale {
		return nil
	}

	logger.Warn().Str("variant", e.v.ID().String()).Str("resource", string(stale)).Msg("Variant resource is gone, rendering again")
	if err := e.v.Refresh(ctx); err != nil {
		if e.v.State() == model.StateFailed {
			if pErr := s.persistFailed(ctx, e); pErr != nil {
				logger.Error().Err(pErr).Str("variant", e.v.ID().String()).Msg("Failed to persist failed variant")
			}
		}
		return s.renderError(ctx, err)
	}

	now := time.Now().UTC()
	_, err = s.persist(ctx, e.v, &now)
	return err
}

// StartEviction drops idle variants from memory until ctx is done.
func (s *VariantService) StartEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.live.evictIdle(now, maxIdle); n > 0 {
				mwlogger.LoggerFromContext(ctx).Debug().Int("evicted", n).Int("live", s.live.len()).Msg("Idle variants evicted")
			}
		}
	}
}

func (s *VariantService) destroy(ctx context.Context, v *variant.Variant) {
	if err := v.Destroy(ctx); err != nil {
		mwlogger.LoggerFromContext(ctx).Error().Err(err).Str("variant", v.ID().String()).Msg("Failed to destroy variant")
	}
}

// renderError passes domain errors through and hides the rest behind ErrCommon500.
func (s *VariantService) renderError(ctx context.Context, err error) error {
	switch {
	case model.IsUnreadable(err),
		errors.Is(err, model.ErrConfiguration),
		errors.Is(err, model.ErrUnknownPreset),
		errors.Is(err, model.ErrUnsupportedOperation),
		errors.Is(err, model.ErrVariantDestroyed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, model.ErrCommon500):
		return err
	}
	mwlogger.LoggerFromContext(ctx).Error().Err(err).Msg("Variant render failed")
	return model.ErrCommon500
}

func recordFromSnapshot(snap variant.Snapshot, createdAt, updatedAt *time.Time) *model.VariantRecord {
	reqs := make(model.DescriptorSlice, 0, len(snap.Adjustments))
	for _, a := range snap.Adjustments {
		reqs = append(reqs, adjustment.ToRequest(a))
	}
	return &model.VariantRecord{
		UID:         snap.ID,
		OriginalUID: snap.OriginalID,
		PresetID:    snap.PresetID,
		Name:        snap.Name,
		ResourceKey: string(snap.Resource),
		Width:       snap.Width,
		Height:      snap.Height,
		Adjustments: reqs,
		Fingerprint: snap.Fingerprint,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}
