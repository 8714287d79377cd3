package service

import (
	"errors"
	"strings"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/imageproc"
	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/google/uuid"
)

const maxTitleLen = 255

func validateNormalizeOriginal(raw *model.OriginalCreateData) (*model.Original, error) {
	// корректен ли исходник
	if raw == nil || len(raw.Data) == 0 {
		return nil, model.ErrEmptySource
	}

	// тип берем из самих байт, а не из заголовка запроса
	ctype, w, h, err := imageproc.Probe(raw.Data)
	if errors.Is(err, model.ErrImageTooLarge) {
		return nil, model.ErrImageTooLarge
	}
	if err != nil || !model.InImageTypeMap[ctype] {
		return nil, model.ErrUnsupportedFormat
	}
	if w <= 0 || h <= 0 {
		return nil, model.ErrEmptySource
	}

	// заголовок из запроса учитываем только если он не противоречит содержимому
	if declared := strings.TrimSpace(raw.ContentType); declared != "" && model.InImageTypeMap[declared] && declared != ctype {
		return nil, model.ErrUnsupportedFormat
	}

	title := strings.TrimSpace(raw.Title)
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	now := time.Now().UTC()
	return &model.Original{
		UID:         uuid.New(),
		Title:       title,
		Caption:     strings.TrimSpace(raw.Caption),
		ContentType: ctype,
		Width:       w,
		Height:      h,
		CreatedAt:   &now,
	}, nil
}
