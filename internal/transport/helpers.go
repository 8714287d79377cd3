package transport

import (
	"context"
	"errors"
	"io"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/mwlogger"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrOriginalNotFound),
		errors.Is(err, model.ErrVariantNotFound),
		errors.Is(err, model.ErrUnknownPreset),
		errors.Is(err, model.ErrResourceNotFound),
		errors.Is(err, model.ErrResourceReleased):
		return 404
	case errors.Is(err, model.ErrVariantDestroyed):
		return 410
	case errors.Is(err, model.ErrImageTooLarge):
		return 413
	case errors.Is(err, model.ErrUnreadableImage):
		return 422
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrAmbiguousVariant),
		errors.Is(err, model.ErrConfiguration),
		errors.Is(err, model.ErrUnsupportedOperation):
		return 400
	case errors.Is(err, context.DeadlineExceeded):
		return 504
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return 500
	}
}

func closeFileFlow(ctx context.Context, res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		mwlogger.LoggerFromContext(ctx).Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
