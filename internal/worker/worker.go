// Package worker consumes upload events and pre-renders warm presets for new originals
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/mwlogger"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// NoopPublisher - ЗАГЛУШКА, функциональность настоящего паблишера в очередь не нужна в рамках работы воркера
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, k []byte, v []byte) error {
	return nil
}

type WarmService interface {
	WarmPresets(ctx context.Context, originalID string) error
}

// Committer подтверждает обработку сообщения - в проде это *wbfkafka.Consumer
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	service  WarmService
	queue    <-chan kafkago.Message
	consumer Committer
}

func NewWorkerInstance(svc WarmService, q <-chan kafkago.Message, cons Committer) *Worker {
	return &Worker{service: svc, queue: q, consumer: cons}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			if err := w.handle(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Str("key", string(msg.Key)).Msg("Upload event failed")
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Msg("Failed to commit queue-message")
			}
		}
	}
}

// handle возвращает ошибку только если сообщение стоит перечитать
func (w *Worker) handle(ctx context.Context, msg kafkago.Message) error {
	var event model.UploadEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// битое сообщение не починится от повтора
		zlog.Logger.Warn().Err(err).Str("key", string(msg.Key)).Msg("Skipping malformed upload event")
		return nil
	}

	id := event.OriginalUID.String()
	ctx = mwlogger.WithLogger(ctx, zlog.Logger.With().Str("original", id).Str("topic", msg.Topic).Logger())
	err := w.service.WarmPresets(ctx, id)
	switch {
	case err == nil:
		zlog.Logger.Debug().Str("original", id).Msg("Warm presets rendered")
		return nil
	case errors.Is(err, model.ErrOriginalNotFound), errors.Is(err, model.ErrIncorrectID):
		// оригинал уже удалили
		zlog.Logger.Warn().Str("original", id).Msg("Original of upload event is gone")
		return nil
	case model.IsUnreadable(err):
		zlog.Logger.Warn().Err(err).Str("original", id).Msg("Original is unreadable, nothing to warm")
		return nil
	default:
		return fmt.Errorf("warm presets of original %q: %w", id, err)
	}
}
