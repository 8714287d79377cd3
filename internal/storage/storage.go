// Package storage provides the binary resource store used for originals and rendered variants
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/UnendingLoop/ImageVariants/internal/storage/memstorage"
	"github.com/UnendingLoop/ImageVariants/internal/storage/miniostorage"
	"github.com/UnendingLoop/ImageVariants/internal/storage/s3storage"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

// Handle is an opaque reference to a stored resource. It doubles as the object key.
type Handle = model.Handle

// ResourceStore - контракт хранилища ресурсов. Stored content never changes; after Release
// every read of the same handle fails.
type ResourceStore interface {
	Store(ctx context.Context, data []byte, contentType string) (Handle, error)
	Release(ctx context.Context, h Handle) error
	ReadBytes(ctx context.Context, h Handle) ([]byte, error)
	Open(ctx context.Context, h Handle) (io.ReadCloser, string, error)
}

var errUnknownDriver = errors.New("unknown storage driver")

const (
	DriverMinio  = "minio"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// NewResourceStore picks the driver from STORAGE_DRIVER and keeps retrying until it connects.
func NewResourceStore(cfg *config.Config, delay time.Duration) ResourceStore {
	driver := cfg.GetString("STORAGE_DRIVER")
	if driver == "" {
		driver = DriverMinio
	}

	for {
		strg, err := connect(cfg, driver)
		switch {
		case err == nil:
			zlog.Logger.Info().Str("driver", driver).Msg("Successfully connected resource storage!")
			return strg
		case errors.Is(err, errUnknownDriver):
			zlog.Logger.Fatal().Err(err).Msg("Storage misconfigured")
		}
		zlog.Logger.Warn().Err(err).Str("driver", driver).Dur("delay", delay).Msg("Failed to init connection to resource storage")
		time.Sleep(delay)
	}
}

func connect(cfg *config.Config, driver string) (ResourceStore, error) {
	switch driver {
	case DriverMinio:
		return miniostorage.NewMinioClient(cfg)
	case DriverS3:
		return s3storage.NewS3Storage(s3storage.Config{
			Endpoint:  cfg.GetString("S3_ENDPOINT"),
			Region:    cfg.GetString("S3_REGION"),
			AccessKey: cfg.GetString("S3_ACCESS_KEY"),
			SecretKey: cfg.GetString("S3_SECRET_KEY"),
			Bucket:    cfg.GetString("BUCKET_NAME"),
		})
	case DriverMemory:
		return memstorage.New(), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownDriver, driver)
	}
}
