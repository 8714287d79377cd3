// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/config"
)

const keyPrefix = "res/"

type MinioImageStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(cfg *config.Config) (*MinioImageStorage, error) {
	bucket := cfg.GetString("BUCKET_NAME")

	if bucket == "" {
		bucket = "default"
		log.Printf("Bucket name is empty. Using default value %q...", bucket)
	}

	user := cfg.GetString("MINIO_USER")
	pass := cfg.GetString("MINIO_PASS")
	addr := cfg.GetString("MINIO_CONTAINER_NAME")

	// подключаемся к минио - создаем клиента
	strg, err := minio.New(addr+":9000", &minio.Options{
		Creds:  credentials.NewStaticV4(user, pass, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(context.Background(), strg, bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioImageStorage{bucket: bucket, client: strg}, nil
}

func (s *MinioImageStorage) Store(ctx context.Context, data []byte, contentType string) (model.Handle, error) {
	if data == nil {
		return "", model.ErrNilResourceContent
	}

	key := model.NewResourceKey(keyPrefix, contentType)
	if _, err := s.client.PutObject(ctx, s.bucket, string(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", err
	}

	return key, nil
}

// Release removes the object. MinIO treats removal of a missing key as success, so a second
// release is caught by a stat first.
func (s *MinioImageStorage) Release(ctx context.Context, h model.Handle) error {
	if _, err := s.client.StatObject(ctx, s.bucket, string(h), minio.StatObjectOptions{}); err != nil {
		return mapErr(err)
	}
	return s.client.RemoveObject(ctx, s.bucket, string(h), minio.RemoveObjectOptions{})
}

func (s *MinioImageStorage) ReadBytes(ctx context.Context, h model.Handle) ([]byte, error) {
	rc, _, err := s.Open(ctx, h)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			log.Println("Failed to close minio object:", err)
		}
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, mapErr(err)
	}
	return data, nil
}

func (s *MinioImageStorage) Open(ctx context.Context, h model.Handle) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, string(h), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", mapErr(err)
	}

	resStat, err := res.Stat()
	if err != nil {
		_ = res.Close()
		return nil, "", mapErr(err)
	}

	return res, resStat.ContentType, nil
}

func mapErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.Join(model.ErrResourceNotFound, err)
	}
	return err
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
