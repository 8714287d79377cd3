// Package s3storage stores resources in any S3-compatible bucket (AWS, R2, MinIO gateway).
package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const keyPrefix = "res/"

var errNoBucket = errors.New("s3 bucket name is required")

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

type S3Storage struct {
	client *s3.Client
	bucket string
}

func NewS3Storage(cfg Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errNoBucket
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Storage) Store(ctx context.Context, data []byte, contentType string) (model.Handle, error) {
	if data == nil {
		return "", model.ErrNilResourceContent
	}

	key := model.NewResourceKey(keyPrefix, contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(string(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %q: %w", key, err)
	}
	return key, nil
}

// Release deletes the object. DeleteObject succeeds for missing keys, hence the HeadObject.
func (s *S3Storage) Release(ctx context.Context, h model.Handle) error {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(h)),
	}); err != nil {
		return mapErr(err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(h)),
	}); err != nil {
		return fmt.Errorf("s3 delete %q: %w", h, err)
	}
	return nil
}

func (s *S3Storage) ReadBytes(ctx context.Context, h model.Handle) ([]byte, error) {
	rc, _, err := s.Open(ctx, h)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			log.Println("Failed to close s3 object body:", err)
		}
	}()
	return io.ReadAll(rc)
}

func (s *S3Storage) Open(ctx context.Context, h model.Handle) (io.ReadCloser, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(h)),
	})
	if err != nil {
		return nil, "", mapErr(err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}

func mapErr(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return errors.Join(model.ErrResourceNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return errors.Join(model.ErrResourceNotFound, err)
		}
	}
	return err
}
