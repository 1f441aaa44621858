package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioStorage struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger
}

// NewMinioStorage creates an S3-compatible store. The bucket is created by
// Ensure if it does not exist.
func NewMinioStorage(cfg Config, logger *slog.Logger) (AttachmentStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	return &minioStorage{
		client: client,
		bucket: cfg.MinioBucket,
		region: cfg.MinioRegion,
		logger: logger.With("storage", DriverMinio, "bucket", cfg.MinioBucket),
	}, nil
}

func (s *minioStorage) Ensure(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		// Another instance may have created it in the meantime.
		if exists, errExists := s.client.BucketExists(ctx, s.bucket); errExists == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket: %w", err)
	}

	s.logger.Info("bucket created")
	return nil
}

func (s *minioStorage) Put(ctx context.Context, r io.Reader, size int64, fileName string) (*Object, error) {
	name := objectName(fileName, time.Now())

	opts := minio.PutObjectOptions{}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		opts.ContentType = ct
	}

	if _, err := s.client.PutObject(ctx, s.bucket, name, r, size, opts); err != nil {
		return nil, fmt.Errorf("failed to upload object to minio: %w", err)
	}

	endpoint := s.client.EndpointURL()
	return &Object{
		ID:  name,
		URL: fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, s.bucket, name),
	}, nil
}

func (s *minioStorage) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidKey
	}
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object from minio: %w", err)
	}
	return nil
}
