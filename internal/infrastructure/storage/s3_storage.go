package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/garyjia/travel-desk/internal/application/port"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Config holds the connection settings for an S3-compatible object store
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

// S3FileStorage implements port.FileStore on an S3-compatible bucket
type S3FileStorage struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewS3FileStorage creates a minio client for cfg. No network call is made;
// use EnsureBucket at startup to verify the bucket.
func NewS3FileStorage(cfg S3Config, logger *zap.Logger) (*S3FileStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3FileStorage{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet
func (s *S3FileStorage) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("Created storage bucket", zap.String("bucket", s.bucket))
	return nil
}

// Save uploads content under path
func (s *S3FileStorage) Save(ctx context.Context, path string, content []byte, contentType string) error {
	key, err := CleanKey(path)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("bucket", s.bucket),
			zap.String("key", path),
			zap.Error(err))
		return fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Debug("Object uploaded",
		zap.String("key", path),
		zap.Int("size", len(content)))
	return nil
}

// Read downloads the object at path
func (s *S3FileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	key, err := CleanKey(path)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		s.logger.Error("Failed to read object",
			zap.String("key", path),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return content, nil
}

// Exists reports whether an object is stored at path
func (s *S3FileStorage) Exists(ctx context.Context, path string) bool {
	key, err := CleanKey(path)
	if err != nil {
		return false
	}
	_, err = s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	return err == nil
}

// Delete removes the object at path. Missing objects are not an error.
func (s *S3FileStorage) Delete(ctx context.Context, path string) error {
	key, err := CleanKey(path)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		s.logger.Error("Failed to delete object",
			zap.String("key", path),
			zap.Error(err))
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

var _ port.FileStore = (*S3FileStorage)(nil)
