package minio

import (
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Storage struct {
	client         *miniogo.Client
	manifestBucket string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ManifestBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:         client,
		manifestBucket: cfg.ManifestBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.manifestBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.manifestBucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.manifestBucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.manifestBucket, err)
		}
	}
	return nil
}

func (s *Storage) UploadManifest(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.manifestBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	return nil
}
