package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-segment/service/config"
)

type minioMirror struct {
	client *miniogo.Client
	bucket string
	scheme string
	host   string
}

// NewMinio connects to the configured MinIO (or any S3 compatible) endpoint
// and makes sure the bucket exists.
func NewMinio(ctx context.Context, cfg config.MinioSettings) (Mirror, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, xerrors.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, xerrors.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, xerrors.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	return &minioMirror{
		client: client,
		bucket: cfg.Bucket,
		scheme: scheme,
		host:   cfg.Endpoint,
	}, nil
}

func (m *minioMirror) Put(ctx context.Context, key string, path string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.FPutObject(ctx, m.bucket, key, path, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", xerrors.Errorf("upload %s: %w", key, err)
	}

	return fmt.Sprintf("%s://%s/%s/%s", m.scheme, m.host, m.bucket, key), nil
}
