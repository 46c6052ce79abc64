// Package objectstore stores archived orders in an S3-compatible bucket.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// MinIOAPI is the part of *minio.Client the store uses.
type MinIOAPI interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	// PublicBaseURL replaces the virtual-hosted S3 address in returned links.
	PublicBaseURL string
}

// S3 implements archive.ObjectStore.
type S3 struct {
	client MinIOAPI
	cfg    Config
}

var _ archive.ObjectStore = (*S3)(nil)

// New connects to the configured endpoint. No request is made until first use.
func New(cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to create s3 client")
	}
	return NewWithClient(client, cfg), nil
}

func NewWithClient(client MinIOAPI, cfg Config) *S3 {
	return &S3{client: client, cfg: cfg}
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return false, nil
	}
	return false, eris.Wrapf(err, "failed to stat %s", key)
}

func (s *S3) Put(ctx context.Context, key string, body io.Reader, size int64, opts archive.PutOptions) error {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType:        opts.ContentType,
		ContentDisposition: opts.ContentDisposition,
	})
	if err != nil {
		return eris.Wrapf(err, "failed to upload %s", key)
	}
	return nil
}

// URL returns the public address of key.
func (s *S3) URL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
