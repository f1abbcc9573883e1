// Package storage uploads media to an S3-compatible object store (MinIO in
// development) and returns public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/traveldairy2025nju/td-backend/internal/config"
	"github.com/traveldairy2025nju/td-backend/internal/observability"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// BlobStore stores opaque bytes and returns a URL that serves them.
type BlobStore interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// S3Config describes the bucket connection.
type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	MaxRetries    int
}

// S3ConfigFromApp builds an S3Config from application settings.
func S3ConfigFromApp(cfg *config.Config) S3Config {
	return S3Config{
		Endpoint:      cfg.BlobEndpoint,
		Region:        cfg.BlobRegion,
		Bucket:        cfg.BlobBucket,
		AccessKey:     cfg.BlobAccessKey,
		SecretKey:     cfg.BlobSecretKey,
		PublicBaseURL: cfg.BlobPublicBaseURL,
		MaxRetries:    2,
	}
}

// S3Store implements BlobStore over the S3 API with path-style addressing.
type S3Store struct {
	client  *s3.S3
	bucket  string
	baseURL string
}

// NewS3Store creates an S3Store. It does not contact the endpoint.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
		MaxRetries:       aws.Int(cfg.MaxRetries),
	})
	if err != nil {
		return nil, fmt.Errorf("create blob session: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = cfg.Endpoint
	}

	return &S3Store{
		client:  s3.New(sess),
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(base, "/"),
	}, nil
}

// ObjectKey returns a collision-free key that keeps the original extension.
func ObjectKey(filename string) string {
	return uuid.NewString() + strings.ToLower(path.Ext(filename))
}

// Upload stores data under a fresh key and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, filename string, data []byte, contentType string) (url string, err error) {
	ctx, span := observability.StartClientSpan(ctx, "blob-store", "PutObject")
	defer func() { observability.EndSpan(span, err) }()

	key := ObjectKey(filename)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err = s.client.PutObjectWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the URL for key under the configured base.
func (s *S3Store) PublicURL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}
