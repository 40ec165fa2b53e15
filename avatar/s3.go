package avatar

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type presigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// S3 hands out presigned GET URLs for avatar objects.
type S3 struct {
	client presigner
	bucket string
	ttl    time.Duration
}

// S3Config mirrors the s3 config section.
type S3Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PresignTTL time.Duration
}

// NewS3 connects to the endpoint and checks the bucket exists.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	const op = "avatar/NewS3"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return newS3(client, cfg.Bucket, cfg.PresignTTL), nil
}

func newS3(client presigner, bucket string, ttl time.Duration) *S3 {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3{client: client, bucket: bucket, ttl: ttl}
}

func (s *S3) ResolveKey(ctx context.Context, key string) (string, error) {
	const op = "avatar/S3.ResolveKey"

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u.String(), nil
}

var _ Resolver = (*S3)(nil)
