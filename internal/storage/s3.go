package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config carries the connection settings for the S3-compatible object
// store holding the encrypted containers.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Source implements ObjectSource on top of an S3-compatible endpoint.
type S3Source struct {
	client *minio.Client
}

// NewS3Source validates the config and builds the client. The client is
// opened once at process start and shared for the process lifetime.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Source{client: client}, nil
}

// Probe stats the object and returns its size.
func (s *S3Source) Probe(ctx context.Context, bucket, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, translateS3Error(err)
	}
	return info.Size, nil
}

// FetchRange reads the inclusive byte range [start, end] of the object.
func (s *S3Source) FetchRange(ctx context.Context, bucket, key string, start, end int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, translateS3Error(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateS3Error(err)
	}
	return data, nil
}

// translateS3Error maps minio error codes onto the package sentinels so the
// retriever can tell terminal conditions from retryable ones.
func translateS3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Code)
	case "AccessDenied":
		return fmt.Errorf("%w: %s", ErrDenied, resp.Code)
	}
	return err
}
