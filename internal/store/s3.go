package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store stores pipeline artifacts in an S3 bucket under a configured prefix.
// Put returns the full (prefixed) key; keys carried in records and queue
// messages are always full keys, so Get takes them verbatim.
type S3Store struct {
	api    s3API
	bucket string
	prefix string
	log    zerolog.Logger
}

func NewS3Store(awsCfg aws.Config, bucket, prefix string, log zerolog.Logger) *S3Store {
	return &S3Store{
		api:    s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("component", "s3-store").Logger(),
	}
}

// NewS3StoreWithAPI builds an S3Store around an explicit API, for tests.
func NewS3StoreWithAPI(api s3API, bucket, prefix string, log zerolog.Logger) *S3Store {
	return &S3Store{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/"), log: log}
}

// Bucket returns the bucket name (ASR HTTP tracks pass it alongside the key).
func (s *S3Store) Bucket() string { return s.bucket }

// FullKey joins the configured prefix with a layout-relative key. Keys that
// already carry the prefix pass through unchanged.
func (s *S3Store) FullKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" || strings.HasPrefix(key, s.prefix+"/") {
		return key
	}
	return s.prefix + "/" + key
}

// HeadBucket checks that the bucket exists and credentials are valid.
func (s *S3Store) HeadBucket(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket})
	return err
}

// Put writes data and returns the full object key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objKey := s.FullKey(key)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", objKey, err)
	}
	return objKey, nil
}

// Open returns a reader over the object at key. The caller must close it.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

// Get reads the whole object at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether an object is present at key.
func (s *S3Store) Exists(ctx context.Context, key string) bool {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(key),
	})
	return err == nil
}
