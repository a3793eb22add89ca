// Package objectstore keeps raw resume uploads in an S3-compatible
// bucket. Keys follow uploads/{tenant_id}/{job_id}.{ext} and objects are
// immutable once written; deletion happens only through retention
// cleanup or an operator purge.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Store implements domain.ObjectStore on S3. A non-empty custom endpoint
// switches the client to path-style addressing for MinIO-style
// deployments.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New builds the S3 client from config and makes sure the bucket exists.
func New(ctx context.Context, cfg config.Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ObjectStoreRegion),
	}
	if cfg.ObjectStoreAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ObjectStoreAccessKey, cfg.ObjectStoreSecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("op=objectstore.new: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ObjectStoreURL != "" {
			o.BaseEndpoint = aws.String(cfg.ObjectStoreURL)
			o.UsePathStyle = true
		}
	})

	s := &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.ObjectStoreBucket,
	}
	s.ensureBucket(ctx)
	return s, nil
}

// ensureBucket creates the bucket when absent. Failures are logged, not
// returned: managed deployments provision the bucket out of band and may
// deny CreateBucket.
func (s *Store) ensureBucket(ctx context.Context) {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		slog.Info("bucket created", slog.String("bucket", s.bucket))
		return
	}
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return
	}
	slog.Warn("ensure bucket", slog.String("bucket", s.bucket), slog.Any("error", err))
}

// Put writes one object.
func (s *Store) Put(ctx domain.Context, key string, body []byte, contentType string) error {
	tracer := otel.Tracer("objectstore.s3")
	ctx, span := tracer.Start(ctx, "objectstore.Put")
	defer span.End()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("op=objectstore.put: %w", err)
	}
	return nil
}

// Get reads one object fully into memory. Uploads are bounded by the
// submit-time size limit, so whole-object reads are fine.
func (s *Store) Get(ctx domain.Context, key string) ([]byte, error) {
	tracer := otel.Tracer("objectstore.s3")
	ctx, span := tracer.Start(ctx, "objectstore.Get")
	defer span.End()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("op=objectstore.get: %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("op=objectstore.get: %w", err)
	}
	defer func() { _ = out.Body.Close() }()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("op=objectstore.get: read body: %w", err)
	}
	return b, nil
}

// Delete removes one object. Deleting an absent key is a no-op, matching
// S3 semantics.
func (s *Store) Delete(ctx domain.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("op=objectstore.delete: %w", err)
	}
	return nil
}

// PresignPut issues a presigned upload URL for the JSON submit variant.
// The content type is pinned into the signature so the uploader cannot
// smuggle a different format past validation.
func (s *Store) PresignPut(ctx domain.Context, key, contentType string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("op=objectstore.presign: %w", err)
	}
	return req.URL, nil
}

// Ping reports bucket reachability; readiness checks use it.
func (s *Store) Ping(ctx domain.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("op=objectstore.ping: %w", err)
	}
	return nil
}
