// Package documents stores organization-scoped files in S3 and tracks
// their metadata in PostgreSQL. Object keys are prefixed with the owning
// organization identifier so bucket-level listing stays tenant-partitioned.
package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ObjectStore is the blob surface the service depends on.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	PresignDownload(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PresignExpiry   time.Duration
}

// S3Store implements ObjectStore against S3.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	cfg      S3Config
	logger   *slog.Logger
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store creates the S3 client. Static credentials from config win;
// otherwise the default AWS credential chain applies. Bucket reachability
// is probed once with HeadBucket, warn-only: a missing bucket surfaces on
// the first upload instead of blocking startup.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	} else {
		logger.Warn("s3 store using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documents: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	store := &S3Store{
		client:   client,
		uploader: uploader,
		presign:  s3.NewPresignClient(client),
		cfg:      cfg,
		logger:   logger,
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		logger.Warn("s3 bucket not reachable", slog.String("bucket", cfg.Bucket), slog.Any("error", err))
	}
	return store, nil
}

// ObjectKey returns the object key for a document: org/{orgID}/{filename}.
func ObjectKey(orgID uuid.UUID, filename string) string {
	return path.Join("org", orgID.String(), path.Base(filename))
}

// Upload streams the body to S3 under key.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("documents: upload %s: %w", key, err)
	}
	return nil
}

// PresignDownload returns a time-limited GET URL for key.
func (s *S3Store) PresignDownload(ctx context.Context, key string) (string, error) {
	expiry := s.cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("documents: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete removes the object at key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("documents: delete %s: %w", key, err)
	}
	return nil
}
