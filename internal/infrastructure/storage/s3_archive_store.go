// Package storage keeps daily transaction archives in object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/marketsync/internal/domain/integration"
	infraconfig "github.com/erp/marketsync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ensure S3ArchiveStore implements ArchiveStore
var _ integration.ArchiveStore = (*S3ArchiveStore)(nil)

const (
	archiveDateLayout  = "2006-01-02"
	archiveContentType = "application/json"
)

// S3ArchiveStore implements integration.ArchiveStore using AWS S3 SDK v2.
// Any S3-compatible backend works (AWS S3, RustFS, MinIO).
// Each settlement date is one JSON object named <prefix>/<YYYY-MM-DD>.json.
type S3ArchiveStore struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ArchiveStoreOption is a functional option for configuring S3ArchiveStore
type S3ArchiveStoreOption func(*S3ArchiveStore)

// WithLogger sets a custom logger for S3ArchiveStore
func WithLogger(logger *zap.Logger) S3ArchiveStoreOption {
	return func(s *S3ArchiveStore) {
		s.logger = logger
	}
}

// NewS3ArchiveStore creates a new S3ArchiveStore from configuration
func NewS3ArchiveStore(cfg *infraconfig.StorageConfig, opts ...S3ArchiveStoreOption) (*S3ArchiveStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
		// S3-compatible servers reject the default trailing checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	store := &S3ArchiveStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup.
func (s *S3ArchiveStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Key returns the object key for a settlement date
func (s *S3ArchiveStore) Key(date time.Time) string {
	name := date.Format(archiveDateLayout) + ".json"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put writes the archive, replacing any existing object for its date
func (s *S3ArchiveStore) Put(ctx context.Context, archive *integration.DailyArchive) error {
	if archive == nil {
		return errors.New("archive is required")
	}
	data, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	key := s.Key(archive.Date)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(archiveContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}

	s.logger.Debug("Archive uploaded",
		zap.String("key", key),
		zap.Int("transactions", len(archive.Transactions)),
		zap.Int("payouts", len(archive.Payouts)),
	)
	return nil
}

// Get reads the archive for date
func (s *S3ArchiveStore) Get(ctx context.Context, date time.Time) (*integration.DailyArchive, error) {
	key := s.Key(date)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", integration.ErrArchiveMissing, key)
		}
		return nil, fmt.Errorf("failed to download archive %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", key, err)
	}

	var archive integration.DailyArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, fmt.Errorf("failed to decode archive %s: %w", key, err)
	}
	return &archive, nil
}

// Delete removes the archive for date. A missing object is not an error.
func (s *S3ArchiveStore) Delete(ctx context.Context, date time.Time) error {
	key := s.Key(date)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete archive %s: %w", key, err)
	}
	return nil
}

// GetBucket returns the bucket name
func (s *S3ArchiveStore) GetBucket() string {
	return s.bucket
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	// Some S3-compatible services report it differently
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}
