// Package s3store persists records as S3 objects, one object per record
// fragment, keyed by run, trigger and sequence number. Network failures
// are reported retryable so the write pipeline's backoff can ride out
// transient outages.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/daqline/recwriter/pkg/record"
	"github.com/daqline/recwriter/pkg/storage"
)

// ObjectClient is the subset of the S3 API the store uses. Satisfied by
// *s3.Client; tests substitute a fake.
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds the S3 storage configuration.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. MinIO, Cloudflare R2). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3store: bucket is required")
	}
	return nil
}

// Store writes records as S3 objects.
type Store struct {
	client ObjectClient
	bucket string
	prefix string
}

// New creates a store using the AWS SDK default credential chain (env
// vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(awsConfig, s3Opts...), cfg), nil
}

// NewWithClient creates a store around an existing client. Useful for
// tests and for callers that manage their own AWS configuration.
func NewWithClient(client ObjectClient, cfg Config) *Store {
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

// runPrefix returns the key prefix all of a run's objects live under.
func (s *Store) runPrefix(runNumber uint32) string {
	key := fmt.Sprintf("run%06d/", runNumber)
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

// objectKey returns the object key for one record fragment.
func (s *Store) objectKey(rec record.Record) string {
	return s.runPrefix(rec.RunNumber) +
		fmt.Sprintf("trigger%020d_seq%05d", rec.TriggerNumber, rec.SequenceNumber)
}

// Write uploads the record's payload. Failures are reported retryable;
// transient S3 errors (throttling, connection resets) clear on their
// own and the SDK has already exhausted its own short retry budget by
// the time an error surfaces here.
func (s *Store) Write(ctx context.Context, rec record.Record) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(rec)),
		Body:   bytes.NewReader(rec.Payload),
		Metadata: map[string]string{
			"run-number":     strconv.FormatUint(uint64(rec.RunNumber), 10),
			"trigger-number": strconv.FormatUint(rec.TriggerNumber, 10),
			"max-sequence":   strconv.FormatUint(uint64(rec.MaxSequenceNumber), 10),
		},
	})
	if err != nil {
		return storage.Retryable(fmt.Errorf("s3store: put %s: %w", s.objectKey(rec), err))
	}
	return nil
}

// PrepareForRun verifies the run's key prefix is empty; runs are never
// silently overwritten.
func (s *Store) PrepareForRun(ctx context.Context, runNumber uint32) error {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.runPrefix(runNumber)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("s3store: list run %d: %w", runNumber, err)
	}
	if out.KeyCount != nil && *out.KeyCount > 0 {
		return fmt.Errorf("s3store: run %d already holds objects", runNumber)
	}
	return nil
}

// FinishWithRun is a no-op; each object is durable once its upload
// completes.
func (s *Store) FinishWithRun(context.Context, uint32) error {
	return nil
}

// Close releases nothing; the S3 client holds no resources needing
// explicit teardown.
func (s *Store) Close() error {
	return nil
}
