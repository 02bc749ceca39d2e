// Package s3 implements objectstore.Store over Amazon S3 or an
// S3-compatible provider (MinIO): an aws-sdk-go-v2 s3.Client, a
// multipart-session map keyed by upload id, and SDK-level retry on
// transient errors.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/logger"
	"github.com/marmos91/ditto-upload/internal/objectstore"
)

// Store implements objectstore.Store over an S3-compatible bucket.
type Store struct {
	client *s3.Client
	bucket string

	sessionsMu sync.RWMutex
	sessions   map[string]*session
}

// session tracks the ETags collected for one multipart upload.
type session struct {
	mu    sync.Mutex
	parts []types.CompletedPart
}

// Config configures the S3 client and bucket.
type Config struct {
	Endpoint       string
	Region         string
	AccessKeyID    string
	SecretKey      string
	Bucket         string
	ForcePathStyle bool

	MaxRetries int
	MaxBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 2 * time.Second
	}
}

// New builds an S3 client from cfg and returns a ready Store. It does not
// verify bucket access; callers call EnsureBucket for that.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore/s3: bucket name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretKey, "")),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = cfg.MaxRetries
				o.MaxBackoff = cfg.MaxBackoff
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Store{
		client:   client,
		bucket:   cfg.Bucket,
		sessions: make(map[string]*session),
	}, nil
}

// EnsureBucket implements objectstore.Store: head-then-create, missing is
// not fatal if the subsequent create succeeds.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	logger.Info("bucket not found, creating", "bucket", s.bucket)
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return apperror.Wrap(apperror.Backend, "create bucket failed", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return apperror.Wrap(apperror.Backend, "s3 ping failed", err)
	}
	return nil
}

func (s *Store) Head(ctx context.Context, key string) (*objectstore.ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, apperror.Wrap(apperror.Backend, "head object failed", err)
	}

	meta := &objectstore.ObjectMeta{Key: key}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return meta, nil
}

func (s *Store) GetObject(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if offset > 0 || length >= 0 {
		input.Range = aws.String(byteRange(offset, length))
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.New(apperror.NotFound, "object not found")
		}
		return nil, apperror.Wrap(apperror.Backend, "get object failed", err)
	}
	return out.Body, nil
}

func byteRange(offset, length int64) string {
	if length < 0 {
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}

func (s *Store) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	source := s.bucket + "/" + srcKey
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(source),
	})
	if err != nil {
		return apperror.Wrap(apperror.Backend, "copy object failed", err)
	}
	return nil
}

func (s *Store) PutEmpty(ctx context.Context, key string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return apperror.Wrap(apperror.Backend, "put empty object failed", err)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperror.Wrap(apperror.Backend, "delete object failed", err)
	}
	return nil
}

// DeleteObjects batches deletes in groups of 1000, the S3 limit per
// DeleteObjects call; any per-object error fails the whole operation.
func (s *Store) DeleteObjects(ctx context.Context, keys []string) error {
	const batchSize = 1000

	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		objs := make([]types.ObjectIdentifier, len(batch))
		for i, k := range batch {
			objs[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objs},
		})
		if err != nil {
			return apperror.Wrap(apperror.Backend, "delete objects failed", err)
		}
		if len(out.Errors) > 0 {
			return apperror.Newf(apperror.Backend, "delete objects: %d per-object errors, first: %s",
				len(out.Errors), aws.ToString(out.Errors[0].Message))
		}
	}
	return nil
}

func (s *Store) ListPage(ctx context.Context, prefix, delimiter, cursor string) (objectstore.Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return objectstore.Page{}, apperror.Wrap(apperror.Backend, "list objects failed", err)
	}

	page := objectstore.Page{}
	for _, obj := range out.Contents {
		size := aws.ToInt64(obj.Size)
		if size == 0 {
			continue
		}
		meta := objectstore.ObjectMeta{
			Key:  aws.ToString(obj.Key),
			Size: size,
			ETag: aws.ToString(obj.ETag),
		}
		if obj.LastModified != nil {
			meta.LastModified = *obj.LastModified
		}
		page.Objects = append(page.Objects, meta)
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	if out.NextContinuationToken != nil {
		page.NextCursor = *out.NextContinuationToken
	}

	return page, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
