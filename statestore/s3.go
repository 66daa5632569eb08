package statestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/lattice-iac/conductor/iox"
)

// S3Config configures the S3-compatible backend for the State Store Client.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. a non-AWS object store with an S3-compatible API).
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers that are not AWS itself.
	UsePathStyle bool
}

func (c *S3Config) validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// S3Client implements Client against an S3-compatible object store.
type S3Client struct {
	s3     *s3.Client
	bucket string
}

// NewS3Client builds an S3Client using the AWS SDK default credential chain
// (env vars, shared config, IAM role), with optional endpoint and
// path-style overrides for S3-compatible providers.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Client{
		s3:     s3.NewFromConfig(awsConfig, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

func (c *S3Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, &StoreError{Kind: ErrNotFound, Op: "get", Key: key, Err: err}
		}
		return nil, wrap("get", key, err)
	}
	defer iox.DiscardClose(out.Body)
	return io.ReadAll(out.Body)
}

func (c *S3Client) Put(ctx context.Context, key string, data []byte, encrypt bool) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if encrypt {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}
	_, err := c.s3.PutObject(ctx, input)
	return wrap("put", key, err)
}

func (c *S3Client) Copy(ctx context.Context, src, dst string, encrypt bool) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(c.bucket + "/" + src),
	}
	if encrypt {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}
	_, err := c.s3.CopyObject(ctx, input)
	return wrap("copy", dst, err)
}

func (c *S3Client) ListVersions(ctx context.Context, key string) ([]Version, error) {
	out, err := c.s3.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(key),
	})
	if err != nil {
		return nil, wrap("list_versions", key, err)
	}
	versions := make([]Version, 0, len(out.Versions))
	for _, v := range out.Versions {
		if v.Key == nil || *v.Key != key {
			continue
		}
		versions = append(versions, Version{
			VersionID: aws.ToString(v.VersionId),
			Timestamp: aws.ToTime(v.LastModified),
		})
	}
	return versions, nil
}

// AcquireLock writes the sidecar `<key>.lock` object with conditional-create
// semantics (IfNoneMatch="*"): the write only succeeds if no object
// currently exists at that key.
func (c *S3Client) AcquireLock(ctx context.Context, key, ownerID string, ttl time.Duration) (*LockHandle, error) {
	lockKey := key + ".lock"
	now := lockClock()
	body, err := json.Marshal(lockRecord{OwnerID: ownerID, AcquiredAt: now, TTLSeconds: int64(ttl.Seconds())})
	if err != nil {
		return nil, fmt.Errorf("marshal lock record: %w", err)
	}

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(lockKey),
		Body:        bytes.NewReader(body),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr interface{ ErrorCode() string }
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "PreconditionFailed" || apiErr.ErrorCode() == "ConditionalRequestConflict") {
			return nil, ErrLockBusy
		}
		return nil, wrap("acquire_lock", lockKey, err)
	}
	return &LockHandle{Key: key, OwnerID: ownerID, AcquiredAt: now}, nil
}

func (c *S3Client) Release(ctx context.Context, handle *LockHandle) error {
	if handle == nil {
		return nil
	}
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(handle.Key + ".lock"),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil
		}
	}
	return wrap("release", handle.Key, err)
}

type lockRecord struct {
	OwnerID    string    `json:"owner_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// NewLockOwnerID produces a collision-free owner id for a lock handle.
func NewLockOwnerID() string {
	return uuid.NewString()
}

// lockClock is overridable in tests; production code always uses time.Now.
var lockClock = time.Now
