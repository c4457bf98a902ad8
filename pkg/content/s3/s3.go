// Package s3 implements a payload store backed by Amazon S3 or any
// S3-compatible object storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/treefs/treefs/pkg/content"
)

// S3Store stores payloads as S3 objects.
//
// The ContentID is used directly as the object key (below an optional
// prefix), so the bucket mirrors the logical "<fsname>/<path>" layout and a
// filesystem's payloads can be purged with a prefixed list-and-delete.
type S3Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// Config contains the S3 payload store configuration.
type Config struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the bucket name; it must already exist
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	KeyPrefix string
}

// NewS3Store creates an S3 payload store and verifies bucket access.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (s *S3Store) key(id content.ID) string {
	return s.keyPrefix + string(id)
}

// Write stores data under id.
func (s *S3Store) Write(ctx context.Context, id content.ID, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to write payload %s: %w", id, err)
	}
	return nil
}

// Read returns the payload stored under id.
func (s *S3Store) Read(ctx context.Context, id content.ID) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, &content.Error{Code: content.ErrNotFound, Message: "payload not found", ID: id}
		}
		return nil, fmt.Errorf("failed to read payload %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload body %s: %w", id, err)
	}
	return data, nil
}

// Remove deletes the payload stored under id.
//
// S3 DeleteObject succeeds for missing keys, so existence is checked first
// to keep the not-found contract.
func (s *S3Store) Remove(ctx context.Context, id content.ID) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return &content.Error{Code: content.ErrNotFound, Message: "payload not found", ID: id}
		}
		return fmt.Errorf("failed to stat payload %s: %w", id, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to remove payload %s: %w", id, err)
	}
	return nil
}

// RemoveAll deletes every payload belonging to fsName using paginated
// list-and-batch-delete.
func (s *S3Store) RemoveAll(ctx context.Context, fsName string) error {
	prefix := s.keyPrefix + fsName + "/"

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list payloads under %s: %w", prefix, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete payloads under %s: %w", prefix, err)
		}
	}
	return nil
}

// Healthcheck verifies the bucket is still reachable.
func (s *S3Store) Healthcheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q not reachable: %w", s.bucket, err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no local resources.
func (s *S3Store) Close() error {
	return nil
}
