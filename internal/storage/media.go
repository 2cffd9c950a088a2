// Package storage lists farm camera/media objects from an S3-compatible
// bucket. The hosted provider exposes an S3 gateway, so the standard AWS SDK
// with an endpoint override covers both it and plain S3.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"agripal/internal/types"
)

// S3ListClient abstracts the S3 ListObjectsV2 operation for testability.
type S3ListClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// MediaStoreConfig holds the configuration for creating a MediaStore.
type MediaStoreConfig struct {
	Client     S3ListClient
	Bucket     string
	PublicBase string // public URL prefix, e.g. https://cdn.example.com/media
	Logger     *slog.Logger
}

// MediaStore lists stored media files newest-first with their public URLs.
type MediaStore struct {
	client     S3ListClient
	bucket     string
	publicBase string
	logger     *slog.Logger
}

// NewMediaStore creates a MediaStore.
func NewMediaStore(cfg MediaStoreConfig) *MediaStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaStore{
		client:     cfg.Client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
		logger:     logger,
	}
}

// List returns up to limit objects under prefix, sorted newest-first by
// last-modified time.
func (m *MediaStore) List(ctx context.Context, prefix string, limit int) ([]types.MediaObject, error) {
	if limit <= 0 {
		limit = 50
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(m.bucket),
		MaxKeys: aws.Int32(int32(limit)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	output, err := m.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStorage, "failed to list media objects", err)
	}

	objects := make([]types.MediaObject, 0, len(output.Contents))
	for _, obj := range output.Contents {
		key := aws.ToString(obj.Key)
		if key == "" || strings.HasSuffix(key, "/") {
			continue
		}
		mo := types.MediaObject{
			Name:      key,
			Size:      aws.ToInt64(obj.Size),
			PublicURL: m.PublicURL(key),
		}
		if obj.LastModified != nil {
			mo.LastModified = obj.LastModified.UTC()
		}
		objects = append(objects, mo)
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	if len(objects) > limit {
		objects = objects[:limit]
	}

	return objects, nil
}

// PublicURL returns the public URL for a stored object key.
func (m *MediaStore) PublicURL(key string) string {
	if m.publicBase != "" {
		return m.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", m.bucket, key)
}
