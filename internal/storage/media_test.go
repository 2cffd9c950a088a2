package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agripal/internal/types"
)

// mockS3ListClient implements S3ListClient for testing.
type mockS3ListClient struct {
	output *s3.ListObjectsV2Output
	err    error
	input  *s3.ListObjectsV2Input
}

func (m *mockS3ListClient) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func obj(key string, size int64, lastModified time.Time) s3types.Object {
	return s3types.Object{
		Key:          aws.String(key),
		Size:         aws.Int64(size),
		LastModified: aws.Time(lastModified),
	}
}

func TestMediaStore_ListNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &mockS3ListClient{
		output: &s3.ListObjectsV2Output{
			Contents: []s3types.Object{
				obj("cam/old.jpg", 100, base.Add(-2*time.Hour)),
				obj("cam/new.jpg", 200, base),
				obj("cam/", 0, base), // folder marker, skipped
				obj("cam/mid.jpg", 150, base.Add(-time.Hour)),
			},
		},
	}
	store := NewMediaStore(MediaStoreConfig{
		Client:     client,
		Bucket:     "agripal-media",
		PublicBase: "https://cdn.example.com/media",
	})

	got, err := store.List(context.Background(), "cam/", 50)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "cam/new.jpg", got[0].Name)
	assert.Equal(t, "cam/mid.jpg", got[1].Name)
	assert.Equal(t, "cam/old.jpg", got[2].Name)
	assert.Equal(t, "https://cdn.example.com/media/cam/new.jpg", got[0].PublicURL)
	assert.Equal(t, "cam/", aws.ToString(client.input.Prefix))
}

func TestMediaStore_ListError(t *testing.T) {
	client := &mockS3ListClient{err: errors.New("access denied")}
	store := NewMediaStore(MediaStoreConfig{Client: client, Bucket: "agripal-media"})

	_, err := store.List(context.Background(), "", 10)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamStorage, appErr.Code)
}

func TestMediaStore_PublicURLDefaultsToS3(t *testing.T) {
	store := NewMediaStore(MediaStoreConfig{Bucket: "agripal-media"})
	assert.Equal(t, "https://agripal-media.s3.amazonaws.com/cam/x.jpg", store.PublicURL("cam/x.jpg"))
}
