package s3c_test

import (
	"context"
	"testing"

	"github.com/relvacode/s3c"
	"github.com/stretchr/testify/assert"
)

func TestClient_BucketLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "lifecycle"))
	assert.NoError(t, env.client.HeadBucket(ctx, "lifecycle"))

	buckets, err := env.client.ListBuckets(ctx)
	assert.NoError(t, err)
	assert.Len(t, buckets, 1)
	assert.Equal(t, "lifecycle", buckets[0].Name)
	assert.False(t, buckets[0].CreationDate.IsZero())

	assert.NoError(t, env.client.DeleteBucket(ctx, "lifecycle"))

	err = env.client.HeadBucket(ctx, "lifecycle")
	assertResponseError(t, err, s3c.NoSuchBucket)
}

func TestClient_CreateBucket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("invalid name rejected before any request", func(t *testing.T) {
		err := env.client.CreateBucket(ctx, "Not A Bucket")
		assertResponseError(t, err, s3c.InvalidBucketName)
	})

	t.Run("duplicate", func(t *testing.T) {
		assert.NoError(t, env.client.CreateBucket(ctx, "duplicate"))

		err := env.client.CreateBucket(ctx, "duplicate")
		assertResponseError(t, err, s3c.BucketAlreadyOwnedByYou)
	})
}

func TestClient_DeleteBucket_NotEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "occupied"))
	_, err := env.client.PutObject(ctx, "occupied", "object.txt", []byte("data"), nil)
	assert.NoError(t, err)

	err = env.client.DeleteBucket(ctx, "occupied")
	assertResponseError(t, err, s3c.BucketNotEmpty)
}

func TestClient_GetBucketLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "located"))

	region, err := env.client.GetBucketLocation(ctx, "located")
	assert.NoError(t, err)
	assert.Equal(t, "us-east-1", region)

	// The location stays cached even when the bucket disappears underneath
	assert.Nil(t, env.server.Store().DeleteBucket("located"))

	region, err = env.client.GetBucketLocation(ctx, "located")
	assert.NoError(t, err)
	assert.Equal(t, "us-east-1", region)
}

func TestClient_ListObjectsV2(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "listing"))
	for _, key := range []string{"a.txt", "b.txt", "c.txt", "dir/nested.txt", "dir/other.txt"} {
		_, err := env.client.PutObject(ctx, "listing", key, []byte(key), nil)
		assert.NoError(t, err)
	}

	t.Run("all keys", func(t *testing.T) {
		result, err := env.client.ListObjectsV2(ctx, "listing", nil)
		assert.NoError(t, err)
		assert.False(t, result.IsTruncated)
		assert.Equal(t, 5, result.KeyCount)

		keys := make([]string, 0, len(result.Contents))
		for _, obj := range result.Contents {
			keys = append(keys, obj.Key)
		}
		assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "dir/nested.txt", "dir/other.txt"}, keys)
	})

	t.Run("prefix", func(t *testing.T) {
		result, err := env.client.ListObjectsV2(ctx, "listing", &s3c.ListObjectsV2Options{Prefix: "dir/"})
		assert.NoError(t, err)
		assert.Len(t, result.Contents, 2)
	})

	t.Run("delimiter", func(t *testing.T) {
		result, err := env.client.ListObjectsV2(ctx, "listing", &s3c.ListObjectsV2Options{Delimiter: "/"})
		assert.NoError(t, err)
		assert.Len(t, result.Contents, 3)
		assert.Equal(t, []s3c.CommonPrefixes{{Prefix: "dir/"}}, result.CommonPrefixes)
	})

	t.Run("pagination", func(t *testing.T) {
		first, err := env.client.ListObjectsV2(ctx, "listing", &s3c.ListObjectsV2Options{MaxKeys: 2})
		assert.NoError(t, err)
		assert.True(t, first.IsTruncated)
		assert.Len(t, first.Contents, 2)
		assert.NotEmpty(t, first.NextContinuationToken)

		second, err := env.client.ListObjectsV2(ctx, "listing", &s3c.ListObjectsV2Options{
			ContinuationToken: first.NextContinuationToken,
		})
		assert.NoError(t, err)
		assert.False(t, second.IsTruncated)
		assert.Len(t, second.Contents, 3)
		assert.Equal(t, "c.txt", second.Contents[0].Key)
	})

	t.Run("start after", func(t *testing.T) {
		result, err := env.client.ListObjectsV2(ctx, "listing", &s3c.ListObjectsV2Options{StartAfter: "b.txt"})
		assert.NoError(t, err)
		assert.Equal(t, "c.txt", result.Contents[0].Key)
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := env.client.ListObjectsV2(ctx, "absent", nil)
		assertResponseError(t, err, s3c.NoSuchBucket)
	})
}
