package s3c_test

import (
	"context"
	"testing"

	"github.com/relvacode/s3c"
	"github.com/stretchr/testify/assert"
)

func TestClient_ObjectRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "objects"))

	etag, err := env.client.PutObject(ctx, "objects", "greeting.txt", []byte("hello world"), &s3c.PutObjectOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"Owner": "s3c", "revision": "4"},
	})
	assert.NoError(t, err)
	assert.Equal(t, `"5eb63bbbe01eeed093cb22bb8f5acdc3"`, etag)

	obj, err := env.client.GetObject(ctx, "objects", "greeting.txt", nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello world"), obj.Body)
	assert.Equal(t, int64(11), obj.Size)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, etag, obj.ETag)
	assert.False(t, obj.LastModified.IsZero())
	assert.Equal(t, map[string]string{"owner": "s3c", "revision": "4"}, obj.Metadata)
}

func TestClient_PutObject_DetectsContentType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "detect"))

	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}
	_, err := env.client.PutObject(ctx, "detect", "image.png", png, nil)
	assert.NoError(t, err)

	obj, err := env.client.HeadObject(ctx, "detect", "image.png")
	assert.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestClient_GetObject_Range(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "ranged"))
	_, err := env.client.PutObject(ctx, "ranged", "greeting.txt", []byte("hello world"), nil)
	assert.NoError(t, err)

	obj, err := env.client.GetObject(ctx, "ranged", "greeting.txt", &s3c.GetObjectOptions{Range: "bytes=0-4"})
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), obj.Body)
	assert.Equal(t, "bytes 0-4/11", obj.ContentRange)

	t.Run("unsatisfiable", func(t *testing.T) {
		_, err := env.client.GetObject(ctx, "ranged", "greeting.txt", &s3c.GetObjectOptions{Range: "bytes=100-200"})
		assertResponseError(t, err, s3c.InvalidRange)
	})
}

func TestClient_GetObject_Missing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("no bucket", func(t *testing.T) {
		_, err := env.client.GetObject(ctx, "absent", "key.txt", nil)
		assertResponseError(t, err, s3c.NoSuchBucket)
	})

	t.Run("no key", func(t *testing.T) {
		assert.NoError(t, env.client.CreateBucket(ctx, "present"))

		_, err := env.client.GetObject(ctx, "present", "absent.txt", nil)
		assertResponseError(t, err, s3c.NoSuchKey)
	})
}

func TestClient_HeadObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "stat"))
	etag, err := env.client.PutObject(ctx, "stat", "greeting.txt", []byte("hello world"), &s3c.PutObjectOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"owner": "s3c"},
	})
	assert.NoError(t, err)

	obj, err := env.client.HeadObject(ctx, "stat", "greeting.txt")
	assert.NoError(t, err)
	assert.Nil(t, obj.Body)
	assert.Equal(t, int64(11), obj.Size)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, etag, obj.ETag)
	assert.Equal(t, map[string]string{"owner": "s3c"}, obj.Metadata)

	t.Run("missing", func(t *testing.T) {
		_, err := env.client.HeadObject(ctx, "stat", "absent.txt")
		assertResponseError(t, err, s3c.NoSuchKey)
	})
}

func TestClient_DeleteObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "trash"))
	_, err := env.client.PutObject(ctx, "trash", "gone.txt", []byte("data"), nil)
	assert.NoError(t, err)

	assert.NoError(t, env.client.DeleteObject(ctx, "trash", "gone.txt"))

	_, err = env.client.GetObject(ctx, "trash", "gone.txt", nil)
	assertResponseError(t, err, s3c.NoSuchKey)

	// Deleting an absent key is not an error
	assert.NoError(t, env.client.DeleteObject(ctx, "trash", "gone.txt"))
}

func TestClient_DeleteObjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "batch"))
	for _, key := range []string{"one.txt", "two.txt", "three.txt"} {
		_, err := env.client.PutObject(ctx, "batch", key, []byte(key), nil)
		assert.NoError(t, err)
	}

	result, err := env.client.DeleteObjects(ctx, "batch", []string{"one.txt", "two.txt"})
	assert.NoError(t, err)
	assert.Len(t, result.Deleted, 2)
	assert.Empty(t, result.Errors)

	listing, err := env.client.ListObjectsV2(ctx, "batch", nil)
	assert.NoError(t, err)
	assert.Len(t, listing.Contents, 1)
	assert.Equal(t, "three.txt", listing.Contents[0].Key)
}

func TestClient_CopyObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "source"))
	assert.NoError(t, env.client.CreateBucket(ctx, "target"))

	_, err := env.client.PutObject(ctx, "source", "original.txt", []byte("copy me"), &s3c.PutObjectOptions{
		ContentType: "text/plain",
	})
	assert.NoError(t, err)

	result, err := env.client.CopyObject(ctx, "source", "original.txt", "target", "copied.txt")
	assert.NoError(t, err)
	assert.NotEmpty(t, result.ETag)
	assert.False(t, result.LastModified.IsZero())

	obj, err := env.client.GetObject(ctx, "target", "copied.txt", nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte("copy me"), obj.Body)
	assert.Equal(t, "text/plain", obj.ContentType)

	t.Run("missing source", func(t *testing.T) {
		_, err := env.client.CopyObject(ctx, "source", "absent.txt", "target", "copied.txt")
		assertResponseError(t, err, s3c.NoSuchKey)
	})
}

func TestClient_ObjectChecksums(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.NoError(t, env.client.CreateBucket(ctx, "summed"))

	_, err := env.client.PutObject(ctx, "summed", "checked.txt", []byte("hello"), &s3c.PutObjectOptions{
		Checksum: s3c.ChecksumSHA256,
	})
	assert.NoError(t, err)

	// The service replays the stored checksum and the client verifies it
	obj, err := env.client.GetObject(ctx, "summed", "checked.txt", nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), obj.Body)

	t.Run("corrupted checksum detected", func(t *testing.T) {
		stored, serr := env.server.Store().Get("summed", "checked.txt")
		assert.Nil(t, serr)
		stored.Checksums[s3c.ChecksumSHA256.Header()] = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

		_, err := env.client.GetObject(ctx, "summed", "checked.txt", nil)
		assertResponseError(t, err, s3c.BadDigest)
	})
}
