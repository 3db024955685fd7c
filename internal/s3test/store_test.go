package s3test

import (
	"testing"
	"time"

	"github.com/relvacode/s3c"
	"github.com/stretchr/testify/assert"
)

func TestStore_BucketLifecycle(t *testing.T) {
	store := NewStore()

	assert.Nil(t, store.CreateBucket("bucket"))
	assert.True(t, store.BucketExists("bucket"))

	t.Run("duplicate", func(t *testing.T) {
		serr := store.CreateBucket("bucket")
		assert.NotNil(t, serr)
		assert.Equal(t, s3c.BucketAlreadyOwnedByYou, serr.ErrorCode)
	})

	t.Run("not empty", func(t *testing.T) {
		assert.Nil(t, store.Put("bucket", "object.txt", &Object{Data: []byte("data")}))

		serr := store.DeleteBucket("bucket")
		assert.NotNil(t, serr)
		assert.Equal(t, s3c.BucketNotEmpty, serr.ErrorCode)
	})

	assert.Nil(t, store.Delete("bucket", "object.txt"))
	assert.Nil(t, store.DeleteBucket("bucket"))
	assert.False(t, store.BucketExists("bucket"))

	t.Run("delete missing", func(t *testing.T) {
		serr := store.DeleteBucket("bucket")
		assert.NotNil(t, serr)
		assert.Equal(t, s3c.NoSuchBucket, serr.ErrorCode)
	})
}

func TestStore_PutStampsObjects(t *testing.T) {
	store := NewStore()
	store.timeNow = func() time.Time { return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC) }

	assert.Nil(t, store.CreateBucket("bucket"))
	assert.Nil(t, store.Put("bucket", "greeting.txt", &Object{Data: []byte("hello world")}))

	obj, serr := store.Get("bucket", "greeting.txt")
	assert.Nil(t, serr)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", obj.ETag)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), obj.LastModified)
}

func TestStore_Get(t *testing.T) {
	store := NewStore()
	assert.Nil(t, store.CreateBucket("bucket"))

	t.Run("missing bucket", func(t *testing.T) {
		_, serr := store.Get("absent", "object.txt")
		assert.NotNil(t, serr)
		assert.Equal(t, s3c.NoSuchBucket, serr.ErrorCode)
	})

	t.Run("missing key", func(t *testing.T) {
		_, serr := store.Get("bucket", "absent.txt")
		assert.NotNil(t, serr)
		assert.Equal(t, s3c.NoSuchKey, serr.ErrorCode)
	})
}

func testListingStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore()
	assert.Nil(t, store.CreateBucket("bucket"))
	for _, key := range []string{"a.txt", "dir/b.txt", "dir/sub/c.txt", "dirty.txt"} {
		assert.Nil(t, store.Put("bucket", key, &Object{Data: []byte(key)}))
	}

	return store
}

func TestStore_List(t *testing.T) {
	store := testListingStore(t)

	keysOf := func(listing *Listing) []string {
		keys := make([]string, 0, len(listing.Objects))
		for _, obj := range listing.Objects {
			keys = append(keys, obj.Key)
		}
		return keys
	}

	t.Run("all keys in order", func(t *testing.T) {
		listing, serr := store.List("bucket", "", "", "", 1000)
		assert.Nil(t, serr)
		assert.False(t, listing.IsTruncated)
		assert.Equal(t, []string{"a.txt", "dir/b.txt", "dir/sub/c.txt", "dirty.txt"}, keysOf(listing))
		assert.Empty(t, listing.CommonPrefixes)
	})

	t.Run("prefix", func(t *testing.T) {
		listing, serr := store.List("bucket", "dir/", "", "", 1000)
		assert.Nil(t, serr)
		assert.Equal(t, []string{"dir/b.txt", "dir/sub/c.txt"}, keysOf(listing))
	})

	t.Run("delimiter rolls up directories", func(t *testing.T) {
		listing, serr := store.List("bucket", "", "/", "", 1000)
		assert.Nil(t, serr)
		assert.Equal(t, []string{"a.txt", "dirty.txt"}, keysOf(listing))
		assert.Equal(t, []string{"dir/"}, listing.CommonPrefixes)
	})

	t.Run("prefix and delimiter", func(t *testing.T) {
		listing, serr := store.List("bucket", "dir/", "/", "", 1000)
		assert.Nil(t, serr)
		assert.Equal(t, []string{"dir/b.txt"}, keysOf(listing))
		assert.Equal(t, []string{"dir/sub/"}, listing.CommonPrefixes)
	})

	t.Run("partial prefix with delimiter", func(t *testing.T) {
		listing, serr := store.List("bucket", "dir", "/", "", 1000)
		assert.Nil(t, serr)
		assert.Equal(t, []string{"dirty.txt"}, keysOf(listing))
		assert.Equal(t, []string{"dir/"}, listing.CommonPrefixes)
	})

	t.Run("after", func(t *testing.T) {
		listing, serr := store.List("bucket", "", "", "dir/b.txt", 1000)
		assert.Nil(t, serr)
		assert.Equal(t, []string{"dir/sub/c.txt", "dirty.txt"}, keysOf(listing))
	})

	t.Run("truncation", func(t *testing.T) {
		first, serr := store.List("bucket", "", "", "", 2)
		assert.Nil(t, serr)
		assert.True(t, first.IsTruncated)
		assert.Equal(t, []string{"a.txt", "dir/b.txt"}, keysOf(first))
		assert.Equal(t, "dir/b.txt", first.NextKey)

		rest, serr := store.List("bucket", "", "", first.NextKey, 1000)
		assert.Nil(t, serr)
		assert.False(t, rest.IsTruncated)
		assert.Equal(t, []string{"dir/sub/c.txt", "dirty.txt"}, keysOf(rest))
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, serr := store.List("absent", "", "", "", 1000)
		assert.NotNil(t, serr)
		assert.Equal(t, s3c.NoSuchBucket, serr.ErrorCode)
	})
}
