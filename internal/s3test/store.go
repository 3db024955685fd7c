package s3test

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/psanford/memfs"
	"github.com/relvacode/s3c"
)

var (
	errNoSuchBucket = &s3c.Error{
		ErrorCode: s3c.NoSuchBucket,
		Message:   "The specified bucket does not exist.",
	}
	errNoSuchKey = &s3c.Error{
		ErrorCode: s3c.NoSuchKey,
		Message:   "The specified key does not exist.",
	}
)

// Object is one stored object, the payload plus the metadata handlers serve.
type Object struct {
	Data         []byte
	ContentType  string
	ETag         string
	LastModified time.Time

	// Metadata holds the x-amz-meta-* values stored with the object, keyed
	// without the prefix.
	Metadata map[string]string

	// Checksums holds the x-amz-checksum-* values stored with the object,
	// keyed by header name.
	Checksums map[string]string
}

type bucketData struct {
	createdAt time.Time
	objects   map[string]*Object
}

// filesystem renders the bucket's keys as a file tree so that listings can
// walk it with directory semantics.
func (b *bucketData) filesystem() (fs.FS, error) {
	rootFS := memfs.New()
	for key, obj := range b.objects {
		if dir := path.Dir(key); dir != "." {
			if err := rootFS.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		if err := rootFS.WriteFile(key, obj.Data, 0644); err != nil {
			return nil, err
		}
	}

	return rootFS, nil
}

// etag computes the hex MD5 the service reports for an uploaded payload.
func etag(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		buckets: make(map[string]*bucketData),
		timeNow: time.Now,
	}
}

// Store holds the buckets and objects behind the test server. All methods are
// safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*bucketData
	timeNow func() time.Time
}

// BucketInfo describes one bucket in a listing.
type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}

func (s *Store) CreateBucket(name string) *s3c.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[name]; ok {
		return &s3c.Error{
			ErrorCode: s3c.BucketAlreadyOwnedByYou,
			Message:   "Your previous request to create the named bucket succeeded and you already own it.",
		}
	}

	s.buckets[name] = &bucketData{
		createdAt: s.timeNow().UTC().Truncate(time.Second),
		objects:   make(map[string]*Object),
	}

	return nil
}

func (s *Store) DeleteBucket(name string) *s3c.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		return errNoSuchBucket
	}
	if len(b.objects) > 0 {
		return &s3c.Error{
			ErrorCode: s3c.BucketNotEmpty,
			Message:   "The bucket you tried to delete is not empty.",
		}
	}

	delete(s.buckets, name)
	return nil
}

func (s *Store) BucketExists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buckets[name]
	return ok
}

func (s *Store) ListBuckets() []BucketInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := make([]BucketInfo, 0, len(s.buckets))
	for name, b := range s.buckets {
		buckets = append(buckets, BucketInfo{Name: name, CreatedAt: b.createdAt})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets
}

// Put stores an object, stamping its ETag and modification time.
func (s *Store) Put(bucket, key string, obj *Object) *s3c.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return errNoSuchBucket
	}

	obj.ETag = etag(obj.Data)
	obj.LastModified = s.timeNow().UTC().Truncate(time.Second)
	b.objects[key] = obj

	return nil
}

func (s *Store) Get(bucket, key string) (*Object, *s3c.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, errNoSuchBucket
	}
	obj, ok := b.objects[key]
	if !ok {
		return nil, errNoSuchKey
	}

	return obj, nil
}

// Delete removes an object. Removing a key that does not exist is not an
// error, matching the service.
func (s *Store) Delete(bucket, key string) *s3c.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return errNoSuchBucket
	}

	delete(b.objects, key)
	return nil
}

// ListedObject is one key of a listing page.
type ListedObject struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Listing is one page of bucket contents.
type Listing struct {
	Objects        []ListedObject
	CommonPrefixes []string
	IsTruncated    bool

	// NextKey is the key to continue after when IsTruncated is set.
	NextKey string
}

// errEndOfListing stops a listing walk once the page is full.
var errEndOfListing = errors.New("end of listing")

// List walks the bucket's keys in order, keeping keys beginning with prefix
// and skipping keys at or before after. When a delimiter is given, keys that
// contain it beyond the prefix are rolled up into common prefixes instead of
// being listed. At most maxKeys objects are returned per page.
func (s *Store) List(bucket, prefix, delimiter, after string, maxKeys int) (*Listing, *s3c.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[bucket]
	if !ok {
		return nil, errNoSuchBucket
	}

	fsys, err := b.filesystem()
	if err != nil {
		return nil, &s3c.Error{ErrorCode: s3c.InternalError, Message: err.Error()}
	}

	var (
		listing  = new(Listing)
		prefixes = make(map[string]struct{})
	)

	walkErr := fs.WalkDir(fsys, ".", func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if walkPath == "." {
			return nil
		}

		if d.IsDir() {
			dirKey := walkPath + "/"
			switch {
			case strings.HasPrefix(prefix, dirKey):
				// The requested prefix is below this directory
				return nil
			case !strings.HasPrefix(dirKey, prefix):
				return fs.SkipDir
			case delimiter == "/":
				// The whole directory rolls up into one common prefix
				prefixes[dirKey] = struct{}{}
				return fs.SkipDir
			default:
				return nil
			}
		}

		key := walkPath
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		if after != "" && key <= after {
			return nil
		}

		// A delimiter past the prefix groups the key into a common prefix
		if delimiter != "" {
			rest := key[len(prefix):]
			if i := strings.Index(rest, delimiter); i >= 0 {
				prefixes[prefix+rest[:i+len(delimiter)]] = struct{}{}
				return nil
			}
		}

		obj := b.objects[key]
		listing.Objects = append(listing.Objects, ListedObject{
			Key:          key,
			Size:         int64(len(obj.Data)),
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})

		// The page is full, continue from this key on the next one
		if len(listing.Objects) == maxKeys {
			listing.IsTruncated = true
			listing.NextKey = key
			return errEndOfListing
		}

		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errEndOfListing) {
		return nil, &s3c.Error{ErrorCode: s3c.InternalError, Message: walkErr.Error()}
	}

	for p := range prefixes {
		listing.CommonPrefixes = append(listing.CommonPrefixes, p)
	}
	sort.Strings(listing.CommonPrefixes)

	return listing, nil
}
