package s3c

import (
	"context"
	"encoding/xml"
	"github.com/bluele/gcache"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// locationCacheSize bounds how many bucket locations are remembered.
	locationCacheSize = 1000
	// locationCacheLifetime is how long a resolved bucket location stays
	// cached before GetBucketLocation asks the service again.
	locationCacheLifetime = time.Minute
)

func newLocationCache() gcache.Cache {
	return gcache.New(locationCacheSize).LRU().Expiration(locationCacheLifetime).Build()
}

// BucketInfo is one bucket in a ListBuckets result.
type BucketInfo struct {
	Name         string
	CreationDate time.Time
}

// CreateBucket makes a new bucket owned by the requesting credentials. When
// the client region is not us-east-1 the request carries a location
// constraint for it.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	if !validBucketName(bucket) {
		return &Error{
			ErrorCode: InvalidBucketName,
			Message:   "The specified bucket is not valid.",
			Resource:  "/" + bucket,
		}
	}

	var body []byte
	if c.region != DefaultRegion {
		type CreateBucketConfiguration struct {
			XMLName            xml.Name `xml:"CreateBucketConfiguration"`
			LocationConstraint string
		}

		var err error
		body, err = xml.Marshal(&CreateBucketConfiguration{LocationConstraint: c.region})
		if err != nil {
			return err
		}
	}

	res, err := c.do(ctx, "CreateBucket", &request{
		method: http.MethodPut,
		bucket: bucket,
		body:   body,
	})
	if err != nil {
		return err
	}

	return expect(res, bucket, "", http.StatusOK)
}

// DeleteBucket removes an empty bucket.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	res, err := c.do(ctx, "DeleteBucket", &request{
		method: http.MethodDelete,
		bucket: bucket,
	})
	if err != nil {
		return err
	}

	c.locations.Remove(bucket)

	return expect(res, bucket, "", http.StatusNoContent)
}

// HeadBucket reports whether the bucket exists and the credentials may access
// it.
func (c *Client) HeadBucket(ctx context.Context, bucket string) error {
	res, err := c.do(ctx, "HeadBucket", &request{
		method: http.MethodHead,
		bucket: bucket,
	})
	if err != nil {
		return err
	}

	return expect(res, bucket, "", http.StatusOK)
}

// ListBuckets returns every bucket owned by the requesting credentials.
func (c *Client) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	type ListAllMyBucketsResult struct {
		XMLName xml.Name `xml:"ListAllMyBucketsResult"`
		Buckets struct {
			Bucket []BucketInfo
		}
	}

	res, err := c.do(ctx, "ListBuckets", &request{method: http.MethodGet})
	if err != nil {
		return nil, err
	}

	var result ListAllMyBucketsResult
	if err := decodeXML(res, "", "", &result); err != nil {
		return nil, err
	}

	return result.Buckets.Bucket, nil
}

// GetBucketLocation resolves the region a bucket lives in. Locations are
// public bucket metadata and are cached briefly; the signing pipeline itself
// never caches anything.
func (c *Client) GetBucketLocation(ctx context.Context, bucket string) (string, error) {
	if cached, err := c.locations.Get(bucket); err == nil {
		if region, ok := cached.(string); ok {
			return region, nil
		}
	}

	type LocationConstraint struct {
		XMLName            xml.Name `xml:"LocationConstraint"`
		LocationConstraint string   `xml:",chardata"`
	}

	res, err := c.do(ctx, "GetBucketLocation", &request{
		method: http.MethodGet,
		bucket: bucket,
		query:  url.Values{"location": []string{""}},
	})
	if err != nil {
		return "", err
	}

	var result LocationConstraint
	if err := decodeXML(res, bucket, "", &result); err != nil {
		return "", err
	}

	region := result.LocationConstraint
	if region == "" {
		// Buckets in us-east-1 report an empty location constraint
		region = DefaultRegion
	}

	_ = c.locations.Set(bucket, region)

	return region, nil
}

// ListObjectsV2Options narrow a bucket listing.
type ListObjectsV2Options struct {
	// Prefix limits the listing to keys beginning with it.
	Prefix string
	// Delimiter groups keys containing it between Prefix and the first
	// occurrence into CommonPrefixes.
	Delimiter string
	// StartAfter begins the listing after this key.
	StartAfter string
	// ContinuationToken resumes a listing from a previous truncated result.
	ContinuationToken string
	// MaxKeys bounds the number of keys per page. The service default is
	// 1000.
	MaxKeys int
}

// Contents is one object in a bucket listing.
type Contents struct {
	Key          string
	LastModified time.Time
	ETag         string
	Size         int64
	StorageClass string
}

// CommonPrefixes is one group of keys rolled up by the request delimiter.
type CommonPrefixes struct {
	Prefix string
}

// ListBucketResult is a single page of bucket contents. When IsTruncated is
// set, passing NextContinuationToken to a further call continues the listing.
type ListBucketResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	Name                  string
	Prefix                string
	Delimiter             string
	MaxKeys               int
	KeyCount              int
	IsTruncated           bool
	ContinuationToken     string
	NextContinuationToken string
	StartAfter            string
	Contents              []Contents
	CommonPrefixes        []CommonPrefixes
}

// ListObjectsV2 returns one page of the bucket's objects.
func (c *Client) ListObjectsV2(ctx context.Context, bucket string, opts *ListObjectsV2Options) (*ListBucketResult, error) {
	if opts == nil {
		opts = &ListObjectsV2Options{}
	}

	query := url.Values{"list-type": []string{"2"}}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	if opts.Delimiter != "" {
		query.Set("delimiter", opts.Delimiter)
	}
	if opts.StartAfter != "" {
		query.Set("start-after", opts.StartAfter)
	}
	if opts.ContinuationToken != "" {
		query.Set("continuation-token", opts.ContinuationToken)
	}
	if opts.MaxKeys > 0 {
		query.Set("max-keys", strconv.Itoa(opts.MaxKeys))
	}

	res, err := c.do(ctx, "ListObjectsV2", &request{
		method: http.MethodGet,
		bucket: bucket,
		query:  query,
	})
	if err != nil {
		return nil, err
	}

	var result ListBucketResult
	if err := decodeXML(res, bucket, "", &result); err != nil {
		return nil, err
	}

	return &result, nil
}
