package s3c

import (
	"fmt"
	"github.com/relvacode/s3c/sigv4"
	"net/url"
	"time"
)

// presignURL builds a complete presigned URL for one object operation.
// Only the host header is covered by the signature so the URL is usable by
// any plain HTTP client.
func (c *Client) presignURL(method, bucket, key string, expires time.Duration) (string, error) {
	value, err := c.provider.Retrieve()
	if err != nil {
		return "", fmt.Errorf("retrieve credentials: %w", err)
	}

	host, path := c.endpoint.address(bucket, key)

	query, err := sigv4.Presign(sigv4.Credentials{
		AccessKeyID:     value.AccessKeyID,
		SecretAccessKey: value.SecretAccessKey,
		Region:          c.region,
		Service:         serviceS3,
	}, sigv4.PresignParams{
		Method: method,
		Path:   path,
		Headers: map[string]string{
			"host": host,
		},
		Expires:       expires,
		SecurityToken: value.SessionToken,
	})
	if err != nil {
		return "", err
	}

	// The wire path and query must encode to exactly the bytes that were
	// signed.
	u := &url.URL{
		Scheme:   c.endpoint.scheme,
		Host:     host,
		Path:     path,
		RawPath:  sigv4.EscapePath(path),
		RawQuery: sigv4.EncodeQuery(query),
	}

	return u.String(), nil
}

// PresignGetObject returns a URL that downloads bucket/key without further
// authentication until expires has passed.
func (c *Client) PresignGetObject(bucket, key string, expires time.Duration) (string, error) {
	return c.presignURL("GET", bucket, key, expires)
}

// PresignPutObject returns a URL that uploads to bucket/key without further
// authentication until expires has passed.
func (c *Client) PresignPutObject(bucket, key string, expires time.Duration) (string, error) {
	return c.presignURL("PUT", bucket, key, expires)
}
