// Package s3c is a lightweight Amazon S3 compatible client with its own
// Signature Version 4 implementation.
package s3c

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"github.com/bluele/gcache"
	"github.com/google/uuid"
	"github.com/relvacode/s3c/creds"
	"github.com/relvacode/s3c/sigv4"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultRegion is the region requests are signed for when the client is not
// configured with one.
const DefaultRegion = "us-east-1"

// serviceS3 is the service name bound into every credential scope.
const serviceS3 = "s3"

// An Option changes how a Client is constructed by New.
type Option func(*Client)

// WithRegion sets the region signed into the credential scope of every request.
func WithRegion(region string) Option {
	return func(c *Client) {
		c.region = region
	}
}

// WithCredentials sets the provider consulted for signing credentials.
func WithCredentials(provider creds.Provider) Option {
	return func(c *Client) {
		c.provider = provider
	}
}

// WithHTTPClient replaces the transport used to send requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger enables request logging on the given logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithPathStyle forces the bucket into the request path even when it could be
// addressed as a prefix of the endpoint host.
func WithPathStyle() Option {
	return func(c *Client) {
		c.pathStyle = true
	}
}

// WithContentTypeDetection controls whether PutObject guesses a Content-Type
// from the payload when the caller does not supply one.
func WithContentTypeDetection(detect bool) Option {
	return func(c *Client) {
		c.detectContentType = detect
	}
}

// New creates a Client for the S3 compatible service at serviceEndpoint.
// The endpoint is a bare host, optionally prefixed with a scheme; https is
// assumed if there is none. Credentials default to the process environment.
func New(serviceEndpoint string, opts ...Option) (*Client, error) {
	c := &Client{
		region:            DefaultRegion,
		provider:          creds.Env{},
		httpClient:        http.DefaultClient,
		log:               zap.NewNop(),
		detectContentType: true,
		locations:         newLocationCache(),
	}

	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.endpoint, err = parseEndpoint(serviceEndpoint, c.pathStyle)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Client issues signed requests against a single S3 compatible endpoint.
// All methods are safe for concurrent use; the client keeps no signing state
// between requests.
type Client struct {
	endpoint          *endpoint
	region            string
	provider          creds.Provider
	httpClient        *http.Client
	log               *zap.Logger
	pathStyle         bool
	detectContentType bool

	// locations remembers bucket regions resolved by GetBucketLocation.
	locations gcache.Cache
}

// request describes one API call before it is signed.
type request struct {
	method string
	bucket string
	key    string
	query  url.Values
	header map[string]string
	body   []byte
}

// newHTTPRequest signs req and converts it into an outgoing http.Request.
// The header map handed to the signer is built fresh for every call; header
// maps owned by callers are copied from, never written to.
func (c *Client) newHTTPRequest(ctx context.Context, req *request) (*http.Request, error) {
	value, err := c.provider.Retrieve()
	if err != nil {
		return nil, fmt.Errorf("retrieve credentials: %w", err)
	}

	host, path := c.endpoint.address(req.bucket, req.key)

	// A single timestamp feeds both x-amz-date and the credential scope so
	// the request can never straddle two dates.
	ts := time.Now().UTC().Unix()

	// The payload hash is computed once and used verbatim in the canonical
	// request and the x-amz-content-sha256 header.
	payloadHash := sigv4.HashPayload(req.body)

	headers := map[string]string{
		"host":                  host,
		"x-amz-date":            sigv4.FormatDateTime(ts),
		"x-amz-content-sha256":  payloadHash,
		"amz-sdk-invocation-id": uuid.NewString(),
	}
	if value.SessionToken != "" {
		headers["x-amz-security-token"] = value.SessionToken
	}
	for name, v := range req.header {
		headers[name] = v
	}

	requestPath := path
	var rawQuery string
	if len(req.query) > 0 {
		rawQuery = sigv4.EncodeQuery(req.query)
		requestPath += "?" + rawQuery
	}

	authorization, err := sigv4.Sign(sigv4.Credentials{
		AccessKeyID:     value.AccessKeyID,
		SecretAccessKey: value.SecretAccessKey,
		Region:          c.region,
		Service:         serviceS3,
	}, sigv4.SigningParams{
		Method:      req.method,
		Path:        requestPath,
		Headers:     headers,
		Timestamp:   ts,
		PayloadHash: payloadHash,
	})
	if err != nil {
		return nil, err
	}

	// The wire path must encode to exactly the bytes that were signed.
	u := &url.URL{
		Scheme:   c.endpoint.scheme,
		Host:     host,
		Path:     path,
		RawPath:  sigv4.EscapePath(path),
		RawQuery: rawQuery,
	}

	var body io.Reader
	if len(req.body) > 0 {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, err
	}

	for name, v := range headers {
		// Host travels on the request line, not in the header table
		if name == "host" {
			continue
		}
		httpReq.Header.Set(name, v)
	}
	httpReq.Header.Set("Authorization", authorization)
	httpReq.Header.Set("User-Agent", "s3c")

	return httpReq, nil
}

// do sends a signed API request, records the call and returns the raw
// response. Callers own the response body.
func (c *Client) do(ctx context.Context, operation string, req *request) (*http.Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		statApiCall.WithLabelValues(operation, req.bucket, "transport").Add(1)
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	statApiCall.WithLabelValues(operation, req.bucket, strconv.Itoa(res.StatusCode)).Add(1)

	c.log.Debug("api call",
		zap.String("operation", operation),
		zap.String("http-method", httpReq.Method),
		zap.String("http-uri", httpReq.URL.RequestURI()),
		zap.Int("http-status", res.StatusCode),
	)

	return res, nil
}

// discard drains and closes a response body so the transport can reuse the
// connection.
func discard(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}

// expect discards the response and maps any status outside statuses to an
// *Error.
func expect(res *http.Response, bucket, key string, statuses ...int) error {
	for _, status := range statuses {
		if res.StatusCode == status {
			discard(res)
			return nil
		}
	}

	defer res.Body.Close()
	return ErrorFromResponse(res, bucket, key)
}

// decodeXML decodes a 200 response body into out and maps any other status to
// an *Error.
func decodeXML(res *http.Response, bucket, key string, out any) error {
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return ErrorFromResponse(res, bucket, key)
	}

	if err := xml.NewDecoder(res.Body).Decode(out); err != nil {
		return &Error{
			ErrorCode: MalformedXML,
			Message:   fmt.Sprintf("The response body could not be decoded: %v.", err),
		}
	}

	return nil
}
