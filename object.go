package s3c

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"github.com/h2non/filetype"
	"github.com/relvacode/s3c/sigv4"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// metadataPrefix carries user defined object metadata on the wire.
const metadataPrefix = "x-amz-meta-"

// Object is the payload and metadata of one stored object.
type Object struct {
	// Body is the object payload. It is nil for HeadObject.
	Body []byte

	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	// ContentRange is set when the request asked for a byte range.
	ContentRange string
	// Metadata holds the x-amz-meta-* values stored with the object, keyed
	// without the prefix.
	Metadata map[string]string
}

// PutObjectOptions carry the optional attributes of an upload.
type PutObjectOptions struct {
	// ContentType of the payload. When empty the client guesses one from the
	// payload itself unless detection is disabled.
	ContentType string
	// Checksum selects an additional content checksum uploaded with the
	// object.
	Checksum ChecksumAlgorithm
	// Metadata is stored with the object as x-amz-meta-* headers.
	Metadata map[string]string
}

// GetObjectOptions narrow a download.
type GetObjectOptions struct {
	// Range requests part of the object, in HTTP bytes=start-end form.
	Range string
}

// guessContentType matches the payload head against known file signatures.
// It always returns a valid MIME type.
func guessContentType(body []byte) string {
	t, _ := filetype.Match(body)
	mt := t.MIME.Value

	if mt == "" {
		mt = "binary/octet-stream"
	}

	return mt
}

// objectMetadata collects the x-amz-meta-* headers of a response.
func objectMetadata(header http.Header) map[string]string {
	var metadata map[string]string
	for name := range header {
		key, ok := strings.CutPrefix(strings.ToLower(name), metadataPrefix)
		if !ok {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[key] = header.Get(name)
	}

	return metadata
}

// PutObject uploads body under bucket/key and returns the ETag reported by
// the service.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body []byte, opts *PutObjectOptions) (string, error) {
	if opts == nil {
		opts = &PutObjectOptions{}
	}

	header := make(map[string]string)

	contentType := opts.ContentType
	if contentType == "" && c.detectContentType {
		contentType = guessContentType(body)
	}
	if contentType != "" {
		header["content-type"] = contentType
	}

	if opts.Checksum != ChecksumNone {
		checksum, err := opts.Checksum.Compute(body)
		if err != nil {
			return "", err
		}
		header[opts.Checksum.Header()] = checksum
	}

	for name, value := range opts.Metadata {
		header[metadataPrefix+strings.ToLower(name)] = value
	}

	res, err := c.do(ctx, "PutObject", &request{
		method: http.MethodPut,
		bucket: bucket,
		key:    key,
		header: header,
		body:   body,
	})
	if err != nil {
		return "", err
	}

	if err := expect(res, bucket, key, http.StatusOK); err != nil {
		return "", err
	}

	statBytesTransferredOut.WithLabelValues(bucket).Add(float64(len(body)))

	return res.Header.Get("ETag"), nil
}

// GetObject downloads an object. Any known x-amz-checksum-* header on a full
// response is recomputed against the downloaded payload before the object is
// returned.
func (c *Client) GetObject(ctx context.Context, bucket, key string, opts *GetObjectOptions) (*Object, error) {
	if opts == nil {
		opts = &GetObjectOptions{}
	}

	header := make(map[string]string)
	if opts.Range != "" {
		header["range"] = opts.Range
	}

	res, err := c.do(ctx, "GetObject", &request{
		method: http.MethodGet,
		bucket: bucket,
		key:    key,
		header: header,
	})
	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusPartialContent {
		return nil, ErrorFromResponse(res, bucket, key)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}

	// A checksum on a ranged response covers the whole object, not the part
	if res.StatusCode == http.StatusOK {
		if err := verifyChecksums(res.Header, body); err != nil {
			return nil, err
		}
	}

	statBytesTransferredIn.WithLabelValues(bucket).Add(float64(len(body)))

	obj := &Object{
		Body:         body,
		Size:         int64(len(body)),
		ContentType:  res.Header.Get("Content-Type"),
		ETag:         res.Header.Get("ETag"),
		ContentRange: res.Header.Get("Content-Range"),
		Metadata:     objectMetadata(res.Header),
	}
	if lastModified, err := http.ParseTime(res.Header.Get("Last-Modified")); err == nil {
		obj.LastModified = lastModified
	}

	return obj, nil
}

// HeadObject returns the metadata of an object without its payload.
func (c *Client) HeadObject(ctx context.Context, bucket, key string) (*Object, error) {
	res, err := c.do(ctx, "HeadObject", &request{
		method: http.MethodHead,
		bucket: bucket,
		key:    key,
	})
	if err != nil {
		return nil, err
	}

	defer discard(res)

	if res.StatusCode != http.StatusOK {
		return nil, ErrorFromResponse(res, bucket, key)
	}

	obj := &Object{
		Size:        res.ContentLength,
		ContentType: res.Header.Get("Content-Type"),
		ETag:        res.Header.Get("ETag"),
		Metadata:    objectMetadata(res.Header),
	}
	if lastModified, err := http.ParseTime(res.Header.Get("Last-Modified")); err == nil {
		obj.LastModified = lastModified
	}

	return obj, nil
}

// DeleteObject removes a single object. Deleting a key that does not exist
// is not an error.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	res, err := c.do(ctx, "DeleteObject", &request{
		method: http.MethodDelete,
		bucket: bucket,
		key:    key,
	})
	if err != nil {
		return err
	}

	return expect(res, bucket, key, http.StatusNoContent)
}

// DeletedObject reports one key removed by DeleteObjects.
type DeletedObject struct {
	Key string
}

// DeleteError reports one key DeleteObjects could not remove.
type DeleteError struct {
	Key     string
	Code    string
	Message string
}

// DeleteResult is the outcome of a batch delete.
type DeleteResult struct {
	XMLName xml.Name        `xml:"DeleteResult"`
	Deleted []DeletedObject `xml:"Deleted"`
	Errors  []DeleteError   `xml:"Error"`
}

// DeleteObjects removes up to 1000 objects in one request.
func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) (*DeleteResult, error) {
	type objectIdentifier struct {
		Key string
	}
	type deleteRequest struct {
		XMLName xml.Name `xml:"Delete"`
		Object  []objectIdentifier
	}

	payload := deleteRequest{Object: make([]objectIdentifier, 0, len(keys))}
	for _, key := range keys {
		payload.Object = append(payload.Object, objectIdentifier{Key: key})
	}

	body, err := xml.Marshal(&payload)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(body)

	res, err := c.do(ctx, "DeleteObjects", &request{
		method: http.MethodPost,
		bucket: bucket,
		query:  url.Values{"delete": []string{""}},
		header: map[string]string{
			"content-md5":  base64.StdEncoding.EncodeToString(sum[:]),
			"content-type": "application/xml",
		},
		body: body,
	})
	if err != nil {
		return nil, err
	}

	var result DeleteResult
	if err := decodeXML(res, bucket, "", &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// CopyObjectResult describes the copy written by CopyObject.
type CopyObjectResult struct {
	XMLName      xml.Name `xml:"CopyObjectResult"`
	ETag         string
	LastModified time.Time
}

// CopyObject copies an existing object to bucket/key without downloading it.
func (c *Client) CopyObject(ctx context.Context, sourceBucket, sourceKey, bucket, key string) (*CopyObjectResult, error) {
	source := "/" + sourceBucket + "/" + sourceKey

	res, err := c.do(ctx, "CopyObject", &request{
		method: http.MethodPut,
		bucket: bucket,
		key:    key,
		header: map[string]string{
			"x-amz-copy-source": sigv4.EscapePath(source),
		},
	})
	if err != nil {
		return nil, err
	}

	var result CopyObjectResult
	if err := decodeXML(res, bucket, key, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
