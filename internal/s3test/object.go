package s3test

import (
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/contrib/http_range"
	"github.com/relvacode/s3c"
)

// metadataPrefix carries user defined object metadata on the wire.
const metadataPrefix = "x-amz-meta-"

// checksumAlgorithms are the additional content checksums the server verifies
// on upload and replays on download.
var checksumAlgorithms = []s3c.ChecksumAlgorithm{
	s3c.ChecksumCRC32,
	s3c.ChecksumCRC32C,
	s3c.ChecksumCRC64NVME,
	s3c.ChecksumSHA256,
}

func (s *Server) putObject(ctx *requestContext) *s3c.Error {
	if source := ctx.request.Header.Get("x-amz-copy-source"); source != "" {
		return s.copyObject(ctx, source)
	}

	body, err := io.ReadAll(ctx.request.Body)
	if err != nil {
		return &s3c.Error{ErrorCode: s3c.InternalError, Message: err.Error()}
	}

	obj := &Object{
		Data:        body,
		ContentType: ctx.request.Header.Get("Content-Type"),
	}
	if obj.ContentType == "" {
		obj.ContentType = "binary/octet-stream"
	}

	for name := range ctx.request.Header {
		meta, ok := strings.CutPrefix(strings.ToLower(name), metadataPrefix)
		if !ok {
			continue
		}
		if obj.Metadata == nil {
			obj.Metadata = make(map[string]string)
		}
		obj.Metadata[meta] = ctx.request.Header.Get(name)
	}

	for _, algorithm := range checksumAlgorithms {
		declared := ctx.request.Header.Get(algorithm.Header())
		if declared == "" {
			continue
		}

		computed, err := algorithm.Compute(body)
		if err != nil {
			return &s3c.Error{ErrorCode: s3c.InternalError, Message: err.Error()}
		}
		if computed != declared {
			return &s3c.Error{
				ErrorCode: s3c.BadDigest,
				Message:   "The " + algorithm.Header() + " you specified did not match what we received.",
			}
		}

		if obj.Checksums == nil {
			obj.Checksums = make(map[string]string)
		}
		obj.Checksums[algorithm.Header()] = declared
	}

	if serr := s.store.Put(ctx.bucket, ctx.key, obj); serr != nil {
		return serr
	}

	ctx.header().Set("ETag", strconv.Quote(obj.ETag))
	ctx.sendPlain(http.StatusOK)
	return nil
}

func (s *Server) copyObject(ctx *requestContext, source string) *s3c.Error {
	decoded, err := url.PathUnescape(source)
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.InvalidArgument,
			Message:   "Copy source could not be URL-decoded.",
		}
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(decoded, "/"), "/")
	if !ok || key == "" {
		return &s3c.Error{
			ErrorCode: s3c.InvalidArgument,
			Message:   "Copy source must name a bucket and key.",
		}
	}

	src, serr := s.store.Get(bucket, key)
	if serr != nil {
		return serr
	}

	copied := &Object{
		Data:        src.Data,
		ContentType: src.ContentType,
		Metadata:    src.Metadata,
		Checksums:   src.Checksums,
	}
	if serr := s.store.Put(ctx.bucket, ctx.key, copied); serr != nil {
		return serr
	}

	type CopyObjectResult struct {
		XMLName      xml.Name `xml:"CopyObjectResult"`
		ETag         string
		LastModified time.Time
	}

	ctx.sendXML(http.StatusOK, &CopyObjectResult{
		ETag:         strconv.Quote(copied.ETag),
		LastModified: copied.LastModified,
	})
	return nil
}

// objectHeaders writes the standard metadata headers of an object.
func objectHeaders(header http.Header, obj *Object) {
	header.Set("Content-Type", obj.ContentType)
	header.Set("ETag", strconv.Quote(obj.ETag))
	header.Set("Last-Modified", obj.LastModified.Format(http.TimeFormat))
	header.Set("Accept-Ranges", "bytes")

	for name, value := range obj.Metadata {
		header.Set(metadataPrefix+name, value)
	}
	for name, value := range obj.Checksums {
		header.Set(name, value)
	}
}

func (s *Server) getObject(ctx *requestContext) *s3c.Error {
	obj, serr := s.store.Get(ctx.bucket, ctx.key)
	if serr != nil {
		return serr
	}

	body := obj.Data
	status := http.StatusOK

	if rangeHeader := ctx.request.Header.Get("Range"); rangeHeader != "" {
		ranges, err := http_range.ParseRange(rangeHeader, int64(len(obj.Data)))
		// Only a single range request is supported
		if err != nil || len(ranges) != 1 {
			return &s3c.Error{
				ErrorCode: s3c.InvalidRange,
				Message:   "The requested range is not satisfiable.",
			}
		}

		rng := ranges[0]
		body = obj.Data[rng.Start : rng.Start+rng.Length]
		status = http.StatusPartialContent
		ctx.header().Set("Content-Range", rng.ContentRange(int64(len(obj.Data))))
	}

	objectHeaders(ctx.header(), obj)
	ctx.header().Set("Content-Length", strconv.Itoa(len(body)))

	_, _ = ctx.sendPlain(status).Write(body)
	return nil
}

func (s *Server) headObject(ctx *requestContext) *s3c.Error {
	obj, serr := s.store.Get(ctx.bucket, ctx.key)
	if serr != nil {
		// A HEAD response carries no body, only the status matters
		ctx.sendPlain(serr.StatusCode)
		return nil
	}

	objectHeaders(ctx.header(), obj)
	ctx.header().Set("Content-Length", strconv.Itoa(len(obj.Data)))

	ctx.sendPlain(http.StatusOK)
	return nil
}

// deleteObject removes the object. Removing a key that does not exist still
// succeeds, matching the service.
func (s *Server) deleteObject(ctx *requestContext) *s3c.Error {
	if serr := s.store.Delete(ctx.bucket, ctx.key); serr != nil {
		return serr
	}

	ctx.sendPlain(http.StatusNoContent)
	return nil
}
