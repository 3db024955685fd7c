package s3test

import (
	"encoding/base64"
	"encoding/xml"
	"net/http"
	"strconv"
	"time"

	"github.com/relvacode/s3c"
)

func (s *Server) listBuckets(ctx *requestContext) *s3c.Error {
	type Bucket struct {
		CreationDate time.Time
		Name         string
	}
	type ListAllMyBucketsResult struct {
		XMLName xml.Name `xml:"ListAllMyBucketsResult"`
		Buckets struct {
			Bucket []Bucket
		}
	}

	var result ListAllMyBucketsResult
	for _, info := range s.store.ListBuckets() {
		result.Buckets.Bucket = append(result.Buckets.Bucket, Bucket{
			CreationDate: info.CreatedAt,
			Name:         info.Name,
		})
	}

	ctx.sendXML(http.StatusOK, &result)
	return nil
}

func (s *Server) createBucket(ctx *requestContext) *s3c.Error {
	type CreateBucketConfiguration struct {
		LocationConstraint string
	}

	// The configuration document is optional, an empty body means the
	// bucket goes wherever the server is.
	var config CreateBucketConfiguration
	if err := xml.NewDecoder(ctx.request.Body).Decode(&config); err == nil {
		if config.LocationConstraint != "" && config.LocationConstraint != s.region {
			return &s3c.Error{
				ErrorCode: s3c.InvalidLocationConstraint,
				Message:   "The specified location constraint is not valid.",
			}
		}
	}

	if err := s.store.CreateBucket(ctx.bucket); err != nil {
		return err
	}

	ctx.header().Set("Location", "/"+ctx.bucket)
	ctx.sendPlain(http.StatusOK)
	return nil
}

func (s *Server) headBucket(ctx *requestContext) *s3c.Error {
	if !s.store.BucketExists(ctx.bucket) {
		return errNoSuchBucket
	}

	ctx.header().Set("x-amz-bucket-region", s.region)
	ctx.sendPlain(http.StatusOK)
	return nil
}

func (s *Server) deleteBucket(ctx *requestContext) *s3c.Error {
	if err := s.store.DeleteBucket(ctx.bucket); err != nil {
		return err
	}

	ctx.sendPlain(http.StatusNoContent)
	return nil
}

func (s *Server) getBucketLocation(ctx *requestContext) *s3c.Error {
	if !s.store.BucketExists(ctx.bucket) {
		return errNoSuchBucket
	}

	type LocationConstraint struct {
		XMLName  xml.Name `xml:"LocationConstraint"`
		Location string   `xml:",chardata"`
	}

	var result LocationConstraint
	// Buckets in the default region report an empty location constraint
	if s.region != "us-east-1" {
		result.Location = s.region
	}

	ctx.sendXML(http.StatusOK, &result)
	return nil
}

func (s *Server) listObjectsV2(ctx *requestContext) *s3c.Error {
	query := ctx.request.URL.Query()

	maxKeys := 1000
	if value := query.Get("max-keys"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return &s3c.Error{
				ErrorCode: s3c.InvalidArgument,
				Message:   "Invalid value for max-keys.",
			}
		}
		maxKeys = parsed
	}

	if !s.store.BucketExists(ctx.bucket) {
		return errNoSuchBucket
	}

	after := query.Get("start-after")
	// A continuation token from a previous page wins over start-after
	if token := query.Get("continuation-token"); token != "" {
		decoded, err := base64.StdEncoding.DecodeString(token)
		if err != nil {
			return &s3c.Error{
				ErrorCode: s3c.InvalidArgument,
				Message:   "The continuation token provided is incorrect.",
			}
		}
		after = string(decoded)
	}

	type Contents struct {
		Key          string
		LastModified time.Time
		ETag         string
		Size         int64
		StorageClass string
	}
	type CommonPrefixes struct {
		Prefix string
	}
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

	result := ListBucketResult{
		Name:              ctx.bucket,
		Prefix:            query.Get("prefix"),
		Delimiter:         query.Get("delimiter"),
		MaxKeys:           maxKeys,
		ContinuationToken: query.Get("continuation-token"),
		StartAfter:        query.Get("start-after"),
	}

	if maxKeys > 0 {
		listing, err := s.store.List(ctx.bucket, result.Prefix, result.Delimiter, after, maxKeys)
		if err != nil {
			return err
		}

		for _, obj := range listing.Objects {
			result.Contents = append(result.Contents, Contents{
				Key:          obj.Key,
				LastModified: obj.LastModified,
				ETag:         strconv.Quote(obj.ETag),
				Size:         obj.Size,
				StorageClass: "STANDARD",
			})
		}
		for _, prefix := range listing.CommonPrefixes {
			result.CommonPrefixes = append(result.CommonPrefixes, CommonPrefixes{Prefix: prefix})
		}

		result.IsTruncated = listing.IsTruncated
		if listing.IsTruncated {
			result.NextContinuationToken = base64.StdEncoding.EncodeToString([]byte(listing.NextKey))
		}
	}

	result.KeyCount = len(result.Contents) + len(result.CommonPrefixes)

	ctx.sendXML(http.StatusOK, &result)
	return nil
}

func (s *Server) deleteObjects(ctx *requestContext) *s3c.Error {
	if !s.store.BucketExists(ctx.bucket) {
		return errNoSuchBucket
	}

	type objectIdentifier struct {
		Key string
	}
	type deleteRequest struct {
		XMLName xml.Name `xml:"Delete"`
		Object  []objectIdentifier
	}

	var payload deleteRequest
	if err := xml.NewDecoder(ctx.request.Body).Decode(&payload); err != nil {
		return &s3c.Error{
			ErrorCode: s3c.MalformedXML,
			Message:   "The XML you provided was not well-formed or did not validate against our published schema.",
		}
	}

	result := s3c.DeleteResult{}
	for _, object := range payload.Object {
		if err := s.store.Delete(ctx.bucket, object.Key); err != nil {
			result.Errors = append(result.Errors, s3c.DeleteError{
				Key:     object.Key,
				Code:    err.Code,
				Message: err.Message,
			})
			continue
		}
		result.Deleted = append(result.Deleted, s3c.DeletedObject{Key: object.Key})
	}

	ctx.sendXML(http.StatusOK, &result)
	return nil
}
