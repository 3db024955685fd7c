package s3c

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
)

type ErrorCode struct {
	Code       string `xml:"Code"`
	StatusCode int    `xml:"-"`
}

var (
	AccessDenied                 = ErrorCode{Code: "AccessDenied", StatusCode: 403}
	InvalidAccessKeyId           = ErrorCode{Code: "InvalidAccessKeyId", StatusCode: 403}
	SignatureDoesNotMatch        = ErrorCode{Code: "SignatureDoesNotMatch", StatusCode: 403}
	MethodNotAllowed             = ErrorCode{Code: "MethodNotAllowed", StatusCode: 405}
	InvalidRequest               = ErrorCode{Code: "InvalidRequest", StatusCode: 400}
	ExpiredToken                 = ErrorCode{Code: "ExpiredToken", StatusCode: 400}
	InvalidArgument              = ErrorCode{Code: "InvalidArgument", StatusCode: 400}
	InvalidBucketName            = ErrorCode{Code: "InvalidBucketName", StatusCode: 400}
	BadDigest                    = ErrorCode{Code: "BadDigest", StatusCode: 400}
	NoSuchKey                    = ErrorCode{Code: "NoSuchKey", StatusCode: 404}
	NoSuchBucket                 = ErrorCode{Code: "NoSuchBucket", StatusCode: 404}
	BucketAlreadyExists          = ErrorCode{Code: "BucketAlreadyExists", StatusCode: 409}
	BucketAlreadyOwnedByYou      = ErrorCode{Code: "BucketAlreadyOwnedByYou", StatusCode: 409}
	BucketNotEmpty               = ErrorCode{Code: "BucketNotEmpty", StatusCode: 409}
	InvalidRange                 = ErrorCode{Code: "InvalidRange", StatusCode: 416}
	InvalidLocationConstraint    = ErrorCode{Code: "InvalidLocationConstraint", StatusCode: 400}
	PreconditionFailed           = ErrorCode{Code: "PreconditionFailed", StatusCode: 412}
	InternalError                = ErrorCode{Code: "InternalError", StatusCode: 500}
	MalformedXML                 = ErrorCode{Code: "MalformedXML", StatusCode: 400}
	AuthorizationHeaderMalformed = ErrorCode{Code: "AuthorizationHeaderMalformed", StatusCode: 400}
)

// knownErrorCodes resolves a wire code to its ErrorCode so that errors
// decoded from responses compare equal to the package variables.
var knownErrorCodes = func() map[string]ErrorCode {
	codes := []ErrorCode{
		AccessDenied, InvalidAccessKeyId, SignatureDoesNotMatch, MethodNotAllowed,
		InvalidRequest, ExpiredToken, InvalidArgument, InvalidBucketName, BadDigest,
		NoSuchKey, NoSuchBucket, BucketAlreadyExists, BucketAlreadyOwnedByYou,
		BucketNotEmpty, InvalidRange, InvalidLocationConstraint, PreconditionFailed,
		InternalError, MalformedXML, AuthorizationHeaderMalformed,
	}
	m := make(map[string]ErrorCode, len(codes))
	for _, code := range codes {
		m[code.Code] = code
	}
	return m
}()

// Error is the S3 error envelope, sent and received as XML.
type Error struct {
	XMLName xml.Name `xml:"Error"`
	ErrorCode
	Message   string `xml:"Message,omitempty"`
	Resource  string `xml:"Resource,omitempty"`
	RequestID string `xml:"RequestId,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok && t.Code == e.Code {
		return true
	}

	return false
}

// maxErrorResponse bounds how much of an error body is read. S3 error
// envelopes are small, anything larger is not one.
const maxErrorResponse = 1 << 20

// ErrorFromResponse turns a non-2xx response into an *Error. The XML envelope
// is decoded when present, otherwise the error is implied from the status
// code, bucket and key, which is all a HEAD response provides.
func ErrorFromResponse(res *http.Response, bucket, key string) error {
	e := new(Error)

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorResponse))
	if err := xml.Unmarshal(body, e); err == nil && e.Code != "" {
		if known, ok := knownErrorCodes[e.Code]; ok {
			e.ErrorCode = known
		} else {
			e.StatusCode = res.StatusCode
		}
		return e
	}

	switch res.StatusCode {
	case http.StatusNotFound:
		if key == "" {
			e.ErrorCode = NoSuchBucket
		} else {
			e.ErrorCode = NoSuchKey
		}
	case http.StatusForbidden:
		e.ErrorCode = AccessDenied
	case http.StatusConflict:
		e.ErrorCode = BucketNotEmpty
	case http.StatusRequestedRangeNotSatisfiable:
		e.ErrorCode = InvalidRange
	case http.StatusPreconditionFailed:
		e.ErrorCode = PreconditionFailed
	case http.StatusMethodNotAllowed:
		e.ErrorCode = MethodNotAllowed
	default:
		if res.StatusCode >= 500 {
			e.ErrorCode = InternalError
		} else {
			e.ErrorCode = InvalidRequest
		}
	}

	e.Message = http.StatusText(res.StatusCode)
	e.Resource = "/" + bucket
	if key != "" {
		e.Resource += "/" + key
	}
	e.RequestID = res.Header.Get("X-Amz-Request-Id")

	return e
}
