package s3c

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"io"
	"net/http"
	"strings"
	"testing"
)

func assertIsError(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	ec := new(Error)
	assert.True(t, errors.As(err, &ec), "Expected error to be an *Error")
	assert.Equal(t, code, ec.ErrorCode)
}

func TestError_Is(t *testing.T) {
	err := &Error{
		ErrorCode: NoSuchKey,
		Message:   "The specified key does not exist.",
	}

	assert.ErrorIs(t, err, &Error{ErrorCode: NoSuchKey})
	assert.NotErrorIs(t, err, &Error{ErrorCode: NoSuchBucket})
	assert.NotErrorIs(t, err, errors.New("NoSuchKey"))
}

func testErrorResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestErrorFromResponse(t *testing.T) {
	t.Run("xml envelope", func(t *testing.T) {
		res := testErrorResponse(http.StatusNotFound, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>NoSuchKey</Code>
  <Message>The specified key does not exist.</Message>
  <Resource>/examplebucket/test.txt</Resource>
  <RequestId>123e4567-e89b-12d3-a456-426614174000</RequestId>
</Error>`)

		err := ErrorFromResponse(res, "examplebucket", "test.txt")
		assertIsError(t, err, NoSuchKey)

		e := err.(*Error)
		assert.Equal(t, "The specified key does not exist.", e.Message)
		assert.Equal(t, "/examplebucket/test.txt", e.Resource)
		assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", e.RequestID)
		// The status code comes from the known code table, not the envelope
		assert.Equal(t, 404, e.StatusCode)
	})

	t.Run("unknown code keeps response status", func(t *testing.T) {
		res := testErrorResponse(http.StatusServiceUnavailable, `<Error><Code>SlowDown</Code><Message>Reduce your request rate.</Message></Error>`)

		err := ErrorFromResponse(res, "examplebucket", "")
		e := err.(*Error)
		assert.Equal(t, "SlowDown", e.Code)
		assert.Equal(t, http.StatusServiceUnavailable, e.StatusCode)
	})

	t.Run("no body", func(t *testing.T) {
		for _, tc := range []struct {
			status int
			bucket string
			key    string
			code   ErrorCode
		}{
			{http.StatusNotFound, "bucket", "key", NoSuchKey},
			{http.StatusNotFound, "bucket", "", NoSuchBucket},
			{http.StatusForbidden, "bucket", "", AccessDenied},
			{http.StatusConflict, "bucket", "", BucketNotEmpty},
			{http.StatusRequestedRangeNotSatisfiable, "bucket", "key", InvalidRange},
			{http.StatusPreconditionFailed, "bucket", "key", PreconditionFailed},
			{http.StatusMethodNotAllowed, "bucket", "key", MethodNotAllowed},
			{http.StatusBadGateway, "bucket", "", InternalError},
			{http.StatusTeapot, "bucket", "", InvalidRequest},
		} {
			t.Run(tc.code.Code, func(t *testing.T) {
				res := testErrorResponse(tc.status, "")
				res.Header.Set("X-Amz-Request-Id", "request-id")

				err := ErrorFromResponse(res, tc.bucket, tc.key)
				assertIsError(t, err, tc.code)

				e := err.(*Error)
				assert.Equal(t, "request-id", e.RequestID)
				assert.Contains(t, e.Resource, tc.bucket)
			})
		}
	})

	t.Run("garbage body", func(t *testing.T) {
		res := testErrorResponse(http.StatusForbidden, "not xml at all")

		err := ErrorFromResponse(res, "bucket", "")
		assertIsError(t, err, AccessDenied)
	})
}
