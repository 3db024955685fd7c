package sigv4

import "errors"

var (
	// ErrInvalidTimestamp is returned when the signing timestamp is negative.
	ErrInvalidTimestamp = errors.New("invalid signing timestamp")

	// ErrMissingRequiredHeader is returned when the request is missing a header
	// that Signature Version 4 requires to be signed.
	ErrMissingRequiredHeader = errors.New("missing required header")

	// ErrMalformedPath is returned when the request path cannot be canonicalized,
	// either because a ".." segment navigates above the root or because the query
	// string is not parseable.
	ErrMalformedPath = errors.New("malformed request path")

	// ErrInvalidExpires is returned by Presign when the expiry is outside the
	// range accepted for presigned requests, one second to seven days.
	ErrInvalidExpires = errors.New("invalid presigned expiry")
)
