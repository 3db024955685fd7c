package sigv4

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	xAmzAlgorithm     = "X-Amz-Algorithm"
	xAmzCredential    = "X-Amz-Credential"
	xAmzDate          = "X-Amz-Date"
	xAmzExpires       = "X-Amz-Expires"
	xAmzSignedHeaders = "X-Amz-SignedHeaders"
	xAmzSignature     = "X-Amz-Signature"
	xAmzSecurityToken = "X-Amz-Security-Token"
)

const (
	minimumPresignedExpires = time.Second
	maximumPresignedExpiry  = time.Second * 604800
)

// PresignParams describe a request to authenticate through query parameters
// instead of an Authorization header.
type PresignParams struct {
	// Method is the HTTP method the presigned URL is valid for.
	Method string

	// Path is the absolute, decoded request path, optionally carrying an
	// existing query string after "?".
	Path string

	// Headers are the headers covered by the signature. At minimum host must
	// be present; anyone using the URL must send these headers unchanged.
	Headers map[string]string

	// Expires bounds how long the URL stays valid, between one second and
	// seven days.
	Expires time.Duration

	// Timestamp is the signing time in Unix seconds. Zero means now.
	Timestamp int64

	// SecurityToken is signed into X-Amz-Security-Token when set.
	SecurityToken string
}

// Presign computes the complete query string for a presigned request. The
// returned values contain the caller's original query parameters plus the
// X-Amz-* authentication parameters including the signature. The payload is
// never covered, presigned requests always sign UNSIGNED-PAYLOAD.
//
// Render the values with EncodeQuery so the URL matches the signed bytes.
func Presign(creds Credentials, params PresignParams) (url.Values, error) {
	ts, err := resolveTimestamp(params.Timestamp)
	if err != nil {
		return nil, err
	}

	if params.Expires < minimumPresignedExpires || params.Expires > maximumPresignedExpiry {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpires, params.Expires)
	}

	_, names := canonicalHeaders(params.Headers)
	var hasHost bool
	for _, name := range names {
		if name == "host" {
			hasHost = true
			break
		}
	}
	if !hasHost {
		return nil, fmt.Errorf("%w: host", ErrMissingRequiredHeader)
	}

	rawPath, rawQuery, _ := strings.Cut(params.Path, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid query string: %v", ErrMalformedPath, err)
	}

	scope := credentialScope(FormatDate(ts), creds.Region, creds.Service)

	query.Set(xAmzAlgorithm, Algorithm)
	query.Set(xAmzCredential, creds.AccessKeyID+"/"+scope)
	query.Set(xAmzDate, FormatDateTime(ts))
	query.Set(xAmzExpires, strconv.Itoa(int(params.Expires/time.Second)))
	query.Set(xAmzSignedHeaders, strings.Join(names, ";"))
	if params.SecurityToken != "" {
		query.Set(xAmzSecurityToken, params.SecurityToken)
	}

	canonicalRequest, _, err := buildCanonicalRequest(params.Method, rawPath+"?"+EncodeQuery(query), params.Headers, UnsignedPayload)
	if err != nil {
		return nil, err
	}

	var (
		stringToSign = buildStringToSign(FormatDateTime(ts), scope, canonicalRequest)
		signingKey   = deriveSigningKey(creds.SecretAccessKey, FormatDate(ts), creds.Region, creds.Service)
		signature    = sumHmacSha256(signingKey, stringToSign)
	)

	query.Set(xAmzSignature, hex.EncodeToString(signature))

	return query, nil
}
