// Package sigv4 implements AWS Signature Version 4 request signing.
//
// Signing is a pure function of the credentials and the request description.
// The package keeps no state between calls: no derived key cache, no captured
// clock, and the caller's header map is never modified. Two identical calls
// produce identical signatures.
package sigv4

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Algorithm identifies the signing algorithm in the Authorization header, the
// credential scope and presigned query parameters.
const Algorithm = "AWS4-HMAC-SHA256"

// Credentials identify the signing principal and the scope its signatures are
// valid for.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Service         string
}

// SigningParams describe one HTTP request to sign.
type SigningParams struct {
	// Method is the HTTP method, uppercased for the canonical request.
	Method string

	// Path is the absolute, decoded request path. A query string may follow
	// after "?" in wire form. The signer canonicalizes and percent-encodes the
	// path itself; the request sent on the wire must use EscapePath so both
	// sides hash the same bytes.
	Path string

	// Headers are the headers to sign. host, x-amz-date and
	// x-amz-content-sha256 must be present, names are case-insensitive.
	// The map is read, never written.
	Headers map[string]string

	// Body is the request payload. Ignored when PayloadHash is set.
	Body []byte

	// Timestamp is the signing time in Unix seconds. Zero means now. The same
	// resolved instant feeds the credential scope and the string to sign, so
	// a request can never straddle two dates.
	Timestamp int64

	// PayloadHash optionally overrides the hash of Body in the canonical
	// request, for example with UnsignedPayload or a precomputed digest.
	PayloadHash string
}

// requiredHeaders must be present on every header-signed request.
var requiredHeaders = []string{"host", "x-amz-content-sha256", "x-amz-date"}

func missingRequiredHeader(headers map[string]string) string {
	present := make(map[string]struct{}, len(headers))
	for name := range headers {
		present[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	for _, required := range requiredHeaders {
		if _, ok := present[required]; !ok {
			return required
		}
	}
	return ""
}

// Sign computes the Authorization header value for the described request.
//
// The result has the exact form
//
//	AWS4-HMAC-SHA256 Credential=<key>/<scope>, SignedHeaders=<names>, Signature=<hex>
//
// and depends only on the arguments.
func Sign(creds Credentials, params SigningParams) (string, error) {
	ts, err := resolveTimestamp(params.Timestamp)
	if err != nil {
		return "", err
	}

	if name := missingRequiredHeader(params.Headers); name != "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredHeader, name)
	}

	payloadHash := params.PayloadHash
	if payloadHash == "" {
		payloadHash = HashPayload(params.Body)
	}

	canonicalRequest, signedHeaders, err := buildCanonicalRequest(params.Method, params.Path, params.Headers, payloadHash)
	if err != nil {
		return "", err
	}

	var (
		scope        = credentialScope(FormatDate(ts), creds.Region, creds.Service)
		stringToSign = buildStringToSign(FormatDateTime(ts), scope, canonicalRequest)
		signingKey   = deriveSigningKey(creds.SecretAccessKey, FormatDate(ts), creds.Region, creds.Service)
		signature    = sumHmacSha256(signingKey, stringToSign)
	)

	return fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm,
		creds.AccessKeyID,
		scope,
		signedHeaders,
		hex.EncodeToString(signature),
	), nil
}
