package s3test

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/s3c"
	"github.com/relvacode/s3c/sigv4"
)

var errSignatureDoesNotMatch = &s3c.Error{
	ErrorCode: s3c.SignatureDoesNotMatch,
	Message:   "The request signature we calculated does not match the signature you provided.",
}

// credential is the parsed Credential component of a signed request.
type credential struct {
	accessKeyID string
	date        string
	region      string
	service     string
	terminator  string
}

func parseCredential(value string) (credential, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 5 {
		return credential{}, fmt.Errorf("wrong number of credential components (%d given where 5 was expected)", len(parts))
	}

	cred := credential{
		accessKeyID: parts[0],
		date:        parts[1],
		region:      parts[2],
		service:     parts[3],
		terminator:  parts[4],
	}
	if _, err := time.Parse("20060102", cred.date); err != nil {
		return credential{}, fmt.Errorf("invalid credential date %q", cred.date)
	}
	if cred.terminator != "aws4_request" {
		return credential{}, fmt.Errorf("credential scope must end in aws4_request, not %q", cred.terminator)
	}

	return cred, nil
}

// authorization is the parsed Authorization header of a signed request.
type authorization struct {
	algorithm     string
	credential    credential
	signedHeaders []string
	signature     []byte
}

func parseAuthorization(header string) (*authorization, error) {
	algorithm, properties, ok := strings.Cut(header, " ")
	if !ok {
		return nil, errors.New("missing authorization properties")
	}

	auth := &authorization{algorithm: algorithm}

	for i, property := range strings.Split(properties, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(property), "=")
		if !ok {
			return nil, fmt.Errorf("missing key=value in authorization property %d", i)
		}

		// Unrecognised properties are ignored
		switch name {
		case "Credential":
			cred, err := parseCredential(value)
			if err != nil {
				return nil, err
			}
			auth.credential = cred
		case "SignedHeaders":
			auth.signedHeaders = strings.Split(value, ";")
		case "Signature":
			signature, err := hex.DecodeString(value)
			if err != nil {
				return nil, fmt.Errorf("signature is not valid hex: %w", err)
			}
			auth.signature = signature
		}
	}

	if auth.credential.accessKeyID == "" || len(auth.signedHeaders) == 0 || len(auth.signature) == 0 {
		return nil, errors.New("missing authorization properties")
	}

	return auth, nil
}

// presignedQueryNames are the authentication parameters of a presigned URL.
// They are stripped before the signature is recomputed.
var presignedQueryNames = []string{
	"X-Amz-Algorithm",
	"X-Amz-Credential",
	"X-Amz-Date",
	"X-Amz-Expires",
	"X-Amz-SignedHeaders",
	"X-Amz-Signature",
	"X-Amz-Security-Token",
}

// signedPath rebuilds the decoded path and raw query the client signed.
func signedPath(r *http.Request) string {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	return path
}

// signedHeaderValues resolves the declared signed header names against the
// request. The Host header lives on the request itself, not in Header.
func signedHeaderValues(r *http.Request, names []string) map[string]string {
	headers := make(map[string]string, len(names))
	for _, name := range names {
		if strings.EqualFold(name, "host") {
			headers[name] = r.Host
			continue
		}
		headers[name] = r.Header.Get(name)
	}
	return headers
}

func (s *Server) secretFor(accessKeyID string) (string, *s3c.Error) {
	secret, ok := s.keyring[accessKeyID]
	if !ok {
		return "", &s3c.Error{
			ErrorCode: s3c.InvalidAccessKeyId,
			Message:   "The AWS access key ID that you provided does not exist in our records.",
		}
	}
	return secret, nil
}

// readPayload buffers the request body, checks it against the declared
// payload hash and restores it for the handler.
func readPayload(r *http.Request) (string, *s3c.Error) {
	declared := r.Header.Get("x-amz-content-sha256")
	if declared == sigv4.UnsignedPayload {
		return declared, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", &s3c.Error{ErrorCode: s3c.InternalError, Message: err.Error()}
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	computed := sigv4.HashPayload(body)
	if declared != "" && declared != computed {
		return "", &s3c.Error{
			ErrorCode: s3c.BadDigest,
			Message:   "The x-amz-content-sha256 you specified did not match what we received.",
		}
	}

	return computed, nil
}

// authenticate verifies the request signature, header or query based, by
// independently recomputing it from the server's own copy of the secret.
func (s *Server) authenticate(r *http.Request) *s3c.Error {
	if r.URL.Query().Get("X-Amz-Algorithm") != "" {
		return s.verifyQuery(r)
	}
	return s.verifyHeaders(r)
}

func (s *Server) verifyHeaders(r *http.Request) *s3c.Error {
	value := r.Header.Get("Authorization")
	if value == "" {
		return &s3c.Error{
			ErrorCode: s3c.AccessDenied,
			Message:   "Anonymous requests are not allowed.",
		}
	}

	auth, err := parseAuthorization(value)
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.AuthorizationHeaderMalformed,
			Message:   err.Error(),
		}
	}
	if auth.algorithm != sigv4.Algorithm {
		return &s3c.Error{
			ErrorCode: s3c.InvalidRequest,
			Message:   "The request is using the wrong signature version. Use AWS4-HMAC-SHA256 (Signature Version 4).",
		}
	}

	secret, serr := s.secretFor(auth.credential.accessKeyID)
	if serr != nil {
		return serr
	}

	date := r.Header.Get("x-amz-date")
	if date == "" {
		return &s3c.Error{
			ErrorCode: s3c.InvalidArgument,
			Message:   "Missing x-amz-date header.",
		}
	}
	at, err := time.Parse("20060102T150405Z", date)
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.InvalidRequest,
			Message:   "Invalid format of X-Amz-Date.",
		}
	}

	payloadHash, serr := readPayload(r)
	if serr != nil {
		return serr
	}

	expect, err := sigv4.Sign(sigv4.Credentials{
		AccessKeyID:     auth.credential.accessKeyID,
		SecretAccessKey: secret,
		Region:          auth.credential.region,
		Service:         auth.credential.service,
	}, sigv4.SigningParams{
		Method:      r.Method,
		Path:        signedPath(r),
		Headers:     signedHeaderValues(r, auth.signedHeaders),
		Timestamp:   at.Unix(),
		PayloadHash: payloadHash,
	})
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.AuthorizationHeaderMalformed,
			Message:   err.Error(),
		}
	}

	computed, err := parseAuthorization(expect)
	if err != nil {
		return &s3c.Error{ErrorCode: s3c.InternalError, Message: err.Error()}
	}

	if subtle.ConstantTimeCompare(computed.signature, auth.signature) != 1 {
		return errSignatureDoesNotMatch
	}

	return nil
}

func (s *Server) verifyQuery(r *http.Request) *s3c.Error {
	query := r.URL.Query()

	if algorithm := query.Get("X-Amz-Algorithm"); algorithm != sigv4.Algorithm {
		return &s3c.Error{
			ErrorCode: s3c.InvalidRequest,
			Message:   "The request is using the wrong signature version. Use AWS4-HMAC-SHA256 (Signature Version 4).",
		}
	}

	at, err := time.Parse("20060102T150405Z", query.Get("X-Amz-Date"))
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.InvalidRequest,
			Message:   "Invalid format of X-Amz-Date.",
		}
	}

	expiresSeconds, err := strconv.Atoi(query.Get("X-Amz-Expires"))
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.InvalidRequest,
			Message:   "Invalid value for X-Amz-Expires.",
		}
	}
	expires := time.Duration(expiresSeconds) * time.Second
	if expires < time.Second || expires > 7*24*time.Hour {
		return &s3c.Error{
			ErrorCode: s3c.InvalidRequest,
			Message:   "Invalid value for X-Amz-Expires.",
		}
	}
	if s.timeNow().UTC().After(at.Add(expires)) {
		return &s3c.Error{
			ErrorCode: s3c.ExpiredToken,
			Message:   "The provided token has expired.",
		}
	}

	cred, err := parseCredential(query.Get("X-Amz-Credential"))
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.AuthorizationHeaderMalformed,
			Message:   err.Error(),
		}
	}

	secret, serr := s.secretFor(cred.accessKeyID)
	if serr != nil {
		return serr
	}

	// Invalid hex in the signature can never match
	signature, _ := hex.DecodeString(query.Get("X-Amz-Signature"))

	// Strip the authentication parameters to recover the query that was
	// originally presigned.
	base := r.URL.Query()
	for _, name := range presignedQueryNames {
		base.Del(name)
	}

	path := r.URL.Path
	if encoded := sigv4.EncodeQuery(base); encoded != "" {
		path += "?" + encoded
	}

	expect, err := sigv4.Presign(sigv4.Credentials{
		AccessKeyID:     cred.accessKeyID,
		SecretAccessKey: secret,
		Region:          cred.region,
		Service:         cred.service,
	}, sigv4.PresignParams{
		Method:        r.Method,
		Path:          path,
		Headers:       signedHeaderValues(r, strings.Split(query.Get("X-Amz-SignedHeaders"), ";")),
		Expires:       expires,
		Timestamp:     at.Unix(),
		SecurityToken: query.Get("X-Amz-Security-Token"),
	})
	if err != nil {
		return &s3c.Error{
			ErrorCode: s3c.AuthorizationHeaderMalformed,
			Message:   err.Error(),
		}
	}

	computed, err := hex.DecodeString(expect.Get("X-Amz-Signature"))
	if err != nil {
		return &s3c.Error{ErrorCode: s3c.InternalError, Message: err.Error()}
	}

	if subtle.ConstantTimeCompare(computed, signature) != 1 {
		return errSignatureDoesNotMatch
	}

	return nil
}
