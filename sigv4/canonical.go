package sigv4

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// EmptyPayloadHash is the SHA-256 of a zero length payload, carried in
// x-amz-content-sha256 for requests without a body.
const EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// UnsignedPayload is the sentinel payload hash for requests whose body is not
// covered by the signature.
const UnsignedPayload = "UNSIGNED-PAYLOAD"

// HashPayload returns the lowercase hex SHA-256 of body. A nil body hashes the
// same as an empty one.
func HashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// EscapePath percent-encodes a path for the canonical request. Every byte
// outside the RFC 3986 unreserved set is encoded as uppercase %XX, with '/'
// kept as a segment separator. Callers building the request URL must use the
// same encoding or the wire path will not match the signed path.
func EscapePath(pathName string) string {
	var encodedPathname strings.Builder
	for _, s := range pathName {
		if 'A' <= s && s <= 'Z' || 'a' <= s && s <= 'z' || '0' <= s && s <= '9' { // §2.3 Unreserved characters (mark)
			encodedPathname.WriteRune(s)
			continue
		}
		switch s {
		case '-', '_', '.', '~', '/': // §2.3 Unreserved characters (mark)
			encodedPathname.WriteRune(s)
			continue
		default:
			l := utf8.RuneLen(s)
			if l < 0 {
				// if utf8 cannot convert return the same string as is
				return pathName
			}
			u := make([]byte, l)
			utf8.EncodeRune(u, s)
			for _, r := range u {
				hexEncoded := hex.EncodeToString([]byte{r})
				encodedPathname.WriteString("%" + strings.ToUpper(hexEncoded))
			}
		}
	}
	return encodedPathname.String()
}

// EncodeQuery renders query values in canonical form, keys sorted, repeated
// values sorted within their key, spaces as %20.
func EncodeQuery(query url.Values) string {
	for key := range query {
		sort.Strings(query[key])
	}
	return strings.ReplaceAll(query.Encode(), "+", "%20")
}

// Trim leading and trailing spaces and replace sequential spaces with one space, following Trimall()
// in http://docs.aws.amazon.com/general/latest/gr/sigv4-create-canonical-request.html
func trimAll(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// canonicalizePath resolves relative segments in an absolute, decoded path.
// "." segments are dropped and ".." removes the preceding segment. A ".." that
// would navigate above the root is an error. Repeated slashes are kept, object
// keys may legitimately contain them.
func canonicalizePath(uriPath string) (string, error) {
	if uriPath == "" || uriPath == "/" {
		return "/", nil
	}
	if !strings.HasPrefix(uriPath, "/") {
		uriPath = "/" + uriPath
	}

	components := strings.Split(uriPath, "/")

	// components[0] is the empty segment before the leading "/"
	for i := 1; i < len(components); {
		switch components[i] {
		case ".":
			components = append(components[:i], components[i+1:]...)
		case "..":
			if i <= 1 {
				return "", fmt.Errorf("%w: %q navigates above root", ErrMalformedPath, uriPath)
			}
			components = append(components[:i-1], components[i+1:]...)
			i--
		default:
			i++
		}
	}

	if len(components) == 1 {
		return "/", nil
	}
	return strings.Join(components, "/"), nil
}

// canonicalQuery re-encodes the raw query portion of the request path in
// canonical form.
func canonicalQuery(rawQuery string) (string, error) {
	if rawQuery == "" {
		return "", nil
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("%w: invalid query string: %v", ErrMalformedPath, err)
	}
	return EncodeQuery(query), nil
}

// canonicalHeaders folds header names to lowercase and collapses value
// whitespace. Names that collide after folding have their values joined with
// a comma in sorted order so the result does not depend on map iteration.
func canonicalHeaders(headers map[string]string) (map[string]string, []string) {
	folded := make(map[string][]string, len(headers))
	for name, value := range headers {
		name = strings.ToLower(strings.TrimSpace(name))
		folded[name] = append(folded[name], trimAll(value))
	}

	canonical := make(map[string]string, len(folded))
	names := make([]string, 0, len(folded))
	for name, values := range folded {
		sort.Strings(values)
		canonical[name] = strings.Join(values, ",")
		names = append(names, name)
	}
	sort.Strings(names)

	return canonical, names
}

// buildCanonicalRequest assembles the six line canonical request and the
// semicolon joined signed headers list.
func buildCanonicalRequest(method, path string, headers map[string]string, payloadHash string) (canonical []byte, signedHeaders string, err error) {
	rawPath, rawQuery, _ := strings.Cut(path, "?")

	canonicalPath, err := canonicalizePath(rawPath)
	if err != nil {
		return nil, "", err
	}
	canonicalQueryString, err := canonicalQuery(rawQuery)
	if err != nil {
		return nil, "", err
	}

	values, names := canonicalHeaders(headers)
	signedHeaders = strings.Join(names, ";")

	var b bytes.Buffer

	// HTTPMethod
	b.WriteString(strings.ToUpper(method))
	b.WriteRune('\n')

	// CanonicalURI
	b.WriteString(EscapePath(canonicalPath))
	b.WriteRune('\n')

	// CanonicalQuerystring
	b.WriteString(canonicalQueryString)
	b.WriteRune('\n')

	// CanonicalHeaders
	for _, name := range names {
		b.WriteString(name)
		b.WriteRune(':')
		b.WriteString(values[name])
		b.WriteRune('\n')
	}
	b.WriteRune('\n')

	// SignedHeaders
	b.WriteString(signedHeaders)
	b.WriteRune('\n')

	// HashedPayload
	b.WriteString(payloadHash)

	return b.Bytes(), signedHeaders, nil
}
