package sigv4

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const scopeTerminator = "aws4_request"

func sumHmacSha256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)

	return h.Sum(nil)
}

// deriveSigningKey runs the four stage HMAC-SHA256 key chain. Every
// intermediate is the raw 32 byte MAC, never its hex form.
func deriveSigningKey(secretAccessKey, date, region, service string) []byte {
	key := sumHmacSha256([]byte("AWS4"+secretAccessKey), []byte(date))
	key = sumHmacSha256(key, []byte(region))
	key = sumHmacSha256(key, []byte(service))
	key = sumHmacSha256(key, []byte(scopeTerminator))

	return key
}

func credentialScope(date, region, service string) string {
	return date + "/" + region + "/" + service + "/" + scopeTerminator
}

// buildStringToSign formats the final value signed by the derived key: the
// algorithm, the request timestamp, the credential scope and the hex SHA-256
// of the canonical request.
func buildStringToSign(dateTime, scope string, canonicalRequest []byte) []byte {
	var b bytes.Buffer

	b.WriteString(Algorithm)
	b.WriteRune('\n')

	// timeStampISO8601Format
	b.WriteString(dateTime)
	b.WriteRune('\n')

	// Scope
	b.WriteString(scope)
	b.WriteRune('\n')

	// Hex(SHA256Hash(<CanonicalRequest>))
	h := sha256.New()
	h.Write(canonicalRequest)
	hex.NewEncoder(&b).Write(h.Sum(nil))

	return b.Bytes()
}
