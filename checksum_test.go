package s3c

import (
	"encoding/base64"
	"github.com/stretchr/testify/assert"
	"net/http"
	"testing"
)

func TestChecksumAlgorithm_Compute(t *testing.T) {
	payload := []byte("hello")

	t.Run("crc32", func(t *testing.T) {
		sum, err := ChecksumCRC32.Compute(payload)
		assert.NoError(t, err)
		assert.Equal(t, "NhCmhg==", sum)
	})

	t.Run("crc32c", func(t *testing.T) {
		sum, err := ChecksumCRC32C.Compute(payload)
		assert.NoError(t, err)
		assert.Equal(t, "mnG7TA==", sum)
	})

	t.Run("sha256", func(t *testing.T) {
		sum, err := ChecksumSHA256.Compute(payload)
		assert.NoError(t, err)
		assert.Equal(t, "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ=", sum)
	})

	t.Run("crc64nvme", func(t *testing.T) {
		sum, err := ChecksumCRC64NVME.Compute(payload)
		assert.NoError(t, err)

		// 8 byte digest, stable across calls
		raw, err := base64.StdEncoding.DecodeString(sum)
		assert.NoError(t, err)
		assert.Len(t, raw, 8)

		again, err := ChecksumCRC64NVME.Compute(payload)
		assert.NoError(t, err)
		assert.Equal(t, sum, again)

		other, err := ChecksumCRC64NVME.Compute([]byte("other"))
		assert.NoError(t, err)
		assert.NotEqual(t, sum, other)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := ChecksumAlgorithm("MD5").Compute(payload)
		assert.Error(t, err)
	})
}

func TestChecksumAlgorithm_Header(t *testing.T) {
	assert.Equal(t, "x-amz-checksum-crc32", ChecksumCRC32.Header())
	assert.Equal(t, "x-amz-checksum-crc32c", ChecksumCRC32C.Header())
	assert.Equal(t, "x-amz-checksum-crc64nvme", ChecksumCRC64NVME.Header())
	assert.Equal(t, "x-amz-checksum-sha256", ChecksumSHA256.Header())
	assert.Equal(t, "", ChecksumNone.Header())
}

func Test_verifyChecksums(t *testing.T) {
	payload := []byte("hello")

	t.Run("match", func(t *testing.T) {
		header := make(http.Header)
		header.Set("x-amz-checksum-crc32", "NhCmhg==")

		assert.NoError(t, verifyChecksums(header, payload))
	})

	t.Run("mismatch", func(t *testing.T) {
		header := make(http.Header)
		header.Set("x-amz-checksum-crc32", "AAAAAA==")

		err := verifyChecksums(header, payload)
		assertIsError(t, err, BadDigest)
	})

	t.Run("no checksum headers", func(t *testing.T) {
		assert.NoError(t, verifyChecksums(make(http.Header), payload))
	})

	t.Run("several algorithms", func(t *testing.T) {
		header := make(http.Header)
		header.Set("x-amz-checksum-crc32", "NhCmhg==")
		header.Set("x-amz-checksum-sha256", "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ=")

		assert.NoError(t, verifyChecksums(header, payload))
	})
}
