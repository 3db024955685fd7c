package s3c

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"github.com/minio/crc64nvme"
	"hash"
	"hash/crc32"
	"net/http"
)

// ChecksumAlgorithm selects the additional content checksum carried in an
// x-amz-checksum-* header alongside an object.
type ChecksumAlgorithm string

const (
	ChecksumNone      ChecksumAlgorithm = ""
	ChecksumCRC32     ChecksumAlgorithm = "CRC32"
	ChecksumCRC32C    ChecksumAlgorithm = "CRC32C"
	ChecksumCRC64NVME ChecksumAlgorithm = "CRC64NVME"
	ChecksumSHA256    ChecksumAlgorithm = "SHA256"
)

var checksumAlgorithms = []ChecksumAlgorithm{ChecksumCRC32, ChecksumCRC32C, ChecksumCRC64NVME, ChecksumSHA256}

// Header is the request and response header the checksum travels in.
func (a ChecksumAlgorithm) Header() string {
	switch a {
	case ChecksumCRC32:
		return "x-amz-checksum-crc32"
	case ChecksumCRC32C:
		return "x-amz-checksum-crc32c"
	case ChecksumCRC64NVME:
		return "x-amz-checksum-crc64nvme"
	case ChecksumSHA256:
		return "x-amz-checksum-sha256"
	default:
		return ""
	}
}

func (a ChecksumAlgorithm) hasher() (hash.Hash, error) {
	switch a {
	case ChecksumCRC32:
		return crc32.NewIEEE(), nil
	case ChecksumCRC32C:
		return crc32.New(crc32.MakeTable(crc32.Castagnoli)), nil
	case ChecksumCRC64NVME:
		return crc64nvme.New(), nil
	case ChecksumSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", string(a))
	}
}

// Compute returns the base64 checksum of data as carried on the wire.
func (a ChecksumAlgorithm) Compute(data []byte) (string, error) {
	h, err := a.hasher()
	if err != nil {
		return "", err
	}
	h.Write(data)

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// verifyChecksums recomputes any known checksum headers present on a response
// against the downloaded body. A mismatch reports BadDigest.
func verifyChecksums(header http.Header, body []byte) error {
	for _, algorithm := range checksumAlgorithms {
		expected := header.Get(algorithm.Header())
		if expected == "" {
			continue
		}

		computed, err := algorithm.Compute(body)
		if err != nil {
			return err
		}
		if computed != expected {
			return &Error{
				ErrorCode: BadDigest,
				Message:   fmt.Sprintf("The %s you specified did not match what we received.", algorithm.Header()),
			}
		}
	}

	return nil
}
