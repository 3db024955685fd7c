package s3c

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// endpoint is the parsed service address every request URL is built from.
type endpoint struct {
	scheme string
	host   string

	// pathStyle forces the bucket into the request path even when it could be
	// carried as a host prefix.
	pathStyle bool
}

func parseEndpoint(raw string, pathStyle bool) (*endpoint, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse endpoint: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" || strings.TrimLeft(u.Path, "/") != "" || u.RawQuery != "" {
		return nil, fmt.Errorf("parse endpoint: %q must be a bare host", raw)
	}

	return &endpoint{
		scheme:    u.Scheme,
		host:      u.Host,
		pathStyle: pathStyle,
	}, nil
}

// hostname is the endpoint host without any port.
func (e *endpoint) hostname() string {
	host, _, err := net.SplitHostPort(e.host)
	if err != nil {
		return e.host
	}
	return host
}

// virtualHost reports whether the bucket can be addressed as a host prefix.
// IP endpoints and bucket names that are not DNS-compatible always use
// path-style addressing.
func (e *endpoint) virtualHost(bucket string) bool {
	if e.pathStyle || bucket == "" {
		return false
	}
	if net.ParseIP(e.hostname()) != nil {
		return false
	}
	return dnsCompatibleBucketName(bucket)
}

// address resolves the host and the decoded resource path for a bucket and
// key. The path is logical, percent-encoding happens at signing time.
func (e *endpoint) address(bucket, key string) (host string, path string) {
	host = e.host
	path = "/"

	if bucket != "" {
		if e.virtualHost(bucket) {
			host = bucket + "." + e.host
		} else {
			path += bucket
			if key != "" {
				path += "/"
			}
		}
	}

	return host, path + key
}

// dnsCompatibleBucketName applies the subset of the bucket naming rules that
// decides host-style addressing: 3 to 63 characters of lowercase letters,
// digits and hyphens, starting and ending alphanumeric. Dots are legal bucket
// characters but break wildcard TLS, so dotted buckets go in the path.
func dnsCompatibleBucketName(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}
	for i := 0; i < len(bucket); i++ {
		c := bucket[i]
		switch {
		case 'a' <= c && c <= 'z' || '0' <= c && c <= '9':
		case c == '-':
			if i == 0 || i == len(bucket)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// validBucketName checks the wider naming rules before a request is built.
// Dots are accepted here, addressing just falls back to path-style.
func validBucketName(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}
	if strings.Contains(bucket, "..") {
		return false
	}
	for i := 0; i < len(bucket); i++ {
		c := bucket[i]
		switch {
		case 'a' <= c && c <= 'z' || '0' <= c && c <= '9':
		case c == '-' || c == '.':
			if i == 0 || i == len(bucket)-1 {
				return false
			}
		default:
			return false
		}
	}
	return net.ParseIP(bucket) == nil
}
