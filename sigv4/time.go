package sigv4

import "time"

const (
	amzDateTimeFormat = "20060102T150405Z"
	amzDateFormat     = "20060102"
)

// FormatDateTime renders a Unix timestamp in the ISO8601 basic format used by
// the X-Amz-Date header and the string to sign, always in UTC.
func FormatDateTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(amzDateTimeFormat)
}

// FormatDate renders the date portion of a Unix timestamp as used by the
// credential scope. For any timestamp FormatDate(ts) is the first 8 characters
// of FormatDateTime(ts).
func FormatDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(amzDateFormat)
}

// resolveTimestamp fixes the single timestamp used for every dated component
// of a signature. Zero means the current time.
func resolveTimestamp(ts int64) (int64, error) {
	if ts < 0 {
		return 0, ErrInvalidTimestamp
	}
	if ts == 0 {
		return time.Now().UTC().Unix(), nil
	}
	return ts, nil
}
