package sigv4

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestFormatDateTime(t *testing.T) {
	assert.Equal(t, "20130524T000000Z", FormatDateTime(1369353600))
	assert.Equal(t, "19700101T000000Z", FormatDateTime(0))
	assert.Equal(t, "20120229T000000Z", FormatDateTime(1330473600))
	assert.Equal(t, "20150830T123600Z", FormatDateTime(1440938160))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "20130524", FormatDate(1369353600))
	assert.Equal(t, "19700101", FormatDate(0))
	assert.Equal(t, "20120229", FormatDate(1330473600))
}

// The scope date is always the first 8 characters of the request timestamp so
// a signature can never straddle two dates.
func TestFormatDate_PrefixOfDateTime(t *testing.T) {
	for _, ts := range []int64{0, 1, 86399, 86400, 951782400, 1369353600, 1440938160, 4102444799} {
		assert.Equal(t, FormatDateTime(ts)[:8], FormatDate(ts))
	}
}

func TestFormatDateTime_Shape(t *testing.T) {
	for _, ts := range []int64{0, 1369353600, 1440938160, 4102444799} {
		assert.Regexp(t, `^\d{8}T\d{6}Z$`, FormatDateTime(ts))
	}
}

func Test_resolveTimestamp(t *testing.T) {
	t.Run("negative", func(t *testing.T) {
		_, err := resolveTimestamp(-1)
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})

	t.Run("fixed", func(t *testing.T) {
		ts, err := resolveTimestamp(1369353600)
		assert.NoError(t, err)
		assert.Equal(t, int64(1369353600), ts)
	})

	t.Run("zero resolves to now", func(t *testing.T) {
		ts, err := resolveTimestamp(0)
		assert.NoError(t, err)
		assert.Greater(t, ts, int64(0))
	})
}
