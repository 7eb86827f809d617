package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		in   string
		secs int64
	}{
		{"1h", 3600},
		{"30m", 1800},
		{"45", 45},
		{"45s", 45},
		{"2d", 172800},
		{"2w", 1209600},
		{"  10M ", 600},
		{"3H", 10800},
	}
	for _, c := range cases {
		secs, err := Seconds(c.in)
		assert.NoError(err, c.in)
		assert.Equal(c.secs, secs, c.in)
	}
}

func TestParseRejects(t *testing.T) {
	assert := assert.New(t)

	for _, in := range []string{"", "   ", "abc", "-5m", "+5m", "0", "0m", "h", "5x", "1.5h", "5 m", "1hh", "99999999999999999999w"} {
		_, err := Parse(in)
		assert.ErrorIs(err, ErrUnparseable, in)
	}
}

func TestFormat(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("1 second", Format(time.Second))
	assert.Equal("45 seconds", Format(45*time.Second))
	assert.Equal("30 minutes", Format(30*time.Minute))
	assert.Equal("1 hour", Format(time.Hour))
	assert.Equal("2 days", Format(48*time.Hour))
}
