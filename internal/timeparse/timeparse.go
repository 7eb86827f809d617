// Package timeparse converts short human duration tokens such as "30m" or
// "2d" into durations.
package timeparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseable is returned for any token that is not a positive integer
// optionally followed by one unit letter.
var ErrUnparseable = errors.New("unparseable duration")

var units = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// Parse accepts "<n><unit>" with unit one of s, m, h, d, w (case-insensitive),
// or a bare "<n>" meaning seconds. n must be a positive integer without sign.
func Parse(token string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(token))
	if s == "" {
		return 0, ErrUnparseable
	}

	mult := time.Second
	if u, ok := units[s[len(s)-1]]; ok {
		mult = u
		s = s[:len(s)-1]
	}

	if s == "" {
		return 0, ErrUnparseable
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrUnparseable
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrUnparseable
	}
	if n > int64(1<<63-1)/int64(mult) {
		return 0, ErrUnparseable
	}
	return time.Duration(n) * mult, nil
}

// Seconds is Parse expressed in whole seconds.
func Seconds(token string) (int64, error) {
	d, err := Parse(token)
	if err != nil {
		return 0, err
	}
	return int64(d / time.Second), nil
}

// Format renders d in its largest whole unit, e.g. "1 hour" or "45 seconds".
func Format(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return plural(secs, "second")
	case secs < 3600:
		return plural(secs/60, "minute")
	case secs < 86400:
		return plural(secs/3600, "hour")
	default:
		return plural(secs/86400, "day")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
