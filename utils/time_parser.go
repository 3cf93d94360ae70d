package utils

import (
	"fmt"
	"time"

	"warden-bot/model"
)

var unitSeconds = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// maxSeconds caps parsed durations at ten years. It also keeps the digit and
// sum arithmetic far from int64 wrap-around, which would otherwise let an
// absurd input land back in positive range and slip past validation.
const maxSeconds = int64(10 * 365 * 24 * 3600)

// ParseDuration parses a human-written duration like "1d12h" into a
// time.Duration. Accepted units are s, m, h and d; tokens need no separator.
// Empty input, unknown units, non-positive numbers and repeated units all
// fail with model.ErrInvalidFormat.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty duration", model.ErrInvalidFormat)
	}

	var total int64
	seen := make(map[byte]bool)
	i := 0
	for i < len(s) {
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if start == i {
			return 0, fmt.Errorf("%w: expected a number at %q", model.ErrInvalidFormat, s[i:])
		}
		if i == len(s) {
			return 0, fmt.Errorf("%w: missing unit after %q", model.ErrInvalidFormat, s[start:i])
		}

		var value int64
		for _, c := range []byte(s[start:i]) {
			value = value*10 + int64(c-'0')
			if value > maxSeconds {
				return 0, fmt.Errorf("%w: duration exceeds ten years", model.ErrInvalidFormat)
			}
		}
		if value <= 0 {
			return 0, fmt.Errorf("%w: value must be positive", model.ErrInvalidFormat)
		}

		unit := s[i]
		secs, ok := unitSeconds[unit]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q", model.ErrInvalidFormat, string(unit))
		}
		if seen[unit] {
			return 0, fmt.Errorf("%w: unit %q given twice", model.ErrInvalidFormat, string(unit))
		}
		seen[unit] = true
		total += value * secs
		if total > maxSeconds {
			return 0, fmt.Errorf("%w: duration exceeds ten years", model.ErrInvalidFormat)
		}
		i++
	}

	return time.Duration(total) * time.Second, nil
}
