package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// sizeUnits maps lowercase unit suffixes to their byte multiplier. Telegram
// documents its limits in binary units, so "MB" and "MiB" are kept distinct.
var sizeUnits = map[string]int64{
	"":    1,
	"b":   1,
	"kb":  1_000,
	"mb":  1_000_000,
	"gb":  1_000_000_000,
	"tb":  1_000_000_000_000,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
}

// ParseSize converts a size such as "10MiB", "2 GiB", "1.5MB" or a bare
// byte count into bytes. An empty string is zero.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	// Split at the first character that cannot belong to the number.
	i := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-' && r != '+'
	})
	if i < 0 {
		i = len(s)
	}

	num, unit := s[:i], strings.ToLower(strings.TrimSpace(s[i:]))

	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit %q", s, s[i:])
	}

	if num == "" {
		return 0, fmt.Errorf("invalid size %q: missing number", s)
	}

	if mult == 1 && !strings.Contains(num, ".") {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}

		if n < 0 {
			return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
		}

		return n, nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if f < 0 {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
	}

	bytes := f * float64(mult)
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}

	return int64(bytes), nil
}
