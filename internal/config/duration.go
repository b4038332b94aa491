package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Empty means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// secondsDuration converts fractional seconds; non-finite input is rejected.
func secondsDuration(path string, s float64) (time.Duration, error) {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, fmt.Errorf("%s: not a number", path)
	}
	if s < 0 {
		return 0, fmt.Errorf("%s: must be >= 0", path)
	}
	if s > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("%s: too large", path)
	}
	return time.Duration(s * float64(time.Second)), nil
}
