package intensity

import (
	"fmt"
	"strings"
	"time"
)

// Format renders a countdown as a compact human string: "2h 5m" above an
// hour, "45m 12s" below, "5s" under a minute, "0m" once the duration is
// gone. No leading zero padding; the larger unit is kept while it is
// nonzero (exactly on the hour prints "2h 0m", not "2h").
func Format(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h >= 1:
		return fmt.Sprintf("%dh %dm", h, m)
	case m >= 1:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Parse is the inverse of Format for canonical formatted strings. It is
// strict: unit order is h, m, s and each unit appears at most once.
func Parse(s string) (time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty countdown string")
	}
	var total time.Duration
	seen := 0 // rank of the last consumed unit
	for _, f := range fields {
		var n int
		var unit rune
		if _, err := fmt.Sscanf(f, "%d%c", &n, &unit); err != nil {
			return 0, fmt.Errorf("invalid countdown component %q: %w", f, err)
		}
		var rank int
		var scale time.Duration
		switch unit {
		case 'h':
			rank, scale = 1, time.Hour
		case 'm':
			rank, scale = 2, time.Minute
		case 's':
			rank, scale = 3, time.Second
		default:
			return 0, fmt.Errorf("invalid countdown unit %q", f)
		}
		if rank <= seen {
			return 0, fmt.Errorf("countdown units out of order in %q", s)
		}
		seen = rank
		total += time.Duration(n) * scale
	}
	return total, nil
}
