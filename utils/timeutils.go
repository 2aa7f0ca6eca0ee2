package utils

import (
	"fmt"
	"time"
)

// naiveLayouts are the timestamp shapes the task backend emits when its
// datetimes carry no zone. They are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Iso8601 formats t as RFC3339 in UTC. The zero time formats as "".
func Iso8601(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseBackendTime parses RFC3339 timestamps and naive ISO8601 timestamps.
// An empty string yields the zero time.
func ParseBackendTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ValidUntil returns base plus one refresh interval, formatted like Iso8601.
func ValidUntil(base time.Time, interval time.Duration) string {
	if base.IsZero() || interval <= 0 {
		return ""
	}
	return Iso8601(base.Add(interval))
}
