package fleet

import "time"

// ISO8601 formats t as RFC 3339 in UTC, the timestamp format used on
// every outbound wire shape.
func ISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ISO8601Now returns the current time in wire format.
func ISO8601Now() string {
	return ISO8601(time.Now())
}
