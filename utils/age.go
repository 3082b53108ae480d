package utils

import (
	"time"

	units "github.com/docker/go-units"
)

// HumanAge renders a Unix timestamp relative to now, e.g. "3 days ago".
// Timestamps in the future (clock skew) read as "just now".
func HumanAge(created int64, now time.Time) string {
	d := now.Sub(time.Unix(created, 0))
	if d < time.Second {
		return "just now"
	}
	return units.HumanDuration(d) + " ago"
}
