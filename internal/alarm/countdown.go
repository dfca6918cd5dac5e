package alarm

import (
	"fmt"
	"time"
)

// Countdown renders the time left until expiry as "{h}h {m}m {s}s", or "Expired" once it has passed.
func Countdown(now, expiry time.Time) string {
	d := expiry.Sub(now)
	if d <= 0 {
		return "Expired"
	}
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	sec := int64(d/time.Second) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, sec)
}
