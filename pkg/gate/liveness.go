package gate

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Defaults observed from the controller.
const (
	// DefaultThreshold is how stale a heartbeat may be before the
	// controller is considered offline.
	DefaultThreshold = 5 * time.Second

	// DefaultTick is how often liveness is re-evaluated.
	DefaultTick = 100 * time.Millisecond
)

// ErrInvalidHeartbeat is returned when a heartbeat cannot be parsed.
var ErrInvalidHeartbeat = errors.New("invalid heartbeat timestamp")

// naiveLayouts are zone-less ISO-8601 forms, as written by Python's
// datetime.isoformat(). Fractional seconds are accepted by each.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseHeartbeat parses a heartbeat timestamp. It accepts RFC 3339,
// zone-less ISO-8601 (interpreted in loc, or local time when loc is nil)
// and numeric Unix time in seconds or milliseconds.
func ParseHeartbeat(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidHeartbeat)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}

	if loc == nil {
		loc = time.Local
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0 {
		// Anything past year 33658 in seconds is a millisecond timestamp.
		if f >= 1e12 {
			f /= 1000
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(math.Round(frac*1e9))), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidHeartbeat, s)
}

// HeartbeatAge returns |now - heartbeat|.
func HeartbeatAge(now, heartbeat time.Time) time.Duration {
	d := now.Sub(heartbeat)
	if d < 0 {
		d = -d
	}
	return d
}

// IsOnline reports whether heartbeat is recent enough: |now - heartbeat| is
// strictly less than threshold. A heartbeat from the future counts by its
// distance, so clock skew in either direction is tolerated up to threshold.
func IsOnline(now, heartbeat time.Time, threshold time.Duration) bool {
	return HeartbeatAge(now, heartbeat) < threshold
}
