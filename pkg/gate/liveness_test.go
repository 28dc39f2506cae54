package gate

import (
	"errors"
	"testing"
	"time"
)

func TestIsOnlineBoundary(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"fresh", 0, true},
		{"3s", 3 * time.Second, true},
		{"4.999s", 4999 * time.Millisecond, true},
		{"exactly 5s", 5 * time.Second, false},
		{"10s", 10 * time.Second, false},
		{"future 4s", -4 * time.Second, true},
		{"future 5s", -5 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOnline(now, now.Add(-tt.age), DefaultThreshold); got != tt.want {
				t.Errorf("IsOnline(age %s) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestParseHeartbeat(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		in   string
		loc  *time.Location
		want time.Time
	}{
		{"2026-10-14T12:00:00Z", nil, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)},
		{"2026-10-14T14:00:00.5+02:00", nil, time.Date(2026, 10, 14, 12, 0, 0, 500_000_000, time.UTC)},
		{"2026-10-14T14:00:00.123456", berlin, time.Date(2026, 10, 14, 12, 0, 0, 123_456_000, time.UTC)},
		{"2026-10-14T12:00:00", time.UTC, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)},
		{"2026-10-14 12:00:00", time.UTC, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)},
		{"1791979200", nil, time.Unix(1791979200, 0)},
		{"1791979200.25", nil, time.Unix(1791979200, 250_000_000)},
		{"1791979200250", nil, time.Unix(1791979200, 250_000_000)},
		{"  2026-10-14T12:00:00Z\n", nil, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseHeartbeat(tt.in, tt.loc)
		if err != nil {
			t.Errorf("ParseHeartbeat(%q) failed: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseHeartbeat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseHeartbeatInvalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2026-13-01T00:00:00", "-5", "NaN"} {
		if _, err := ParseHeartbeat(in, time.UTC); !errors.Is(err, ErrInvalidHeartbeat) {
			t.Errorf("ParseHeartbeat(%q) error = %v, want ErrInvalidHeartbeat", in, err)
		}
	}
}

func TestHeartbeatAge(t *testing.T) {
	now := time.Now()
	if got := HeartbeatAge(now, now.Add(2*time.Second)); got != 2*time.Second {
		t.Errorf("HeartbeatAge(future) = %s, want 2s", got)
	}
	if got := HeartbeatAge(now, now.Add(-3*time.Second)); got != 3*time.Second {
		t.Errorf("HeartbeatAge(past) = %s, want 3s", got)
	}
}
