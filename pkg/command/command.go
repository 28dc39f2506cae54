// Package command writes gate commands to the realtime store.
//
// A command is appended under the commands path with a fresh UUID key and
// is never overwritten. The controller consumes and deletes it; this
// package does not wait for or track an acknowledgment.
package command

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultPath is where the controller looks for new commands.
const DefaultPath = "gate-controller/commands"

// DefaultCycleDelay is how long the controller keeps the gate open for an
// open&close command without an explicit delay.
const DefaultCycleDelay = 90 * time.Second

// Bounds of an explicit open&close delay.
const (
	MinCycleDelay = time.Second
	MaxCycleDelay = 24 * time.Hour
)

// Command errors.
var (
	ErrInvalidType  = errors.New("invalid command type")
	ErrNoUser       = errors.New("command has no user")
	ErrInvalidDelay = errors.New("invalid cycle delay")
)

// Type is the action requested from the controller.
type Type string

const (
	// TypeOpen opens the gate.
	TypeOpen Type = "open"
	// TypeClose closes the gate.
	TypeClose Type = "close"
	// TypeCycle opens the gate, waits data.delay_in_seconds and closes it.
	TypeCycle Type = "open&close"
)

// ParseType validates s. The "open|close" placeholder is not a type; the
// caller resolves it from the current gate status.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeOpen, TypeClose, TypeCycle:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// User identifies who sent a command. Field names match what the
// controller reads.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
}

// Empty reports whether no identifying field is set.
func (u User) Empty() bool {
	return u.Name == "" && u.Email == "" && u.Photo == ""
}

// Envelope is a command as written to the store. ID is the store key and is
// not part of the record itself.
type Envelope struct {
	ID   string         `json:"-"`
	Type Type           `json:"type"`
	User User           `json:"user"`
	Data map[string]any `json:"data"`
}

// CycleData returns the data for an open&close command holding the gate
// open for delay. A zero delay uses DefaultCycleDelay.
func CycleData(delay time.Duration) (map[string]any, error) {
	if delay == 0 {
		delay = DefaultCycleDelay
	}
	if delay < MinCycleDelay || delay > MaxCycleDelay {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDelay, delay)
	}
	return map[string]any{
		"delay_in_seconds": int(math.Round(delay.Seconds())),
	}, nil
}

// CycleDataSeconds is CycleData for a delay in whole seconds. The range is
// checked before the value becomes a Duration, so huge inputs cannot wrap
// around into a valid delay.
func CycleDataSeconds(seconds int64) (map[string]any, error) {
	if seconds == 0 {
		return CycleData(0)
	}
	if seconds < int64(MinCycleDelay/time.Second) || seconds > int64(MaxCycleDelay/time.Second) {
		return nil, fmt.Errorf("%w: %d seconds", ErrInvalidDelay, seconds)
	}
	return CycleData(time.Duration(seconds) * time.Second)
}
