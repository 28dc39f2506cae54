package subscription

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidDelay is returned when a timer registration gets a non-positive
// or missing delay.
var ErrInvalidDelay = errors.New("invalid timer delay")

// Registration sources for the built-in timers.
const (
	SourceInterval = "interval"
	SourceTimeout  = "timeout"
)

// Interval returns a registration that invokes the callback every d.
func Interval(d time.Duration) Registration {
	return Registration{
		Source:   SourceInterval,
		Register: registerInterval,
		Cleanup:  stopTimer,
		Args:     []any{d},
	}
}

// Timeout returns a registration that invokes the callback once after d.
func Timeout(d time.Duration) Registration {
	return Registration{
		Source:   SourceTimeout,
		Register: registerTimeout,
		Cleanup:  stopTimer,
		Args:     []any{d},
	}
}

// timerHandle is the handle returned by the built-in timers.
type timerHandle struct {
	once   sync.Once
	stopCh chan struct{}
	timer  *time.Timer
}

func (t *timerHandle) stop() {
	t.once.Do(func() {
		if t.stopCh != nil {
			close(t.stopCh)
		}
		if t.timer != nil {
			t.timer.Stop()
		}
	})
}

func registerInterval(invoke func(), args ...any) (Handle, error) {
	d, err := delayArg(args)
	if err != nil {
		return nil, err
	}

	h := &timerHandle{stopCh: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				invoke()
			}
		}
	}()

	return h, nil
}

func registerTimeout(invoke func(), args ...any) (Handle, error) {
	d, err := delayArg(args)
	if err != nil {
		return nil, err
	}

	h := &timerHandle{}
	h.timer = time.AfterFunc(d, invoke)
	return h, nil
}

func stopTimer(handle Handle) {
	if h, ok := handle.(*timerHandle); ok {
		h.stop()
	}
}

// delayArg extracts the delay from the first trailing argument.
func delayArg(args []any) (time.Duration, error) {
	if len(args) == 0 {
		return 0, ErrInvalidDelay
	}
	d, ok := args[0].(time.Duration)
	if !ok || d <= 0 {
		return 0, ErrInvalidDelay
	}
	return d, nil
}
