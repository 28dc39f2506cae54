package rtdb

import (
	"context"
	"iter"
	"sync"
	"time"
)

// Subscription delivers snapshots for one path.
// It holds only the latest snapshot; bursts are coalesced.
type Subscription struct {
	path string

	mu      sync.Mutex
	latest  Snapshot
	seq     uint64
	changed chan struct{}

	done    chan struct{}
	once    sync.Once
	onClose func()
}

func newSubscription(path string, onClose func()) *Subscription {
	return &Subscription{
		path:    path,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Path returns the subscribed path.
func (s *Subscription) Path() string {
	return s.path
}

// Latest returns the most recent snapshot and whether one has arrived.
func (s *Subscription) Latest() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.seq > 0
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Updates returns a channel that is closed on the next publish.
// Call it again after each wake-up to wait for the following one.
func (s *Subscription) Updates() <-chan struct{} {
	_, _, changed := s.next()
	return changed
}

// Unsubscribe ends the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Snapshots returns a sequence of snapshots. Each iteration starts with the
// latest snapshot, if any, then yields every newer snapshot it observes.
// The sequence ends when ctx is done or the subscription ends.
func (s *Subscription) Snapshots(ctx context.Context) iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		var seen uint64
		for {
			snap, seq, changed := s.next()
			if seq > seen {
				seen = seq
				if !yield(snap) {
					return
				}
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-changed:
			}
		}
	}
}

// next returns the latest snapshot, its sequence number and a channel that
// is closed on the next publish.
func (s *Subscription) next() (Snapshot, uint64, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.seq, s.changed
}

// publish replaces the latest snapshot and wakes waiting iterators.
func (s *Subscription) publish(snap Snapshot) {
	select {
	case <-s.done:
		return
	default:
	}

	if snap.At.IsZero() {
		snap.At = time.Now()
	}
	if snap.Path == "" {
		snap.Path = s.path
	}

	s.mu.Lock()
	s.latest = snap
	s.seq++
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}
