package rtdb

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
// It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	root   any
	subs   map[*Subscription][]string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[*Subscription][]string),
	}
}

// Get reads the value at path.
func (m *MemoryStore) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	segs, err := SplitPath(path)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Snapshot{}, ErrStoreClosed
	}

	return Snapshot{
		Path:  JoinPath(segs...),
		Value: encodeJSON(getAt(m.root, segs)),
		At:    time.Now(),
	}, nil
}

// Set writes value at path and notifies related subscriptions.
func (m *MemoryStore) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	node, err := normalize(value)
	if err != nil {
		return err
	}

	type pending struct {
		sub  *Subscription
		snap Snapshot
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrStoreClosed
	}

	m.root = setAt(m.root, segs, node)

	now := time.Now()
	var notify []pending
	for sub, subSegs := range m.subs {
		if !related(segs, subSegs) {
			continue
		}
		notify = append(notify, pending{
			sub: sub,
			snap: Snapshot{
				Path:  sub.Path(),
				Value: encodeJSON(getAt(m.root, subSegs)),
				At:    now,
			},
		})
	}
	m.mu.Unlock()

	for _, p := range notify {
		p.sub.publish(p.snap)
	}
	return nil
}

// Delete removes the value at path.
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	return m.Set(ctx, path, nil)
}

// Subscribe starts a subscription to path. A priming snapshot with the
// current value is published immediately.
func (m *MemoryStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	var sub *Subscription
	sub = newSubscription(JoinPath(segs...), func() {
		m.mu.Lock()
		delete(m.subs, sub)
		m.mu.Unlock()
	})

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrStoreClosed
	}
	m.subs[sub] = segs
	priming := Snapshot{
		Path:  sub.Path(),
		Value: encodeJSON(getAt(m.root, segs)),
		At:    time.Now(),
	}
	m.mu.Unlock()

	sub.publish(priming)

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.Done():
		}
	}()

	return sub, nil
}

// SubscriberCount returns the number of live subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Close ends all subscriptions. Later calls fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := make([]*Subscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
