package subscription

import (
	"context"
	"errors"

	"github.com/gate-remote/gate-go/pkg/rtdb"
)

// SourceStore is the registration source for store subscriptions.
const SourceStore = "rtdb"

// ErrInvalidFeedArgs is returned when a store registration is missing its
// store or path.
var ErrInvalidFeedArgs = errors.New("store registration needs a store and a path")

// Feed is the handle of a store registration. It exposes the latest
// snapshot so the callback can read what changed.
type Feed struct {
	sub    *rtdb.Subscription
	cancel context.CancelFunc
}

// Latest returns the most recent snapshot and whether one has arrived.
func (f *Feed) Latest() (rtdb.Snapshot, bool) {
	return f.sub.Latest()
}

// Path returns the subscribed path.
func (f *Feed) Path() string {
	return f.sub.Path()
}

func (f *Feed) stop() {
	f.cancel()
	f.sub.Unsubscribe()
}

// Subscribe returns a registration that invokes the callback for every
// snapshot pushed by store at path, starting with the current one.
// The store is part of the key only through its path, so two stores
// must not be bound to the same Binding.
func Subscribe(store rtdb.Store, path string, onFeed func(*Feed)) Registration {
	return Registration{
		Source: SourceStore,
		Register: func(invoke func(), args ...any) (Handle, error) {
			return registerFeed(store, onFeed, invoke, args...)
		},
		Cleanup: stopFeed,
		Args:    []any{path},
	}
}

func registerFeed(store rtdb.Store, onFeed func(*Feed), invoke func(), args ...any) (Handle, error) {
	if store == nil || len(args) == 0 {
		return nil, ErrInvalidFeedArgs
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, ErrInvalidFeedArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := store.Subscribe(ctx, path)
	if err != nil {
		cancel()
		return nil, err
	}

	f := &Feed{sub: sub, cancel: cancel}
	if onFeed != nil {
		onFeed(f)
	}
	go func() {
		for range sub.Snapshots(ctx) {
			invoke()
		}
	}()
	return f, nil
}

func stopFeed(handle Handle) {
	if f, ok := handle.(*Feed); ok {
		f.stop()
	}
}
