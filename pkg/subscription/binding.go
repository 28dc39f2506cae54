package subscription

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Binding errors.
var (
	ErrBindingClosed  = errors.New("binding closed")
	ErrNoRegisterFunc = errors.New("registration has no register function")
)

// Handle is the opaque value returned by a RegisterFunc and passed back to
// the matching CleanupFunc.
type Handle any

// RegisterFunc starts a registration. It must arrange for invoke to be called
// whenever the source fires. The trailing args come from Registration.Args.
type RegisterFunc func(invoke func(), args ...any) (Handle, error)

// CleanupFunc stops the registration identified by handle.
type CleanupFunc func(handle Handle)

// Registration describes an external source a Binding can attach to.
type Registration struct {
	// Source names the registration primitive (e.g. "interval").
	Source string

	// Register starts the registration.
	Register RegisterFunc

	// Cleanup stops it. Optional.
	Cleanup CleanupFunc

	// Args are passed to Register after the invoker. Optional.
	Args []any
}

// Key identifies a registration for re-registration decisions.
// Two registrations with equal keys are considered the same registration.
type Key struct {
	Source string
	Args   string
}

// Key returns the structural key of the registration.
func (r Registration) Key() Key {
	if len(r.Args) == 0 {
		return Key{Source: r.Source}
	}
	return Key{Source: r.Source, Args: fmt.Sprintf("%#v", r.Args)}
}

// active is one live registration.
type active struct {
	key     Key
	handle  Handle
	cleanup CleanupFunc
	once    sync.Once
}

func (a *active) release() {
	a.once.Do(func() {
		if a.cleanup != nil {
			a.cleanup(a.handle)
		}
	})
}

// Binding attaches the latest callback to at most one registration.
type Binding struct {
	mu      sync.Mutex
	current *active

	callback atomic.Pointer[func()]
	closed   atomic.Bool
	invokes  atomic.Uint64
	logger   atomic.Pointer[slog.Logger]
}

// New creates a binding that invokes callback. The callback may be nil and
// set later with SetCallback or Render.
func New(callback func()) *Binding {
	b := &Binding{}
	b.logger.Store(slog.New(slog.DiscardHandler))
	b.SetCallback(callback)
	return b
}

// SetLogger sets the logger used to report recovered callback panics.
func (b *Binding) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	b.logger.Store(logger)
}

// SetCallback replaces the callback. The next invocation from any live
// registration calls fn.
func (b *Binding) SetCallback(fn func()) {
	b.callback.Store(&fn)
}

// Render updates the callback and makes sure reg is the live registration.
// If the live registration has the same key, it is kept. Otherwise the old
// registration is cleaned up and reg is registered. Errors from Register are
// returned as is; a panic in Register propagates to the caller.
func (b *Binding) Render(callback func(), reg Registration) error {
	b.SetCallback(callback)

	if reg.Register == nil {
		return ErrNoRegisterFunc
	}

	key := reg.Key()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrBindingClosed
	}

	if b.current != nil {
		if b.current.key == key {
			return nil
		}
		b.current.release()
		b.current = nil
	}

	handle, err := reg.Register(b.invoke, reg.Args...)
	if err != nil {
		return err
	}

	b.current = &active{
		key:     key,
		handle:  handle,
		cleanup: reg.Cleanup,
	}
	return nil
}

// Bound reports whether a registration is live, and its key.
func (b *Binding) Bound() (Key, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Key{}, false
	}
	return b.current.key, true
}

// Invocations returns how many times the callback has been invoked.
func (b *Binding) Invocations() uint64 {
	return b.invokes.Load()
}

// Close releases the live registration. Further Render calls fail with
// ErrBindingClosed and late invocations are ignored. Safe to call more than
// once.
func (b *Binding) Close() {
	b.closed.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		b.current.release()
		b.current = nil
	}
}

// invoke runs the latest callback. It is handed to every RegisterFunc.
func (b *Binding) invoke() {
	if b.closed.Load() {
		return
	}

	fn := b.callback.Load()
	if fn == nil || *fn == nil {
		return
	}

	b.invokes.Add(1)

	defer func() {
		if r := recover(); r != nil {
			b.logger.Load().Error("subscription callback panicked", "panic", r)
		}
	}()

	(*fn)()
}
