// Package subscription binds a caller-supplied callback to an external
// registration primitive such as a ticker, a one-shot timer or a realtime
// store subscription.
//
// A Binding always invokes the latest callback handed to it, while the
// underlying registration is only torn down and re-created when its Key
// changes. Keys are comparable values built from the registration source and
// its arguments, so a caller that changes an interval's delay receives a fresh
// registration, and a caller that only swaps the callback does not.
//
// # Lifecycle
//
// Render acquires the registration on first use. Close releases it by calling
// the registration's Cleanup with the handle returned from Register. Cleanup
// runs exactly once per registration, including when the callback panics.
//
//	b := subscription.New(nil)
//	defer b.Close()
//
//	if err := b.Render(onTick, subscription.Interval(100*time.Millisecond)); err != nil {
//		return err
//	}
package subscription
