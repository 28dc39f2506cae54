// Package gate turns the controller's raw status and heartbeat into what a
// user sees: whether the controller is online, the status text to show and
// the label of the toggle button.
//
// The pure functions (IsOnline, ActionLabel, StatusText, CommandFor) carry
// the rules. Model applies store snapshots and clock ticks to them, and
// Monitor drives a Model from live store subscriptions on a single event
// loop goroutine.
//
// The displayed status is never a controller status while the controller is
// offline:
//
//	StatusText(online, status) == "Offline" whenever !online
package gate
