// Package connection provides reconnection pacing for long-lived streams.
//
// Realtime store subscriptions are held open as streaming HTTP requests.
// When a stream drops, the client waits before reopening it:
//
//  1. Initial delay: 500 milliseconds
//  2. Exponential increase: 1s, 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Continue at 30s until the stream is open again
//  5. Reset to the initial delay once a stream delivers its first event
//
// # Jitter
//
// To keep many clients from reconnecting in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
