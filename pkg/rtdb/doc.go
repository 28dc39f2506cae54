// Package rtdb is a client for hosted realtime JSON stores.
//
// A store is a tree of JSON values addressed by slash-separated paths such as
// "gate-controller/status/current_status". Clients read and write values and
// subscribe to paths. A subscription delivers a priming snapshot with the
// current value followed by a snapshot for every change at, above or below
// the subscribed path.
//
// # Backends
//
//   - MemoryStore keeps the tree in process. It is used by tests and by the
//     "memory" backend for local development.
//   - FirebaseStore talks to a Firebase Realtime Database over its REST API
//     and uses the REST streaming protocol (server-sent events) for
//     subscriptions.
//
// # Snapshots
//
// Subscriptions coalesce bursts of changes: a slow consumer observes the
// latest value rather than every intermediate one. Snapshots iterates the
// sequence lazily and can be restarted; each new iteration begins with the
// latest snapshot.
package rtdb
