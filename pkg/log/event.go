package log

import "time"

// Event is one entry of the gate event trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// RunID identifies the client process that wrote the event.
	RunID string `cbor:"2,keyasint,omitempty"`

	// Source is the component that produced the event.
	Source Source `cbor:"3,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"4,keyasint"`

	// User is the email of the signed-in user, when one is involved.
	User string `cbor:"5,keyasint,omitempty"`

	// Payload; one of these is set, matching Category.
	Snapshot *SnapshotEvent  `cbor:"6,keyasint,omitempty"`
	Liveness *LivenessEvent  `cbor:"7,keyasint,omitempty"`
	Command  *CommandEvent   `cbor:"8,keyasint,omitempty"`
	Auth     *AuthEvent      `cbor:"9,keyasint,omitempty"`
	Error    *ErrorEventData `cbor:"10,keyasint,omitempty"`
}

// Source names the component that produced an event.
type Source uint8

const (
	// SourceStore is the realtime store client.
	SourceStore Source = 0
	// SourceMonitor is the liveness/status view-model.
	SourceMonitor Source = 1
	// SourceCommand is the command sender.
	SourceCommand Source = 2
	// SourceSession is the session manager.
	SourceSession Source = 3
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceStore:
		return "STORE"
	case SourceMonitor:
		return "MONITOR"
	case SourceCommand:
		return "COMMAND"
	case SourceSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ParseSource returns the source with the given name (case-sensitive,
// as printed by String).
func ParseSource(name string) (Source, bool) {
	for s := SourceStore; s <= SourceSession; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// Category classifies an event.
type Category uint8

const (
	// CategorySnapshot is a value pushed by the store.
	CategorySnapshot Category = 0
	// CategoryLiveness is an online/offline or displayed status change.
	CategoryLiveness Category = 1
	// CategoryCommand is an outbound command write.
	CategoryCommand Category = 2
	// CategoryAuth is a sign-in, sign-out or expiry.
	CategoryAuth Category = 3
	// CategoryError is a failure in any component.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategorySnapshot:
		return "SNAPSHOT"
	case CategoryLiveness:
		return "LIVENESS"
	case CategoryCommand:
		return "COMMAND"
	case CategoryAuth:
		return "AUTH"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory returns the category with the given name.
func ParseCategory(name string) (Category, bool) {
	for c := CategorySnapshot; c <= CategoryError; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// SnapshotEvent captures one value pushed by the store.
type SnapshotEvent struct {
	// Path is the subscribed path.
	Path string `cbor:"1,keyasint"`

	// Value is the raw JSON value, empty when the path holds nothing.
	Value string `cbor:"2,keyasint,omitempty"`
}

// LivenessEvent captures a change of the derived view.
type LivenessEvent struct {
	// Online is the derived liveness.
	Online bool `cbor:"1,keyasint"`

	// Status is the raw status reported by the controller.
	Status string `cbor:"2,keyasint,omitempty"`

	// Displayed is the status text shown to the user.
	Displayed string `cbor:"3,keyasint,omitempty"`

	// HeartbeatAge is how old the heartbeat was at evaluation time.
	HeartbeatAge time.Duration `cbor:"4,keyasint,omitempty"`
}

// CommandEvent captures an outbound command.
type CommandEvent struct {
	// ID is the key the command was written under.
	ID string `cbor:"1,keyasint"`

	// Type is the command type ("open", "close", "open&close").
	Type string `cbor:"2,keyasint"`

	// Data is the command data, if any.
	Data map[string]any `cbor:"3,keyasint,omitempty"`

	// Failed is set when the write did not reach the store.
	Failed bool `cbor:"4,keyasint,omitempty"`
}

// AuthAction is what happened to a session.
type AuthAction uint8

const (
	// AuthLogin is a successful sign-in.
	AuthLogin AuthAction = 0
	// AuthLogout is an explicit sign-out.
	AuthLogout AuthAction = 1
	// AuthExpired is a session that ran out.
	AuthExpired AuthAction = 2
	// AuthDenied is a rejected sign-in.
	AuthDenied AuthAction = 3
)

// String returns the action name.
func (a AuthAction) String() string {
	switch a {
	case AuthLogin:
		return "LOGIN"
	case AuthLogout:
		return "LOGOUT"
	case AuthExpired:
		return "EXPIRED"
	case AuthDenied:
		return "DENIED"
	default:
		return "UNKNOWN"
	}
}

// AuthEvent captures a session change.
type AuthEvent struct {
	Action AuthAction `cbor:"1,keyasint"`

	// SessionID is the affected session, if one exists.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Reason explains a denial.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures a failure.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"2,keyasint,omitempty"`
}
