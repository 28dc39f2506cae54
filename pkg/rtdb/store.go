package rtdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store errors.
var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrNoValue      = errors.New("no value at path")
	ErrStoreClosed  = errors.New("store closed")
	ErrStreamCancel = errors.New("stream cancelled by server")
	ErrAuthRevoked  = errors.New("stream auth revoked")
)

// Store is a hosted realtime JSON store.
type Store interface {
	// Get reads the value at path.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Set writes value at path, replacing whatever was there.
	// A nil value deletes the path.
	Set(ctx context.Context, path string, value any) error

	// Delete removes the value at path.
	Delete(ctx context.Context, path string) error

	// Subscribe starts a subscription to path. The subscription stays
	// active until Unsubscribe is called or ctx is cancelled.
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Snapshot is the value at a path at a point in time.
type Snapshot struct {
	// Path is the subscribed or read path.
	Path string

	// Value is the raw JSON value. Nil or "null" means no value.
	Value json.RawMessage

	// Err is set when the snapshot reports a read failure instead of a value.
	Err error

	// At is when the snapshot was produced locally.
	At time.Time
}

// Exists returns true if the snapshot carries a non-null value.
func (s Snapshot) Exists() bool {
	if s.Err != nil || len(s.Value) == 0 {
		return false
	}
	return strings.TrimSpace(string(s.Value)) != "null"
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	if s.Err != nil {
		return s.Err
	}
	if !s.Exists() {
		return ErrNoValue
	}
	return json.Unmarshal(s.Value, v)
}

// String decodes the value as a JSON string. Non-string scalars are returned
// in their JSON text form (numbers stay numbers).
func (s Snapshot) String() (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if !s.Exists() {
		return "", ErrNoValue
	}
	var str string
	if err := json.Unmarshal(s.Value, &str); err == nil {
		return str, nil
	}
	return strings.TrimSpace(string(s.Value)), nil
}

// SplitPath validates path and returns its segments. The empty path and "/"
// address the root and return no segments.
func SplitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		if strings.ContainsAny(p, ".$#[]") {
			return nil, fmt.Errorf("%w: forbidden character in %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// JoinPath joins segments into a path.
func JoinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// related returns true if a and b are on the same branch of the tree,
// meaning one is a prefix of the other.
func related(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
