package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// SessionState is the saved set of live sessions.
type SessionState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Sessions holds one record per signed-in browser or console.
	Sessions []SessionRecord `json:"sessions,omitempty"`
}

// SessionRecord is one saved session.
type SessionRecord struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionStateStore reads and writes SessionState at a fixed path.
type SessionStateStore struct {
	mu   sync.Mutex
	path string
}

// NewSessionStateStore creates a store for the file at path.
func NewSessionStateStore(path string) *SessionStateStore {
	return &SessionStateStore{path: path}
}

// Path returns the state file path.
func (s *SessionStateStore) Path() string {
	return s.path
}

// Save writes state to disk. The file is replaced atomically and is only
// readable by its owner, since it holds session IDs.
func (s *SessionStateStore) Save(state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist.
func (s *SessionStateStore) Load() (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("session state version %d is newer than supported version %d", state.Version, StateVersion)
	}
	return state, nil
}

// Clear removes the state file.
func (s *SessionStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
