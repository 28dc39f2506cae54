package gate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gate-remote/gate-go/pkg/rtdb"
)

// View is the derived, presentation-ready state.
type View struct {
	// Loading is set until a status has been received.
	Loading bool `json:"loading"`

	// Status is the raw controller status.
	Status Status `json:"status,omitempty"`

	// Online is the derived liveness.
	Online bool `json:"online"`

	// StatusText is Status while online, OfflineText otherwise.
	StatusText string `json:"statusText,omitempty"`

	// ActionLabel is the toggle button label.
	ActionLabel string `json:"actionLabel,omitempty"`

	// Heartbeat is the last parsed heartbeat.
	Heartbeat time.Time `json:"heartbeat,omitzero"`

	// Confidence is the classifier score of the last status, if reported.
	Confidence    float64 `json:"confidence,omitempty"`
	HasConfidence bool    `json:"hasConfidence"`

	// Error describes store read failures, if any.
	Error string `json:"error,omitempty"`

	// UpdatedAt is when the view was computed.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Same reports whether v and o show the same thing, ignoring UpdatedAt.
func (v View) Same(o View) bool {
	if !v.Heartbeat.Equal(o.Heartbeat) {
		return false
	}
	v.UpdatedAt, o.UpdatedAt = time.Time{}, time.Time{}
	v.Heartbeat, o.Heartbeat = time.Time{}, time.Time{}
	return v == o
}

// Model is the liveness/status state machine. It is not safe for concurrent
// use; Monitor confines it to one goroutine.
type Model struct {
	threshold time.Duration
	loc       *time.Location

	loaded bool
	status Status

	heartbeat    time.Time
	hasHeartbeat bool
	online       bool

	// heartbeatPresent is false while the latest heartbeat snapshot is
	// absent or unparseable. Tick keeps the previous liveness meanwhile.
	heartbeatPresent bool

	confidence    float64
	hasConfidence bool

	statusErr     error
	heartbeatErr  error
	confidenceErr error
}

// NewModel creates a model. A non-positive threshold uses DefaultThreshold;
// a nil loc reads zone-less heartbeats as local time.
func NewModel(threshold time.Duration, loc *time.Location) *Model {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Model{threshold: threshold, loc: loc}
}

// Threshold returns the staleness threshold.
func (m *Model) Threshold() time.Duration {
	return m.threshold
}

// ApplyStatus applies a status snapshot. A snapshot carrying an error
// leaves the status untouched and is reported in the view. An absent value
// returns the model to loading.
func (m *Model) ApplyStatus(snap rtdb.Snapshot) {
	if snap.Err != nil {
		m.statusErr = snap.Err
		return
	}
	m.statusErr = nil

	if !snap.Exists() {
		m.loaded = false
		m.status = ""
		return
	}

	raw, err := snap.String()
	if err != nil {
		m.statusErr = err
		return
	}
	m.loaded = true
	m.status = Status(raw)
	if !m.status.Known() {
		m.statusErr = fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// ApplyHeartbeat applies a heartbeat snapshot and re-evaluates liveness at
// now. Absent or unparseable heartbeats carry no new information: liveness
// keeps its previous value.
func (m *Model) ApplyHeartbeat(snap rtdb.Snapshot, now time.Time) {
	if snap.Err != nil {
		m.heartbeatErr = snap.Err
		return
	}
	if !snap.Exists() {
		m.heartbeatErr = nil
		m.heartbeatPresent = false
		return
	}

	raw, err := snap.String()
	if err != nil {
		m.heartbeatErr = err
		m.heartbeatPresent = false
		return
	}
	t, err := ParseHeartbeat(raw, m.loc)
	if err != nil {
		m.heartbeatErr = err
		m.heartbeatPresent = false
		return
	}

	m.heartbeatErr = nil
	m.heartbeat = t
	m.hasHeartbeat = true
	m.heartbeatPresent = true
	m.Tick(now)
}

// ApplyConfidence applies a confidence score snapshot.
func (m *Model) ApplyConfidence(snap rtdb.Snapshot) {
	if snap.Err != nil {
		m.confidenceErr = snap.Err
		return
	}
	m.confidenceErr = nil

	if !snap.Exists() {
		m.hasConfidence = false
		m.confidence = 0
		return
	}
	var score float64
	if err := snap.Decode(&score); err != nil {
		m.confidenceErr = fmt.Errorf("confidence score: %w", err)
		return
	}
	m.confidence = score
	m.hasConfidence = true
}

// Tick re-evaluates liveness at now. Without any heartbeat the controller
// is offline. While the latest heartbeat snapshot is absent or unparseable
// the tick is skipped and liveness keeps its previous value.
func (m *Model) Tick(now time.Time) {
	if !m.hasHeartbeat {
		m.online = false
		return
	}
	if !m.heartbeatPresent {
		return
	}
	m.online = IsOnline(now, m.heartbeat, m.threshold)
}

// Online returns the current liveness.
func (m *Model) Online() bool {
	return m.online
}

// HeartbeatAge returns the age of the last heartbeat at now, and false if
// none has been received.
func (m *Model) HeartbeatAge(now time.Time) (time.Duration, bool) {
	if !m.hasHeartbeat {
		return 0, false
	}
	return HeartbeatAge(now, m.heartbeat), true
}

// View returns the derived view as of now. It does not re-evaluate
// liveness; call Tick for that.
func (m *Model) View(now time.Time) View {
	v := View{
		Loading:       !m.loaded,
		Heartbeat:     m.heartbeat,
		Confidence:    m.confidence,
		HasConfidence: m.hasConfidence,
		Error:         m.errorText(),
		UpdatedAt:     now,
	}
	if v.Loading {
		return v
	}

	v.Status = m.status
	v.Online = m.online
	v.StatusText = StatusText(m.online, m.status)
	v.ActionLabel = ActionLabel(m.status)
	return v
}

// Err returns the store read errors currently shown, joined.
func (m *Model) Err() error {
	return errors.Join(m.statusErr, m.heartbeatErr, m.confidenceErr)
}

func (m *Model) errorText() string {
	var parts []string
	if m.statusErr != nil {
		parts = append(parts, "status: "+m.statusErr.Error())
	}
	if m.heartbeatErr != nil {
		parts = append(parts, "heartbeat: "+m.heartbeatErr.Error())
	}
	if m.confidenceErr != nil {
		parts = append(parts, "confidence: "+m.confidenceErr.Error())
	}
	return strings.Join(parts, "; ")
}
