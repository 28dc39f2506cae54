package gate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gate-remote/gate-go/pkg/rtdb"
)

func str(s string) rtdb.Snapshot {
	b, _ := json.Marshal(s)
	return rtdb.Snapshot{Value: b}
}

func num(f float64) rtdb.Snapshot {
	b, _ := json.Marshal(f)
	return rtdb.Snapshot{Value: b}
}

var absent = rtdb.Snapshot{}

func TestModelLoading(t *testing.T) {
	m := NewModel(0, time.UTC)
	now := time.Now()

	v := m.View(now)
	if !v.Loading {
		t.Fatal("new model should be loading")
	}
	if v.Online || v.StatusText != "" || v.ActionLabel != "" {
		t.Errorf("loading view shows derived fields: %+v", v)
	}

	// A heartbeat alone does not finish loading.
	m.ApplyHeartbeat(str(now.UTC().Format(time.RFC3339Nano)), now)
	if !m.View(now).Loading {
		t.Error("model without status should stay loading")
	}
}

func TestModelOnlineClosed(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel(DefaultThreshold, time.UTC)

	m.ApplyStatus(str("Closed"))
	m.ApplyHeartbeat(str(now.Add(-3*time.Second).Format(time.RFC3339)), now)

	v := m.View(now)
	if v.Loading || !v.Online {
		t.Fatalf("view = %+v, want loaded and online", v)
	}
	if v.ActionLabel != "OPEN" {
		t.Errorf("ActionLabel = %q, want OPEN", v.ActionLabel)
	}
	if v.StatusText != "Closed" {
		t.Errorf("StatusText = %q, want Closed", v.StatusText)
	}
}

func TestModelOfflineOpen(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel(DefaultThreshold, time.UTC)

	m.ApplyStatus(str("Open"))
	m.ApplyHeartbeat(str(now.Add(-10*time.Second).Format(time.RFC3339)), now)

	v := m.View(now)
	if v.Online {
		t.Fatal("controller should be offline")
	}
	if v.ActionLabel != "CLOSE" {
		t.Errorf("ActionLabel = %q, want CLOSE", v.ActionLabel)
	}
	if v.StatusText != "Offline" {
		t.Errorf("StatusText = %q, want Offline", v.StatusText)
	}
}

func TestModelTickAgesHeartbeat(t *testing.T) {
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Opening"))
	m.ApplyHeartbeat(str(start.Format(time.RFC3339)), start)

	m.Tick(start.Add(4999 * time.Millisecond))
	if !m.Online() {
		t.Error("online at 4.999s")
	}
	m.Tick(start.Add(5 * time.Second))
	if m.Online() {
		t.Error("offline expected at exactly 5s")
	}

	// A new heartbeat brings it back.
	now := start.Add(6 * time.Second)
	m.ApplyHeartbeat(str(now.Format(time.RFC3339)), now)
	if !m.Online() {
		t.Error("fresh heartbeat should restore liveness")
	}
}

func TestModelAbsentHeartbeatKeepsLiveness(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Closed"))
	m.ApplyHeartbeat(str(now.Format(time.RFC3339)), now)

	m.ApplyHeartbeat(absent, now.Add(time.Minute))
	if !m.Online() {
		t.Error("absent heartbeat must not recompute liveness")
	}
	if v := m.View(now); v.Error != "" {
		t.Errorf("absent heartbeat should not be an error, got %q", v.Error)
	}
}

func TestModelTickSkippedWhileHeartbeatAbsent(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Open"))
	m.ApplyHeartbeat(str(now.Format(time.RFC3339)), now)

	m.ApplyHeartbeat(absent, now.Add(time.Second))
	m.Tick(now.Add(10 * time.Second))
	if v := m.View(now.Add(10 * time.Second)); !v.Online || v.StatusText != "Open" {
		t.Errorf("after absent heartbeat: online=%v text=%q, want online Open", v.Online, v.StatusText)
	}

	m.ApplyHeartbeat(str("garbage"), now.Add(11*time.Second))
	m.Tick(now.Add(time.Minute))
	if !m.Online() {
		t.Error("tick after unparseable heartbeat must keep liveness")
	}

	// A parsed but stale heartbeat resumes recomputation.
	m.ApplyHeartbeat(str(now.Format(time.RFC3339)), now.Add(time.Minute))
	if m.Online() {
		t.Error("stale heartbeat should be offline")
	}

	// Once offline, an absent heartbeat keeps it offline.
	m.ApplyHeartbeat(absent, now.Add(2*time.Minute))
	m.Tick(now.Add(2 * time.Minute))
	if m.Online() {
		t.Error("absent heartbeat must not bring the controller online")
	}
}

func TestModelTickBeforeAnyHeartbeat(t *testing.T) {
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Closed"))
	m.ApplyHeartbeat(absent, time.Now())
	m.Tick(time.Now())
	if v := m.View(time.Now()); v.Online || v.StatusText != OfflineText {
		t.Errorf("no heartbeat yet: online=%v text=%q, want Offline", v.Online, v.StatusText)
	}
}

func TestModelUnparseableHeartbeat(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Closed"))
	m.ApplyHeartbeat(str(now.Format(time.RFC3339)), now)

	m.ApplyHeartbeat(str("not a time"), now.Add(time.Minute))
	if !m.Online() {
		t.Error("unparseable heartbeat must not recompute liveness")
	}
	v := m.View(now)
	if !strings.HasPrefix(v.Error, "heartbeat: ") {
		t.Errorf("Error = %q, want heartbeat error", v.Error)
	}
	if !errors.Is(m.Err(), ErrInvalidHeartbeat) {
		t.Errorf("Err() = %v, want ErrInvalidHeartbeat", m.Err())
	}
}

func TestModelStatusReadErrorIsInert(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Open"))
	m.ApplyHeartbeat(str(now.Format(time.RFC3339)), now)

	before := m.View(now)
	m.ApplyStatus(rtdb.Snapshot{Err: errors.New("permission denied")})
	after := m.View(now)

	if after.Error != "status: permission denied" {
		t.Errorf("Error = %q, want status error text", after.Error)
	}
	if after.Online != before.Online || after.Status != before.Status || after.StatusText != before.StatusText {
		t.Errorf("read error changed the view: before %+v, after %+v", before, after)
	}

	// The next good snapshot clears it.
	m.ApplyStatus(str("Closing"))
	if v := m.View(now); v.Error != "" || v.Status != StatusClosing {
		t.Errorf("view after recovery = %+v", v)
	}
}

func TestModelUnknownStatus(t *testing.T) {
	now := time.Now()
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Stuck"))
	m.ApplyHeartbeat(str(now.UTC().Format(time.RFC3339Nano)), now)

	v := m.View(now)
	if v.Loading {
		t.Fatal("unknown status still counts as loaded")
	}
	if v.ActionLabel != "" {
		t.Errorf("ActionLabel = %q, want empty", v.ActionLabel)
	}
	if !errors.Is(m.Err(), ErrInvalidStatus) {
		t.Errorf("Err() = %v, want ErrInvalidStatus", m.Err())
	}
}

func TestModelStatusRemovedReturnsToLoading(t *testing.T) {
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Open"))
	m.ApplyStatus(absent)
	if !m.View(time.Now()).Loading {
		t.Error("removed status should return to loading")
	}
}

func TestModelConfidence(t *testing.T) {
	m := NewModel(DefaultThreshold, time.UTC)
	m.ApplyStatus(str("Closed"))

	m.ApplyConfidence(num(0.97))
	v := m.View(time.Now())
	if !v.HasConfidence || v.Confidence != 0.97 {
		t.Errorf("confidence = %v/%v, want 0.97", v.Confidence, v.HasConfidence)
	}

	m.ApplyConfidence(str("high"))
	if v := m.View(time.Now()); !strings.HasPrefix(v.Error, "confidence: ") {
		t.Errorf("Error = %q, want confidence error", v.Error)
	}

	m.ApplyConfidence(absent)
	if v := m.View(time.Now()); v.HasConfidence || v.Error != "" {
		t.Errorf("view after removal = %+v", v)
	}
}

func TestViewSame(t *testing.T) {
	hb := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	a := View{Status: StatusOpen, Online: true, Heartbeat: hb, UpdatedAt: time.Now()}
	b := a
	b.UpdatedAt = a.UpdatedAt.Add(time.Second)
	b.Heartbeat = hb.In(time.FixedZone("X", 3600))

	if !a.Same(b) {
		t.Error("views differing only in UpdatedAt and zone should be the same")
	}
	b.Online = false
	if a.Same(b) {
		t.Error("views with different liveness should differ")
	}
}
