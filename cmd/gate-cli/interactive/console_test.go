package interactive

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gate-remote/gate-go/pkg/client"
	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/config"
	"github.com/gate-remote/gate-go/pkg/discovery"
	"github.com/gate-remote/gate-go/pkg/gate"
	"github.com/gate-remote/gate-go/pkg/session"
)

type fakeBrowser struct {
	services []*discovery.Service
}

func (b *fakeBrowser) Browse(ctx context.Context) (<-chan *discovery.Service, error) {
	out := make(chan *discovery.Service, len(b.services))
	for _, s := range b.services {
		out <- s
	}
	close(out)
	return out, nil
}

func newTestConsole(t *testing.T) (*Console, *client.Client, *bytes.Buffer) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.History.Path = ":memory:"
	cfg.Gate.Tick = 10 * time.Millisecond
	cfg.Accounts = []session.Account{{Email: "ada@example.com", DisplayName: "Ada", PasswordHash: string(hash)}}

	c, err := client.Open(context.Background(), cfg, client.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	var out bytes.Buffer
	con := newConsole(c, &out)
	con.readPassword = func(string) ([]byte, error) { return []byte("secret"), nil }
	return con, c, &out
}

func exec(t *testing.T, con *Console, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	if !con.Exec(context.Background(), line) {
		t.Fatalf("%q exited the console", line)
	}
	return out.String()
}

func setGate(t *testing.T, c *client.Client, status gate.Status) {
	t.Helper()
	ctx := context.Background()
	if err := c.Store().Set(ctx, gate.DefaultStatusPath, string(status)); err != nil {
		t.Fatal(err)
	}
	if err := c.Store().Set(ctx, gate.DefaultHeartbeatPath, time.Now().Format(time.RFC3339Nano)); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := c.Monitor().View(); v.Online && v.Status == status {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("view never showed %s", status)
}

func TestLoginWhoamiLogout(t *testing.T) {
	con, _, out := newTestConsole(t)

	if got := exec(t, con, out, "whoami"); !strings.Contains(got, "not-authed") {
		t.Errorf("whoami before login = %q", got)
	}

	if got := exec(t, con, out, "login ada@example.com wrong"); !strings.Contains(got, "Sign-in failed") {
		t.Errorf("bad login = %q", got)
	}

	if got := exec(t, con, out, "login ada@example.com"); !strings.Contains(got, "Signed in as Ada") {
		t.Errorf("login = %q", got)
	}

	got := exec(t, con, out, "whoami")
	if !strings.Contains(got, "State: authed") || !strings.Contains(got, "ada@example.com") {
		t.Errorf("whoami = %q", got)
	}

	if got := exec(t, con, out, "logout"); !strings.Contains(got, "Signed out") {
		t.Errorf("logout = %q", got)
	}
	if got := exec(t, con, out, "logout"); !strings.Contains(got, "Not signed in") {
		t.Errorf("second logout = %q", got)
	}
}

func TestCommandsNeedLogin(t *testing.T) {
	con, _, out := newTestConsole(t)

	for _, line := range []string{"toggle", "open", "close", "cycle"} {
		if got := exec(t, con, out, line); !strings.Contains(got, "not signed in") {
			t.Errorf("%s without login = %q", line, got)
		}
	}
}

func TestStatusAndToggle(t *testing.T) {
	con, c, out := newTestConsole(t)

	if got := exec(t, con, out, "status"); !strings.Contains(got, "loading") {
		t.Errorf("status before data = %q", got)
	}

	setGate(t, c, gate.StatusClosed)
	got := exec(t, con, out, "status")
	if !strings.Contains(got, "Gate: Closed (online)") || !strings.Contains(got, "Action:     OPEN") {
		t.Errorf("status = %q", got)
	}

	exec(t, con, out, "login ada@example.com secret")
	if got := exec(t, con, out, "toggle"); !strings.Contains(got, "Sent open") {
		t.Errorf("toggle = %q", got)
	}
	if got := exec(t, con, out, "cycle 45"); !strings.Contains(got, "Sent open&close") {
		t.Errorf("cycle = %q", got)
	}
	if got := exec(t, con, out, "cycle 0.5"); !strings.Contains(got, "Usage") {
		t.Errorf("cycle with bad arg = %q", got)
	}
	if got := exec(t, con, out, "cycle 4611686018427387904"); !strings.Contains(got, "invalid cycle delay") {
		t.Errorf("cycle with huge delay = %q", got)
	}

	got = exec(t, con, out, "history")
	if strings.Count(got, "ada@example.com") != 2 || !strings.Contains(got, string(command.TypeCycle)) {
		t.Errorf("history = %q", got)
	}
}

func TestWatch(t *testing.T) {
	con, c, out := newTestConsole(t)
	setGate(t, c, gate.StatusOpening)

	got := exec(t, con, out, "watch 1")
	if !strings.Contains(got, "Gate: Opening (online)") {
		t.Errorf("watch = %q", got)
	}
}

func TestDiscover(t *testing.T) {
	con, _, out := newTestConsole(t)
	con.browser = &fakeBrowser{services: []*discovery.Service{
		{Instance: "front", Port: 8080, Version: "1.0", APIPath: "/api/v1", Addresses: []string{"192.168.1.5"}, Backend: "firebase"},
		{Instance: "shed", Port: 8081, Version: "2.0", APIPath: "/api/v2", Addresses: []string{"192.168.1.6"}},
	}}

	got := exec(t, con, out, "discover 1")
	if !strings.Contains(got, "http://192.168.1.5:8080/api/v1") || !strings.Contains(got, "Found 2 instance(s)") {
		t.Errorf("discover = %q", got)
	}
	if strings.Count(got, "incompatible") != 1 || !strings.Contains(got, "(incompatible api 2.0)") {
		t.Errorf("discover compatibility = %q", got)
	}
}

func TestUnknownAndQuit(t *testing.T) {
	con, _, out := newTestConsole(t)

	if got := exec(t, con, out, "dance"); !strings.Contains(got, "Unknown command: dance") {
		t.Errorf("unknown = %q", got)
	}
	if con.Exec(context.Background(), "quit") {
		t.Error("quit did not exit")
	}
}
