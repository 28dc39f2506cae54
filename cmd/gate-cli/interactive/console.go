// Package interactive provides the interactive command-line interface
// for the gate client.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/gate-remote/gate-go/pkg/client"
	"github.com/gate-remote/gate-go/pkg/command"
	"github.com/gate-remote/gate-go/pkg/discovery"
	"github.com/gate-remote/gate-go/pkg/gate"
	"github.com/gate-remote/gate-go/pkg/history"
	"github.com/gate-remote/gate-go/pkg/session"
)

// DefaultWatch is how long watch runs without an argument.
const DefaultWatch = 30 * time.Second

var errSignedOut = errors.New("not signed in (use 'login <email>')")

// browser finds gate-web instances.
type browser interface {
	Browse(ctx context.Context) (<-chan *discovery.Service, error)
}

// Console handles interactive mode for gate-cli.
type Console struct {
	client  *client.Client
	rl      *readline.Instance
	out     io.Writer
	browser browser

	readPassword func(prompt string) ([]byte, error)

	sessionID string
}

// New creates a console on the terminal. Call Bind before Run.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gate> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	con := newConsole(nil, rl.Stdout())
	con.rl = rl
	con.readPassword = rl.ReadPassword
	return con, nil
}

func newConsole(c *client.Client, out io.Writer) *Console {
	return &Console{
		client:  c,
		out:     out,
		browser: discovery.NewMDNSBrowser(discovery.BrowserConfig{}),
		readPassword: func(string) ([]byte, error) {
			return nil, errors.New("no terminal")
		},
	}
}

// Bind sets the client the console drives.
func (c *Console) Bind(cl *client.Client) {
	c.client = cl
}

// Close releases the terminal.
func (c *Console) Close() error {
	if c.rl == nil {
		return nil
	}
	return c.rl.Close()
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Exec(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the console should
// exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "login":
		c.cmdLogin(ctx, args)

	case "logout":
		c.cmdLogout()

	case "whoami":
		c.cmdWhoami()

	case "status", "s":
		c.printView(c.client.Monitor().View())

	case "watch", "w":
		c.cmdWatch(ctx, args)

	case "toggle", "t":
		c.cmdToggle(ctx)

	case "open":
		c.cmdSend(ctx, command.TypeOpen, nil)

	case "close":
		c.cmdSend(ctx, command.TypeClose, nil)

	case "cycle":
		c.cmdCycle(ctx, args)

	case "history", "h":
		c.cmdHistory(ctx, args)

	case "discover":
		c.cmdDiscover(ctx, args)

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Gate Commands:
  Identity:
    login <email> [password] - Sign in (prompts for the password)
    logout                   - Sign out
    whoami                   - Show the signed-in user

  Gate:
    status                   - Show the gate view
    watch [seconds]          - Print view changes (default 30s)
    toggle                   - Open if closed, close if open
    open                     - Open the gate
    close                    - Close the gate
    cycle [seconds]          - Open, wait, then close (default 90s)

  Local:
    history [n]              - Show the last commands sent from here
    discover [seconds]       - Find gate-web instances on the network

  Other:
    help                     - Show this help
    quit                     - Exit`)
}

// current returns the live session, if any.
func (c *Console) current() (*session.Session, error) {
	if c.sessionID == "" {
		return nil, errSignedOut
	}
	s, err := c.client.Sessions().Lookup(c.sessionID)
	if err != nil {
		c.sessionID = ""
		if errors.Is(err, session.ErrSessionExpired) {
			return nil, errors.New("session expired (use 'login <email>')")
		}
		return nil, errSignedOut
	}
	return s, nil
}

func (c *Console) cmdLogin(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: login <email> [password]")
		return
	}

	password := ""
	if len(args) > 1 {
		password = args[1]
	} else {
		pw, err := c.readPassword("password: ")
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		password = string(pw)
	}

	s, err := c.client.Sessions().Login(ctx, args[0], password)
	if err != nil {
		fmt.Fprintf(c.out, "Sign-in failed: %v\n", err)
		return
	}
	if c.sessionID != "" {
		c.client.Sessions().Logout(c.sessionID)
	}
	c.sessionID = s.ID
	fmt.Fprintf(c.out, "Signed in as %s <%s>\n", s.User.DisplayName, s.User.Email)
}

func (c *Console) cmdLogout() {
	if c.sessionID == "" {
		fmt.Fprintln(c.out, "Not signed in")
		return
	}
	c.client.Sessions().Logout(c.sessionID)
	c.sessionID = ""
	fmt.Fprintln(c.out, "Signed out")
}

func (c *Console) cmdWhoami() {
	s, err := c.current()
	if err != nil {
		fmt.Fprintf(c.out, "State: %s (%v)\n", session.StateNotAuthed, err)
		return
	}
	fmt.Fprintf(c.out, "State: %s\n", session.StateOf(s, nil))
	fmt.Fprintf(c.out, "  Name:    %s\n", s.User.DisplayName)
	fmt.Fprintf(c.out, "  Email:   %s\n", s.User.Email)
	if s.User.PhotoURL != "" {
		fmt.Fprintf(c.out, "  Photo:   %s\n", s.User.PhotoURL)
	}
	fmt.Fprintf(c.out, "  Expires: %s\n", s.ExpiresAt.Format(time.RFC3339))
}

func (c *Console) printView(v gate.View) {
	if v.Loading {
		fmt.Fprintln(c.out, "Gate: loading...")
		if v.Error != "" {
			fmt.Fprintf(c.out, "  Error: %s\n", v.Error)
		}
		return
	}

	liveness := "online"
	if !v.Online {
		liveness = "offline"
	}
	fmt.Fprintf(c.out, "Gate: %s (%s)\n", v.StatusText, liveness)
	if v.ActionLabel != "" {
		fmt.Fprintf(c.out, "  Action:     %s\n", v.ActionLabel)
	}
	if !v.Heartbeat.IsZero() {
		fmt.Fprintf(c.out, "  Heartbeat:  %s\n", v.Heartbeat.Format(time.RFC3339))
	}
	if v.HasConfidence {
		fmt.Fprintf(c.out, "  Confidence: %.0f%%\n", v.Confidence*100)
	}
	if v.Error != "" {
		fmt.Fprintf(c.out, "  Error:      %s\n", v.Error)
	}
}

func (c *Console) cmdWatch(ctx context.Context, args []string) {
	d := DefaultWatch
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintln(c.out, "Usage: watch [seconds]")
			return
		}
		d = time.Duration(secs) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	for v := range c.client.Monitor().Watch(ctx) {
		fmt.Fprintf(c.out, "[%s] ", v.UpdatedAt.Format("15:04:05.000"))
		c.printView(v)
	}
}

func (c *Console) cmdToggle(ctx context.Context) {
	s, err := c.current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	env, err := c.client.Monitor().Toggle(ctx, s.User.CommandUser())
	c.printSent(env, err)
}

func (c *Console) cmdSend(ctx context.Context, typ command.Type, data map[string]any) {
	s, err := c.current()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	env, err := c.client.Sender().Send(ctx, s.User.CommandUser(), typ, data)
	c.printSent(env, err)
}

func (c *Console) cmdCycle(ctx context.Context, args []string) {
	var secs int64
	if len(args) > 0 {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintln(c.out, "Usage: cycle [seconds]")
			return
		}
		secs = n
	}
	data, err := command.CycleDataSeconds(secs)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	c.cmdSend(ctx, command.TypeCycle, data)
}

func (c *Console) printSent(env command.Envelope, err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Command failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Sent %s (%s)\n", env.Type, env.ID)
}

func (c *Console) cmdHistory(ctx context.Context, args []string) {
	h := c.client.History()
	if h == nil {
		fmt.Fprintln(c.out, "History is disabled")
		return
	}

	q := history.Query{Limit: 10}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(c.out, "Usage: history [n]")
			return
		}
		q.Limit = n
	}

	entries, err := h.List(ctx, q)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No commands sent yet")
		return
	}

	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-10s  %-6s  %s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Type, e.Outcome, e.UserEmail)
		if e.Error != "" {
			line += "  (" + e.Error + ")"
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) cmdDiscover(ctx context.Context, args []string) {
	timeout := discovery.BrowseTimeout
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintln(c.out, "Usage: discover [seconds]")
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	fmt.Fprintf(c.out, "Browsing for %s (%s)...\n", discovery.ServiceType, timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := c.browser.Browse(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	found := 0
	for svc := range results {
		found++
		fmt.Fprintf(c.out, "  %-20s %s", svc.Instance, svc.URL())
		if svc.Backend != "" {
			fmt.Fprintf(c.out, "  store=%s", svc.Backend)
		}
		if !svc.Compatible() {
			fmt.Fprintf(c.out, "  (incompatible api %s)", svc.Version)
		}
		fmt.Fprintln(c.out)
	}
	fmt.Fprintf(c.out, "Found %d instance(s)\n", found)
}
