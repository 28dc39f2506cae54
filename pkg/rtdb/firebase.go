package rtdb

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gate-remote/gate-go/pkg/connection"
)

// FirebaseConfig configures a FirebaseStore.
type FirebaseConfig struct {
	// DatabaseURL is the database root, e.g.
	// "https://example-default-rtdb.firebaseio.com".
	DatabaseURL string

	// AuthToken is sent as the "auth" query parameter when set
	// (an ID token or a database secret).
	AuthToken string

	// HTTPClient is used for all requests. Default: a client with no
	// overall timeout, since streams are long-lived.
	HTTPClient *http.Client

	// RequestTimeout bounds Get, Set and Delete. Default: 10 seconds.
	RequestTimeout time.Duration

	// Backoff paces stream reconnects.
	Backoff connection.BackoffConfig

	// Logger receives stream lifecycle messages.
	Logger *slog.Logger
}

// HTTPError is a non-2xx reply from the database.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Status)
}

// FirebaseStore is a Store backed by the Firebase Realtime Database REST API.
type FirebaseStore struct {
	base    *url.URL
	token   string
	client  *http.Client
	timeout time.Duration
	backoff connection.BackoffConfig
	logger  *slog.Logger

	mu      sync.Mutex
	streams map[*Subscription]context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// NewFirebaseStore creates a REST client for the database at cfg.DatabaseURL.
func NewFirebaseStore(cfg FirebaseConfig) (*FirebaseStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("firebase: database URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.DatabaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("firebase: invalid database URL: %w", err)
	}
	if base.Scheme != "https" && base.Scheme != "http" {
		return nil, fmt.Errorf("firebase: unsupported URL scheme %q", base.Scheme)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &FirebaseStore{
		base:    base,
		token:   cfg.AuthToken,
		client:  client,
		timeout: timeout,
		backoff: cfg.Backoff,
		logger:  logger,
		streams: make(map[*Subscription]context.CancelFunc),
	}, nil
}

// endpoint returns the REST URL for segs.
func (f *FirebaseStore) endpoint(segs []string) string {
	u := *f.base
	escaped := make([]string, len(segs))
	for i, s := range segs {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/") + ".json"
	u.RawPath = ""
	if f.token != "" {
		q := u.Query()
		q.Set("auth", f.token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do performs a bounded request and returns the response body.
func (f *FirebaseStore) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.endpoint(segs), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(method, path, resp.StatusCode, data)
	}
	return data, nil
}

func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	e := &HTTPError{Method: method, Path: path, Status: status}
	var reply struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &reply) == nil {
		e.Message = reply.Error
	}
	return e
}

// Get reads the value at path.
func (f *FirebaseStore) Get(ctx context.Context, path string) (Snapshot, error) {
	data, err := f.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, Value: data, At: time.Now()}, nil
}

// Set writes value at path with PUT. A nil value deletes the path.
func (f *FirebaseStore) Set(ctx context.Context, path string, value any) error {
	if value == nil {
		return f.Delete(ctx, path)
	}
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = f.do(ctx, http.MethodPut, path, body)
	return err
}

// Delete removes the value at path.
func (f *FirebaseStore) Delete(ctx context.Context, path string) error {
	_, err := f.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Subscribe opens a streaming subscription to path. Stream failures are
// published as snapshots carrying Err, and the stream is reopened with
// backoff until the subscription ends.
func (f *FirebaseStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	var sub *Subscription
	sub = newSubscription(JoinPath(segs...), func() {
		cancel()
		f.mu.Lock()
		delete(f.streams, sub)
		f.mu.Unlock()
	})

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		return nil, ErrStoreClosed
	}
	f.streams[sub] = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		defer sub.Unsubscribe()
		f.streamLoop(streamCtx, sub, segs)
	}()

	return sub, nil
}

// Close ends all subscriptions and waits for their streams to stop.
func (f *FirebaseStore) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := make([]*Subscription, 0, len(f.streams))
	for sub := range f.streams {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	f.wg.Wait()
	return nil
}

// streamLoop keeps a stream open until ctx is done.
func (f *FirebaseStore) streamLoop(ctx context.Context, sub *Subscription, segs []string) {
	backoff := connection.NewBackoffWithConfig(f.backoff)

	for {
		err := f.stream(ctx, sub, segs, backoff.Reset)
		if ctx.Err() != nil {
			return
		}

		f.logger.Warn("store stream dropped", "path", sub.Path(), "error", err)
		sub.publish(Snapshot{Err: err})

		if errors.Is(err, ErrAuthRevoked) || errors.Is(err, ErrStreamCancel) {
			// The server refuses this stream; reopening without new
			// credentials would fail the same way.
			return
		}

		if err := backoff.Wait(ctx); err != nil {
			return
		}
	}
}

// streamEvent is the payload of "put" and "patch" events.
type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// stream runs one streaming request. It calls opened after the first event.
func (f *FirebaseStore) stream(ctx context.Context, sub *Subscription, segs []string, opened func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint(segs), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newHTTPError(http.MethodGet, sub.Path(), resp.StatusCode, body)
	}

	f.logger.Debug("store stream open", "path", sub.Path())

	var (
		tree    any
		name    string
		data    strings.Builder
		first   = true
		scanner = bufio.NewScanner(resp.Body)
	)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if name == "" {
				continue
			}
			if first {
				first = false
				opened()
			}
			next, changed, err := applyStreamEvent(tree, name, data.String())
			if err != nil {
				return err
			}
			if changed {
				tree = next
				sub.publish(Snapshot{Value: encodeJSON(tree)})
			}
			name = ""
			data.Reset()

		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// applyStreamEvent applies one server-sent event to the local tree.
// It returns the new tree and whether a snapshot should be published.
func applyStreamEvent(tree any, name, data string) (any, bool, error) {
	switch name {
	case "put", "patch":
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return tree, false, fmt.Errorf("firebase: bad %s event: %w", name, err)
		}
		segs, err := SplitPath(ev.Path)
		if err != nil {
			return tree, false, err
		}
		value, err := decodeJSON(ev.Data)
		if err != nil {
			return tree, false, fmt.Errorf("firebase: bad %s data: %w", name, err)
		}

		if name == "put" {
			return setAt(tree, segs, value), true, nil
		}

		children, ok := value.(map[string]any)
		if !ok {
			return tree, false, fmt.Errorf("firebase: patch data is not an object")
		}
		// Patch keys are relative paths and may span several levels.
		for key, child := range children {
			keySegs, err := SplitPath(key)
			if err != nil {
				return tree, false, err
			}
			childSegs := append(append([]string{}, segs...), keySegs...)
			tree = setAt(tree, childSegs, child)
		}
		return tree, true, nil

	case "keep-alive":
		return tree, false, nil

	case "cancel":
		return tree, false, ErrStreamCancel

	case "auth_revoked":
		return tree, false, ErrAuthRevoked

	default:
		return tree, false, nil
	}
}

// Compile-time interface satisfaction check.
var _ Store = (*FirebaseStore)(nil)
