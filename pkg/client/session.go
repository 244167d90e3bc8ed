// Package client is the Go counterpart of the browser pixel: it caches the
// identity token, posts identify and track calls to the events endpoint, and
// fires a page view on every navigation.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultEventsPath = "/api/events"
	DefaultTimeout    = 5 * time.Second

	// TokenKey and AnonymousIDKey are the store keys the session uses.
	TokenKey       = "pixel-jwt"
	AnonymousIDKey = "pixel-anonymous-id"

	pageViewEvent     = "pageview"
	identifyOnlyEvent = "-"
)

// ErrNoToken is returned by Identify when the server answered without a token.
var ErrNoToken = errors.New("pixel: server issued no token")

// State tells whether tracked events carry an identity.
type State int

const (
	Anonymous State = iota
	Identified
)

func (s State) String() string {
	if s == Identified {
		return "identified"
	}
	return "anonymous"
}

// Profile is the identity sent with Identify. Email is required by the server.
type Profile struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Image  string `json:"image,omitempty"`
	UserID string `json:"userId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// TransportError reports a non-2xx answer from the events endpoint.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("pixel: events endpoint returned %d: %s", e.StatusCode, e.Body)
}

type request struct {
	Action      string `json:"action"`
	ID          string `json:"id,omitempty"`
	AnonymousID string `json:"anonymousId,omitempty"`
	Event       string `json:"event,omitempty"`
	Data        any    `json:"data,omitempty"`
}

type identifyResponse struct {
	Status string  `json:"status"`
	JWT    *string `json:"jwt"`
}

// Session is one client's view of the pixel service.
type Session struct {
	endpoint string
	store    Store
	http     *http.Client
	timeout  time.Duration
	log      zerolog.Logger
	debug    bool

	anonMu sync.Mutex
	anonID string

	inflight sync.WaitGroup
}

type Option func(*Session)

func WithEventsPath(path string) Option {
	return func(s *Session) { s.endpoint = path }
}

func WithStore(store Store) Option {
	return func(s *Session) { s.store = store }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.http = c }
}

// WithTimeout bounds every request, including fire-and-forget tracks.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithDebug logs every call at debug level.
func WithDebug(debug bool) Option {
	return func(s *Session) { s.debug = debug }
}

// New creates a session against baseURL, e.g. "https://app.example.com".
func New(baseURL string, opts ...Option) (*Session, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("pixel: invalid base url %q", baseURL)
	}

	s := &Session{
		endpoint: DefaultEventsPath,
		store:    NewMemoryStore(),
		http:     http.DefaultClient,
		timeout:  DefaultTimeout,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoint = strings.TrimRight(base.String(), "/") + "/" + strings.TrimLeft(s.endpoint, "/")
	return s, nil
}

// State reports Identified when a token is cached.
func (s *Session) State(ctx context.Context) State {
	if tok, ok, err := s.store.Get(ctx, TokenKey); err == nil && ok && tok != "" {
		return Identified
	}
	return Anonymous
}

// Identify exchanges the profile for a token and caches it. Failures are
// returned to the caller and never retried.
func (s *Session) Identify(ctx context.Context, p Profile) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.post(ctx, request{
		Action: "identify",
		Event:  identifyOnlyEvent,
		Data:   p,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to identify user")
		return err
	}

	var resp identifyResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("pixel: decode identify response: %w", err)
	}
	if resp.JWT == nil || *resp.JWT == "" {
		return ErrNoToken
	}
	if err := s.store.Set(ctx, TokenKey, *resp.JWT); err != nil {
		return fmt.Errorf("pixel: store token: %w", err)
	}
	s.debugf("successfully identified user")
	return nil
}

// Forget drops the cached token. Later events are anonymous.
func (s *Session) Forget(ctx context.Context) error {
	if err := s.store.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("pixel: forget: %w", err)
	}
	s.debugf("session ended")
	return nil
}

// Track sends the event in the background. The identity is captured before
// Track returns, so a later Forget or Identify does not change it. Delivery
// errors are logged and dropped; use Flush to wait for pending sends.
func (s *Session) Track(event string, data any) {
	s.debugf("track event %q", event)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	payload := s.trackRequest(ctx, event, data)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if _, err := s.post(ctx, payload); err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("track dropped")
		}
	}()
}

// Navigate records a page view for path. params are the route parameters
// the path was rendered with.
func (s *Session) Navigate(path string, params map[string]string) {
	data := map[string]any{
		"path":  path,
		"route": RouteTemplate(path, params),
	}
	if params != nil {
		data["params"] = params
	}
	s.Track(pageViewEvent, data)
}

// Flush blocks until background sends finish or ctx ends.
func (s *Session) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AnonymousID returns the id generated for this client, creating and
// persisting it on first use.
func (s *Session) AnonymousID(ctx context.Context) (string, error) {
	s.anonMu.Lock()
	defer s.anonMu.Unlock()
	if s.anonID != "" {
		return s.anonID, nil
	}
	id, ok, err := s.store.Get(ctx, AnonymousIDKey)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		id = uuid.NewString()
		if err := s.store.Set(ctx, AnonymousIDKey, id); err != nil {
			return "", err
		}
	}
	s.anonID = id
	return id, nil
}

func (s *Session) trackRequest(ctx context.Context, event string, data any) request {
	tok, _, err := s.store.Get(ctx, TokenKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("read cached token, tracking anonymously")
		tok = ""
	}
	anonID, err := s.AnonymousID(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("anonymous id unavailable")
	}
	return request{
		Action:      "track",
		ID:          tok,
		AnonymousID: anonID,
		Event:       event,
		Data:        data,
	}
}

func (s *Session) post(ctx context.Context, payload request) ([]byte, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("pixel: encode %s: %w", payload.Action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pixel: %s: %w", payload.Action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("pixel: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return body, nil
}

func (s *Session) debugf(format string, args ...any) {
	if s.debug {
		s.log.Debug().Msgf(format, args...)
	}
}

// RouteTemplate replaces each parameter value in path with "[name]", so
// "/blog/my-post" with {slug: "my-post"} becomes "/blog/[slug]". Only the
// first occurrence of each value is replaced; keys are applied in sorted
// order.
func RouteTemplate(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := params[k]; v != "" {
			path = strings.Replace(path, v, "["+k+"]", 1)
		}
	}
	return path
}
