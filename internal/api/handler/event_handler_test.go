package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/api/middleware"
	"github.com/pixel-analytics/pixel/internal/core/domain"
	"github.com/pixel-analytics/pixel/internal/core/ports"
)

type stubGateway struct {
	identifyFn func(ctx context.Context, in ports.IdentifyInput) string
	trackFn    func(ctx context.Context, in ports.TrackInput) error
	verifyFn   func(token string) (domain.IdentityClaims, error)
}

func (s *stubGateway) Identify(ctx context.Context, in ports.IdentifyInput) string {
	return s.identifyFn(ctx, in)
}

func (s *stubGateway) Track(ctx context.Context, in ports.TrackInput) error {
	return s.trackFn(ctx, in)
}

func (s *stubGateway) VerifyToken(token string) (domain.IdentityClaims, error) {
	return s.verifyFn(token)
}

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestEventHandler_Identify_ReturnsToken(t *testing.T) {
	stub := &stubGateway{
		identifyFn: func(_ context.Context, in ports.IdentifyInput) string {
			if in.Email != "u@e.com" || in.Name != "Ursula" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if plan, _ := in.Data.Field("plan"); !plan.Equal(domain.String("pro")) {
				t.Fatalf("data not forwarded: %+v", in.Data)
			}
			return "signed.jwt.value"
		},
	}
	h := NewEventHandler(stub, zerolog.Nop())

	c, rec := newContext(`{"action":"identify","event":"-","data":{"email":"u@e.com","name":"Ursula","data":{"plan":"pro"}}}`)
	if err := h.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp["status"] != "OK" || resp["jwt"] != "signed.jwt.value" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestEventHandler_Identify_NullTokenOnMintFailure(t *testing.T) {
	stub := &stubGateway{identifyFn: func(context.Context, ports.IdentifyInput) string { return "" }}
	h := NewEventHandler(stub, zerolog.Nop())

	c, rec := newContext(`{"action":"identify","data":{"email":"u@e.com"}}`)
	if err := h.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	jwt, present := resp["jwt"]
	if !present || jwt != nil {
		t.Fatalf("expected jwt:null, got %+v", resp)
	}
}

func TestEventHandler_Identify_RequiresEmail(t *testing.T) {
	h := NewEventHandler(&stubGateway{}, zerolog.Nop())

	for _, body := range []string{
		`{"action":"identify"}`,
		`{"action":"identify","data":{"name":"no email"}}`,
		`{"action":"identify","data":{"email":"not-an-email"}}`,
	} {
		c, _ := newContext(body)
		if code := httpCode(t, h.Receive(c)); code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", body, code)
		}
	}
}

func TestEventHandler_Track_WithBodyToken(t *testing.T) {
	var got ports.TrackInput
	stub := &stubGateway{
		verifyFn: func(token string) (domain.IdentityClaims, error) {
			if token != "tok" {
				t.Fatalf("unexpected token %q", token)
			}
			return domain.IdentityClaims{Email: "u@e.com"}, nil
		},
		trackFn: func(_ context.Context, in ports.TrackInput) error {
			got = in
			return nil
		},
	}
	h := NewEventHandler(stub, zerolog.Nop())

	c, rec := newContext(`{"action":"track","id":"tok","anonymousId":"anon-1","event":"Signed in","data":{"n":2}}`)
	if err := h.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "OK" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if got.User == nil || got.User.Email != "u@e.com" {
		t.Fatalf("expected identified user, got %+v", got.User)
	}
	if got.Event != "Signed in" || got.AnonymousID != "anon-1" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if n, _ := got.Data.Field("n"); !n.Equal(domain.Number(2)) {
		t.Fatalf("data not forwarded: %+v", got.Data)
	}
}

func TestEventHandler_Track_InvalidTokenFallsBackToAnonymous(t *testing.T) {
	var got ports.TrackInput
	stub := &stubGateway{
		verifyFn: func(string) (domain.IdentityClaims, error) { return domain.IdentityClaims{}, domain.ErrInvalidToken },
		trackFn: func(_ context.Context, in ports.TrackInput) error {
			got = in
			return nil
		},
	}
	h := NewEventHandler(stub, zerolog.Nop())

	c, rec := newContext(`{"action":"track","id":"forged","event":"click"}`)
	if err := h.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.User != nil {
		t.Fatalf("expected anonymous track, got %+v", got.User)
	}
}

func TestEventHandler_Track_UsesHeaderClaims(t *testing.T) {
	var got ports.TrackInput
	stub := &stubGateway{
		trackFn: func(_ context.Context, in ports.TrackInput) error {
			got = in
			return nil
		},
	}
	h := NewEventHandler(stub, zerolog.Nop())

	c, _ := newContext(`{"action":"track","event":"pageview"}`)
	c.Set(middleware.ClaimsKey, &domain.IdentityClaims{UserID: "u-1"})
	if err := h.Receive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got.User == nil || got.User.UserID != "u-1" {
		t.Fatalf("expected header claims, got %+v", got.User)
	}
}

func TestEventHandler_Track_PropagatesInvalidEvent(t *testing.T) {
	stub := &stubGateway{
		trackFn: func(_ context.Context, in ports.TrackInput) error {
			return domain.ValidateEventName(in.Event)
		},
	}
	h := NewEventHandler(stub, zerolog.Nop())

	c, _ := newContext(`{"action":"track","event":"-"}`)
	if err := h.Receive(c); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestEventHandler_UnknownAction(t *testing.T) {
	h := NewEventHandler(&stubGateway{}, zerolog.Nop())

	for _, body := range []string{`{"action":"delete"}`, `{}`} {
		c, _ := newContext(body)
		if err := h.Receive(c); !errors.Is(err, domain.ErrUnknownAction) {
			t.Fatalf("%s: expected ErrUnknownAction, got %v", body, err)
		}
	}
}

func TestEventHandler_MalformedBody(t *testing.T) {
	h := NewEventHandler(&stubGateway{}, zerolog.Nop())

	c, _ := newContext(`{"action":`)
	if code := httpCode(t, h.Receive(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}
