package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-analytics/pixel/internal/api"
	"github.com/pixel-analytics/pixel/internal/core/ports"
	"github.com/pixel-analytics/pixel/internal/core/service"
	"github.com/pixel-analytics/pixel/internal/infrastructure/memory"
	"github.com/pixel-analytics/pixel/internal/infrastructure/token"
	"github.com/pixel-analytics/pixel/pkg/client"
)

func TestSession_AgainstServer(t *testing.T) {
	const secret = "s3cr3t"
	codec, err := token.NewCodec(secret)
	require.NoError(t, err)
	store := memory.NewAdapter()
	gw, err := service.NewEventGateway(service.GatewayConfig{Secret: secret}, codec, store, zerolog.Nop())
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(
		api.RouterConfig{Registry: prometheus.NewRegistry()},
		gw, map[string]ports.HealthChecker{}, zerolog.Nop(),
	))
	t.Cleanup(srv.Close)

	s, err := client.New(srv.URL, client.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	ctx := context.Background()

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	s.Navigate("/blog/my-post", map[string]string{"slug": "my-post"})
	require.NoError(t, s.Flush(flushCtx))
	require.NoError(t, s.Identify(ctx, client.Profile{Email: "u@e.com", Name: "U"}))
	s.Track("Signed in", nil)
	require.NoError(t, s.Flush(flushCtx))

	anonID, err := s.AnonymousID(ctx)
	require.NoError(t, err)

	events := store.Events()
	require.Len(t, events, 2)
	byName := map[string]int{}
	for i, ev := range events {
		byName[ev.Event] = i
	}

	pv := events[byName["pageview"]]
	assert.False(t, pv.Subject.Identified())
	assert.Equal(t, anonID, pv.Subject.AnonymousID)
	route, _ := pv.Data.Field("route")
	got, _ := route.AsString()
	assert.Equal(t, "/blog/[slug]", got)

	signedIn := events[byName["Signed in"]]
	assert.Equal(t, "u@e.com", signedIn.Subject.Email)
	assert.Equal(t, anonID, signedIn.Subject.AnonymousID)

	profile, ok := store.Profile("u@e.com")
	require.True(t, ok)
	assert.Equal(t, "U", profile.Name)
}
