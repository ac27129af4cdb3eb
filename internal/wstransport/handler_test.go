package wstransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/connection"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/ocppadapter"
	"github.com/ocpp-csms/central-system/internal/repository"
	"github.com/ocpp-csms/central-system/internal/repository/memrepo"
	"github.com/ocpp-csms/central-system/internal/sessionregistry"
)

type echoAdapter struct {
	stationID string
}

func (a *echoAdapter) HandleMessage(_ context.Context, text string) (string, bool) {
	if strings.Contains(text, `"Heartbeat"`) {
		return `[3,"1",{"currentTime":"2026-07-31T10:00:00Z"}]`, true
	}
	return "", false
}
func (a *echoAdapter) Version() connection.Version { return connection.Version16 }
func (a *echoAdapter) StationID() string            { return a.stationID }

func newTestServer(t *testing.T, debounce time.Duration) (*httptest.Server, *memrepo.Store, *eventbus.FakePublisher) {
	t.Helper()
	store := memrepo.New()
	store.SeedStation(&repository.Station{ID: "CP1", ProtocolVersion: "1.6"})

	pub := eventbus.NewFakePublisher()
	fc := clock.NewFake(time.Now())

	factory := ocppadapter.NewFactory()
	factory.Register(connection.Version16, func(stationID string) ocppadapter.InboundAdapter {
		return &echoAdapter{stationID: stationID}
	})

	registry := sessionregistry.New(debounce, nil, pub, fc)

	cfg := DefaultConfig()
	cfg.HandshakeRateLimitPerIP = 0 // disabled for deterministic tests

	h := New(cfg, factory, registry, store.Stations(), pub, fc, zerolog.Nop())
	h.Start()

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		_ = h.Shutdown(context.Background())
		srv.Close()
	})
	return srv, store, pub
}

func dial(t *testing.T, srv *httptest.Server, path string, protocols ...string) (*websocket.Conn, *http.Response) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	header := http.Header{}
	if len(protocols) > 0 {
		header.Set("Sec-WebSocket-Protocol", strings.Join(protocols, ", "))
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	return conn, resp
}

func TestServeHTTP_KnownStationConnectsAndEchoes(t *testing.T) {
	srv, _, pub := newTestServer(t, 500*time.Millisecond)

	conn, _ := dial(t, srv, "/ocpp/CP1", "ocpp1.6")
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[2,"1","Heartbeat",{}]`)))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "currentTime")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, pub.Count(eventbus.TypeStationConnected))
}

func TestServeHTTP_UnknownStationClosesWithPolicyViolation(t *testing.T) {
	srv, _, _ := newTestServer(t, 500*time.Millisecond)

	conn, _ := dial(t, srv, "/ocpp/GHOST", "ocpp1.6")
	defer conn.Close()

	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, closePolicyViolation, closeErr.Code)
	assert.Equal(t, "Unknown charge point ID", closeErr.Text)
}

func TestServeHTTP_ReconnectWithinDebounceIsRejected(t *testing.T) {
	srv, _, _ := newTestServer(t, 300*time.Millisecond)

	conn1, _ := dial(t, srv, "/ocpp/CP1", "ocpp1.6")
	require.NoError(t, conn1.Close())
	time.Sleep(20 * time.Millisecond)

	conn2, _ := dial(t, srv, "/ocpp/CP1", "ocpp1.6")
	defer conn2.Close()

	_, _, err := conn2.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, closeTryAgainLater, closeErr.Code)
}

func TestServeHTTP_MissingStationIDIsBadRequest(t *testing.T) {
	srv, _, _ := newTestServer(t, 500*time.Millisecond)

	resp, err := http.Get(srv.URL + "/ocpp/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
