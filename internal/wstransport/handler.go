// Package wstransport terminates the OCPP-J WebSocket handshake: it
// upgrades the HTTP request, negotiates a version via
// internal/ocppadapter, enforces the unknown-station and reconnect-
// debounce admission policies, and runs the per-connection
// reader/writer/ping goroutine trio that feeds frames to a version
// adapter and back out through the Session Registry.
//
// Grounded on internal/transport/websocket/manager.go's Manager/
// ConnectionWrapper shape (upgrader construction, CheckOrigin closure,
// SetReadLimit/ReadDeadline/PongHandler wiring, per-connection
// send/receive/ping goroutines, idle-connection cleanup sweep, context-
// cancellation shutdown) — rewritten around internal/ocppadapter's
// InboundAdapter instead of the teacher's gateway.MessageDispatcher, and
// internal/sessionregistry's Register/Unregister instead of the teacher's
// bare connection map (the eviction/debounce branches the teacher's
// HTTP-409 rejection does not have).
package wstransport

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/connection"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/metrics"
	"github.com/ocpp-csms/central-system/internal/ocppadapter"
	"github.com/ocpp-csms/central-system/internal/repository"
	"github.com/ocpp-csms/central-system/internal/sessionregistry"
)

// Close codes from RFC 6455 the admission policies below send explicitly.
const (
	closePolicyViolation = 1008
	closeTryAgainLater   = 1013
)

// Config controls the upgrader and per-connection pumps. Field names and
// defaults mirror the teacher's transport/websocket.Config; a
// cmd/csms/main.go wiring layer maps config.Config's Server/WebSocket
// sections onto this struct.
type Config struct {
	Path string

	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	MaxMessageSize    int64
	EnableCompression bool

	MaxConnections  int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration

	CheckOrigin    bool
	AllowedOrigins []string

	HandshakeRateLimitPerIP int
	SendBufferSize          int
}

// DefaultConfig mirrors the teacher's transport/websocket.DefaultConfig.
func DefaultConfig() *Config {
	return &Config{
		Path:                    "/ocpp",
		ReadBufferSize:          4096,
		WriteBufferSize:         4096,
		HandshakeTimeout:        10 * time.Second,
		PingInterval:            30 * time.Second,
		PongTimeout:             10 * time.Second,
		MaxMessageSize:          1024 * 1024,
		EnableCompression:       false,
		MaxConnections:          100000,
		IdleTimeout:             15 * time.Minute,
		CleanupInterval:         10 * time.Minute,
		CheckOrigin:             false,
		AllowedOrigins:          []string{},
		HandshakeRateLimitPerIP: 60,
		SendBufferSize:          100,
	}
}

// Handler is the http.Handler that terminates /ocpp/{station_id}
// connections.
type Handler struct {
	config   *Config
	upgrader *websocket.Upgrader
	factory  *ocppadapter.Factory
	registry *sessionregistry.Registry
	stations repository.StationRepository
	pub      eventbus.Publisher
	clock    clock.Clock
	log      zerolog.Logger
	limiter  *ipLimiter

	mu          sync.Mutex
	activeCount int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Handler. c defaults to clock.New() if nil.
func New(cfg *Config, factory *ocppadapter.Factory, registry *sessionregistry.Registry, stations repository.StationRepository, pub eventbus.Publisher, c clock.Clock, log zerolog.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if c == nil {
		c = clock.New()
	}

	upgrader := &websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		EnableCompression: cfg.EnableCompression,
		CheckOrigin: func(r *http.Request) bool {
			if !cfg.CheckOrigin {
				return true
			}
			origin := r.Header.Get("Origin")
			if len(cfg.AllowedOrigins) == 0 {
				return true
			}
			for _, allowed := range cfg.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Handler{
		config:   cfg,
		upgrader: upgrader,
		factory:  factory,
		registry: registry,
		stations: stations,
		pub:      pub,
		clock:    c,
		log:      log,
		limiter:  newIPLimiter(cfg.HandshakeRateLimitPerIP, time.Minute, c),
		ctx:      ctx,
		cancel:   cancel,
	}
	return h
}

// Start launches the background sweep that drops elapsed rate-limiter
// windows. Shutdown stops it.
func (h *Handler) Start() {
	h.wg.Add(1)
	go h.cleanupRoutine()
}

// Shutdown cancels every in-flight connection's context and waits for the
// background goroutines to exit, or ctx's deadline, whichever is first.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP implements http.Handler for the /ocpp/ route tree.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stationID := extractStationID(r.URL.Path, h.config.Path)
	if stationID == "" {
		http.Error(w, "missing station id", http.StatusBadRequest)
		return
	}

	ip := clientIP(r)
	if !h.limiter.Allow(ip) {
		http.Error(w, "too many handshake attempts", http.StatusTooManyRequests)
		return
	}

	if h.config.MaxConnections > 0 && h.connectionCount() >= h.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	requested := websocket.Subprotocols(r)
	version := ocppadapter.Negotiate(requested)

	var responseHeader http.Header
	if len(requested) > 0 {
		responseHeader = http.Header{}
		responseHeader.Set("Sec-WebSocket-Protocol", ocppadapter.VersionToSubprotocol(version))
	}

	conn, err := h.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		h.log.Warn().Err(err).Str("station_id", stationID).Msg("websocket upgrade failed")
		return
	}

	if _, err := h.stations.FindByID(r.Context(), stationID); err != nil {
		h.log.Warn().Str("station_id", stationID).Msg("unknown charge point id, rejecting after accept")
		s := newSink(conn, h.config.PongTimeout, h.config.SendBufferSize)
		s.closeWithStatus(closePolicyViolation, "Unknown charge point ID")
		return
	}

	s := newSink(conn, h.config.PongTimeout, h.config.SendBufferSize)
	result := h.registry.Register(stationID, s, version)
	if result.Outcome == sessionregistry.OutcomeDebounced {
		remainingSeconds := int(result.RetryAfter.Round(time.Second).Seconds())
		s.closeWithStatus(closeTryAgainLater, debounceReason(remainingSeconds))
		return
	}

	sess, ok := h.registry.Session(stationID)
	if !ok {
		// Registered successfully an instant ago; only a concurrent eviction
		// could have removed it already. Treat as a lost race and bail.
		s.closeWithStatus(1011, "internal error")
		return
	}

	h.onConnected(conn, s, sess, stationID, version, r)
}

func (h *Handler) onConnected(conn *websocket.Conn, s *sink, sess *connection.Session, stationID string, version connection.Version, r *http.Request) {
	adapter, err := h.factory.Build(version, stationID)
	if err != nil {
		h.log.Error().Err(err).Str("station_id", stationID).Msg("no adapter registered for negotiated version")
		s.closeWithStatus(1011, "internal error")
		return
	}

	h.addConnection()
	metrics.ActiveConnections.Inc()
	h.publishConnected(stationID, version)

	h.log.Info().Str("station_id", stationID).Str("version", string(version)).Str("remote_addr", r.RemoteAddr).Msg("station connected")

	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(h.clock.Now().Add(h.config.IdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(h.clock.Now().Add(h.config.IdleTimeout))
		return nil
	})

	connCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		s.writePump()
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.pingLoop(connCtx, s)
	}()

	h.readLoop(connCtx, conn, s, adapter, stationID)

	cancel()
	_ = s.Close()
	h.registry.Unregister(stationID, sess)
	h.removeConnection()
	metrics.ActiveConnections.Dec()
}

// readLoop owns the only goroutine allowed to call conn.ReadMessage,
// dispatching each text frame through the negotiated adapter and
// forwarding any synchronous response onto the sink.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, s *sink, adapter ocppadapter.InboundAdapter, stationID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("station_id", stationID).Msg("websocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		_ = conn.SetReadDeadline(h.clock.Now().Add(h.config.IdleTimeout))
		h.registry.Touch(stationID)

		resp, has := adapter.HandleMessage(ctx, string(payload))
		if has {
			if err := s.Send(resp); err != nil {
				h.log.Warn().Err(err).Str("station_id", stationID).Msg("failed to queue response frame")
				return
			}
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, s *sink) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) cleanupRoutine() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.limiter.sweep()
		}
	}
}

func (h *Handler) addConnection() {
	h.mu.Lock()
	h.activeCount++
	h.mu.Unlock()
}

func (h *Handler) removeConnection() {
	h.mu.Lock()
	h.activeCount--
	h.mu.Unlock()
}

func (h *Handler) connectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeCount
}

func (h *Handler) publishConnected(stationID string, version connection.Version) {
	if h.pub == nil {
		return
	}
	event := &eventbus.StationConnectedEvent{
		BaseEvent:       eventbus.NewBaseEvent(eventbus.TypeStationConnected, stationID, eventbus.SeverityInfo, eventbus.Metadata{Source: "wstransport"}),
		ProtocolVersion: string(version),
	}
	_ = h.pub.Publish(context.Background(), event)
}

// extractStationID strips basePath from urlPath, accepting both
// "{basePath}/{station_id}" and a bare "/{station_id}" per the spec's
// handshake rule.
func extractStationID(urlPath, basePath string) string {
	trimmed := strings.TrimPrefix(urlPath, basePath)
	trimmed = strings.Trim(trimmed, "/")
	return trimmed
}

// clientIP extracts the request's source IP for rate limiting, preferring
// X-Forwarded-For's first hop when present (the server typically sits
// behind a TLS-terminating load balancer) and falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func debounceReason(remainingSeconds int) string {
	return "try again in " + strconv.Itoa(remainingSeconds) + "s"
}
