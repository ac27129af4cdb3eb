// Command csms is the Central System Management Server: it terminates
// OCPP-J WebSocket connections from charge points, dispatches inbound
// messages into the charging-session state machine, and serves
// operator-initiated commands back out through the Outbound Command
// Engine. Wiring here follows cmd/gateway/main.go's sequence (config,
// logger, storage, business services, transport, background sweepers,
// metrics/health servers, graceful shutdown) generalized from a single
// fixed protocol version to the negotiated-version adapter factory.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ocpp-csms/central-system/internal/charging"
	"github.com/ocpp-csms/central-system/internal/clock"
	"github.com/ocpp-csms/central-system/internal/commandengine"
	"github.com/ocpp-csms/central-system/internal/config"
	"github.com/ocpp-csms/central-system/internal/connection"
	"github.com/ocpp-csms/central-system/internal/eventbus"
	"github.com/ocpp-csms/central-system/internal/liveness"
	"github.com/ocpp-csms/central-system/internal/logger"
	"github.com/ocpp-csms/central-system/internal/ocpp16"
	"github.com/ocpp-csms/central-system/internal/ocpp201"
	"github.com/ocpp-csms/central-system/internal/ocppadapter"
	"github.com/ocpp-csms/central-system/internal/repository"
	"github.com/ocpp-csms/central-system/internal/repository/memrepo"
	"github.com/ocpp-csms/central-system/internal/repository/redisrepo"
	"github.com/ocpp-csms/central-system/internal/sessionregistry"
	"github.com/ocpp-csms/central-system/internal/wstransport"
)

// senderProxy breaks the construction cycle between the Session Registry
// (which needs a CommandCanceller, satisfied by the Outbound Command
// Engine) and the Engine (which needs a Sender, satisfied by the
// Registry): the Engine is built first against the proxy, the Registry
// is built against the Engine, then the proxy is pointed at the
// Registry. Neither side calls through it until both are live.
type senderProxy struct {
	registry *sessionregistry.Registry
}

func (p *senderProxy) SendTo(stationID, text string) error {
	return p.registry.SendTo(stationID, text)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Async:  cfg.Log.Async,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Logger initialized")
	zl := log.GetLogger()

	repo, closeRepo, err := buildRepository(cfg, zl)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	log.Info("Repository initialized")

	publisher, err := buildPublisher(cfg, zl)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	log.Info("Event publisher initialized")

	clk := clock.New()

	proxy := &senderProxy{}
	engine := commandengine.New(proxy, cfg.PodID, clk)
	if cfg.CommandEngine.CommandTimeout > 0 {
		engine.Timeout = cfg.CommandEngine.CommandTimeout
	}
	registry := sessionregistry.New(cfg.SessionRegistry.ReconnectDebounce, engine, publisher, clk)
	proxy.registry = registry

	engine.RegisterSerializer(connection.Version16, ocpp16.Serializer{})
	engine.RegisterSerializer(connection.Version201, ocpp201.Serializer{})

	stopCommander := commandengine.NewStopCommander(engine, registry)
	chargingSvc := charging.New(repo, publisher, stopCommander, clk, zl)
	log.Info("Charging service initialized")

	factory := ocppadapter.NewFactory()
	factory.Register(connection.Version16, func(stationID string) ocppadapter.InboundAdapter {
		return ocpp16.New(stationID, chargingSvc, engine, publisher, clk, zl)
	})
	factory.Register(connection.Version201, func(stationID string) ocppadapter.InboundAdapter {
		return ocpp201.New(stationID, chargingSvc, engine, publisher, clk, zl)
	})
	log.Info("Protocol adapters registered for 1.6 and 2.0.1")

	heartbeatMonitor := liveness.NewHeartbeatMonitor(repo.Stations(), registry, publisher, clk, zl).
		WithPeriod(cfg.Liveness.HeartbeatSweepInterval).
		WithUnavailableThreshold(cfg.Liveness.UnavailableThreshold)
	reservationSweeper := liveness.NewReservationSweeper(repo.Reservations(), zl).
		WithPeriod(cfg.Liveness.ReservationSweepInterval)

	sweepCtx, cancelSweeps := context.WithCancel(context.Background())
	go heartbeatMonitor.Run(sweepCtx)
	go reservationSweeper.Run(sweepCtx)
	log.Info("Liveness sweepers started")

	wsConfig := &wstransport.Config{
		Path: cfg.Server.WebSocketPath,

		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		PingInterval:      cfg.WebSocket.PingInterval,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		EnableCompression: cfg.WebSocket.EnableCompression,

		MaxConnections:  cfg.Server.MaxConnections,
		IdleTimeout:     cfg.WebSocket.IdleTimeout,
		CleanupInterval: cfg.WebSocket.CleanupInterval,

		CheckOrigin:    cfg.WebSocket.CheckOrigin,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,

		HandshakeRateLimitPerIP: cfg.WebSocket.HandshakeRateLimitPerIP,
		SendBufferSize:          100,
	}
	wsHandler := wstransport.New(wsConfig, factory, registry, repo.Stations(), publisher, clk, zl)
	wsHandler.Start()
	log.Info("WebSocket transport initialized")

	go startMetricsServer(cfg.GetMetricsAddr(), log)
	log.Infof("Metrics server starting on %s", cfg.GetMetricsAddr())

	mainMux := http.NewServeMux()
	wsPath := wsConfig.Path + "/"
	log.Infof("Registering OCPP handler at path: %s", wsPath)
	mainMux.Handle(wsPath, wsHandler)
	mainMux.HandleFunc("/health", healthHandler(registry))

	go func() {
		log.Infof("Main server starting on %s", cfg.GetServerAddr())
		listener, err := net.Listen("tcp", cfg.GetServerAddr())
		if err != nil {
			log.Fatalf("Failed to create listener: %v", err)
		}

		server := &http.Server{
			Handler:        mainMux,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20,
		}

		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Main server failed: %v", err)
		}
	}()

	log.Info("Central System Management Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsHandler.Shutdown(ctx); err != nil {
		log.Errorf("Error shutting down WebSocket transport: %v", err)
	}
	log.Info("WebSocket transport shut down")

	cancelSweeps()
	log.Info("Liveness sweepers stopped")

	if err := publisher.Close(); err != nil {
		log.Errorf("Error closing event publisher: %v", err)
	}
	log.Info("Event publisher closed")

	if err := closeRepo(); err != nil {
		log.Errorf("Error closing repository: %v", err)
	}
	log.Info("Repository closed")

	log.Info("Server gracefully stopped.")
}

// buildRepository picks the Redis-backed repository in production and the
// in-memory one everywhere else, behind the common repository.Repository
// port so nothing downstream branches on which backend is live.
func buildRepository(cfg *config.Config, log zerolog.Logger) (repository.Repository, func() error, error) {
	if cfg.IsProduction() {
		store, err := redisrepo.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	log.Info().Msg("using in-memory repository (non-production profile)")
	store := memrepo.New()
	return store, func() error { return nil }, nil
}

// buildPublisher picks the Kafka-backed publisher in production and a
// no-op publisher everywhere else.
func buildPublisher(cfg *config.Config, log zerolog.Logger) (eventbus.Publisher, error) {
	if cfg.IsProduction() {
		return eventbus.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
	}
	log.Info().Msg("using no-op event publisher (non-production profile)")
	return eventbus.NoopPublisher{}, nil
}

func healthHandler(registry *sessionregistry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","connected_stations":%d}`, len(registry.ConnectedIDs()))
	}
}

func startMetricsServer(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("Metrics server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Metrics server failed: %v", err)
	}
}
