// Package service wires the components of the management node together.
package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/api"
	"github.com/resident-x/go-csms/internal/command"
	"github.com/resident-x/go-csms/internal/config"
	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/metrics"
	"github.com/resident-x/go-csms/internal/pubsub"
	"github.com/resident-x/go-csms/internal/registry"
	"github.com/resident-x/go-csms/internal/scheduler"
	"github.com/resident-x/go-csms/internal/session"
	"github.com/resident-x/go-csms/internal/signing"
	"github.com/resident-x/go-csms/internal/transport"
)

const forwarderQueueSize = 1024

// ManagementServer owns the station registry and every component operating on it.
type ManagementServer struct {
	config      *config.Config
	stations    *domain.StationRegistry
	sessions    *session.SessionManager
	transport   *transport.Server
	node        *command.Node
	executor    *scheduler.CatalogExecutor
	scheduler   *scheduler.CommandScheduler
	publisher   pubsub.Publisher
	forwarder   *pubsub.EventForwarder
	unsubscribe func()
	apiServer   *api.Server
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	startTime   time.Time
}

// NewManagementServer builds the node from cfg. publisher receives registry events; pass a
// pubsub.NoopPublisher when MQTT is disabled.
func NewManagementServer(cfg *config.Config, publisher pubsub.Publisher) (*ManagementServer, error) {
	logger := log.With().Str("component", "server").Logger()
	m := metrics.New()

	stations := domain.NewStationRegistry(cfg.Node.ID,
		registry.WithLockTimeout(cfg.Node.LockTimeout),
		registry.WithRecorder(m))
	if cfg.Node.VetoActiveTransactions {
		stations.AddDeleteVeto(domain.ActiveTransactionVeto)
	}

	sessions := session.NewSessionManager(cfg.Session.Timeout,
		session.WithCleanupInterval(cfg.Session.CleanupInterval),
		session.WithRelayLookup(relayLookup(stations)))

	srv := &ManagementServer{
		config:    cfg,
		stations:  stations,
		sessions:  sessions,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}

	srv.transport = transport.NewServer(cfg, sessions,
		transport.WithIncomingHandler(transport.NewStationHandler(stations, cfg.Server.HeartbeatEvery)))

	nodeOpts := []command.NodeOption{
		command.WithDefaultTimeout(cfg.Node.DefaultRequestTimeout),
		command.WithPathResolver(sessions),
		command.WithRecorder(m),
	}
	if cfg.Signing.SeedHex != "" {
		signer, err := newSigner(cfg.Signing.KeyID, cfg.Signing.SeedHex)
		if err != nil {
			sessions.Close()
			return nil, err
		}
		nodeOpts = append(nodeOpts, command.WithSigner(signer))
	}
	srv.node = command.NewNode(cfg.Node.ID, srv.transport, nodeOpts...)
	srv.executor = scheduler.NewCatalogExecutor(command.NewCatalog(), srv.node)

	if cfg.Scheduler.Enabled {
		srv.scheduler = scheduler.NewCommandScheduler(srv.executor, scheduler.ConfigFrom(cfg), log.Logger)
	}

	srv.forwarder = pubsub.NewEventForwarder(publisher, cfg.MQTT.Topic, forwarderQueueSize)
	srv.unsubscribe = stations.Subscribe(srv.forwarder.Observe)

	srv.registerGauges()

	if cfg.API.Enabled {
		opts := []api.Option{
			api.WithExecutor(srv.executor),
			api.WithSessions(sessions),
			api.WithMetricsHandler(m.Handler()),
		}
		if srv.scheduler != nil {
			opts = append(opts, api.WithCommandQueue(srv.scheduler))
		}
		srv.apiServer = api.NewServer(cfg, stations, opts...)
	}

	if cfg.StationsFile != "" {
		if err := srv.loadStations(cfg.StationsFile); err != nil {
			sessions.Close()
			return nil, err
		}
	}

	return srv, nil
}

func newSigner(keyID, seedHex string) (*signing.Ed25519Signer, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signing seed: %w", err)
	}
	signer := signing.NewEd25519Signer()
	if err := signer.Register(keyID, seed); err != nil {
		return nil, fmt.Errorf("invalid signing seed: %w", err)
	}
	return signer, nil
}

// relayLookup resolves the networking node a station is attached to from its registry entry.
func relayLookup(stations *domain.StationRegistry) session.RelayLookup {
	return func(id domain.StationID) string {
		cs, ok := stations.TryGet(id)
		if !ok {
			return ""
		}
		return cs.NetworkingNode()
	}
}

func (s *ManagementServer) registerGauges() {
	s.metrics.Gauge("session", "connected_stations", "Number of stations with a live connection.", func() float64 {
		return float64(s.sessions.GetSessionCount())
	})
	s.metrics.Gauge("registry", "stations", "Number of registered charging stations.", func() float64 {
		return float64(s.stations.Count())
	})
	s.metrics.Gauge("transport", "pending_calls", "Outbound calls waiting for a reply.", func() float64 {
		return float64(s.transport.Pending().Count())
	})
	if s.scheduler != nil {
		s.metrics.Gauge("scheduler", "queue_length", "Commands waiting in the scheduler queue.", func() float64 {
			return float64(s.scheduler.QueueLength())
		})
	}
}

// loadStations registers the stations of a seed file. Existing entries are updated.
func (s *ManagementServer) loadStations(path string) error {
	seeded, err := domain.LoadStations(path)
	if err != nil {
		return err
	}

	for _, cs := range seeded {
		res := s.stations.AddOrUpdate(cs, nil, nil, registry.WithActor("seed"))
		if !res.IsSuccess() {
			return fmt.Errorf("failed to register station %s: %w", cs.ID(), res.AsError())
		}
	}

	s.logger.Info().
		Str("file", path).
		Int("stations", len(seeded)).
		Msg("Loaded station seed")
	return nil
}

// Start initializes and starts all server components.
func (s *ManagementServer) Start(ctx context.Context) error {
	s.startTime = time.Now()

	s.forwarder.Start(ctx)

	if err := s.transport.Start(ctx); err != nil {
		return fmt.Errorf("failed to start station server: %w", err)
	}

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if s.apiServer != nil {
		if err := s.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	s.logger.Info().
		Str("node_id", s.config.Node.ID).
		Int("stations", s.stations.Count()).
		Msg("Management node started")
	return nil
}

// Stop gracefully shuts down all server components.
func (s *ManagementServer) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping server")

	if s.apiServer != nil {
		if err := s.apiServer.Stop(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to stop API server")
		}
	}

	if s.scheduler != nil && s.scheduler.IsRunning() {
		if err := s.scheduler.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if err := s.transport.Stop(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to stop station server")
	}

	s.sessions.Close()

	s.unsubscribe()
	s.forwarder.Stop()

	if err := s.publisher.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to close message publisher")
	}

	return nil
}

// Stations returns the station registry.
func (s *ManagementServer) Stations() *domain.StationRegistry {
	return s.stations
}

// Node returns the command node used for outbound requests.
func (s *ManagementServer) Node() *command.Node {
	return s.node
}

// StationHandler returns the websocket endpoint stations connect to.
func (s *ManagementServer) StationHandler() http.Handler {
	return s.transport.Handler()
}

// APIHandler returns the HTTP API router, or nil when the API is disabled.
func (s *ManagementServer) APIHandler() http.Handler {
	if s.apiServer == nil {
		return nil
	}
	return s.apiServer.Handler()
}

// GetMetrics returns a snapshot of node state for diagnostics.
func (s *ManagementServer) GetMetrics() map[string]interface{} {
	result := map[string]interface{}{
		"node_id":       s.config.Node.ID,
		"uptime":        time.Since(s.startTime).String(),
		"stations":      s.stations.Count(),
		"sessions":      s.sessions.GetSessionCount(),
		"pending_calls": s.transport.Pending().Count(),
	}
	if s.scheduler != nil {
		result["scheduler"] = s.scheduler.GetMetrics()
	}
	return result
}
