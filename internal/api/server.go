// Package api provides the HTTP management API of the node.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/command"
	"github.com/resident-x/go-csms/internal/config"
	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/registry"
	"github.com/resident-x/go-csms/internal/scheduler"
	"github.com/resident-x/go-csms/internal/session"
	"github.com/resident-x/go-csms/internal/transport"
)

const maxBodySize = 1 << 20

// CommandExecutor runs a JSON command synchronously.
type CommandExecutor interface {
	Execute(ctx context.Context, action string, dest domain.StationID, payload json.RawMessage) (json.RawMessage, error)
}

// CommandQueue accepts commands for deferred execution.
type CommandQueue interface {
	Schedule(action string, dest domain.StationID, payload json.RawMessage, priority scheduler.CommandPriority) (string, error)
	Status(id string) (scheduler.CommandStatus, bool)
}

// SessionLister reports the connected stations.
type SessionLister interface {
	GetAllSessions() []session.SessionStats
	GetSessionCount() int
	IsConnected(id domain.StationID) bool
}

// Server represents the HTTP API server that provides monitoring and management functionality.
type Server struct {
	config    *config.Config
	server    *http.Server
	router    *mux.Router
	stations  *domain.StationRegistry
	executor  CommandExecutor
	queue     CommandQueue
	sessions  SessionLister
	metrics   http.Handler
	logger    zerolog.Logger
	startTime time.Time
}

// Option configures optional collaborators of the server.
type Option func(*Server)

// WithExecutor enables synchronous command execution.
func WithExecutor(e CommandExecutor) Option {
	return func(s *Server) { s.executor = e }
}

// WithCommandQueue enables asynchronous command execution.
func WithCommandQueue(q CommandQueue) Option {
	return func(s *Server) { s.queue = q }
}

// WithSessions exposes the session list.
func WithSessions(l SessionLister) Option {
	return func(s *Server) { s.sessions = l }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *config.Config, stations *domain.StationRegistry, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		router:    mux.NewRouter(),
		stations:  stations,
		logger:    log.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API endpoint handlers.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	api.HandleFunc("/stations", s.handleListStations).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}", s.handleGetStation).Methods(http.MethodGet)
	api.HandleFunc("/stations/{id}", s.handleDeleteStation).Methods(http.MethodDelete)
	api.HandleFunc("/stations/{id}/commands/{action}", s.handleCommand).Methods(http.MethodPost)

	api.HandleFunc("/commands/{id}", s.handleCommandStatus).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.API.Host, s.config.API.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("host", s.config.API.Host).
			Int("port", s.config.API.Port).
			Msg("Starting HTTP API server")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	return nil
}

// handleStatus returns server status information.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":       "ok",
		"version":      "dev",
		"nodeId":       s.stations.NodeID(),
		"uptime":       time.Since(s.startTime).String(),
		"stationCount": s.stations.Count(),
	}
	if s.sessions != nil {
		status["sessionCount"] = s.sessions.GetSessionCount()
	}

	s.writeJSON(w, status, http.StatusOK)
}

type evseView struct {
	ID          int                      `json:"id"`
	AdminStatus domain.AdminStatus       `json:"adminStatus"`
	Status      domain.OperationalStatus `json:"status"`
	Connectors  []domain.Connector       `json:"connectors"`
	State       domain.ChargingState     `json:"state"`
}

type stationView struct {
	ID              domain.StationID   `json:"id"`
	Vendor          string             `json:"vendor,omitempty"`
	Model           string             `json:"model,omitempty"`
	SerialNumber    string             `json:"serialNumber,omitempty"`
	FirmwareVersion string             `json:"firmwareVersion,omitempty"`
	AdminStatus     domain.AdminStatus `json:"adminStatus"`
	Description     string             `json:"description,omitempty"`
	NetworkingNode  string             `json:"networkingNode,omitempty"`
	Connected       bool               `json:"connected"`
	EVSEs           []evseView         `json:"evses"`
	Tariffs         []domain.Tariff    `json:"tariffs,omitempty"`
}

func (s *Server) viewStation(cs *domain.ChargingStation) stationView {
	v := stationView{
		ID:              cs.ID(),
		Vendor:          cs.Vendor(),
		Model:           cs.Model(),
		SerialNumber:    cs.SerialNumber(),
		FirmwareVersion: cs.FirmwareVersion(),
		AdminStatus:     cs.AdminStatus(),
		Description:     cs.Description(),
		NetworkingNode:  cs.NetworkingNode(),
		EVSEs:           []evseView{},
		Tariffs:         cs.Tariffs(),
	}
	if s.sessions != nil {
		v.Connected = s.sessions.IsConnected(cs.ID())
	}
	for _, e := range cs.EVSEs() {
		v.EVSEs = append(v.EVSEs, evseView{
			ID:          e.ID(),
			AdminStatus: e.AdminStatus(),
			Status:      e.Status(),
			Connectors:  e.Connectors(),
			State:       e.State(),
		})
	}
	return v
}

// handleListStations returns all registered stations.
func (s *Server) handleListStations(w http.ResponseWriter, _ *http.Request) {
	stations := s.stations.All()

	result := make([]stationView, 0, len(stations))
	for _, cs := range stations {
		result = append(result, s.viewStation(cs))
	}

	s.writeJSON(w, map[string]interface{}{
		"stations": result,
		"count":    len(result),
	}, http.StatusOK)
}

// handleGetStation returns a single station.
func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	id := domain.StationID(mux.Vars(r)["id"])

	cs, found := s.stations.TryGet(id)
	if !found {
		s.writeError(w, "Station not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, s.viewStation(cs), http.StatusOK)
}

// handleDeleteStation removes a station unless a veto blocks it.
func (s *Server) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	id := domain.StationID(mux.Vars(r)["id"])

	res := s.stations.DeleteByID(id, nil,
		registry.WithCorrelationID(r.Header.Get("X-Correlation-ID")),
		registry.WithActor("api"))

	switch res.Outcome {
	case registry.OutcomeSuccess:
		s.writeJSON(w, map[string]interface{}{
			"id":            id,
			"correlationId": res.CorrelationID,
		}, http.StatusOK)
	case registry.OutcomeArgumentError:
		s.writeError(w, res.Reason, http.StatusNotFound)
	case registry.OutcomeCanNotBeRemoved:
		s.writeError(w, res.Reason, http.StatusConflict)
	case registry.OutcomeLockTimeout:
		s.writeError(w, res.String(), http.StatusServiceUnavailable)
	default:
		s.writeError(w, res.String(), http.StatusInternalServerError)
	}
}

// handleCommand sends an outbound command to a station. With async=true the command is queued
// and its id returned.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dest := domain.StationID(vars["id"])
	action := vars["action"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		s.writeError(w, "Request body is not valid JSON", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		s.scheduleCommand(w, r, dest, action, body)
		return
	}

	if s.executor == nil {
		s.writeError(w, "Command execution is not available", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	result, err := s.executor.Execute(r.Context(), action, dest, body)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("station_id", string(dest)).
			Str("action", action).
			Msg("Command failed")
		s.writeCommandError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"action":   action,
		"station":  dest,
		"response": result,
		"duration": time.Since(start).String(),
	}, http.StatusOK)
}

func (s *Server) scheduleCommand(w http.ResponseWriter, r *http.Request, dest domain.StationID, action string, body []byte) {
	if s.queue == nil {
		s.writeError(w, "Command scheduler is not enabled", http.StatusServiceUnavailable)
		return
	}

	priority := scheduler.ParsePriority(r.URL.Query().Get("priority"))
	id, err := s.queue.Schedule(action, dest, body, priority)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/commands/"+id)
	s.writeJSON(w, map[string]interface{}{
		"id":       id,
		"action":   action,
		"station":  dest,
		"priority": priority.String(),
	}, http.StatusAccepted)
}

// handleCommandStatus returns the state of a queued command.
func (s *Server) handleCommandStatus(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		s.writeError(w, "Command scheduler is not enabled", http.StatusServiceUnavailable)
		return
	}

	st, ok := s.queue.Status(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, "Command not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, st, http.StatusOK)
}

// handleListSessions returns the connected stations.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := []session.SessionStats{}
	if s.sessions != nil {
		sessions = s.sessions.GetAllSessions()
	}

	s.writeJSON(w, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}, http.StatusOK)
}

// writeCommandError maps command failures onto HTTP status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	var callErr *transport.CallError
	switch {
	case errors.Is(err, command.ErrUnknownAction), errors.Is(err, scheduler.ErrUnknownCommand):
		s.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, command.ErrInvalidRequest):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, transport.ErrFrameTooLarge):
		s.writeError(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, scheduler.ErrQueueFull):
		s.writeError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, transport.ErrNotConnected), errors.Is(err, transport.ErrPeerDisconnected):
		s.writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, err.Error(), http.StatusGatewayTimeout)
	case errors.As(err, &callErr):
		s.writeJSON(w, map[string]interface{}{
			"error":       callErr.Error(),
			"code":        callErr.Code,
			"description": callErr.Description,
		}, http.StatusBadGateway)
	default:
		s.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}
