package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/command"
	"github.com/resident-x/go-csms/internal/config"
	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/session"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// ErrNotConnected is returned when the next hop of an envelope has no open connection.
var ErrNotConnected = errors.New("station not connected")

// Server is the station facing websocket endpoint. It implements command.Dispatcher.
type Server struct {
	config   *config.Config
	server   *http.Server
	router   *mux.Router
	upgrader websocket.Upgrader
	sessions *session.SessionManager
	pending  *PendingCalls
	handler  IncomingHandler
	codec    *BinaryCodec
	logger   zerolog.Logger

	connsMu sync.Mutex
	conns   map[*peerConn]struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIncomingHandler sets the handler for station initiated CALLs.
func WithIncomingHandler(h IncomingHandler) ServerOption {
	return func(s *Server) { s.handler = h }
}

// NewServer creates the websocket server. Connected stations are registered with sessions.
func NewServer(cfg *config.Config, sessions *session.SessionManager, opts ...ServerOption) *Server {
	logger := log.With().Str("component", "transport").Logger()

	s := &Server{
		config:   cfg,
		router:   mux.NewRouter(),
		sessions: sessions,
		pending:  NewPendingCalls(logger),
		codec:    NewBinaryCodec(),
		logger:   logger,
		conns:    make(map[*peerConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    cfg.Server.Subprotocols,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.handler == nil {
		s.handler = IncomingHandlerFunc(func(_ context.Context, _ domain.StationID, action string, _ json.RawMessage) (any, *CallError) {
			return nil, &CallError{Code: ErrorCodeNotImplemented, Description: "action " + action + " is not supported"}
		})
	}

	path := strings.TrimSuffix(cfg.Server.Path, "/") + "/{stationID}"
	s.router.HandleFunc(path, s.handleConnect).Methods(http.MethodGet)

	return s
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Pending returns the outstanding call tracker.
func (s *Server) Pending() *PendingCalls {
	return s.pending
}

// Start begins accepting station connections.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("host", s.config.Server.Host).
			Int("port", s.config.Server.Port).
			Str("path", s.config.Server.Path).
			Msg("Starting station websocket server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Websocket server error")
		}
	}()

	return nil
}

// Stop closes every station connection and shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping station websocket server")

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("websocket server shutdown error: %w", err)
		}
	}
	return nil
}

// Dispatch writes the envelope as a CALL to its next hop and waits for the matching reply.
func (s *Server) Dispatch(ctx context.Context, env command.Envelope) (command.Reply, error) {
	hop := env.Path.NextHop()
	sess, ok := s.sessions.GetSession(domain.StationID(hop))
	if !ok {
		return command.Reply{}, fmt.Errorf("%w: %s", ErrNotConnected, hop)
	}
	conn, ok := sess.Connection.(*peerConn)
	if !ok {
		return command.Reply{}, fmt.Errorf("%w: %s", ErrNotConnected, hop)
	}

	var routing *Routing
	if len(env.Path.Hops) > 0 || len(env.Signatures) > 0 {
		routing = &Routing{
			Destination: string(env.Destination),
			NetworkPath: env.Path.Hops,
			Signatures:  env.Signatures,
		}
	}

	data, err := EncodeCall(env.RequestID, env.Action, env.Payload, routing)
	if err != nil {
		return command.Reply{}, err
	}

	done, cancelCall, err := s.pending.Register(sess.ID, env.RequestID, env.Action)
	if err != nil {
		return command.Reply{}, err
	}
	defer cancelCall()

	if env.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, env.Timeout)
		defer cancel()
	}

	if err := conn.enqueue(ctx, MessageTypeCall, data); err != nil {
		return command.Reply{}, err
	}
	sess.UpdateLastCommand()

	select {
	case out := <-done:
		if out.err != nil {
			return command.Reply{}, out.err
		}
		return command.Reply{RequestID: env.RequestID, Payload: out.payload, ReceivedAt: out.receivedAt}, nil
	case <-ctx.Done():
		return command.Reply{}, ctx.Err()
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	stationID := domain.StationID(mux.Vars(r)["stationID"])
	if stationID == "" {
		http.Error(w, "missing station id", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("station_id", string(stationID)).Msg("Websocket upgrade failed")
		return
	}

	conn := &peerConn{
		stationID: stationID,
		ws:        ws,
		binary:    ws.Subprotocol() == BinarySubprotocol,
		send:      make(chan outbound, sendBufferSize),
		done:      make(chan struct{}),
	}
	conn.session = session.NewSession(stationID, r.RemoteAddr, ws.Subprotocol(), conn)
	s.sessions.Register(conn.session)

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()

	s.logger.Info().
		Str("station_id", string(stationID)).
		Str("remote_addr", r.RemoteAddr).
		Str("subprotocol", ws.Subprotocol()).
		Msg("Station connected")

	go s.writePump(conn)
	go s.readPump(conn)
}

func (s *Server) readPump(c *peerConn) {
	defer func() {
		failed := s.pending.FailPeer(c.session.ID)
		s.sessions.RemoveSession(c.session)
		_ = c.Close()

		s.connsMu.Lock()
		delete(s.conns, c)
		s.connsMu.Unlock()

		s.logger.Info().
			Str("station_id", string(c.stationID)).
			Int("failed_calls", failed).
			Msg("Station disconnected")
	}()

	if s.config.Server.MaxMessageSize > 0 {
		c.ws.SetReadLimit(s.config.Server.MaxMessageSize)
	}
	pongWait := s.config.Server.PongTimeout
	if pongWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.ws.SetPongHandler(func(string) error {
			c.session.UpdateActivity()
			return c.ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("station_id", string(c.stationID)).Msg("Websocket read error")
			}
			return
		}
		if pongWait > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		}

		c.session.AddBytesReceived(int64(len(data)))

		if msgType == websocket.BinaryMessage {
			_, body, err := s.codec.Decode(data)
			if err != nil {
				c.session.IncrementErrorCount()
				s.logger.Warn().Err(err).Str("station_id", string(c.stationID)).Msg("Dropping invalid binary frame")
				continue
			}
			data = body
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			c.session.IncrementErrorCount()
			s.logger.Warn().Err(err).Str("station_id", string(c.stationID)).Msg("Dropping malformed frame")
			continue
		}

		switch frame.Type {
		case MessageTypeCall:
			go s.handleCall(c, frame)
		case MessageTypeCallResult:
			s.pending.Resolve(c.session.ID, frame.ID, frame.Payload)
		case MessageTypeCallError:
			s.pending.Reject(c.session.ID, frame.ID, &CallError{
				Code:        frame.ErrorCode,
				Description: frame.ErrorDescription,
				Details:     frame.ErrorDetails,
			})
		}
	}
}

func (s *Server) handleCall(c *peerConn, frame Frame) {
	ctx := withCorrelationID(context.Background(), uuid.NewString())

	var (
		data    []byte
		err     error
		msgType MessageType
	)
	result, callErr := s.handler.HandleCall(ctx, c.stationID, frame.Action, frame.Payload)
	if callErr != nil {
		msgType = MessageTypeCallError
		data, err = EncodeCallError(frame.ID, callErr.Code, callErr.Description, callErr.Details)
	} else {
		msgType = MessageTypeCallResult
		data, err = EncodeCallResult(frame.ID, result)
		if frame.Action == ActionBootNotification {
			if boot, ok := result.(BootNotificationResponse); ok && boot.Status == "Accepted" {
				c.session.SetState(session.SessionStateAccepted)
			}
		}
	}
	if err != nil {
		s.logger.Error().Err(err).Str("station_id", string(c.stationID)).Str("action", frame.Action).Msg("Failed to encode reply")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	if err := c.enqueue(ctx, msgType, data); err != nil {
		s.logger.Debug().Err(err).Str("station_id", string(c.stationID)).Msg("Reply not delivered")
	}
}

func (s *Server) writePump(c *peerConn) {
	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.config.Server.PingInterval > 0 {
		ticker = time.NewTicker(s.config.Server.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg := <-c.send:
			wsType := websocket.TextMessage
			data := msg.data
			if c.binary {
				encoded, err := s.codec.Encode(msg.msgType, c.nextSequence(), data)
				if err != nil {
					s.logger.Error().Err(err).Str("station_id", string(c.stationID)).Msg("Failed to encode binary frame")
					continue
				}
				wsType = websocket.BinaryMessage
				data = encoded
			}

			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(wsType, data); err != nil {
				s.logger.Debug().Err(err).Str("station_id", string(c.stationID)).Msg("Websocket write error")
				_ = c.Close()
				return
			}
			c.session.AddBytesSent(int64(len(data)))

		case <-tick:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

type outbound struct {
	msgType MessageType
	data    []byte
}

// peerConn is a live websocket connection to a station or networking node.
type peerConn struct {
	stationID domain.StationID
	ws        *websocket.Conn
	binary    bool
	session   *session.Session
	sequence  atomic.Uint32

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue hands a frame to the write pump. Frames a binary peer cannot carry are refused
// here so the caller fails immediately instead of waiting for a reply that never comes.
func (c *peerConn) enqueue(ctx context.Context, msgType MessageType, data []byte) error {
	if c.binary && len(data) > maxBinaryBody {
		return fmt.Errorf("%w: %d bytes for %s", ErrFrameTooLarge, len(data), c.stationID)
	}
	select {
	case c.send <- outbound{msgType: msgType, data: data}:
		return nil
	case <-c.done:
		return ErrPeerDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *peerConn) nextSequence() uint16 {
	return uint16(c.sequence.Add(1))
}

// Close terminates the connection. It is safe to call more than once.
func (c *peerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}
