// Package session tracks the live connections of charging stations and networking nodes and
// resolves the network path to a station.
package session

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/command"
	"github.com/resident-x/go-csms/internal/domain"
)

// SessionState represents the current state of a station session.
type SessionState int

const (
	SessionStateConnected SessionState = iota
	SessionStateAccepted
	SessionStateDisconnected
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionStateConnected:
		return "connected"
	case SessionStateAccepted:
		return "accepted"
	case SessionStateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session represents the connection of one peer, either a station or a relay in front of
// other stations.
type Session struct {
	ID             string
	StationID      domain.StationID
	RemoteAddr     string
	Subprotocol    string
	State          SessionState
	ConnectedAt    time.Time
	LastActivity   time.Time
	LastCommand    time.Time
	BytesReceived  int64
	BytesSent      int64
	FramesReceived int64
	FramesSent     int64
	ErrorCount     int64
	Connection     io.Closer
	mutex          sync.RWMutex
}

// NewSession creates a session for a freshly accepted connection.
func NewSession(stationID domain.StationID, remoteAddr, subprotocol string, conn io.Closer) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		StationID:    stationID,
		RemoteAddr:   remoteAddr,
		Subprotocol:  subprotocol,
		State:        SessionStateConnected,
		ConnectedAt:  now,
		LastActivity: now,
		Connection:   conn,
	}
}

// UpdateActivity updates the last activity time for the session.
func (s *Session) UpdateActivity() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastActivity = time.Now()
}

// UpdateLastCommand updates the last outbound command time.
func (s *Session) UpdateLastCommand() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.LastCommand = time.Now()
}

// SetState safely updates the session state.
func (s *Session) SetState(state SessionState) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.State = state
}

// GetState safely retrieves the session state.
func (s *Session) GetState() SessionState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.State
}

// AddBytesReceived counts one inbound frame.
func (s *Session) AddBytesReceived(bytes int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.BytesReceived += bytes
	s.FramesReceived++
	s.LastActivity = time.Now()
}

// AddBytesSent counts one outbound frame.
func (s *Session) AddBytesSent(bytes int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.BytesSent += bytes
	s.FramesSent++
}

// IncrementErrorCount safely increments the error counter.
func (s *Session) IncrementErrorCount() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.ErrorCount++
}

// GetStats returns a copy of the session statistics.
func (s *Session) GetStats() SessionStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return SessionStats{
		ID:             s.ID,
		StationID:      s.StationID,
		RemoteAddr:     s.RemoteAddr,
		Subprotocol:    s.Subprotocol,
		State:          s.State,
		ConnectedAt:    s.ConnectedAt,
		LastActivity:   s.LastActivity,
		LastCommand:    s.LastCommand,
		BytesReceived:  s.BytesReceived,
		BytesSent:      s.BytesSent,
		FramesReceived: s.FramesReceived,
		FramesSent:     s.FramesSent,
		ErrorCount:     s.ErrorCount,
	}
}

// IsExpired checks if the session has been inactive for longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return time.Since(s.LastActivity) > timeout
}

// Close marks the session disconnected and closes the underlying connection.
func (s *Session) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.State = SessionStateDisconnected
	if s.Connection != nil {
		return s.Connection.Close()
	}
	return nil
}

// SessionStats represents session statistics for external consumption.
type SessionStats struct {
	ID             string           `json:"id"`
	StationID      domain.StationID `json:"station_id"`
	RemoteAddr     string           `json:"remote_addr"`
	Subprotocol    string           `json:"subprotocol"`
	State          SessionState     `json:"state"`
	ConnectedAt    time.Time        `json:"connected_at"`
	LastActivity   time.Time        `json:"last_activity"`
	LastCommand    time.Time        `json:"last_command"`
	BytesReceived  int64            `json:"bytes_received"`
	BytesSent      int64            `json:"bytes_sent"`
	FramesReceived int64            `json:"frames_received"`
	FramesSent     int64            `json:"frames_sent"`
	ErrorCount     int64            `json:"error_count"`
	Duration       time.Duration    `json:"duration"`
}

// RelayLookup returns the networking node a station is reached through, or "".
type RelayLookup func(id domain.StationID) string

// maxHops bounds relay chains.
const maxHops = 8

// SessionManager manages the station sessions of the node.
type SessionManager struct {
	sessions        map[domain.StationID]*Session
	mutex           sync.RWMutex
	relays          RelayLookup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	sessionTimeout  time.Duration
	logger          zerolog.Logger
}

// Option configures a SessionManager.
type Option func(*SessionManager)

// WithRelayLookup sets the source of station to networking node relations.
func WithRelayLookup(fn RelayLookup) Option {
	return func(sm *SessionManager) { sm.relays = fn }
}

// WithCleanupInterval overrides how often expired sessions are collected.
func WithCleanupInterval(d time.Duration) Option {
	return func(sm *SessionManager) { sm.cleanupInterval = d }
}

// NewSessionManager creates a session manager and starts its cleanup routine.
func NewSessionManager(sessionTimeout time.Duration, opts ...Option) *SessionManager {
	sm := &SessionManager{
		sessions:        make(map[domain.StationID]*Session),
		cleanupInterval: time.Minute,
		sessionTimeout:  sessionTimeout,
		stopCleanup:     make(chan struct{}),
		logger:          log.With().Str("component", "session").Logger(),
	}
	for _, opt := range opts {
		opt(sm)
	}

	sm.startCleanupRoutine()

	return sm
}

// Register stores a session, replacing and closing an older session of the same station.
func (sm *SessionManager) Register(session *Session) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if existing, ok := sm.sessions[session.StationID]; ok && existing != session {
		sm.logger.Info().
			Str("station_id", string(session.StationID)).
			Str("old_session", existing.ID).
			Msg("Replacing existing session")
		_ = existing.Close()
	}
	sm.sessions[session.StationID] = session
}

// GetSession retrieves the session of a station.
func (sm *SessionManager) GetSession(id domain.StationID) (*Session, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	session, exists := sm.sessions[id]
	return session, exists
}

// IsConnected reports whether a station has a live session.
func (sm *SessionManager) IsConnected(id domain.StationID) bool {
	_, ok := sm.GetSession(id)
	return ok
}

// GetAllSessions returns statistics for all sessions ordered by station id.
func (sm *SessionManager) GetAllSessions() []SessionStats {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	stats := make([]SessionStats, 0, len(sm.sessions))
	now := time.Now()

	for _, session := range sm.sessions {
		sessionStats := session.GetStats()
		sessionStats.Duration = now.Sub(sessionStats.ConnectedAt)
		stats = append(stats, sessionStats)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].StationID < stats[j].StationID })

	return stats
}

// RemoveSession removes the given session if it is still the current one for its station.
func (sm *SessionManager) RemoveSession(session *Session) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if current, ok := sm.sessions[session.StationID]; ok && current == session {
		delete(sm.sessions, session.StationID)
	}
	_ = session.Close()
}

// CleanupExpiredSessions removes sessions without activity for longer than the session timeout.
func (sm *SessionManager) CleanupExpiredSessions() int {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	var expired []domain.StationID
	for id, session := range sm.sessions {
		if session.IsExpired(sm.sessionTimeout) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		_ = sm.sessions[id].Close()
		delete(sm.sessions, id)
	}

	return len(expired)
}

// GetSessionCount returns the number of live sessions.
func (sm *SessionManager) GetSessionCount() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.sessions)
}

// Route returns the network path from origin to dest. A station with its own session is
// reached directly; otherwise the relay chain reported by the relay lookup is followed until a
// connected peer is found. The resulting hops are ordered nearest first.
func (sm *SessionManager) Route(origin string, dest domain.StationID) command.NetworkPath {
	path := command.DirectPath(origin, dest)
	if sm.relays == nil || sm.IsConnected(dest) {
		return path
	}

	var chain []string
	seen := map[domain.StationID]bool{dest: true}
	current := dest
	for i := 0; i < maxHops; i++ {
		relay := domain.StationID(sm.relays(current))
		if relay == "" || seen[relay] {
			break
		}
		seen[relay] = true
		chain = append(chain, string(relay))
		if sm.IsConnected(relay) {
			break
		}
		current = relay
	}

	// chain runs from the station outwards, hops run from the node inwards
	for i := len(chain) - 1; i >= 0; i-- {
		path.Hops = append(path.Hops, chain[i])
	}
	return path
}

// Close stops the cleanup routine and closes all sessions.
func (sm *SessionManager) Close() {
	sm.stopOnce.Do(func() { close(sm.stopCleanup) })

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for _, session := range sm.sessions {
		_ = session.Close()
	}
	sm.sessions = make(map[domain.StationID]*Session)
}

func (sm *SessionManager) startCleanupRoutine() {
	ticker := time.NewTicker(sm.cleanupInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if cleaned := sm.CleanupExpiredSessions(); cleaned > 0 {
					sm.logger.Info().Int("count", cleaned).Msg("Cleaned up expired sessions")
				}
			case <-sm.stopCleanup:
				return
			}
		}
	}()
}
