package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-csms/internal/command"
	"github.com/resident-x/go-csms/internal/config"
	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/session"
)

type testEnv struct {
	server   *Server
	sessions *session.SessionManager
	url      string
}

func newTestEnv(t *testing.T, sessionOpts []session.Option, opts ...ServerOption) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	sessions := session.NewSessionManager(time.Minute, sessionOpts...)
	srv := NewServer(cfg, sessions, opts...)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		sessions.Close()
		ts.Close()
	})

	return &testEnv{
		server:   srv,
		sessions: sessions,
		url:      "ws" + strings.TrimPrefix(ts.URL, "http") + "/ocpp/",
	}
}

func (e *testEnv) dial(t *testing.T, id, subprotocol string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{Subprotocols: []string{subprotocol}}
	conn, _, err := dialer.Dial(e.url+id, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return e.sessions.IsConnected(domain.StationID(id))
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func nextFrame(conn *websocket.Conn) (Frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return Frame{}, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return DecodeFrame(data)
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	frame, err := nextFrame(conn)
	require.NoError(t, err)
	return frame
}

// answer reads one CALL and replies with the given payload.
func answer(t *testing.T, conn *websocket.Conn, payload string) <-chan Frame {
	t.Helper()
	seen := make(chan Frame, 1)
	go func() {
		frame, err := nextFrame(conn)
		if err != nil {
			close(seen)
			return
		}
		seen <- frame
		reply, _ := EncodeCallResult(frame.ID, json.RawMessage(payload))
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()
	return seen
}

func TestDispatchRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "CS1", "ocpp2.0.1")

	node := command.NewNode("csms-01", env.server)
	seen := answer(t, conn, `{"status":"Accepted"}`)

	resp, err := node.Reset(context.Background(), "CS1", command.ResetRequest{Type: "Immediate"})
	require.NoError(t, err)
	assert.True(t, resp.Payload.Accepted())
	assert.False(t, resp.ReceivedAt.IsZero())

	frame := <-seen
	assert.Equal(t, MessageTypeCall, frame.Type)
	assert.Equal(t, "Reset", frame.Action)
	assert.Equal(t, resp.Envelope.RequestID, frame.ID)
	assert.JSONEq(t, `{"type":"Immediate"}`, string(frame.Payload))
	assert.Nil(t, frame.Routing)

	sess, ok := env.sessions.GetSession("CS1")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		stats := sess.GetStats()
		return stats.FramesSent == 1 && stats.FramesReceived == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, env.server.Pending().Count())
}

func TestDispatchCallError(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "CS1", "ocpp2.0.1")

	go func() {
		frame, err := nextFrame(conn)
		if err != nil {
			return
		}
		reply, _ := EncodeCallError(frame.ID, ErrorCodeNotSupported, "no reset here", nil)
		_ = conn.WriteMessage(websocket.TextMessage, reply)
	}()

	node := command.NewNode("csms-01", env.server)
	_, err := node.Reset(context.Background(), "CS1", command.ResetRequest{Type: "OnIdle"})
	require.Error(t, err)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, ErrorCodeNotSupported, callErr.Code)
	assert.Equal(t, "no reset here", callErr.Description)
}

func TestDispatchTimeout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dial(t, "CS1", "ocpp2.0.1")

	node := command.NewNode("csms-01", env.server)
	start := time.Now()
	_, err := node.ClearCache(context.Background(), "CS1", command.ClearCacheRequest{}, command.WithTimeout(100*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, env.server.Pending().Count())
}

func TestDispatchContextCanceled(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dial(t, "CS1", "ocpp2.0.1")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	node := command.NewNode("csms-01", env.server)
	_, err := node.ClearCache(ctx, "CS1", command.ClearCacheRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDispatchNotConnected(t *testing.T) {
	env := newTestEnv(t, nil)

	node := command.NewNode("csms-01", env.server)
	_, err := node.ClearCache(context.Background(), "CS404", command.ClearCacheRequest{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDispatchPeerDisconnects(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "CS1", "ocpp2.0.1")

	go func() {
		_, _ = nextFrame(conn)
		_ = conn.Close()
	}()

	node := command.NewNode("csms-01", env.server)
	_, err := node.ClearCache(context.Background(), "CS1", command.ClearCacheRequest{})
	assert.ErrorIs(t, err, ErrPeerDisconnected)

	assert.Eventually(t, func() bool {
		return !env.sessions.IsConnected("CS1")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatchThroughRelay(t *testing.T) {
	relays := map[domain.StationID]string{"CS9": "LC1"}
	env := newTestEnv(t, []session.Option{session.WithRelayLookup(func(id domain.StationID) string {
		return relays[id]
	})})
	relay := env.dial(t, "LC1", "ocpp2.0.1")

	node := command.NewNode("csms-01", env.server, command.WithPathResolver(env.sessions))
	seen := answer(t, relay, `{"status":"Accepted"}`)

	resp, err := node.ClearCache(context.Background(), "CS9", command.ClearCacheRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Payload.Accepted())
	assert.Equal(t, []string{"LC1"}, resp.Envelope.Path.Hops)

	frame := <-seen
	require.NotNil(t, frame.Routing)
	assert.Equal(t, "CS9", frame.Routing.Destination)
	assert.Equal(t, []string{"LC1"}, frame.Routing.NetworkPath)
}

func TestIncomingCallsReachHandler(t *testing.T) {
	stations := domain.NewStationRegistry("csms-01")
	env := newTestEnv(t, nil, WithIncomingHandler(NewStationHandler(stations, 300)))
	conn := env.dial(t, "CS1", "ocpp2.0.1")

	boot := `[2,"b1","BootNotification",{"reason":"PowerUp","chargingStation":{"model":"M1","vendorName":"ACME"}}]`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(boot)))

	frame := readFrame(t, conn)
	assert.Equal(t, MessageTypeCallResult, frame.Type)
	assert.Equal(t, "b1", frame.ID)

	var resp BootNotificationResponse
	require.NoError(t, json.Unmarshal(frame.Payload, &resp))
	assert.Equal(t, "Accepted", resp.Status)
	assert.Equal(t, 300, resp.Interval)

	assert.True(t, stations.Exists("CS1"))
	assert.Equal(t, "ACME", stations.Get("CS1").Vendor())

	sess, ok := env.sessions.GetSession("CS1")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return sess.GetState() == session.SessionStateAccepted
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[2,"x1","DataTransfer",{}]`)))
	frame = readFrame(t, conn)
	assert.Equal(t, MessageTypeCallError, frame.Type)
	assert.Equal(t, ErrorCodeNotImplemented, frame.ErrorCode)
}

func TestMalformedFramesCountErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "CS1", "ocpp2.0.1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not a frame`)))

	sess, _ := env.sessions.GetSession("CS1")
	assert.Eventually(t, func() bool {
		return sess.GetStats().ErrorCount == 1
	}, time.Second, 10*time.Millisecond)
	assert.True(t, env.sessions.IsConnected("CS1"))
}

func TestBinarySubprotocol(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "CS1", BinarySubprotocol)
	assert.Equal(t, BinarySubprotocol, conn.Subprotocol())

	codec := NewBinaryCodec()
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, data, err := conn.ReadMessage()
		if err != nil || msgType != websocket.BinaryMessage {
			return
		}
		info, body, err := codec.Decode(data)
		if err != nil || info.Type != MessageTypeCall {
			return
		}
		frame, err := DecodeFrame(body)
		if err != nil {
			return
		}
		reply, _ := EncodeCallResult(frame.ID, json.RawMessage(`{"status":"Rejected"}`))
		encoded, _ := codec.Encode(MessageTypeCallResult, info.Sequence, reply)
		_ = conn.WriteMessage(websocket.BinaryMessage, encoded)
	}()

	node := command.NewNode("csms-01", env.server)
	resp, err := node.ClearCache(context.Background(), "CS1", command.ClearCacheRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Payload.Accepted())
	assert.Equal(t, "Rejected", resp.Payload.Status)

	corrupted, err := codec.Encode(MessageTypeCall, 9, []byte(`[2,"h","Heartbeat",{}]`))
	require.NoError(t, err)
	corrupted[len(corrupted)-1] ^= 0xFF
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, corrupted))

	sess, _ := env.sessions.GetSession("CS1")
	assert.Eventually(t, func() bool {
		return sess.GetStats().ErrorCount == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchOversizedBinaryFrame(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dial(t, "CS1", BinarySubprotocol)

	data, err := json.Marshal(strings.Repeat("x", 70000))
	require.NoError(t, err)

	node := command.NewNode("csms-01", env.server)
	start := time.Now()
	_, err = node.DataTransfer(context.Background(), "CS1",
		command.DataTransferRequest{VendorID: "acme", Data: data},
		command.WithTimeout(5*time.Second))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, env.server.Pending().Count())
}

func TestReconnectReplacesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dial(t, "CS1", "ocpp2.0.1")
	first, _ := env.sessions.GetSession("CS1")

	env.dial(t, "CS1", "ocpp2.0.1")
	require.Eventually(t, func() bool {
		current, ok := env.sessions.GetSession("CS1")
		return ok && current != first
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, session.SessionStateDisconnected, first.GetState())
	assert.Equal(t, 1, env.sessions.GetSessionCount())
}
