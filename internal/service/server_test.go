package service

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-csms/internal/command"
	"github.com/resident-x/go-csms/internal/config"
	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/pubsub"
	"github.com/resident-x/go-csms/internal/signing"
	"github.com/resident-x/go-csms/internal/transport"
)

const seedYAML = `
stations:
  - id: LC1
    vendor: ACME
    model: LocalController
  - id: CS9
    vendor: ACME
    model: Wallbox
    networking_node: LC1
    evses:
      - id: 1
        admin_status: Operative
        connectors:
          - id: 1
            type: cType2
`

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Connect(context.Context) error { return nil }
func (p *recordingPublisher) Close() error                  { return nil }

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0
	cfg.Node.DefaultRequestTimeout = 2 * time.Second
	cfg.Scheduler.TickInterval = 10 * time.Millisecond

	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	cfg.StationsFile = path
	return cfg
}

type testNode struct {
	srv       *ManagementServer
	publisher *recordingPublisher
	stationTS *httptest.Server
	apiTS     *httptest.Server
}

func startNode(t *testing.T, cfg *config.Config) *testNode {
	t.Helper()
	pub := &recordingPublisher{}
	srv, err := NewManagementServer(cfg, pub)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))

	n := &testNode{
		srv:       srv,
		publisher: pub,
		stationTS: httptest.NewServer(srv.StationHandler()),
		apiTS:     httptest.NewServer(srv.APIHandler()),
	}
	t.Cleanup(func() {
		n.apiTS.Close()
		_ = srv.Stop(context.Background())
		n.stationTS.Close()
	})
	return n
}

func (n *testNode) dial(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(n.stationTS.URL, "http") + "/ocpp/" + id
	dialer := websocket.Dialer{Subprotocols: []string{"ocpp2.0.1"}}
	conn, _, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(conn *websocket.Conn) (transport.Frame, error) {
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		return transport.Frame{}, err
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return transport.Frame{}, err
	}
	return transport.DecodeFrame(data)
}

// serveStation answers every CALL with payload and reports what it saw.
func serveStation(conn *websocket.Conn, payload string) <-chan transport.Frame {
	seen := make(chan transport.Frame, 8)
	go func() {
		defer close(seen)
		for {
			frame, err := readFrame(conn)
			if err != nil {
				return
			}
			if frame.Type != transport.MessageTypeCall {
				continue
			}
			seen <- frame
			reply, _ := transport.EncodeCallResult(frame.ID, json.RawMessage(payload))
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	}()
	return seen
}

func TestNewManagementServer_LoadsSeed(t *testing.T) {
	n := startNode(t, testConfig(t))

	stations := n.srv.Stations()
	assert.Equal(t, 2, stations.Count())
	cs9, ok := stations.TryGet("CS9")
	require.True(t, ok)
	assert.Equal(t, "LC1", cs9.NetworkingNode())
	assert.Len(t, cs9.EVSEs(), 1)

	require.Eventually(t, func() bool { return len(n.publisher.published()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{
		"csms/events/stations/LC1/added",
		"csms/events/stations/CS9/added",
	}, n.publisher.published())
}

func TestNewManagementServer_Errors(t *testing.T) {
	t.Run("missing seed file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.StationsFile = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := NewManagementServer(cfg, pubsub.NewNoopPublisher())
		assert.Error(t, err)
	})

	t.Run("bad signing seed", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Signing.KeyID = "node"
		cfg.Signing.SeedHex = "not-hex"
		_, err := NewManagementServer(cfg, pubsub.NewNoopPublisher())
		assert.ErrorContains(t, err, "invalid signing seed")
	})
}

func TestBootNotificationAdmitsStation(t *testing.T) {
	n := startNode(t, testConfig(t))
	conn := n.dial(t, "CS1")

	boot, err := transport.EncodeCall("boot-1", transport.ActionBootNotification, map[string]any{
		"reason":          "PowerUp",
		"chargingStation": map[string]string{"vendorName": "ACME", "model": "Wallbox"},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, boot))

	frame, err := readFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, transport.MessageTypeCallResult, frame.Type)
	assert.Equal(t, "boot-1", frame.ID)

	var resp transport.BootNotificationResponse
	require.NoError(t, json.Unmarshal(frame.Payload, &resp))
	assert.Equal(t, "Accepted", resp.Status)
	assert.Equal(t, 300, resp.Interval)

	cs, ok := n.srv.Stations().TryGet("CS1")
	require.True(t, ok)
	assert.Equal(t, "ACME", cs.Vendor())
}

func TestCommandOverAPI(t *testing.T) {
	n := startNode(t, testConfig(t))
	seen := serveStation(n.dial(t, "LC1"), `{"status":"Accepted"}`)

	resp, err := http.Post(n.apiTS.URL+"/api/v1/stations/CS9/commands/Reset", "application/json",
		bytes.NewBufferString(`{"type":"OnIdle"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]interface{}{"status": "Accepted"}, body["response"])

	frame := <-seen
	assert.Equal(t, "Reset", frame.Action)
	require.NotNil(t, frame.Routing, "relayed call carries its destination")
	assert.Equal(t, "CS9", frame.Routing.Destination)
}

func TestScheduledCommandOverAPI(t *testing.T) {
	n := startNode(t, testConfig(t))
	seen := serveStation(n.dial(t, "LC1"), `{"status":"Accepted"}`)

	resp, err := http.Post(n.apiTS.URL+"/api/v1/stations/LC1/commands/ClearCache?async=true", "application/json",
		bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case frame := <-seen:
		assert.Equal(t, "ClearCache", frame.Action)
		assert.Nil(t, frame.Routing)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled command never reached the station")
	}
}

func TestSignedCommand(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	cfg := testConfig(t)
	cfg.Signing.KeyID = "node-key"
	cfg.Signing.SeedHex = hex.EncodeToString(seed)

	n := startNode(t, cfg)
	seen := serveStation(n.dial(t, "LC1"), `{"status":"Accepted"}`)

	req := command.ClearCacheRequest{}
	_, err := n.srv.Node().ClearCache(context.Background(), "LC1", req,
		command.WithSignInfos(command.SignInfo{KeyID: "node-key", Purpose: "command"}))
	require.NoError(t, err)

	frame := <-seen
	require.NotNil(t, frame.Routing)
	require.Len(t, frame.Routing.Signatures, 1)

	sig := frame.Routing.Signatures[0]
	assert.Equal(t, "node-key", sig.KeyID)
	assert.Equal(t, "command", sig.Purpose)

	signed, err := json.Marshal(req)
	require.NoError(t, err)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	assert.True(t, signing.Verify(pub, signed, sig))
}

func TestDeleteVetoedWhileCharging(t *testing.T) {
	n := startNode(t, testConfig(t))

	cs9 := n.srv.Stations().Get("CS9")
	evse, ok := cs9.EVSE(1)
	require.True(t, ok)
	evse.StartTransaction("tx-1", domain.IDToken{Value: "tok", Type: "ISO14443"}, domain.MeterValue{Timestamp: time.Now()})

	req, err := http.NewRequest(http.MethodDelete, n.apiTS.URL+"/api/v1/stations/CS9", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	evse.StopTransaction(domain.MeterValue{Timestamp: time.Now(), WattHours: 1200})

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, n.srv.Stations().Exists("CS9"))
}

func TestGetMetrics(t *testing.T) {
	n := startNode(t, testConfig(t))
	n.dial(t, "LC1")

	require.Eventually(t, func() bool { return n.srv.GetMetrics()["sessions"] == 1 }, 2*time.Second, 10*time.Millisecond)
	m := n.srv.GetMetrics()
	assert.Equal(t, "csms-01", m["node_id"])
	assert.Equal(t, 2, m["stations"])
	assert.Contains(t, m, "scheduler")

	resp, err := http.Get(n.apiTS.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "csms_session_connected_stations 1")
	assert.Contains(t, buf.String(), "csms_registry_stations 2")
}
