package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/registry"
)

type published struct {
	topic string
	data  any
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Connect(context.Context) error { return nil }
func (p *recordingPublisher) Close() error                  { return nil }

func (p *recordingPublisher) Publish(_ context.Context, topic string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, data: data})
	return nil
}

func (p *recordingPublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

func TestEventForwarderPublishesLifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	fwd := NewEventForwarder(pub, "csms/events", 16)
	fwd.Start(context.Background())

	stations := domain.NewStationRegistry("csms-01")
	unsubscribe := stations.Subscribe(fwd.Observe)
	defer unsubscribe()

	cs := domain.NewChargingStationBuilder("CS1").AddEVSE(1).MustBuild()
	require.True(t, stations.Add(cs, nil, registry.WithCorrelationID("corr-1"), registry.WithActor("op")).IsSuccess())
	require.True(t, stations.UpdateWith("CS1", func(b *domain.ChargingStationBuilder) { b.Vendor = "ACME" }, nil).IsSuccess())
	require.True(t, stations.DeleteByID("CS1", nil).IsSuccess())

	fwd.Stop()

	msgs := pub.snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, "csms/events/stations/CS1/added", msgs[0].topic)
	assert.Equal(t, "csms/events/stations/CS1/updated", msgs[1].topic)
	assert.Equal(t, "csms/events/stations/CS1/deleted", msgs[2].topic)

	added := msgs[0].data.(StationEventMessage)
	assert.Equal(t, "added", added.Event)
	assert.Equal(t, "CS1", added.StationID)
	assert.Equal(t, "csms-01", added.NodeID)
	assert.Equal(t, "corr-1", added.CorrelationID)
	assert.Equal(t, "op", added.ActorID)
	assert.Equal(t, 1, added.EVSECount)

	assert.Equal(t, "ACME", msgs[1].data.(StationEventMessage).Vendor)
}

func TestEventForwarderDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	fwd := NewEventForwarder(pub, "csms/events", 1)

	cs := domain.NewChargingStationBuilder("CS1").MustBuild()
	ev := domain.StationEvent{Kind: registry.EventAdded, Entity: cs, Timestamp: time.Now()}

	assert.NoError(t, fwd.Observe(context.Background(), ev))
	assert.NoError(t, fwd.Observe(context.Background(), ev))

	fwd.Start(context.Background())
	fwd.Stop()
	assert.Len(t, pub.snapshot(), 1)
}

func TestEventForwarderStopWithoutStart(t *testing.T) {
	fwd := NewEventForwarder(NewNoopPublisher(), "x", 0)
	assert.NotPanics(t, fwd.Stop)
}

func TestEventForwarderAgainstBroker(t *testing.T) {
	port := startTestBroker(t)
	messages := subscribe(t, port, "csms/events/stations/#")

	cfg := enabledConfig()
	cfg.MQTT.Host = "127.0.0.1"
	cfg.MQTT.Port = port
	cfg.MQTT.ClientID = "forwarder-under-test"

	p := NewMQTTPublisher(cfg)
	require.NoError(t, p.Connect(context.Background()))
	defer p.Close()

	fwd := NewEventForwarder(p, cfg.MQTT.Topic, 16)
	fwd.Start(context.Background())
	defer fwd.Stop()

	stations := domain.NewStationRegistry("csms-01")
	stations.Subscribe(fwd.Observe)
	require.True(t, stations.Add(domain.NewChargingStationBuilder("CS7").MustBuild(), nil).IsSuccess())

	select {
	case msg := <-messages:
		assert.Equal(t, "csms/events/stations/CS7/added", msg.Topic)
		var body StationEventMessage
		require.NoError(t, json.Unmarshal(msg.Payload, &body))
		assert.Equal(t, "CS7", body.StationID)
		assert.Equal(t, "added", body.Event)
	case <-time.After(5 * time.Second):
		t.Fatal("no station event received from broker")
	}
}
