package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/domain"
	"github.com/resident-x/go-csms/internal/registry"
)

// StationEventMessage is the JSON document published for a station registry event.
type StationEventMessage struct {
	Event           string    `json:"event"`
	StationID       string    `json:"stationId"`
	NodeID          string    `json:"nodeId"`
	CorrelationID   string    `json:"correlationId"`
	ActorID         string    `json:"actorId,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Vendor          string    `json:"vendor,omitempty"`
	Model           string    `json:"model,omitempty"`
	FirmwareVersion string    `json:"firmwareVersion,omitempty"`
	AdminStatus     string    `json:"adminStatus,omitempty"`
	EVSECount       int       `json:"evseCount"`
}

// NewStationEventMessage converts a registry event.
func NewStationEventMessage(ev domain.StationEvent) StationEventMessage {
	msg := StationEventMessage{
		Event:         ev.Kind.String(),
		NodeID:        ev.NodeID,
		CorrelationID: ev.CorrelationID,
		ActorID:       ev.ActorID,
		Timestamp:     ev.Timestamp,
	}
	if cs := ev.Entity; cs != nil {
		msg.StationID = string(cs.ID())
		msg.Vendor = cs.Vendor()
		msg.Model = cs.Model()
		msg.FirmwareVersion = cs.FirmwareVersion()
		msg.AdminStatus = string(cs.AdminStatus())
		msg.EVSECount = len(cs.EVSEs())
	}
	return msg
}

type outgoing struct {
	topic string
	msg   StationEventMessage
}

// EventForwarder publishes station registry events. Observe runs under the registry lock, so it
// only queues; a background goroutine does the publishing.
type EventForwarder struct {
	publisher Publisher
	baseTopic string
	queue     chan outgoing
	logger    zerolog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewEventForwarder creates a forwarder publishing below baseTopic. queueSize bounds the number
// of events waiting for the broker; further events are dropped.
func NewEventForwarder(publisher Publisher, baseTopic string, queueSize int) *EventForwarder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &EventForwarder{
		publisher: publisher,
		baseTopic: baseTopic,
		queue:     make(chan outgoing, queueSize),
		logger:    log.With().Str("component", "event_forwarder").Logger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Topic returns the topic for a station event, <base>/stations/<id>/<event>.
func (f *EventForwarder) Topic(stationID domain.StationID, kind registry.EventKind) string {
	return f.baseTopic + "/stations/" + string(stationID) + "/" + kind.String()
}

// Observe is a registry observer.
func (f *EventForwarder) Observe(_ context.Context, ev domain.StationEvent) error {
	msg := NewStationEventMessage(ev)
	select {
	case f.queue <- outgoing{topic: f.Topic(domain.StationID(msg.StationID), ev.Kind), msg: msg}:
	default:
		f.logger.Warn().Str("station_id", msg.StationID).Str("event", msg.Event).Msg("Event queue full, dropping event")
	}
	return nil
}

// Start runs the publishing loop until Stop is called or ctx ends.
func (f *EventForwarder) Start(ctx context.Context) {
	if !f.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(f.done)
		for {
			select {
			case out := <-f.queue:
				f.publish(ctx, out)
			case <-f.stop:
				f.drain(ctx)
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop publishes the events still queued and ends the loop.
func (f *EventForwarder) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	if f.started.Load() {
		<-f.done
	}
}

func (f *EventForwarder) drain(ctx context.Context) {
	for {
		select {
		case out := <-f.queue:
			f.publish(ctx, out)
		default:
			return
		}
	}
}

func (f *EventForwarder) publish(ctx context.Context, out outgoing) {
	if err := f.publisher.Publish(ctx, out.topic, out.msg); err != nil {
		f.logger.Warn().Err(err).Str("topic", out.topic).Msg("Failed to publish station event")
		return
	}
	f.logger.Debug().Str("topic", out.topic).Msg("Published station event")
}
