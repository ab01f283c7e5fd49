package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/domain"
)

// DefaultRequestTimeout applies when neither the call nor the node configures a timeout.
const DefaultRequestTimeout = 30 * time.Second

var (
	// ErrInvalidRequest is returned when a request fails validation before dispatch.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoSigner is returned when signing is requested but the node has no signer.
	ErrNoSigner = errors.New("no signer configured")
	// ErrNoDispatcher is returned when the node has no outbound channel.
	ErrNoDispatcher = errors.New("no dispatcher configured")
)

// Reply is the raw answer of a station to a dispatched envelope.
type Reply struct {
	RequestID  string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Dispatcher delivers an envelope to the next hop and waits for the reply. Implementations
// must honour ctx cancellation and the envelope timeout.
type Dispatcher interface {
	Dispatch(ctx context.Context, env Envelope) (Reply, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, env Envelope) (Reply, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, env Envelope) (Reply, error) {
	return f(ctx, env)
}

// RequestIDGenerator issues request ids. Ids must be unique per node.
type RequestIDGenerator interface {
	NextRequestID() string
}

// SequenceGenerator issues monotonically increasing ids behind a per-process prefix.
type SequenceGenerator struct {
	prefix string
	seq    atomic.Uint64
}

// NewSequenceGenerator creates a generator. An empty prefix is replaced by a random one.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = uuid.NewString()[:8]
	}
	return &SequenceGenerator{prefix: prefix}
}

// NextRequestID returns the next id.
func (g *SequenceGenerator) NextRequestID() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.seq.Add(1))
}

// PathResolver computes the route from the node to a station.
type PathResolver interface {
	Route(origin string, dest domain.StationID) NetworkPath
}

type directResolver struct{}

func (directResolver) Route(origin string, dest domain.StationID) NetworkPath {
	return DirectPath(origin, dest)
}

// Signer computes signatures over a serialized payload.
type Signer interface {
	Sign(ctx context.Context, payload []byte, keys []SignKey, infos []SignInfo) ([]Signature, error)
}

// Recorder observes completed dispatches.
type Recorder interface {
	ObserveDispatch(action, outcome string, elapsed time.Duration)
}

// Node is the management node as seen by outbound commands.
type Node struct {
	id             string
	dispatcher     Dispatcher
	ids            RequestIDGenerator
	paths          PathResolver
	signer         Signer
	defaultTimeout time.Duration
	validate       *validator.Validate
	logger         zerolog.Logger
	recorder       Recorder
	now            func() time.Time
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithDefaultTimeout sets the node-wide request timeout.
func WithDefaultTimeout(d time.Duration) NodeOption {
	return func(n *Node) { n.defaultTimeout = d }
}

// WithRequestIDGenerator replaces the default sequence generator.
func WithRequestIDGenerator(g RequestIDGenerator) NodeOption {
	return func(n *Node) { n.ids = g }
}

// WithPathResolver replaces the direct path resolver.
func WithPathResolver(p PathResolver) NodeOption {
	return func(n *Node) { n.paths = p }
}

// WithSigner sets the signing provider.
func WithSigner(s Signer) NodeOption {
	return func(n *Node) { n.signer = s }
}

// WithLogger sets the node logger.
func WithLogger(l zerolog.Logger) NodeOption {
	return func(n *Node) { n.logger = l }
}

// WithRecorder attaches a dispatch recorder.
func WithRecorder(r Recorder) NodeOption {
	return func(n *Node) { n.recorder = r }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) NodeOption {
	return func(n *Node) { n.now = now }
}

// NewNode creates a node that sends through dispatcher.
func NewNode(id string, dispatcher Dispatcher, opts ...NodeOption) *Node {
	n := &Node{
		id:         id,
		dispatcher: dispatcher,
		ids:        NewSequenceGenerator(""),
		paths:      directResolver{},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     log.With().Str("component", "command").Str("node_id", id).Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.defaultTimeout <= 0 {
		n.defaultTimeout = DefaultRequestTimeout
	}
	return n
}

// ID returns the node id.
func (n *Node) ID() string { return n.id }

// DefaultTimeout returns the timeout applied to requests without an explicit one.
func (n *Node) DefaultTimeout() time.Duration { return n.defaultTimeout }

// Validate checks a request payload against its struct tags.
func (n *Node) Validate(req Payload) error {
	if req == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidRequest)
	}
	if err := n.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRequest, req.Action(), err)
	}
	return nil
}

// Envelope validates req and builds the envelope Send would dispatch.
func (n *Node) Envelope(ctx context.Context, dest domain.StationID, req Payload, opts ...Option) (Envelope, error) {
	if dest == "" {
		return Envelope{}, fmt.Errorf("%w: destination must not be empty", ErrInvalidRequest)
	}
	if err := n.Validate(req); err != nil {
		return Envelope{}, err
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	env := Envelope{
		Action:          req.Action(),
		Origin:          n.id,
		Destination:     dest,
		Path:            n.paths.Route(n.id, dest),
		Payload:         req,
		RequestID:       o.requestID,
		Timestamp:       o.timestamp,
		Timeout:         o.timeout,
		EventTrackingID: o.eventTrackingID,
		SignKeys:        o.signKeys,
		SignInfos:       o.signInfos,
		Signatures:      o.signatures,
	}
	if env.RequestID == "" {
		env.RequestID = n.ids.NextRequestID()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = n.now()
	}
	if env.Timeout <= 0 {
		env.Timeout = n.defaultTimeout
	}
	if env.EventTrackingID == "" {
		env.EventTrackingID = uuid.NewString()
	}

	if len(env.SignKeys) > 0 || len(env.SignInfos) > 0 {
		if n.signer == nil {
			return Envelope{}, ErrNoSigner
		}
		data, err := json.Marshal(req)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to serialize %s for signing: %w", env.Action, err)
		}
		sigs, err := n.signer.Sign(ctx, data, env.SignKeys, env.SignInfos)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to sign %s: %w", env.Action, err)
		}
		env.Signatures = append(env.Signatures, sigs...)
	}

	return env, nil
}

func (n *Node) observe(action, outcome string, start time.Time) {
	if n.recorder != nil {
		n.recorder.ObserveDispatch(action, outcome, n.now().Sub(start))
	}
}
