// Package command builds and dispatches outbound requests from the management node to its
// charging stations.
package command

import (
	"strings"
	"time"

	"github.com/resident-x/go-csms/internal/domain"
)

// Payload is implemented by every outbound request message.
type Payload interface {
	Action() string
}

// NetworkPath is the route from the origin node to the destination station. Hops lists the
// networking nodes (relays) in between, nearest first.
type NetworkPath struct {
	Origin      string           `json:"origin"`
	Hops        []string         `json:"hops,omitempty"`
	Destination domain.StationID `json:"destination"`
}

// DirectPath is the route without intermediate relays.
func DirectPath(origin string, dest domain.StationID) NetworkPath {
	return NetworkPath{Origin: origin, Destination: dest}
}

// NextHop returns the id of the peer the envelope must be written to.
func (p NetworkPath) NextHop() string {
	if len(p.Hops) > 0 {
		return p.Hops[0]
	}
	return string(p.Destination)
}

// String renders the path as origin->hop->destination.
func (p NetworkPath) String() string {
	parts := make([]string, 0, len(p.Hops)+2)
	parts = append(parts, p.Origin)
	parts = append(parts, p.Hops...)
	parts = append(parts, string(p.Destination))
	return strings.Join(parts, "->")
}

// SignKey is key material handed to the Signer.
type SignKey struct {
	ID     string
	Secret []byte
}

// SignInfo selects the key and purpose of a requested signature.
type SignInfo struct {
	KeyID   string `json:"keyId"`
	Purpose string `json:"purpose,omitempty"`
}

// Signature is attached to a request envelope.
type Signature struct {
	KeyID     string `json:"keyId"`
	Algorithm string `json:"algorithm"`
	Purpose   string `json:"purpose,omitempty"`
	Value     string `json:"value"`
}

// Envelope is a fully populated outbound request. It is built once by Send and then passed by
// value to the dispatcher.
type Envelope struct {
	Action          string
	Origin          string
	Destination     domain.StationID
	Path            NetworkPath
	Payload         Payload
	RequestID       string
	Timestamp       time.Time
	Timeout         time.Duration
	EventTrackingID string
	SignKeys        []SignKey
	SignInfos       []SignInfo
	Signatures      []Signature
}

// Deadline returns the instant after which the request is considered unanswered.
func (e Envelope) Deadline() time.Time {
	return e.Timestamp.Add(e.Timeout)
}

type sendOptions struct {
	requestID       string
	timestamp       time.Time
	timeout         time.Duration
	eventTrackingID string
	signKeys        []SignKey
	signInfos       []SignInfo
	signatures      []Signature
}

// Option overrides one envelope default.
type Option func(*sendOptions)

// WithRequestID sets an explicit request id instead of the generated one.
func WithRequestID(id string) Option {
	return func(o *sendOptions) { o.requestID = id }
}

// WithTimestamp sets the request timestamp.
func WithTimestamp(ts time.Time) Option {
	return func(o *sendOptions) { o.timestamp = ts }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *sendOptions) { o.timeout = d }
}

// WithEventTrackingID sets the correlation id carried through logs and replies.
func WithEventTrackingID(id string) Option {
	return func(o *sendOptions) { o.eventTrackingID = id }
}

// WithSignKeys asks the node signer to sign the payload with the given keys.
func WithSignKeys(keys ...SignKey) Option {
	return func(o *sendOptions) { o.signKeys = append(o.signKeys, keys...) }
}

// WithSignInfos selects which keys sign and for which purpose.
func WithSignInfos(infos ...SignInfo) Option {
	return func(o *sendOptions) { o.signInfos = append(o.signInfos, infos...) }
}

// WithSignatures attaches signatures computed elsewhere.
func WithSignatures(sigs ...Signature) Option {
	return func(o *sendOptions) { o.signatures = append(o.signatures, sigs...) }
}
