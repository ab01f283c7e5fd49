package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrPeerDisconnected fails calls whose peer went away before answering.
var ErrPeerDisconnected = errors.New("peer disconnected")

// callOutcome is delivered to a waiting dispatcher.
type callOutcome struct {
	payload    json.RawMessage
	err        error
	receivedAt time.Time
}

type pendingCall struct {
	peer   string
	action string
	sentAt time.Time
	done   chan callOutcome
}

// PendingCalls correlates outstanding CALL ids with their waiting senders. Calls are bound to
// the session they were written to, so a reply arriving on another connection is ignored.
type PendingCalls struct {
	calls  map[string]*pendingCall
	mutex  sync.Mutex
	logger zerolog.Logger
}

// NewPendingCalls creates an empty tracker.
func NewPendingCalls(logger zerolog.Logger) *PendingCalls {
	return &PendingCalls{
		calls:  make(map[string]*pendingCall),
		logger: logger.With().Str("component", "pending_calls").Logger(),
	}
}

// Register starts tracking a call. The returned cancel function stops tracking without
// delivering an outcome.
func (p *PendingCalls) Register(peer, id, action string) (<-chan callOutcome, func(), error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, exists := p.calls[id]; exists {
		return nil, nil, errors.New("duplicate message id " + id)
	}

	call := &pendingCall{
		peer:   peer,
		action: action,
		sentAt: time.Now(),
		done:   make(chan callOutcome, 1),
	}
	p.calls[id] = call

	return call.done, func() { p.take(id) }, nil
}

// Resolve delivers a CALLRESULT. It reports false for unknown ids.
func (p *PendingCalls) Resolve(peer, id string, payload json.RawMessage) bool {
	return p.complete(peer, id, callOutcome{payload: payload, receivedAt: time.Now()})
}

// Reject delivers a CALLERROR.
func (p *PendingCalls) Reject(peer, id string, callErr *CallError) bool {
	return p.complete(peer, id, callOutcome{err: callErr, receivedAt: time.Now()})
}

// FailPeer fails every call waiting on peer.
func (p *PendingCalls) FailPeer(peer string) int {
	p.mutex.Lock()
	var failed []*pendingCall
	for id, call := range p.calls {
		if call.peer == peer {
			failed = append(failed, call)
			delete(p.calls, id)
		}
	}
	p.mutex.Unlock()

	for _, call := range failed {
		call.done <- callOutcome{err: ErrPeerDisconnected, receivedAt: time.Now()}
	}
	if len(failed) > 0 {
		p.logger.Debug().Str("peer", peer).Int("count", len(failed)).Msg("Failed pending calls of disconnected peer")
	}
	return len(failed)
}

// Count returns the number of outstanding calls.
func (p *PendingCalls) Count() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.calls)
}

func (p *PendingCalls) complete(peer, id string, outcome callOutcome) bool {
	p.mutex.Lock()
	call, ok := p.calls[id]
	if ok && call.peer != peer {
		ok = false
	}
	if ok {
		delete(p.calls, id)
	}
	p.mutex.Unlock()

	if !ok {
		p.logger.Debug().Str("peer", peer).Str("message_id", id).Msg("Reply for unknown call")
		return false
	}

	call.done <- outcome
	p.logger.Debug().
		Str("peer", peer).
		Str("message_id", id).
		Str("action", call.action).
		Dur("elapsed", outcome.receivedAt.Sub(call.sentAt)).
		Msg("Call completed")
	return true
}

func (p *PendingCalls) take(id string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.calls, id)
}
