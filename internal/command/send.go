package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/resident-x/go-csms/internal/domain"
)

// Response pairs a decoded reply with the envelope that produced it.
type Response[Resp any] struct {
	Envelope   Envelope
	Payload    Resp
	ReceivedAt time.Time
}

// Send validates req, completes the envelope defaults, routes it and hands it to the node's
// dispatcher. The reply payload is decoded into Resp. Send does not retry.
func Send[Req Payload, Resp any](ctx context.Context, n *Node, dest domain.StationID, req Req, opts ...Option) (*Response[Resp], error) {
	if n.dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	env, err := n.Envelope(ctx, dest, req, opts...)
	if err != nil {
		return nil, err
	}

	logger := n.logger.With().
		Str("action", env.Action).
		Str("station_id", string(dest)).
		Str("request_id", env.RequestID).
		Str("tracking_id", env.EventTrackingID).
		Logger()
	logger.Debug().Str("path", env.Path.String()).Dur("timeout", env.Timeout).Msg("Dispatching request")

	start := n.now()
	reply, err := n.dispatcher.Dispatch(ctx, env)
	if err != nil {
		n.observe(env.Action, dispatchOutcome(err), start)
		logger.Warn().Err(err).Msg("Request failed")
		return nil, fmt.Errorf("%s to %s: %w", env.Action, dest, err)
	}

	resp := &Response[Resp]{Envelope: env, ReceivedAt: reply.ReceivedAt}
	if len(reply.Payload) > 0 {
		if err := json.Unmarshal(reply.Payload, &resp.Payload); err != nil {
			n.observe(env.Action, "decode_error", start)
			return nil, fmt.Errorf("failed to decode %s response: %w", env.Action, err)
		}
	}

	n.observe(env.Action, "success", start)
	logger.Debug().Msg("Request completed")
	return resp, nil
}

func dispatchOutcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
