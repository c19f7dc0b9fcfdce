package network

import (
	"context"

	"silver-moon/server/logging"
)

const (
	// EventConnectionOpened is emitted after a websocket upgrade succeeds.
	EventConnectionOpened logging.EventType = "network.connection_opened"
	// EventConnectionClosed is emitted once a connection's read loop exits.
	EventConnectionClosed logging.EventType = "network.connection_closed"
	// EventMessageRejected is emitted for inbound frames that cannot be decoded.
	EventMessageRejected logging.EventType = "network.message_rejected"
	// EventRateLimited is emitted when a connection exceeds its inbound budget.
	EventRateLimited logging.EventType = "network.rate_limited"
	// EventSendDropped is emitted when a slow client's outbound queue overflows.
	EventSendDropped logging.EventType = "network.send_dropped"
)

type ConnectionPayload struct {
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type RejectedPayload struct {
	Reason string `json:"reason"`
	Bytes  int    `json:"bytes"`
}

type DropPayload struct {
	Bytes int `json:"bytes"`
}

// ConnectionRef identifies a websocket session.
func ConnectionRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindConnection}
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, session string, payload any, extra map[string]any) {
	logging.Emit(ctx, pub, logging.Event{
		Type:     eventType,
		Actor:    ConnectionRef(session),
		Severity: severity,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// ConnectionOpened publishes a new websocket session.
func ConnectionOpened(ctx context.Context, pub logging.Publisher, session string, payload ConnectionPayload) {
	publish(ctx, pub, EventConnectionOpened, logging.SeverityDebug, session, payload, nil)
}

// ConnectionClosed publishes the end of a websocket session.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, session string, payload ConnectionPayload, extra map[string]any) {
	publish(ctx, pub, EventConnectionClosed, logging.SeverityDebug, session, payload, extra)
}

// MessageRejected publishes a dropped inbound frame.
func MessageRejected(ctx context.Context, pub logging.Publisher, session string, payload RejectedPayload) {
	publish(ctx, pub, EventMessageRejected, logging.SeverityWarn, session, payload, nil)
}

// RateLimited publishes an inbound frame discarded by the limiter.
func RateLimited(ctx context.Context, pub logging.Publisher, session string, extra map[string]any) {
	publish(ctx, pub, EventRateLimited, logging.SeverityWarn, session, nil, extra)
}

// SendDropped publishes an outbound frame discarded because the client fell
// behind.
func SendDropped(ctx context.Context, pub logging.Publisher, session string, payload DropPayload) {
	publish(ctx, pub, EventSendDropped, logging.SeverityWarn, session, payload, nil)
}
