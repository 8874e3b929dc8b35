// Package sink holds the buffered per-connection event sink bridging
// the group bus to a connection's writer loop.
package sink

import (
	"context"
	"log/slog"

	"privchat/domain/event"
)

// ConnectionSink buffers events published to the groups a connection
// has joined. The connection's writer loop drains Events; Consume never
// blocks the publisher.
type ConnectionSink struct {
	log    *slog.Logger
	Events chan event.Event
}

func NewConnectionSink(log *slog.Logger, bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		log:    log,
		Events: make(chan event.Event, bufferSize),
	}
}

// Consume is called by the bus fan-out. When the buffer is full the
// event is dropped rather than blocking other subscribers; the slow
// connection loses the event, nobody else does.
func (s *ConnectionSink) Consume(ctx context.Context, e event.Event) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Connection sink full, dropping event")
		return nil
	}
}
