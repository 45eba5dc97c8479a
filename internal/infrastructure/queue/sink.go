package queue

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes notifications to the structured log. Stands in until a
// push provider is wired up.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Deliver(_ context.Context, n Notification) error {
	s.log.Info().
		Str("user_id", n.UserID).
		Str("event_type", n.EventType).
		Interface("payload", n.Payload).
		Msg("notification")
	return nil
}
