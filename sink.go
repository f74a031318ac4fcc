package collect

import (
	"context"
	"log/slog"
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// LogSink emits pipeline events to a structured logger.
type LogSink struct {
	l *slog.Logger
}

// CollectSink retains emitted events in memory. It is intended for tests
// and for callers which render batch activity after the fact.
type CollectSink struct {
	mu     sync.Mutex
	events []SinkEvent
}

// SinkEvent is one retained event.
type SinkEvent struct {
	Name    string
	Payload any
}

var _ Sink = (*LogSink)(nil)
var _ Sink = (*CollectSink)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewLogSink wraps a slog logger as an event sink. A nil logger uses the
// default logger.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{l: l}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (s *LogSink) Emit(ctx context.Context, name string, payload any) {
	s.l.InfoContext(ctx, name, "payload", payload)
}

func (s *CollectSink) Emit(_ context.Context, name string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SinkEvent{Name: name, Payload: payload})
}

// Events returns a copy of the retained events in emission order.
func (s *CollectSink) Events() []SinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SinkEvent(nil), s.events...)
}

// Named returns the retained events with the given name.
func (s *CollectSink) Named(name string) []SinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []SinkEvent
	for _, e := range s.events {
		if e.Name == name {
			result = append(result, e)
		}
	}
	return result
}
