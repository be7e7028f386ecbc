package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tonelift/api/internal/model"
)

// Logger records classification events. Recording is best-effort: sink
// failures are logged and swallowed so an unavailable log can never
// fail the job that produced the event.
type Logger struct {
	ring *Ring
	sink Sink
}

// NewLogger creates a logger. A nil sink disables durable appends; the
// ring always works.
func NewLogger(ringSize int, sink Sink) *Logger {
	return &Logger{ring: NewRing(ringSize), sink: sink}
}

// Record assigns the event an ID and timestamp, then appends it to the
// ring and the sink. Never returns an error.
func (l *Logger) Record(ctx context.Context, ev model.ClassificationEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	l.ring.Add(ev)

	if l.sink == nil {
		return
	}
	if err := l.sink.Append(ctx, &ev); err != nil {
		log.Printf("Failed to append classification event %s: %v", ev.ID, err)
	}
}

// Recent returns up to n ring events, newest first.
func (l *Logger) Recent(n int) []model.ClassificationEvent {
	return l.ring.Recent(n)
}
