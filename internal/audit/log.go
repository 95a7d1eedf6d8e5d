package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/bastion/internal/model"
)

// Recorder accepts security events. Record never fails from the caller's
// point of view: a denial must not turn into a 500 because a sink is down.
type Recorder interface {
	Record(ctx context.Context, ev model.SecurityEvent)
}

// Sink is one destination for events.
type Sink interface {
	Name() string
	Write(ctx context.Context, ev model.SecurityEvent) error
}

// Log fans events out to every sink.
type Log struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewLog creates a Log writing to sinks. Sink failures are logged to logger.
func NewLog(logger *slog.Logger, sinks ...Sink) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{sinks: sinks, logger: logger, now: time.Now}
}

// Record stamps ev with an ID and timestamp when missing and writes it to
// every sink.
func (l *Log) Record(ctx context.Context, ev model.SecurityEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now().UTC()
	}

	for _, s := range l.sinks {
		if err := s.Write(ctx, ev); err != nil {
			l.logger.Error("security event sink failed",
				slog.String("sink", s.Name()),
				slog.String("event_id", ev.ID),
				slog.String("category", string(ev.Category)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close closes every sink that holds resources.
func (l *Log) Close() error {
	var errs []error
	for _, s := range l.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, model.SecurityEvent) {}
