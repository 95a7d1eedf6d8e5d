package audit

import (
	"context"
	"log/slog"

	"github.com/forgo/bastion/internal/model"
)

// SlogSink writes events to the application log at warn level.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Name() string { return "slog" }

func (s *SlogSink) Write(ctx context.Context, ev model.SecurityEvent) error {
	s.logger.LogAttrs(ctx, slog.LevelWarn, "security event",
		slog.String("event_id", ev.ID),
		slog.String("category", string(ev.Category)),
		slog.String("ip", ev.IP),
		slog.String("method", ev.Method),
		slog.String("url", ev.URL),
		slog.String("user_agent", ev.UserAgent),
		slog.String("request_id", ev.RequestID),
		slog.String("user_id", ev.UserID),
		slog.String("detail", ev.Detail),
	)
	return nil
}
