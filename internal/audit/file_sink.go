package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/forgo/bastion/internal/model"
)

// FileConfig configures the rotated append-only event file
type FileConfig struct {
	// Path is the event log file
	Path string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated files should be compressed
	Compress bool
}

// FileSink writes one JSON line per event through a rotating file.
type FileSink struct {
	logger  *zap.Logger
	rotator *lumberjack.Logger
}

// NewFileSink opens the rotating writer lazily; the file is created on the
// first event.
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit file sink: path is required")
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "logged_at",
		LevelKey:       "",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	// Events are always recorded at info level regardless of app log level.
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		zapcore.InfoLevel,
	)

	return &FileSink{logger: zap.New(core), rotator: rotator}, nil
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(_ context.Context, ev model.SecurityEvent) error {
	s.logger.Info("security_event",
		zap.String("event_id", ev.ID),
		zap.Time("timestamp", ev.Timestamp),
		zap.String("category", string(ev.Category)),
		zap.String("ip", ev.IP),
		zap.String("user_agent", ev.UserAgent),
		zap.String("url", ev.URL),
		zap.String("method", ev.Method),
		zap.String("request_id", ev.RequestID),
		zap.String("user_id", ev.UserID),
		zap.String("detail", ev.Detail),
	)
	return nil
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	_ = s.logger.Sync()
	return s.rotator.Close()
}
