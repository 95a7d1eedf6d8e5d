package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/bastion/internal/model"
)

type captureSink struct {
	mu     sync.Mutex
	events []model.SecurityEvent
	err    error
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Write(_ context.Context, ev model.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func sampleEvent() model.SecurityEvent {
	return model.SecurityEvent{
		Category:  model.EventCSRFViolation,
		IP:        "192.168.1.1",
		UserAgent: "Mozilla/5.0",
		URL:       "/v1/echo",
		Method:    "POST",
		RequestID: "req-1",
		Detail:    "csrf token mismatch",
	}
}

// ============================================================================
// Log Tests
// ============================================================================

func TestLog_StampsAndFansOut(t *testing.T) {
	t.Parallel()
	a, b := &captureSink{}, &captureSink{}
	l := NewLog(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), a, b)

	l.Record(context.Background(), sampleEvent())

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.NotEmpty(t, a.events[0].ID)
	assert.False(t, a.events[0].Timestamp.IsZero())
	assert.Equal(t, a.events[0], b.events[0])
}

func TestLog_KeepsExistingIDAndTimestamp(t *testing.T) {
	t.Parallel()
	s := &captureSink{}
	l := NewLog(nil, s)

	ev := sampleEvent()
	ev.ID = "fixed"
	ev.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Record(context.Background(), ev)

	assert.Equal(t, ev, s.events[0])
}

func TestLog_SinkFailureIsLoggedNotPropagated(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	failing := &captureSink{err: errors.New("disk full")}
	healthy := &captureSink{}
	l := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)), failing, healthy)

	l.Record(context.Background(), sampleEvent())

	assert.Len(t, healthy.events, 1, "later sinks still receive the event")
	assert.Contains(t, buf.String(), "security event sink failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	Discard.Record(context.Background(), sampleEvent())
}

// ============================================================================
// Sink Tests
// ============================================================================

func TestSlogSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.Write(context.Background(), sampleEvent()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "CSRF_VIOLATION", entry["category"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestFileSink(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.log")
	s, err := NewFileSink(FileConfig{Path: path, MaxSize: 1})
	require.NoError(t, err)

	l := NewLog(nil, s)
	l.Record(context.Background(), sampleEvent())
	l.Record(context.Background(), sampleEvent())
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "security_event", lines[0]["message"])
	assert.Equal(t, "CSRF_VIOLATION", lines[0]["category"])
	assert.NotEqual(t, lines[0]["event_id"], lines[1]["event_id"])
}

func TestFileSink_RequiresPath(t *testing.T) {
	t.Parallel()
	_, err := NewFileSink(FileConfig{})
	assert.Error(t, err)
}

func TestMetricsSink(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s, err := NewMetricsSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	ev := sampleEvent()
	require.NoError(t, s.Write(ctx, ev))
	require.NoError(t, s.Write(ctx, ev))
	ev.Category = model.EventRateLimitExceeded
	require.NoError(t, s.Write(ctx, ev))

	assert.Equal(t, 2.0, testutil.ToFloat64(s.events.WithLabelValues("CSRF_VIOLATION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.events.WithLabelValues("RATE_LIMIT_EXCEEDED")))

	_, err = NewMetricsSink(reg)
	assert.Error(t, err, "double registration")
}
