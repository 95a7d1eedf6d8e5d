package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/bastion/internal/database"
)

const purgeEventsQuery = `DELETE security_event WHERE timestamp < <datetime> $cutoff;`

// RetentionConfig configures EventRetention.
type RetentionConfig struct {
	MaxAge   time.Duration // how long persisted events are kept
	Interval time.Duration // between purges (default 1 hour)
	Delay    time.Duration // before the first purge after Start
	Logger   *slog.Logger
	Now      func() time.Time
}

// EventRetention periodically deletes persisted security events older than MaxAge
type EventRetention struct {
	db       database.Database
	maxAge   time.Duration
	interval time.Duration
	delay    time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewEventRetention creates a new event retention job
func NewEventRetention(db database.Database, cfg RetentionConfig) *EventRetention {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &EventRetention{
		db:       db,
		maxAge:   cfg.MaxAge,
		interval: cfg.Interval,
		delay:    cfg.Delay,
		logger:   cfg.Logger,
		now:      cfg.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the retention job
func (j *EventRetention) Start() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run()
	j.logger.Info("event retention started",
		slog.Duration("max_age", j.maxAge),
		slog.Duration("interval", j.interval),
	)
}

// Stop gracefully stops the retention job
func (j *EventRetention) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("event retention stopped")
}

// IsRunning returns whether the job is currently running
func (j *EventRetention) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *EventRetention) run() {
	defer j.wg.Done()

	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-j.stopCh:
			return
		}
	}
	j.purge()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.purge()
		case <-j.stopCh:
			return
		}
	}
}

func (j *EventRetention) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("event retention purge failed", slog.String("error", err.Error()))
	}
}

// RunOnce deletes every event recorded before now minus MaxAge.
// A zero MaxAge keeps everything.
func (j *EventRetention) RunOnce(ctx context.Context) error {
	if j.maxAge <= 0 {
		return nil
	}
	cutoff := j.now().Add(-j.maxAge).UTC()
	if err := j.db.Execute(ctx, purgeEventsQuery, map[string]interface{}{
		"cutoff": cutoff.Format(time.RFC3339Nano),
	}); err != nil {
		return err
	}
	j.logger.Debug("purged expired security events", slog.Time("cutoff", cutoff))
	return nil
}
