package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"sync"
	"time"
)

var (
	ErrUnknownPolicy  = errors.New("rate limit policy not registered")
	ErrInvalidPolicy  = errors.New("invalid rate limit policy")
	ErrPolicyConflict = errors.New("rate limit policy already registered with different settings")
	ErrClockAnomaly   = errors.New("rate limit clock anomaly")
)

// Policy is an immutable named limit: at most MaxRequests per Window for each
// key produced by Key.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	Key         KeyFunc
}

func (p Policy) validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("max requests must be positive, got %d", p.MaxRequests))
	}
	if p.Window <= 0 {
		errs = append(errs, fmt.Errorf("window must be positive, got %s", p.Window))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidPolicy, p.Name, errors.Join(errs...))
	}
	return nil
}

// Result is the outcome of one check.
type Result struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int // set only when denied
}

type entry struct {
	policy Policy
	store  CounterStore
}

// Limiter is the registry of named policies. Each policy owns its own store so
// unrelated limits never share counters.
type Limiter struct {
	mu       sync.RWMutex
	policies map[string]*entry
	newStore StoreFactory
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Limiter
type Option func(*Limiter)

// WithStoreFactory sets where counters live (default: one MemoryStore per policy).
func WithStoreFactory(f StoreFactory) Option {
	return func(l *Limiter) { l.newStore = f }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for store faults.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates an empty Limiter
func New(opts ...Option) *Limiter {
	l := &Limiter{
		policies: make(map[string]*entry),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.newStore == nil {
		l.newStore = MemoryStoreFactory(MemoryConfig{Now: l.now})
	}
	return l
}

// Register adds p. Registering the same name again with the same limits is a
// no-op that returns the original policy and keeps its counters.
func (l *Limiter) Register(p Policy) (Policy, error) {
	if err := p.validate(); err != nil {
		return Policy{}, err
	}
	if p.Key == nil {
		p.Key = ByIP
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.policies[p.Name]; ok {
		if existing.policy.MaxRequests != p.MaxRequests || existing.policy.Window != p.Window {
			return existing.policy, fmt.Errorf("%w: %q", ErrPolicyConflict, p.Name)
		}
		return existing.policy, nil
	}

	l.policies[p.Name] = &entry{policy: p, store: l.newStore(p.Name)}
	return p, nil
}

// MustRegister is Register for static setup code.
func (l *Limiter) MustRegister(p Policy) Policy {
	registered, err := l.Register(p)
	if err != nil {
		panic(err)
	}
	return registered
}

// Policy looks up a registered policy by name.
func (l *Limiter) Policy(name string) (Policy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.policies[name]
	if !ok {
		return Policy{}, false
	}
	return e.policy, true
}

// Names lists registered policy names in sorted order.
func (l *Limiter) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.policies))
	for name := range l.policies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Check counts r against the named policy.
func (l *Limiter) Check(ctx context.Context, policyName string, r *http.Request) (Result, error) {
	l.mu.RLock()
	e, ok := l.policies[policyName]
	l.mu.RUnlock()
	if !ok {
		rateLimitDecisions.WithLabelValues(policyName, decisionError).Inc()
		return l.faultResult(0), fmt.Errorf("%w: %q", ErrUnknownPolicy, policyName)
	}
	return l.check(ctx, e, e.policy.Key(r))
}

// CheckKey counts an already-derived key against the named policy.
func (l *Limiter) CheckKey(ctx context.Context, policyName, key string) (Result, error) {
	l.mu.RLock()
	e, ok := l.policies[policyName]
	l.mu.RUnlock()
	if !ok {
		rateLimitDecisions.WithLabelValues(policyName, decisionError).Inc()
		return l.faultResult(0), fmt.Errorf("%w: %q", ErrUnknownPolicy, policyName)
	}
	return l.check(ctx, e, key)
}

// check never skips limiting: a store or clock fault is reported as a denial
// together with the error.
func (l *Limiter) check(ctx context.Context, e *entry, key string) (Result, error) {
	p := e.policy
	if key == "" {
		key = "anonymous"
	}

	now := l.now()
	if now.IsZero() {
		rateLimitDecisions.WithLabelValues(p.Name, decisionError).Inc()
		return l.faultResult(p.MaxRequests), fmt.Errorf("%w: zero time", ErrClockAnomaly)
	}

	rec, allowed, err := e.store.Take(ctx, key, p.MaxRequests, p.Window, now)
	if err != nil {
		rateLimitDecisions.WithLabelValues(p.Name, decisionError).Inc()
		l.logger.Error("rate limit store failure",
			slog.String("policy", p.Name),
			slog.String("error", err.Error()),
		)
		return l.faultResult(p.MaxRequests), err
	}

	res := Result{
		Allowed:   allowed,
		Limit:     p.MaxRequests,
		Remaining: max(0, p.MaxRequests-rec.Count),
		ResetAt:   rec.WindowResetAt,
	}
	if !allowed {
		res.Remaining = 0
		res.RetryAfterSeconds = retryAfter(rec.WindowResetAt.Sub(now))
		rateLimitDecisions.WithLabelValues(p.Name, decisionDenied).Inc()
	} else {
		rateLimitDecisions.WithLabelValues(p.Name, decisionAllowed).Inc()
	}
	return res, nil
}

func (l *Limiter) faultResult(limit int) Result {
	return Result{
		Allowed:           false,
		Limit:             limit,
		Remaining:         0,
		ResetAt:           l.now().Add(time.Second),
		RetryAfterSeconds: 1,
	}
}

// Reset forgets key under the named policy.
func (l *Limiter) Reset(ctx context.Context, policyName, key string) error {
	l.mu.RLock()
	e, ok := l.policies[policyName]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, policyName)
	}
	return e.store.Reset(ctx, key)
}

// Stop stops background work in every store.
func (l *Limiter) Stop() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.policies {
		if s, ok := e.store.(stopper); ok {
			s.Stop()
		}
	}
}

// retryAfter rounds up to whole seconds with a floor of 1.
func retryAfter(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
