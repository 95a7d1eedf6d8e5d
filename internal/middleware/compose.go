package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Step is a named middleware. The name only serves inspection and logs.
type Step struct {
	Name string
	Wrap Middleware
}

// NewStep names mw.
func NewStep(name string, mw Middleware) Step {
	return Step{Name: name, Wrap: mw}
}

// Pipeline is an ordered list of steps. Steps run in list order on the way in.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from steps in execution order.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: append([]Step(nil), steps...)}
}

// Names lists the step names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// With returns a new pipeline with steps appended. p is not modified.
func (p *Pipeline) With(steps ...Step) *Pipeline {
	out := make([]Step, 0, len(p.steps)+len(steps))
	out = append(out, p.steps...)
	out = append(out, steps...)
	return &Pipeline{steps: out}
}

// Then builds the handler: steps[0](steps[1](...steps[n-1](h))).
func (p *Pipeline) Then(h http.Handler) http.Handler {
	return Compose(h, p.steps...)
}

// ThenFunc is Then for a handler function.
func (p *Pipeline) ThenFunc(fn http.HandlerFunc) http.Handler {
	return p.Then(fn)
}

// Compose wraps h with steps so that steps[0] runs first. Each step's next
// handler runs at most once per request, and the response status line is
// written at most once; violations are logged and ignored.
func Compose(h http.Handler, steps ...Step) http.Handler {
	for i := len(steps) - 1; i >= 0; i-- {
		h = guardStep(steps[i], h)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(guardWriter(w), r)
	})
}

// callGuard counts calls to one step's next handler within one request.
type callGuard struct {
	calls atomic.Int32
}

// guardKey identifies a step instance; pointer identity keeps keys of
// different compositions apart.
type guardKey struct {
	step string
}

func guardStep(s Step, next http.Handler) http.Handler {
	key := &guardKey{step: s.Name}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g, ok := r.Context().Value(key).(*callGuard); ok {
			if g.calls.Add(1) > 1 {
				slog.Warn("middleware called next more than once",
					slog.String("step", s.Name),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				return
			}
		}
		next.ServeHTTP(w, r)
	})

	wrapped := s.Wrap(inner)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), key, &callGuard{})
		wrapped.ServeHTTP(w, r.WithContext(ctx))
	})
}

// guardedWriter drops a second WriteHeader.
type guardedWriter struct {
	http.ResponseWriter
	wroteHeader bool
	status      int
}

func guardWriter(w http.ResponseWriter) *guardedWriter {
	if gw, ok := w.(*guardedWriter); ok {
		return gw
	}
	return &guardedWriter{ResponseWriter: w}
}

func (g *guardedWriter) WriteHeader(code int) {
	if g.wroteHeader {
		slog.Warn("superfluous WriteHeader dropped",
			slog.Int("status", g.status),
			slog.Int("dropped_status", code),
		)
		return
	}
	g.wroteHeader = true
	g.status = code
	g.ResponseWriter.WriteHeader(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		g.wroteHeader = true
		g.status = http.StatusOK
	}
	return g.ResponseWriter.Write(b)
}

// Written reports whether the status line has gone out.
func (g *guardedWriter) Written() bool {
	return g.wroteHeader
}

func (g *guardedWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}
