package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/model"
)

// HandlerFunc is a handler that reports failure by returning an error.
// Denials returned from it are written as their own problem; any other error
// becomes a generic 500.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// faultSlot carries an error from Handle back out to ErrorContainment.
type faultSlot struct {
	err error
}

// Handle adapts an error-returning handler. Under ErrorContainment the error
// is handed to the containment step; without it the error is written here.
func Handle(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		if slot, ok := r.Context().Value(faultKey).(*faultSlot); ok && slot.err == nil {
			slot.err = err
			return
		}
		if d, ok := model.AsDenial(err); ok {
			d.Problem().WriteJSON(w)
			return
		}
		model.NewInternalError("").WriteJSON(w)
	})
}

// ErrorContainment turns panics and errors returned through Handle into
// exactly one response. Internal detail goes to the log and the event sink,
// never to the caller.
func ErrorContainment(events audit.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gw := guardWriter(w)
			slot := &faultSlot{}
			r = r.WithContext(context.WithValue(r.Context(), faultKey, slot))

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					slog.Error("panic recovered",
						slog.Any("error", rec),
						slog.String("request_id", GetRequestID(r.Context())),
						slog.String("stack", string(debug.Stack())),
					)
					contain(gw, r, events, fmt.Errorf("panic: %v", rec))
				}
			}()

			next.ServeHTTP(gw, r)

			if slot.err != nil {
				contain(gw, r, events, slot.err)
			}
		})
	}
}

func contain(w *guardedWriter, r *http.Request, events audit.Recorder, err error) {
	d, ok := model.AsDenial(err)
	if !ok {
		d = &model.Denial{Kind: model.DenialInternal, Err: err}
		slog.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())),
		)
	}

	if w.Written() {
		// Too late for a clean response; keep the record.
		events.Record(r.Context(), newEvent(r, d.EventCategory(), "after response started: "+d.Error()))
		return
	}
	reject(w, r, events, d)
}
