package middleware

import (
	"net/http"
	"strconv"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/internal/ratelimit"
)

// reject records d and writes its generic problem document. The reason only
// reaches the event log.
func reject(w http.ResponseWriter, r *http.Request, events audit.Recorder, d *model.Denial) {
	events.Record(r.Context(), newEvent(r, d.EventCategory(), d.Error()))

	if d.Kind == model.DenialRateLimited {
		retryAfter := max(d.RetryAfter, 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	d.Problem().WriteJSON(w)
}

func newEvent(r *http.Request, category model.EventCategory, detail string) model.SecurityEvent {
	return model.SecurityEvent{
		Category:  category,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		URL:       r.URL.Path,
		Method:    r.Method,
		RequestID: GetRequestID(r.Context()),
		UserID:    GetUserID(r.Context()),
		Detail:    detail,
	}
}
