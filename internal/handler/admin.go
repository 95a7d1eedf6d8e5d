package handler

import (
	"net/http"
	"time"

	"github.com/forgo/bastion/internal/middleware"
	"github.com/forgo/bastion/internal/ratelimit"
)

// AdminHandler serves operator endpoints
type AdminHandler struct {
	limiter *ratelimit.Limiter
	started time.Time
}

func NewAdminHandler(limiter *ratelimit.Limiter) *AdminHandler {
	return &AdminHandler{limiter: limiter, started: time.Now()}
}

// PolicyInfo describes a registered rate-limit policy
type PolicyInfo struct {
	Name          string `json:"name"`
	MaxRequests   int    `json:"max_requests"`
	WindowSeconds int64  `json:"window_seconds"`
}

// PingResponse is the body of GET /v1/admin/ping
type PingResponse struct {
	UserID   string       `json:"user_id"`
	Uptime   string       `json:"uptime"`
	Policies []PolicyInfo `json:"policies"`
}

// Ping handles GET /v1/admin/ping
func (h *AdminHandler) Ping(w http.ResponseWriter, r *http.Request) error {
	names := h.limiter.Names()
	policies := make([]PolicyInfo, 0, len(names))
	for _, name := range names {
		p, ok := h.limiter.Policy(name)
		if !ok {
			continue
		}
		policies = append(policies, PolicyInfo{
			Name:          p.Name,
			MaxRequests:   p.MaxRequests,
			WindowSeconds: int64(p.Window.Seconds()),
		})
	}

	WriteData(w, http.StatusOK, PingResponse{
		UserID:   middleware.GetUserID(r.Context()),
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Policies: policies,
	}, nil)
	return nil
}
