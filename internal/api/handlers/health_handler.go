package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource supplies the latest host statistics.
type StatsSource interface {
	Latest() models.SystemStats
}

// HealthHandler serves liveness and admin system health.
type HealthHandler struct {
	store Pinger
	stats StatsSource
}

// NewHealthHandler creates a new HealthHandler. stats may be nil.
func NewHealthHandler(store Pinger, stats StatsSource) *HealthHandler {
	return &HealthHandler{store: store, stats: stats}
}

func (h *HealthHandler) storeStatus(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Record store ping failed")
		return "unavailable"
	}
	return "ok"
}

// Live reports whether the API and its record store are up.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	status := h.storeStatus(r.Context())
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

// System reports store status and host statistics. Admin only.
func (h *HealthHandler) System(w http.ResponseWriter, r *http.Request) {
	if err := auth.Require(principal(r), models.RoleAdmin); err != nil {
		writeError(w, r, err)
		return
	}
	body := map[string]interface{}{"database": h.storeStatus(r.Context())}
	if h.stats != nil {
		body["system"] = h.stats.Latest()
	}
	writeJSON(w, http.StatusOK, body)
}
