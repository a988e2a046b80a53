package handler

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "slotlock/pkg/http"
	"slotlock/pkg/logger"
)

type HealthHandler struct {
	log     *logger.Logger
	started time.Time
}

func NewHealthHandler(log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		log:     log,
		started: time.Now(),
	}
}

type healthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// The store is in-memory, so there is no downstream dependency to probe:
// if the process answers, it is healthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := healthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if err := httputil.WriteJSON(w, http.StatusOK, status); err != nil {
		h.log.Error("failed to write health response", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Health)
}
