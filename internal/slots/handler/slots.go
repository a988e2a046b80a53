package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"slotlock/internal/slots/service"
	"slotlock/internal/slots/ws"
	apperrors "slotlock/pkg/errors"
	httputil "slotlock/pkg/http"
	"slotlock/pkg/logger"
	"slotlock/pkg/model"
)

type SlotHandler struct {
	service service.LockService
	hub     *ws.Hub
	log     *logger.Logger
}

func NewSlotHandler(service service.LockService, hub *ws.Hub, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		hub:     hub,
		log:     log,
	}
}

func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var afterVersion *uint64
	if s := r.URL.Query().Get("after_version"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			h.writeError(w, "List", apperrors.InvalidInput(fmt.Sprintf("invalid after_version parameter: %s", s)))
			return
		}
		afterVersion = &v
	}

	snap := h.service.List(r.Context(), afterVersion)
	if err := httputil.WriteSuccess(w, snap); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "error", err)
	}
}

func (h *SlotHandler) Acquire(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AcquireRequest
	if !h.decode(w, r, "Acquire", &req) {
		return
	}

	lease, version, err := h.service.Acquire(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Acquire", err)
		return
	}

	if err := httputil.WriteCreated(w, model.AcquireResponse{Lease: lease, Version: version}); err != nil {
		h.log.Error("failed to write created response", "handler", "Acquire", "error", err)
	}
}

func (h *SlotHandler) Confirm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ConfirmRequest
	if !h.decode(w, r, "Confirm", &req) {
		return
	}

	slot, version, err := h.service.Confirm(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteSuccess(w, model.ConfirmResponse{Slot: slot, Version: version}); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "error", err)
	}
}

func (h *SlotHandler) Release(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReleaseRequest
	if !h.decode(w, r, "Release", &req) {
		return
	}

	version, err := h.service.Release(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Release", err)
		return
	}

	if err := httputil.WriteSuccess(w, model.ReleaseResponse{Version: version}); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "error", err)
	}
}

func (h *SlotHandler) Feed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.hub.ServeWS(w, r)
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/slots", h.List)
	router.POST("/api/v1/slots/acquire", h.Acquire)
	router.POST("/api/v1/slots/confirm", h.Confirm)
	router.POST("/api/v1/slots/release", h.Release)
}

// RegisterFeedRoutes registers the WebSocket feed separately: the upgrade
// needs http.Hijacker, which the wrapped writers in the full middleware
// stack do not implement.
func (h *SlotHandler) RegisterFeedRoutes(router *httprouter.Router) {
	router.GET("/ws", h.Feed)
}

func (h *SlotHandler) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, op, apperrors.InvalidInput("Invalid request body"))
		return false
	}
	return true
}

func (h *SlotHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "error", writeErr)
	}
}
