package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// PollerHandler controls the poll schedule.
type PollerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

func NewPollerHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *PollerHandler {
	return &PollerHandler{scheduler: scheduler, logger: logger}
}

type startPollerRequest struct {
	// Optional interval override in milliseconds; 0 uses the configured
	// cron schedule.
	IntervalMs int `json:"interval_ms"`
}

// HandleStart begins polling the sheet for eligible rows.
func (h *PollerHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req startPollerRequest
	if r.Body != nil {
		// An empty body is a plain start with the configured schedule.
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.IntervalMs < 0 {
		WriteError(w, http.StatusBadRequest, "interval_ms cannot be negative")
		return
	}

	interval := time.Duration(req.IntervalMs) * time.Millisecond
	if err := h.scheduler.Start(interval); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	WriteSuccess(w, "poller started")
}

// HandleStop halts polling. Jobs already in flight run to completion.
func (h *PollerHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.scheduler.Stop(); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(w, "poller stopped")
}
