package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// StatusHandler serves the application status endpoint.
type StatusHandler struct {
	status    interfaces.StatusService
	scheduler interfaces.SchedulerService
	pool      interfaces.SessionPool
	logger    arbor.ILogger
}

func NewStatusHandler(status interfaces.StatusService, scheduler interfaces.SchedulerService, pool interfaces.SessionPool, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		status:    status,
		scheduler: scheduler,
		pool:      pool,
		logger:    logger,
	}
}

// HandleStatus returns the application state plus scheduler and session
// pool statistics.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	response := map[string]interface{}{
		"service": "scriba",
		"version": common.GetVersion(),
	}
	if h.status != nil {
		response["status"] = h.status.GetStatus()
	}
	if h.scheduler != nil {
		response["scheduler"] = h.scheduler.Stats()
	}
	if h.pool != nil {
		response["sessions"] = h.pool.Stats()
	}

	WriteJSON(w, http.StatusOK, response)
}
