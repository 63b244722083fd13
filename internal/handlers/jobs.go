package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// JobHandler serves manual job dispatch.
type JobHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

func NewJobHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{scheduler: scheduler, logger: logger}
}

type processJobRequest struct {
	Row int `json:"row"`
}

// HandleProcess runs one sheet row through the pipeline immediately. The
// pipeline runs in the background; the response only acknowledges dispatch.
func (h *JobHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req processJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Row < 2 {
		WriteError(w, http.StatusBadRequest, "row must be 2 or greater (row 1 is the header)")
		return
	}

	h.logger.Info().Int("row", req.Row).Msg("Manual job dispatch requested")

	// Detached from the request context: the job outlives the response.
	common.SafeGo(h.logger, "manual-job", func() {
		outcome := h.scheduler.ProcessRow(context.Background(), req.Row)
		if !outcome.Success {
			h.logger.Warn().Int("row", req.Row).Str("message", outcome.Message).Msg("Manual job failed")
		}
	})

	WriteStarted(w, "job dispatched")
}
