package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// RunHandler serves run telemetry.
type RunHandler struct {
	runs   interfaces.RunService
	logger arbor.ILogger
}

func NewRunHandler(runs interfaces.RunService, logger arbor.ILogger) *RunHandler {
	return &RunHandler{runs: runs, logger: logger}
}

// HandleList returns recent runs, newest first.
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	records := h.runs.ListRuns(limit)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  records,
		"count": len(records),
	})
}

// HandleGet returns one run by ID, taken from the path suffix.
func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		WriteError(w, http.StatusBadRequest, "run id is required")
		return
	}

	record, ok := h.runs.GetRun(runID)
	if !ok {
		WriteError(w, http.StatusNotFound, "run not found")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
