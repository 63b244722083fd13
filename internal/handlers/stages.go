package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// StageHandler exposes the pipeline's stages for manual stepwise runs,
// used when debugging a misbehaving portal form.
type StageHandler struct {
	pipeline interfaces.PipelineExecutor
	pool     interfaces.SessionPool
	sheet    interfaces.SheetClient
	columns  map[string]string
	logger   arbor.ILogger
}

func NewStageHandler(pipeline interfaces.PipelineExecutor, pool interfaces.SessionPool, sheet interfaces.SheetClient, columns map[string]string, logger arbor.ILogger) *StageHandler {
	return &StageHandler{
		pipeline: pipeline,
		pool:     pool,
		sheet:    sheet,
		columns:  columns,
		logger:   logger,
	}
}

// HandleList returns the ordered stage names.
func (h *StageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stages": h.pipeline.StageNames(),
	})
}

type runStageRequest struct {
	Stage string `json:"stage"`
	Row   int    `json:"row"`
}

// HandleRun executes a single stage against the default worker's session,
// synchronously, and returns the stage outcome.
func (h *StageHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req runStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Stage == "" {
		WriteError(w, http.StatusBadRequest, "stage is required")
		return
	}
	if req.Row < 2 {
		WriteError(w, http.StatusBadRequest, "row must be 2 or greater (row 1 is the header)")
		return
	}

	sheetRow, err := h.sheet.GetRow(r.Context(), req.Row)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "failed to fetch row: "+err.Error())
		return
	}

	fields := make(map[string]string, len(h.columns))
	for name, column := range h.columns {
		fields[name] = sheetRow.Cell(column)
	}
	job := models.NewJob(req.Row, fields)

	session, err := h.pool.Acquire(context.Background(), interfaces.DefaultWorkerKey)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, "browser session unavailable: "+err.Error())
		return
	}

	h.logger.Info().Str("stage", req.Stage).Int("row", req.Row).Msg("Manual stage run")

	outcome, err := h.pipeline.RunStage(context.Background(), session, job, req.Stage)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, outcome)
}
