package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (dashboard live feed)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.HandleStatus) // GET - application status
	mux.HandleFunc("/api/health", s.handleHealth)                   // GET - liveness probe

	// API routes - Poller control
	mux.HandleFunc("/api/poller/start", s.app.PollerHandler.HandleStart) // POST
	mux.HandleFunc("/api/poller/stop", s.app.PollerHandler.HandleStop)   // POST

	// API routes - Jobs
	mux.HandleFunc("/api/jobs/process", s.app.JobHandler.HandleProcess) // POST - run one row now

	// API routes - Stages (manual stepwise debugging)
	mux.HandleFunc("/api/stages", s.app.StageHandler.HandleList)    // GET - ordered stage names
	mux.HandleFunc("/api/stages/run", s.app.StageHandler.HandleRun) // POST - run one stage

	// API routes - Run telemetry
	mux.HandleFunc("/api/runs", s.app.RunHandler.HandleList) // GET ?limit=
	mux.HandleFunc("/api/runs/", s.app.RunHandler.HandleGet) // GET /{id}

	// API routes - Logs
	mux.HandleFunc("/api/logs", s.app.LogHandler.HandleList) // GET ?limit=

	return mux
}

// handleHealth is a bare liveness probe; it carries no dependency checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
