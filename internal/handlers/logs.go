package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/models"
)

// LogHandler serves buffered log lines from arbor's memory writer.
type LogHandler struct {
	logger arbor.ILogger
}

func NewLogHandler(logger arbor.ILogger) *LogHandler {
	return &LogHandler{logger: logger}
}

// HandleList returns recent log entries as JSON, oldest first.
func (h *LogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryInt(r, "limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	logs := []models.LogEntry{}

	memWriter := arbor.GetRegisteredMemoryWriter(arbor.WRITER_MEMORY)
	if memWriter != nil {
		entries, err := memWriter.GetEntriesWithLimit(limit)
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to get log entries")
			WriteError(w, http.StatusInternalServerError, "failed to retrieve logs")
			return
		}

		// Keys are timestamps; sorting them gives chronological order.
		keys := make([]string, 0, len(entries))
		for key := range entries {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			entry, ok := parseLogLine(entries[key], len(logs))
			if ok {
				logs = append(logs, entry)
			}
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// parseLogLine splits a memory writer line of the form
// "LVL | Oct  2 16:27:13 | message" into a LogEntry. Lines produced by the
// dashboard plumbing itself are skipped.
func parseLogLine(line string, index int) (models.LogEntry, bool) {
	if strings.Contains(line, "WebSocket client connected") ||
		strings.Contains(line, "WebSocket client disconnected") ||
		strings.Contains(line, "HTTP request") ||
		strings.Contains(line, "HTTP response") {
		return models.LogEntry{}, false
	}

	parts := strings.SplitN(line, "|", 3)
	if len(parts) != 3 {
		return models.LogEntry{}, false
	}

	levelStr := strings.TrimSpace(parts[0])
	dateTime := strings.TrimSpace(parts[1])
	message := strings.TrimSpace(parts[2])

	timeParts := strings.Fields(dateTime)
	var timestamp string
	if len(timeParts) >= 3 {
		timestamp = timeParts[len(timeParts)-1]
	} else {
		timestamp = time.Now().Format("15:04:05")
	}

	level := "INF"
	switch levelStr {
	case "ERR", "ERROR", "FATAL", "PANIC":
		level = "ERR"
	case "WRN", "WARN":
		level = "WRN"
	case "INF", "INFO":
		level = "INF"
	case "DBG", "DEBUG":
		level = "DBG"
	}

	return models.LogEntry{
		Index:     index,
		Timestamp: timestamp,
		Level:     level,
		Message:   message,
	}, true
}
