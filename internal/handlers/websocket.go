// -----------------------------------------------------------------------
// WebSocket Handler - Live dashboard feed
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard is served from the same host
	},
}

// WSMessage is the envelope for every dashboard message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketHandler struct {
	logger       arbor.ILogger
	clients      map[*websocket.Conn]bool
	clientMutex  map[*websocket.Conn]*sync.Mutex
	mu           sync.RWMutex
	eventService interfaces.EventService

	// Rate limiter for stage_progress events; a busy batch can emit them
	// far faster than a dashboard needs to repaint.
	stageProgressThrottler *rate.Limiter

	allowedEvents map[string]bool // Whitelist of events to broadcast (empty = allow all)

	// Unique ID generated on startup - clients use it to detect a server
	// restart and clear stale state.
	serverInstanceID string
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	h.allowedEvents = make(map[string]bool)
	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		logger.Debug().
			Int("allowed_events", len(h.allowedEvents)).
			Msg("Initialized event whitelist for WebSocketHandler")
	}

	// Nil throttler = no throttling
	if config != nil && len(config.ThrottleIntervals) > 0 {
		if intervalStr, ok := config.ThrottleIntervals["stage_progress"]; ok {
			if duration, err := time.ParseDuration(intervalStr); err == nil {
				h.stageProgressThrottler = rate.NewLimiter(rate.Every(duration), 1)
				logger.Debug().
					Str("event_type", "stage_progress").
					Str("interval", intervalStr).
					Msg("Throttler initialized for stage_progress events")
			} else {
				logger.Warn().
					Err(err).
					Str("interval", intervalStr).
					Msg("Failed to parse stage_progress throttle interval - throttler disabled")
			}
		}
	}

	if eventService != nil {
		h.subscribeToEvents()
	}

	return h
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendHello(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// sendHello identifies the server instance to a newly connected client.
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "hello",
		Payload: map[string]interface{}{
			"serverInstanceId": h.serverInstanceID,
			"timestamp":        time.Now().Format(time.RFC3339),
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hello message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send hello")
		}
	}
}

// broadcast sends one message to every connected client. Writes are
// serialized per connection; gorilla/websocket does not allow concurrent
// writers on one conn.
func (h *WebSocketHandler) broadcast(msgType string, payload interface{}) {
	msg := WSMessage{Type: msgType, Payload: payload}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to send to websocket client")
		}
	}
}

// eventAllowed checks the whitelist (empty whitelist = allow all).
func (h *WebSocketHandler) eventAllowed(eventType string) bool {
	return len(h.allowedEvents) == 0 || h.allowedEvents[eventType]
}

// BroadcastLog sends a log entry to all connected clients. Called by the
// websocket log writer, never directly by services.
func (h *WebSocketHandler) BroadcastLog(entry models.LogEntry) {
	h.broadcast("log", entry)
}

// subscribeToEvents wires the dashboard feed to the event bus.
func (h *WebSocketHandler) subscribeToEvents() {
	h.eventService.Subscribe(interfaces.EventStatusChanged, func(ctx context.Context, event interfaces.Event) error {
		update, ok := event.Payload.(models.StatusUpdate)
		if !ok {
			h.logger.Warn().Msg("Invalid status changed event payload type")
			return nil
		}
		if !h.eventAllowed("status_changed") {
			return nil
		}
		h.broadcast("app_status", update)
		return nil
	})

	h.eventService.Subscribe(interfaces.EventRunUpdated, func(ctx context.Context, event interfaces.Event) error {
		record, ok := event.Payload.(models.RunRecord)
		if !ok {
			h.logger.Warn().Msg("Invalid run updated event payload type")
			return nil
		}
		if !h.eventAllowed("run_updated") {
			return nil
		}
		h.broadcast("run_update", record)
		return nil
	})

	h.eventService.Subscribe(interfaces.EventStageProgress, func(ctx context.Context, event interfaces.Event) error {
		progress, ok := event.Payload.(models.StageProgress)
		if !ok {
			h.logger.Warn().Msg("Invalid stage progress event payload type")
			return nil
		}
		if !h.eventAllowed("stage_progress") {
			return nil
		}

		// Failed stages always go out; a throttled failure would leave
		// the dashboard showing a job stuck mid-stage.
		if progress.Success && h.stageProgressThrottler != nil && !h.stageProgressThrottler.Allow() {
			return nil
		}

		h.broadcast("stage_progress", progress)
		return nil
	})

	h.eventService.Subscribe(interfaces.EventLog, func(ctx context.Context, event interfaces.Event) error {
		entry, ok := event.Payload.(models.LogEntry)
		if !ok {
			return nil
		}
		if !h.eventAllowed("log") {
			return nil
		}
		h.BroadcastLog(entry)
		return nil
	})
}
