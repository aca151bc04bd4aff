package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pbxwatch/backend/internal/config"
	"github.com/pbxwatch/backend/internal/metrics"
	"github.com/pbxwatch/backend/internal/types"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens in the CORS middleware
		return true
	},
}

// StatsSource provides the latest aggregated stats for the welcome push
type StatsSource interface {
	Stats() types.AggregatedStats
}

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub    *Hub
	config *config.Config
	stats  StatsSource
	logger zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, cfg *config.Config, stats StatsSource, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		config: cfg,
		stats:  stats,
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	// Create new client
	client := NewClient(h.hub, conn, h.config, h.logger)
	metrics.Get().RecordWebSocketConnect()

	// Queue an immediate stats snapshot so the subscriber has data
	// before the next tick
	if h.stats != nil {
		welcome := types.Message{
			Channel:   types.ChannelStats,
			Timestamp: time.Now(),
			Payload:   h.stats.Stats(),
		}
		if data, err := json.Marshal(welcome); err == nil {
			client.send <- data
		} else {
			h.logger.Error().Err(err).Msg("failed to marshal welcome snapshot")
		}
	}

	// Register client with hub
	h.hub.register <- client

	// Start client pumps
	client.Start()
}
