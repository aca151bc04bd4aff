package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pbxwatch/backend/internal/types"
	"github.com/rs/zerolog"
)

// DashboardSource serves the synchronous query mirror of the broadcast
// channels; the REST endpoints return the same merged views a WebSocket
// subscriber would see.
type DashboardSource interface {
	Agents(ctx context.Context) []types.Agent
	Queues(ctx context.Context) []types.Queue
	Calls(ctx context.Context) []types.Call
	StatsNow(ctx context.Context) (types.AggregatedStats, error)
}

// Handler serves the REST dashboard endpoints
type Handler struct {
	source DashboardSource
	logger zerolog.Logger
}

// NewHandler creates a new API handler
func NewHandler(source DashboardSource, logger zerolog.Logger) *Handler {
	return &Handler{
		source: source,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// HandleAgents handles GET /api/agents
func (h *Handler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.source.Agents(r.Context()))
}

// HandleQueues handles GET /api/queues
func (h *Handler) HandleQueues(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.source.Queues(r.Context()))
}

// HandleCalls handles GET /api/calls
func (h *Handler) HandleCalls(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.source.Calls(r.Context()))
}

// HandleStats handles GET /api/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.source.StatsNow(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to compute stats")
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, stats)
}

func (h *Handler) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
