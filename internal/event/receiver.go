package event

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pbxwatch/backend/internal/metrics"
	"github.com/pbxwatch/backend/internal/types"
	"github.com/rs/zerolog"
)

// Dispatcher routes a decoded event envelope to the component that owns
// its side effects
type Dispatcher interface {
	Dispatch(env types.Envelope) error
}

// Receiver handles incoming call and agent events from the PBX connector
type Receiver struct {
	dispatcher     Dispatcher
	logger         zerolog.Logger
	eventsReceived int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new event receiver
func NewReceiver(dispatcher Dispatcher, logger zerolog.Logger) *Receiver {
	return &Receiver{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleEvent receives and dispatches individual connector events
func (r *Receiver) HandleEvent(w http.ResponseWriter, req *http.Request) {
	m := metrics.Get()

	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var env types.Envelope
	if err := json.NewDecoder(req.Body).Decode(&env); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode event")
		m.RecordEventError()
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	m.RecordEventReceived()

	if err := r.dispatcher.Dispatch(env); err != nil {
		r.logger.Error().Err(err).Str("type", string(env.Type)).Msg("failed to dispatch event")
		m.RecordEventError()
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	m.RecordEventProcessed()

	atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	// Log periodically
	count := atomic.LoadInt64(&r.eventsReceived)
	if count%1000 == 0 {
		r.logger.Info().
			Int64("total_received", count).
			Msg("events received")
	}

	w.WriteHeader(http.StatusOK)
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"events_received": atomic.LoadInt64(&r.eventsReceived),
		"last_received":   lastReceived,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
