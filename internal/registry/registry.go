package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pbxwatch/backend/internal/types"
	"github.com/rs/zerolog"
)

// Registry is the in-memory store of calls currently believed to be in
// progress. It is mutated exclusively by discrete start/end events and is
// reconciled against snapshot polling by the aggregator. No persistence;
// it is cleared only by process restart.
type Registry struct {
	calls  map[string]types.Call // keyed by call ID
	mu     sync.RWMutex
	logger zerolog.Logger
}

// New creates an empty call registry
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		calls:  make(map[string]types.Call),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// OnCallStarted inserts a new call from a call.started event. When the
// provider did not supply a stable id, a key is generated; such a call
// cannot be matched by a later call.ended event and will linger until
// restart.
func (r *Registry) OnCallStarted(event types.CallStartedEvent) types.Call {
	now := time.Now()

	call := types.Call{
		ID:          event.UniqueID,
		UniqueID:    event.UniqueID,
		Channel:     event.Channel,
		PhoneNumber: event.From,
		CallerName:  event.CallerName,
		AgentID:     event.AgentID,
		AgentName:   event.AgentName,
		Extension:   event.Extension,
		Queue:       event.Queue,
		StartTime:   now,
		State:       types.CallStateActive,
	}

	switch event.Direction {
	case "outbound":
		call.Direction = types.DirectionOutbound
	case "internal":
		call.Direction = types.DirectionInternal
	default:
		call.Direction = types.DirectionInbound
	}

	if call.ID == "" {
		call.ID = uuid.New().String()
		r.logger.Warn().
			Str("generated_id", call.ID).
			Str("channel", call.Channel).
			Msg("call started without provider id, end event will not reconcile")
	}
	if call.Queue == "" {
		call.Queue = types.DirectQueue
	}

	r.mu.Lock()
	r.calls[call.ID] = call
	r.mu.Unlock()

	return call.WithDuration(now)
}

// OnCallEnded removes the matching call and returns it with its final
// duration. A miss is not an error: an end event may race a still-pending
// start, or arrive twice.
func (r *Registry) OnCallEnded(event types.CallEndedEvent) (types.Call, bool) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Exact match on the local key first
	if call, ok := r.calls[event.UniqueID]; ok {
		delete(r.calls, event.UniqueID)
		call.State = types.CallStateEnded
		return call.WithDuration(now), true
	}

	// Fall back to the original provider-supplied identifier when it
	// differs from the local key
	for key, call := range r.calls {
		if call.UniqueID != "" && call.UniqueID == event.UniqueID {
			delete(r.calls, key)
			call.State = types.CallStateEnded
			return call.WithDuration(now), true
		}
	}

	r.logger.Debug().
		Str("uniqueid", event.UniqueID).
		Msg("call ended without matching registry entry")
	return types.Call{}, false
}

// LookupByParticipant returns the active call served by the given agent
// id or extension, with its duration refreshed.
func (r *Registry) LookupByParticipant(id string) (types.Call, bool) {
	if id == "" {
		return types.Call{}, false
	}

	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, call := range r.calls {
		if call.AgentID == id || call.Extension == id {
			return call.WithDuration(now), true
		}
	}
	return types.Call{}, false
}

// SnapshotAll returns all tracked calls with durations refreshed
func (r *Registry) SnapshotAll() []types.Call {
	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	calls := make([]types.Call, 0, len(r.calls))
	for _, call := range r.calls {
		calls = append(calls, call.WithDuration(now))
	}
	return calls
}

// Len returns the number of tracked calls
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}
