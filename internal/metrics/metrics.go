package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pbxwatch/backend/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Event intake metrics
	EventsReceivedTotal   int64
	EventsProcessedTotal  int64
	EventProcessingErrors int64

	// Polling/broadcast metrics
	TicksTotal       int64
	TickErrorsTotal  int64
	BroadcastsTotal  int64
	AlertsTotal      int64
	lastTickDuration time.Duration

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	activeConnections            int64

	// Agent distribution sampled on the last tick
	agentsByStatus map[types.AgentStatus]int
	totalAgents    int

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			agentsByStatus: make(map[types.AgentStatus]int),
			startTime:      time.Now(),
		}
	})
	return instance
}

// RecordEventReceived increments the events received counter
func (m *Metrics) RecordEventReceived() {
	m.mu.Lock()
	m.EventsReceivedTotal++
	m.mu.Unlock()
}

// RecordEventProcessed increments the events processed counter
func (m *Metrics) RecordEventProcessed() {
	m.mu.Lock()
	m.EventsProcessedTotal++
	m.mu.Unlock()
}

// RecordEventError increments the event processing error counter
func (m *Metrics) RecordEventError() {
	m.mu.Lock()
	m.EventProcessingErrors++
	m.mu.Unlock()
}

// RecordTick records one completed polling cycle
func (m *Metrics) RecordTick(duration time.Duration, broadcasts int) {
	m.mu.Lock()
	m.TicksTotal++
	m.BroadcastsTotal += int64(broadcasts)
	m.lastTickDuration = duration
	m.mu.Unlock()
}

// RecordTickError increments the tick error counter
func (m *Metrics) RecordTickError() {
	m.mu.Lock()
	m.TickErrorsTotal++
	m.mu.Unlock()
}

// RecordAlerts counts emitted alerts
func (m *Metrics) RecordAlerts(count int) {
	m.mu.Lock()
	m.AlertsTotal += int64(count)
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// UpdateAgentStats updates agent distribution metrics
func (m *Metrics) UpdateAgentStats(agents []types.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int)
	m.totalAgents = len(agents)
	for _, agent := range agents {
		m.agentsByStatus[agent.Status]++
	}
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		fmt.Fprintf(w, "pbxwatch_events_received_total %d\n", m.EventsReceivedTotal)
		fmt.Fprintf(w, "pbxwatch_events_processed_total %d\n", m.EventsProcessedTotal)
		fmt.Fprintf(w, "pbxwatch_event_errors_total %d\n", m.EventProcessingErrors)
		fmt.Fprintf(w, "pbxwatch_ticks_total %d\n", m.TicksTotal)
		fmt.Fprintf(w, "pbxwatch_tick_errors_total %d\n", m.TickErrorsTotal)
		fmt.Fprintf(w, "pbxwatch_broadcasts_total %d\n", m.BroadcastsTotal)
		fmt.Fprintf(w, "pbxwatch_alerts_total %d\n", m.AlertsTotal)
		fmt.Fprintf(w, "pbxwatch_last_tick_duration_seconds %f\n", m.lastTickDuration.Seconds())
		fmt.Fprintf(w, "pbxwatch_ws_connections_total %d\n", m.WebSocketConnectionsTotal)
		fmt.Fprintf(w, "pbxwatch_ws_disconnections_total %d\n", m.WebSocketDisconnectionsTotal)
		fmt.Fprintf(w, "pbxwatch_ws_active_connections %d\n", m.activeConnections)
		fmt.Fprintf(w, "pbxwatch_agents_total %d\n", m.totalAgents)
		for status, count := range m.agentsByStatus {
			fmt.Fprintf(w, "pbxwatch_agents{status=%q} %d\n", status, count)
		}
		fmt.Fprintf(w, "pbxwatch_uptime_seconds %f\n", time.Since(m.startTime).Seconds())
	}
}
