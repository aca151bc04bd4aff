package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pbxwatch/backend/internal/alerts"
	"github.com/pbxwatch/backend/internal/metrics"
	"github.com/pbxwatch/backend/internal/registry"
	"github.com/pbxwatch/backend/internal/types"
	"github.com/pbxwatch/backend/internal/upstream"
	"github.com/rs/zerolog"
)

// Sink receives serialized broadcast messages for fan-out to subscribers
type Sink interface {
	Broadcast(message []byte)
	ClientCount() int
}

// view holds one tick's causally consistent aggregation pass
type view struct {
	Agents []types.Agent
	Queues []types.Queue
	Calls  []types.Call
	Stats  types.AggregatedStats
}

// Aggregator owns the polling cadence and the authoritative merged view.
// It pulls snapshots from the upstream client, reconciles them with the
// event-driven call registry, evaluates alerts and emits every resulting
// view to the sink. Discrete events bypass the tick entirely through
// Dispatch.
type Aggregator struct {
	client   *upstream.Client
	registry *registry.Registry
	eval     *alerts.Evaluator
	sink     Sink
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}

	statsMu   sync.RWMutex
	lastStats types.AggregatedStats
}

// New creates a new aggregator with the given poll interval
func New(client *upstream.Client, reg *registry.Registry, eval *alerts.Evaluator, sink Sink, interval time.Duration, logger zerolog.Logger) *Aggregator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Aggregator{
		client:   client,
		registry: reg,
		eval:     eval,
		sink:     sink,
		interval: interval,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Start arms the polling loop. A start request while already running is
// a no-op; only one timer is ever active.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		a.logger.Debug().Msg("start requested while already polling")
		return
	}
	a.running = true
	a.stop = make(chan struct{})

	go a.run(a.stop)
	a.logger.Info().Dur("interval", a.interval).Msg("aggregator started")
}

// Stop disarms the polling loop. In-flight fetches are not cancelled but
// their results are discarded before emission.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.running = false
	close(a.stop)
	a.logger.Info().Msg("aggregator stopped")
}

// Running reports whether the polling loop is armed
func (a *Aggregator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Aggregator) run(stop chan struct{}) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// First pass immediately so subscribers see data before the first
	// full interval elapses
	a.tick()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

// tick runs one polling/broadcast cycle. Failures are logged and
// surfaced as a single error broadcast; they never stop the timer.
func (a *Aggregator) tick() {
	m := metrics.Get()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	v, err := a.aggregate(ctx)

	// Results arriving after Stop are discarded, error broadcasts included
	if !a.Running() {
		return
	}

	if err != nil {
		m.RecordTickError()
		a.logger.Error().Err(err).Msg("aggregation failed")
		a.emit(types.ChannelError, map[string]string{"message": "failed to aggregate dashboard data"})
		return
	}

	a.statsMu.Lock()
	a.lastStats = v.Stats
	a.statsMu.Unlock()

	broadcasts := 0
	for _, emit := range []struct {
		channel string
		payload any
	}{
		{types.ChannelAgents, v.Agents},
		{types.ChannelQueues, v.Queues},
		{types.ChannelCalls, v.Calls},
		{types.ChannelStats, v.Stats},
	} {
		if a.emit(emit.channel, emit.payload) {
			broadcasts++
		}
	}

	if alertList := a.eval.Evaluate(v.Queues, v.Agents, a.client.Healthy()); len(alertList) > 0 {
		if a.emit(types.ChannelAlerts, alertList) {
			broadcasts++
		}
		m.RecordAlerts(len(alertList))
	}

	m.UpdateAgentStats(v.Agents)
	m.RecordTick(time.Since(start), broadcasts)

	a.logger.Debug().
		Int("agents", len(v.Agents)).
		Int("queues", len(v.Queues)).
		Int("calls", len(v.Calls)).
		Int("clients", a.sink.ClientCount()).
		Bool("provider_healthy", a.client.Healthy()).
		Msg("tick broadcasted")
}

// aggregate performs one full fetch/merge pass. The three upstream reads
// are issued concurrently; none of them fails (the client degrades to
// synthetic data), so an error here means the merge itself blew up.
func (a *Aggregator) aggregate(ctx context.Context) (v *view, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
			err = fmt.Errorf("aggregation panic: %v", r)
		}
	}()

	var (
		agents []types.Agent
		queues []types.Queue
		calls  []types.Call
		wg     sync.WaitGroup
	)

	wg.Add(3)
	go func() { defer wg.Done(); agents = a.client.FetchAgents(ctx) }()
	go func() { defer wg.Done(); queues = a.client.FetchQueues(ctx) }()
	go func() { defer wg.Done(); calls = a.client.FetchCalls(ctx) }()
	wg.Wait()

	now := time.Now()
	calls = mergeCalls(calls, a.registry.SnapshotAll(), now)
	agents = enrichAgents(agents, a.registry, now)
	queues = recomputeQueueCounts(queues, agents)

	return &view{
		Agents: agents,
		Queues: queues,
		Calls:  calls,
		Stats:  computeStats(agents, queues, calls, now),
	}, nil
}

// emit marshals a message envelope and hands it to the sink
func (a *Aggregator) emit(channel string, payload any) bool {
	data, err := json.Marshal(types.Message{
		Channel:   channel,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("channel", channel).Msg("failed to marshal broadcast")
		return false
	}
	a.sink.Broadcast(data)
	return true
}

// Dispatch routes a discrete inbound event. Call lifecycle events mutate
// the registry and trigger an immediate narrow broadcast without waiting
// for the next tick.
func (a *Aggregator) Dispatch(env types.Envelope) error {
	switch env.Type {
	case types.EventCallStarted:
		var ev types.CallStartedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode call.started: %w", err)
		}
		call := a.registry.OnCallStarted(ev)
		a.emit(types.ChannelCallStarted, call)

	case types.EventCallEnded:
		var ev types.CallEndedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode call.ended: %w", err)
		}
		removed, ok := a.registry.OnCallEnded(ev)
		if !ok {
			// End may race a pending start or arrive twice; diagnosable
			// but never an error
			a.logger.Warn().Str("uniqueid", ev.UniqueID).Msg("unmatched call.ended event")
			return nil
		}
		a.emit(types.ChannelCallEnded, removed)

	case types.EventAgentStatus:
		var ev types.AgentStatusEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode agent.status: %w", err)
		}
		a.emit(types.ChannelAgentUpdated, a.agentFromStatusEvent(ev))

	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	return nil
}

// agentFromStatusEvent builds the narrow agent payload for a status
// change, enriched with the registry's view of the agent's active call
func (a *Aggregator) agentFromStatusEvent(ev types.AgentStatusEvent) types.Agent {
	now := time.Now()

	agent := types.Agent{
		ID:               ev.AgentID,
		Extension:        ev.Extension,
		Name:             ev.Name,
		Status:           upstream.NormalizeStatus(ev.Status, ev.DeviceState),
		DeviceState:      ev.DeviceState,
		Departments:      ev.Departments,
		LastStatusChange: now,
	}
	if agent.ID == "" {
		agent.ID = "agent_" + ev.Extension
	}
	if len(agent.Departments) == 0 {
		agent.Departments = []string{"general"}
	}

	if call, ok := a.registry.LookupByParticipant(agent.ID); ok {
		agent.Status = types.StatusBusy
		agent.CurrentCall = call.Summary(now)
	} else if call, ok := a.registry.LookupByParticipant(agent.Extension); ok {
		agent.Status = types.StatusBusy
		agent.CurrentCall = call.Summary(now)
	}

	return agent
}

// Stats returns the stats emitted on the most recent tick. Used for the
// immediate snapshot pushed to newly connected subscribers.
func (a *Aggregator) Stats() types.AggregatedStats {
	a.statsMu.RLock()
	defer a.statsMu.RUnlock()
	return a.lastStats
}

// Agents serves the synchronous query mirror of dashboard:agents
func (a *Aggregator) Agents(ctx context.Context) []types.Agent {
	return enrichAgents(a.client.FetchAgents(ctx), a.registry, time.Now())
}

// Queues serves the synchronous query mirror of dashboard:queues
func (a *Aggregator) Queues(ctx context.Context) []types.Queue {
	agents := enrichAgents(a.client.FetchAgents(ctx), a.registry, time.Now())
	return recomputeQueueCounts(a.client.FetchQueues(ctx), agents)
}

// Calls serves the synchronous query mirror of dashboard:calls
func (a *Aggregator) Calls(ctx context.Context) []types.Call {
	return mergeCalls(a.client.FetchCalls(ctx), a.registry.SnapshotAll(), time.Now())
}

// StatsNow recomputes the full overview on demand
func (a *Aggregator) StatsNow(ctx context.Context) (types.AggregatedStats, error) {
	v, err := a.aggregate(ctx)
	if err != nil {
		return types.AggregatedStats{}, err
	}
	return v.Stats, nil
}
