package aggregator

import (
	"strings"
	"time"

	"github.com/pbxwatch/backend/internal/types"
)

// mergeCalls reconciles the snapshot call list with registry-tracked
// calls. For a matching identifier the registry wins on duration (it
// holds the true start time across long-running calls) and the snapshot
// wins on everything else. Tracked calls absent from the snapshot are
// appended so event-driven calls show up between polls. The merge is
// idempotent: applying it twice without intervening events yields the
// same output.
func mergeCalls(snapshot, tracked []types.Call, now time.Time) []types.Call {
	trackedByID := make(map[string]types.Call, len(tracked))
	for _, call := range tracked {
		trackedByID[call.ID] = call
		if call.UniqueID != "" && call.UniqueID != call.ID {
			trackedByID[call.UniqueID] = call
		}
	}

	merged := make([]types.Call, 0, len(snapshot)+len(tracked))
	matched := make(map[string]bool, len(tracked))

	for _, call := range snapshot {
		refreshed := call.WithDuration(now)
		if reg, ok := trackedByID[call.ID]; ok {
			refreshed.Duration = reg.WithDuration(now).Duration
			matched[reg.ID] = true
		} else if reg, ok := trackedByID[call.UniqueID]; ok && call.UniqueID != "" {
			refreshed.Duration = reg.WithDuration(now).Duration
			matched[reg.ID] = true
		}
		merged = append(merged, refreshed)
	}

	for _, call := range tracked {
		if !matched[call.ID] {
			merged = append(merged, call.WithDuration(now))
		}
	}

	return merged
}

// callLookup resolves the active call for an agent id or extension
type callLookup interface {
	LookupByParticipant(id string) (types.Call, bool)
}

// enrichAgents refreshes each agent's denormalized CurrentCall summary
// from the registry. An agent serving a tracked call is forced busy.
func enrichAgents(agents []types.Agent, lookup callLookup, now time.Time) []types.Agent {
	for i := range agents {
		call, ok := lookup.LookupByParticipant(agents[i].ID)
		if !ok {
			call, ok = lookup.LookupByParticipant(agents[i].Extension)
		}
		if !ok {
			continue
		}
		agents[i].Status = types.StatusBusy
		agents[i].CurrentCall = call.Summary(now)
	}
	return agents
}

// recomputeQueueCounts fills in agent-derived queue counters from the
// fresh agent list. Zero-valued upstream fields are treated as "not
// provided" and overwritten; non-zero upstream values are kept.
func recomputeQueueCounts(queues []types.Queue, agents []types.Agent) []types.Queue {
	for i := range queues {
		if queues[i].TotalAgents != 0 && queues[i].AgentsAvailable != 0 && queues[i].AgentsOnCall != 0 {
			continue
		}

		total, available, onCall := 0, 0, 0
		for _, agent := range agents {
			if !agentInQueue(agent, queues[i]) {
				continue
			}
			total++
			switch agent.Status {
			case types.StatusAvailable:
				available++
			case types.StatusBusy:
				onCall++
			}
		}

		if queues[i].TotalAgents == 0 {
			queues[i].TotalAgents = total
		}
		if queues[i].AgentsAvailable == 0 {
			queues[i].AgentsAvailable = available
		}
		if queues[i].AgentsOnCall == 0 {
			queues[i].AgentsOnCall = onCall
		}
	}
	return queues
}

// agentInQueue reports whether an agent's department memberships cover
// the given queue, by queue id or name
func agentInQueue(agent types.Agent, queue types.Queue) bool {
	for _, dept := range agent.Departments {
		if dept == queue.ID || strings.EqualFold(dept, queue.Name) {
			return true
		}
	}
	return false
}

// computeStats derives the overview sampled at emission time
func computeStats(agents []types.Agent, queues []types.Queue, calls []types.Call, now time.Time) types.AggregatedStats {
	stats := types.AggregatedStats{Timestamp: now}

	stats.Agents.Total = len(agents)
	for _, agent := range agents {
		switch agent.Status {
		case types.StatusAvailable:
			stats.Agents.Available++
		case types.StatusBusy:
			stats.Agents.Busy++
		case types.StatusAway:
			stats.Agents.Away++
		case types.StatusOffline:
			stats.Agents.Offline++
		}
	}

	for _, call := range calls {
		if call.State == types.CallStateActive {
			stats.Calls.Active++
		}
	}

	stats.Queues.Total = len(queues)
	waitSum := 0
	for _, queue := range queues {
		stats.Calls.Waiting += queue.WaitingCalls
		stats.Calls.Answered += queue.AnsweredCalls
		stats.Calls.Abandoned += queue.AbandonedCalls
		waitSum += queue.AverageWait
		if queue.LongestWait > stats.Queues.LongestWaitTime {
			stats.Queues.LongestWaitTime = queue.LongestWait
		}
	}
	if len(queues) > 0 {
		stats.Queues.AverageWaitTime = float64(waitSum) / float64(len(queues))
	}

	return stats
}
