package upstream

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pbxwatch/backend/internal/types"
)

// Synthetic fallback dataset served whenever the provider is unreachable
// or returns an empty payload. Shaped like production data so downstream
// consumers always receive a well-formed, non-empty view.

// syntheticAgentNames is the fixed roster used for fallback data
var syntheticAgentNames = []string{
	"Sarah Mitchell",
	"James Okafor",
	"Elena Rodriguez",
	"Tom Becker",
	"Priya Sharma",
	"Marcus Webb",
	"Anna Kowalski",
	"David Chen",
	"Lucia Ferrari",
	"Omar Haddad",
	"Nina Petrova",
	"Chris Taylor",
}

// syntheticStatuses cycles across the roster so every status is represented
var syntheticStatuses = []types.AgentStatus{
	types.StatusAvailable,
	types.StatusBusy,
	types.StatusAway,
	types.StatusOffline,
}

var syntheticDepartments = []string{"support", "sales", "billing", "general"}

// SyntheticAgents returns the fixed fallback roster. The roster itself is
// deterministic; only timestamps depend on the given instant.
func SyntheticAgents(now time.Time) []types.Agent {
	agents := make([]types.Agent, 0, len(syntheticAgentNames))
	for i, name := range syntheticAgentNames {
		extension := fmt.Sprintf("%d", 100+i)
		agents = append(agents, types.Agent{
			ID:               "agent_" + extension,
			Extension:        extension,
			Name:             name,
			Status:           syntheticStatuses[i%len(syntheticStatuses)],
			Departments:      []string{syntheticDepartments[i%len(syntheticDepartments)]},
			LastStatusChange: now,
		})
	}
	return agents
}

// SyntheticQueues returns the four fixed fallback queues
func SyntheticQueues() []types.Queue {
	return []types.Queue{
		{
			ID: "queue_600", Extension: "600", Name: "Support",
			Strategy: "ringall", Timeout: 15, Retry: 5,
			WaitingCalls: 2, TotalCalls: 145, AnsweredCalls: 132, AbandonedCalls: 13,
			LongestWait: 45, AverageWait: 22, ServiceLevel: 91.0,
		},
		{
			ID: "queue_601", Extension: "601", Name: "Sales",
			Strategy: "leastrecent", Timeout: 20, Retry: 5,
			WaitingCalls: 1, TotalCalls: 89, AnsweredCalls: 85, AbandonedCalls: 4,
			LongestWait: 18, AverageWait: 12, ServiceLevel: 95.5,
		},
		{
			ID: "queue_602", Extension: "602", Name: "Billing",
			Strategy: "fewestcalls", Timeout: 15, Retry: 10,
			WaitingCalls: 0, TotalCalls: 54, AnsweredCalls: 50, AbandonedCalls: 4,
			LongestWait: 0, AverageWait: 15, ServiceLevel: 92.6,
		},
		{
			ID: "queue_603", Extension: "603", Name: "General",
			Strategy: "ringall", Timeout: 30, Retry: 5,
			WaitingCalls: 3, TotalCalls: 210, AnsweredCalls: 188, AbandonedCalls: 22,
			LongestWait: 67, AverageWait: 31, ServiceLevel: 89.5,
		},
	}
}

// SyntheticCalls returns a pseudo-random count of synthetic active calls
// attributed to the busy slots of the fallback roster.
func SyntheticCalls(now time.Time) []types.Call {
	count := 3 + rand.Intn(4)
	calls := make([]types.Call, 0, count)
	queues := SyntheticQueues()

	for i := 0; i < count; i++ {
		// Busy agents sit at roster offsets 1, 5, 9, ...
		rosterIdx := (1 + 4*i) % len(syntheticAgentNames)
		extension := fmt.Sprintf("%d", 100+rosterIdx)
		direction := types.DirectionInbound
		if i%3 == 2 {
			direction = types.DirectionOutbound
		}

		call := types.Call{
			ID:          fmt.Sprintf("synthetic-%d-%d", now.Unix(), i),
			Direction:   direction,
			PhoneNumber: fmt.Sprintf("+1555%07d", 1000000+i*111111),
			AgentID:     "agent_" + extension,
			AgentName:   syntheticAgentNames[rosterIdx],
			Extension:   extension,
			Queue:       queues[i%len(queues)].ID,
			StartTime:   now.Add(-time.Duration(30+i*45) * time.Second),
			State:       types.CallStateActive,
		}
		call.UniqueID = call.ID
		calls = append(calls, call.WithDuration(now))
	}
	return calls
}
