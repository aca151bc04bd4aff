package aggregator

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/pbxwatch/backend/internal/registry"
	"github.com/pbxwatch/backend/internal/types"
	"github.com/rs/zerolog"
)

func TestMergeCallsRegistryWinsDuration(t *testing.T) {
	now := time.Now()

	snapshot := []types.Call{
		{
			ID:          "42",
			UniqueID:    "42",
			PhoneNumber: "+15551112222",
			Queue:       "queue_600",
			StartTime:   now.Add(-10 * time.Second), // drifted snapshot clock
			State:       types.CallStateActive,
		},
	}
	tracked := []types.Call{
		{
			ID:        "42",
			UniqueID:  "42",
			StartTime: now.Add(-120 * time.Second), // true start
			State:     types.CallStateActive,
		},
	}

	merged := mergeCalls(snapshot, tracked, now)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged call, got %d", len(merged))
	}

	// Registry wins on duration
	if merged[0].Duration < 119 || merged[0].Duration > 121 {
		t.Errorf("expected registry duration near 120s, got %d", merged[0].Duration)
	}
	// Snapshot wins on everything else
	if merged[0].PhoneNumber != "+15551112222" {
		t.Errorf("expected snapshot phone number, got %s", merged[0].PhoneNumber)
	}
	if merged[0].Queue != "queue_600" {
		t.Errorf("expected snapshot queue, got %s", merged[0].Queue)
	}
}

func TestMergeCallsUnionsTrackedOnly(t *testing.T) {
	now := time.Now()

	snapshot := []types.Call{
		{ID: "a", UniqueID: "a", StartTime: now.Add(-5 * time.Second), State: types.CallStateActive},
	}
	tracked := []types.Call{
		{ID: "b", UniqueID: "b", StartTime: now.Add(-30 * time.Second), State: types.CallStateActive},
	}

	merged := mergeCalls(snapshot, tracked, now)
	if len(merged) != 2 {
		t.Fatalf("expected snapshot+tracked union of 2 calls, got %d", len(merged))
	}
}

func TestMergeCallsIdempotent(t *testing.T) {
	now := time.Now()

	snapshot := []types.Call{
		{ID: "x", UniqueID: "x", StartTime: now.Add(-40 * time.Second), State: types.CallStateActive},
		{ID: "y", UniqueID: "y", StartTime: now.Add(-80 * time.Second), State: types.CallStateActive},
	}
	tracked := []types.Call{
		{ID: "x", UniqueID: "x", StartTime: now.Add(-45 * time.Second), State: types.CallStateActive},
		{ID: "z", UniqueID: "z", StartTime: now.Add(-15 * time.Second), State: types.CallStateActive},
	}

	first := mergeCalls(snapshot, tracked, now)
	second := mergeCalls(snapshot, tracked, now)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("merge is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestEnrichAgentsBusyOverride(t *testing.T) {
	now := time.Now()
	reg := registry.New(zerolog.New(&bytes.Buffer{}))
	reg.OnCallStarted(types.CallStartedEvent{
		UniqueID:  "77",
		AgentID:   "agent_201",
		Extension: "201",
		From:      "+15553334444",
	})

	agents := []types.Agent{
		{ID: "agent_201", Extension: "201", Status: types.StatusAvailable, Departments: []string{"support"}},
		{ID: "agent_202", Extension: "202", Status: types.StatusAvailable, Departments: []string{"support"}},
	}

	enriched := enrichAgents(agents, reg, now)

	if enriched[0].Status != types.StatusBusy {
		t.Errorf("expected agent with tracked call to be busy, got %s", enriched[0].Status)
	}
	if enriched[0].CurrentCall == nil {
		t.Fatal("expected CurrentCall summary")
	}
	if enriched[0].CurrentCall.UniqueID != "77" {
		t.Errorf("expected call 77, got %s", enriched[0].CurrentCall.UniqueID)
	}
	if enriched[1].Status != types.StatusAvailable {
		t.Errorf("expected idle agent untouched, got %s", enriched[1].Status)
	}
	if enriched[1].CurrentCall != nil {
		t.Error("expected no CurrentCall for idle agent")
	}
}

func TestRecomputeQueueCounts(t *testing.T) {
	agents := []types.Agent{
		{ID: "a1", Status: types.StatusAvailable, Departments: []string{"support"}},
		{ID: "a2", Status: types.StatusBusy, Departments: []string{"support"}},
		{ID: "a3", Status: types.StatusOffline, Departments: []string{"support"}},
		{ID: "a4", Status: types.StatusAvailable, Departments: []string{"sales"}},
	}

	queues := []types.Queue{
		// Zero-valued counts: treated as not provided and overwritten
		{ID: "queue_600", Name: "Support"},
		// Upstream-supplied counts are kept
		{ID: "queue_601", Name: "Sales", TotalAgents: 9, AgentsAvailable: 5, AgentsOnCall: 4},
	}

	result := recomputeQueueCounts(queues, agents)

	if result[0].TotalAgents != 3 {
		t.Errorf("expected 3 support agents, got %d", result[0].TotalAgents)
	}
	if result[0].AgentsAvailable != 1 {
		t.Errorf("expected 1 available support agent, got %d", result[0].AgentsAvailable)
	}
	if result[0].AgentsOnCall != 1 {
		t.Errorf("expected 1 on-call support agent, got %d", result[0].AgentsOnCall)
	}

	if result[1].TotalAgents != 9 || result[1].AgentsAvailable != 5 || result[1].AgentsOnCall != 4 {
		t.Errorf("expected upstream counts preserved, got %+v", result[1])
	}
}

func TestRecomputeQueueCountsMatchesByID(t *testing.T) {
	agents := []types.Agent{
		{ID: "a1", Status: types.StatusAvailable, Departments: []string{"queue_600"}},
	}
	queues := []types.Queue{{ID: "queue_600", Name: "Support"}}

	result := recomputeQueueCounts(queues, agents)
	if result[0].TotalAgents != 1 {
		t.Errorf("expected membership match by queue id, got %d", result[0].TotalAgents)
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Now()

	agents := []types.Agent{
		{Status: types.StatusAvailable},
		{Status: types.StatusAvailable},
		{Status: types.StatusBusy},
		{Status: types.StatusAway},
		{Status: types.StatusOffline},
	}
	queues := []types.Queue{
		{WaitingCalls: 2, AnsweredCalls: 10, AbandonedCalls: 1, AverageWait: 20, LongestWait: 45},
		{WaitingCalls: 1, AnsweredCalls: 5, AbandonedCalls: 0, AverageWait: 10, LongestWait: 90},
	}
	calls := []types.Call{
		{State: types.CallStateActive},
		{State: types.CallStateActive},
		{State: types.CallStateEnded},
	}

	stats := computeStats(agents, queues, calls, now)

	if stats.Agents.Total != 5 || stats.Agents.Available != 2 || stats.Agents.Busy != 1 {
		t.Errorf("unexpected agent stats: %+v", stats.Agents)
	}
	if stats.Calls.Active != 2 {
		t.Errorf("expected 2 active calls, got %d", stats.Calls.Active)
	}
	if stats.Calls.Waiting != 3 || stats.Calls.Answered != 15 || stats.Calls.Abandoned != 1 {
		t.Errorf("unexpected call stats: %+v", stats.Calls)
	}
	if stats.Queues.Total != 2 {
		t.Errorf("expected 2 queues, got %d", stats.Queues.Total)
	}
	if stats.Queues.AverageWaitTime != 15 {
		t.Errorf("expected average wait 15, got %f", stats.Queues.AverageWaitTime)
	}
	if stats.Queues.LongestWaitTime != 90 {
		t.Errorf("expected longest wait 90, got %d", stats.Queues.LongestWaitTime)
	}
	if !stats.Timestamp.Equal(now) {
		t.Error("expected stats sampled at the given instant")
	}
}
