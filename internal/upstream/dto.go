package upstream

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pbxwatch/backend/internal/types"
)

// Provider payloads are duck-typed; every field is optional and gets an
// explicit default during normalization. Field names follow the FreePBX
// local connector API.

// CurrentCallDTO is the call reference embedded in an agent payload
type CurrentCallDTO struct {
	UniqueID    string `json:"uniqueid"`
	PhoneNumber string `json:"phoneNumber"`
	Direction   string `json:"direction"`
	Duration    int    `json:"duration"`
	State       string `json:"state"`
}

// AgentDTO is the provider representation of an agent
type AgentDTO struct {
	ID               string          `json:"id"`
	Extension        string          `json:"extension"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Status           string          `json:"status"`
	DeviceState      string          `json:"deviceState"`
	Department       string          `json:"department"`
	Departments      []string        `json:"departments"`
	CurrentCall      *CurrentCallDTO `json:"currentCall"`
	LastStatusChange string          `json:"lastStatusChange"`
}

// QueueDTO is the provider representation of a queue
type QueueDTO struct {
	ID              string  `json:"id"`
	Extension       string  `json:"extension"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Strategy        string  `json:"strategy"`
	Timeout         int     `json:"timeout"`
	Retry           int     `json:"retry"`
	WrapupTime      int     `json:"wrapuptime"`
	TotalAgents     int     `json:"totalAgents"`
	AgentsAvailable int     `json:"agentsAvailable"`
	AgentsOnCall    int     `json:"agentsOnCall"`
	WaitingCalls    int     `json:"waitingCalls"`
	LongestWait     int     `json:"longestWait"`
	AverageWait     int     `json:"averageWait"`
	TotalCalls      int     `json:"totalCalls"`
	AnsweredCalls   int     `json:"answeredCalls"`
	AbandonedCalls  int     `json:"abandonedCalls"`
	ServiceLevel    float64 `json:"serviceLevel"`
}

// CallDTO is the provider representation of an active call
type CallDTO struct {
	ID        string `json:"id"`
	UniqueID  string `json:"uniqueid"`
	Channel   string `json:"channel"`
	Direction string `json:"direction"`
	From      string `json:"from"`
	To        string `json:"to"`
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
	Extension string `json:"extension"`
	Queue     string `json:"queue"`
	State     string `json:"state"`
	StartTime string `json:"startTime"`
	Duration  int    `json:"duration"`
	Context   string `json:"context"`
}

// Health is the provider health payload
type Health struct {
	Status     string          `json:"status"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Components map[string]bool `json:"components,omitempty"`
}

// deviceStateMap maps the provider's device/channel state vocabulary to
// the four canonical agent statuses. Unknown states fall through to
// offline.
var deviceStateMap = map[string]types.AgentStatus{
	"NOT_INUSE":   types.StatusAvailable,
	"IDLE":        types.StatusAvailable,
	"FREE":        types.StatusAvailable,
	"INUSE":       types.StatusBusy,
	"BUSY":        types.StatusBusy,
	"RINGING":     types.StatusBusy,
	"RINGINUSE":   types.StatusBusy,
	"ONHOLD":      types.StatusBusy,
	"PAUSED":      types.StatusAway,
	"DND":         types.StatusAway,
	"UNAVAILABLE": types.StatusAway,
	"INVALID":     types.StatusOffline,
	"UNKNOWN":     types.StatusOffline,
}

// mapDeviceState maps a provider device state to a canonical status
func mapDeviceState(state string) types.AgentStatus {
	if status, ok := deviceStateMap[strings.ToUpper(strings.TrimSpace(state))]; ok {
		return status
	}
	return types.StatusOffline
}

// NormalizeStatus accepts either a canonical status string or a device
// state and always produces one of the four canonical statuses.
func NormalizeStatus(status, deviceState string) types.AgentStatus {
	switch types.AgentStatus(strings.ToLower(status)) {
	case types.StatusAvailable, types.StatusBusy, types.StatusAway, types.StatusOffline:
		return types.AgentStatus(strings.ToLower(status))
	}
	return mapDeviceState(deviceState)
}

func normalizeDirection(direction string) types.CallDirection {
	switch strings.ToLower(direction) {
	case "outbound":
		return types.DirectionOutbound
	case "internal":
		return types.DirectionInternal
	default:
		return types.DirectionInbound
	}
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return fallback
}

func normalizeAgent(dto AgentDTO, now time.Time) types.Agent {
	agent := types.Agent{
		ID:               dto.ID,
		Extension:        dto.Extension,
		Name:             dto.Name,
		Email:            dto.Email,
		Status:           NormalizeStatus(dto.Status, dto.DeviceState),
		DeviceState:      dto.DeviceState,
		Departments:      dto.Departments,
		LastStatusChange: parseTimestamp(dto.LastStatusChange, now),
	}

	if agent.ID == "" {
		agent.ID = "agent_" + dto.Extension
	}
	if agent.Name == "" {
		agent.Name = "Extension " + dto.Extension
	}

	// Department membership must be non-empty
	if len(agent.Departments) == 0 {
		if dto.Department != "" {
			agent.Departments = []string{dto.Department}
		} else {
			agent.Departments = []string{"general"}
		}
	}

	if dto.CurrentCall != nil {
		agent.Status = types.StatusBusy
		agent.CurrentCall = &types.CallSummary{
			UniqueID:    dto.CurrentCall.UniqueID,
			PhoneNumber: dto.CurrentCall.PhoneNumber,
			Direction:   normalizeDirection(dto.CurrentCall.Direction),
			Duration:    dto.CurrentCall.Duration,
			State:       dto.CurrentCall.State,
		}
	}

	return agent
}

func normalizeQueue(dto QueueDTO) types.Queue {
	queue := types.Queue{
		ID:              dto.ID,
		Extension:       dto.Extension,
		Name:            dto.Name,
		Description:     dto.Description,
		Strategy:        dto.Strategy,
		Timeout:         dto.Timeout,
		Retry:           dto.Retry,
		WrapupTime:      dto.WrapupTime,
		TotalAgents:     dto.TotalAgents,
		AgentsAvailable: dto.AgentsAvailable,
		AgentsOnCall:    dto.AgentsOnCall,
		WaitingCalls:    dto.WaitingCalls,
		LongestWait:     dto.LongestWait,
		AverageWait:     dto.AverageWait,
		TotalCalls:      dto.TotalCalls,
		AnsweredCalls:   dto.AnsweredCalls,
		AbandonedCalls:  dto.AbandonedCalls,
		ServiceLevel:    dto.ServiceLevel,
	}

	if queue.ID == "" {
		queue.ID = "queue_" + dto.Extension
	}
	if queue.Name == "" {
		queue.Name = "Queue " + dto.Extension
	}
	if queue.Strategy == "" {
		queue.Strategy = "ringall"
	}
	if queue.Timeout == 0 {
		queue.Timeout = 15
	}
	if queue.Retry == 0 {
		queue.Retry = 5
	}

	return queue
}

func normalizeCall(dto CallDTO, now time.Time) types.Call {
	call := types.Call{
		ID:          dto.ID,
		UniqueID:    dto.UniqueID,
		Channel:     dto.Channel,
		Direction:   normalizeDirection(dto.Direction),
		PhoneNumber: dto.From,
		AgentID:     dto.AgentID,
		AgentName:   dto.AgentName,
		Extension:   dto.Extension,
		Queue:       dto.Queue,
		StartTime:   parseTimestamp(dto.StartTime, now),
		State:       types.CallStateActive,
	}

	if call.ID == "" {
		call.ID = dto.UniqueID
	}
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.UniqueID == "" {
		call.UniqueID = call.ID
	}
	if call.Queue == "" {
		call.Queue = types.DirectQueue
	}
	if dto.Direction == "" && dto.Context == "from-internal" {
		call.Direction = types.DirectionOutbound
	}

	// When the provider omits startTime but supplies a duration, derive
	// the start so recomputed durations stay consistent.
	if dto.StartTime == "" && dto.Duration > 0 {
		call.StartTime = now.Add(-time.Duration(dto.Duration) * time.Second)
	}

	return call.WithDuration(now)
}
