package types

import "time"

// CallDirection represents the direction of a call
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
	DirectionInternal CallDirection = "internal"
)

// CallState represents the lifecycle state of a call
type CallState string

const (
	CallStateActive CallState = "active"
	CallStateEnded  CallState = "ended"
)

// DirectQueue is the sentinel queue reference for calls that did not
// arrive through a queue.
const DirectQueue = "direct"

// Call represents a call tracked by the system. Duration is derived from
// StartTime at read time and must never be persisted pre-computed.
type Call struct {
	ID          string        `json:"id"`
	UniqueID    string        `json:"uniqueid,omitempty"` // provider-supplied id, may differ from ID
	Channel     string        `json:"channel,omitempty"`
	Direction   CallDirection `json:"direction"`
	PhoneNumber string        `json:"phoneNumber"`
	CallerName  string        `json:"callerName,omitempty"`
	AgentID     string        `json:"agentId,omitempty"`
	AgentName   string        `json:"agentName,omitempty"`
	Extension   string        `json:"extension"`
	Queue       string        `json:"queue"`
	StartTime   time.Time     `json:"startTime"`
	Duration    int           `json:"duration"` // seconds, recomputed on every access
	State       CallState     `json:"state"`
}

// WithDuration returns a copy of the call with Duration recomputed
// against the given wall-clock instant.
func (c Call) WithDuration(now time.Time) Call {
	d := int(now.Sub(c.StartTime).Seconds())
	if d < 0 {
		d = 0
	}
	c.Duration = d
	return c
}

// Summary returns the denormalized view of the call carried on an Agent.
func (c Call) Summary(now time.Time) *CallSummary {
	refreshed := c.WithDuration(now)
	return &CallSummary{
		UniqueID:    refreshed.UniqueID,
		PhoneNumber: refreshed.PhoneNumber,
		Direction:   refreshed.Direction,
		Duration:    refreshed.Duration,
		State:       string(refreshed.State),
	}
}
