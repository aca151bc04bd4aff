package types

import (
	"encoding/json"
	"time"
)

// EventType identifies a discrete event pushed by the upstream bridge
type EventType string

const (
	EventCallStarted EventType = "call.started"
	EventCallEnded   EventType = "call.ended"
	EventAgentStatus EventType = "agent.status"
)

// Envelope wraps a discrete event for the intake endpoint. Data holds the
// event-specific payload and is decoded after routing by Type.
type Envelope struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// CallStartedEvent carries the payload of a call.started event
type CallStartedEvent struct {
	UniqueID   string `json:"uniqueid"`
	Channel    string `json:"channel,omitempty"`
	Direction  string `json:"direction,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	CallerName string `json:"callerName,omitempty"`
	AgentID    string `json:"agentId,omitempty"`
	AgentName  string `json:"agentName,omitempty"`
	Extension  string `json:"extension,omitempty"`
	Queue      string `json:"queue,omitempty"`
}

// CallEndedEvent carries the payload of a call.ended event
type CallEndedEvent struct {
	UniqueID string `json:"uniqueid"`
	Cause    string `json:"cause,omitempty"`
}

// AgentStatusEvent carries the payload of an agent.status event
type AgentStatusEvent struct {
	AgentID     string   `json:"agentId"`
	Extension   string   `json:"extension,omitempty"`
	Name        string   `json:"name,omitempty"`
	Status      string   `json:"status,omitempty"`
	DeviceState string   `json:"deviceState,omitempty"`
	Departments []string `json:"departments,omitempty"`
}
