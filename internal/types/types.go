package types

import "time"

// AgentStatus represents the canonical presence status of an agent
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusAway      AgentStatus = "away"
	StatusOffline   AgentStatus = "offline"
)

// CallSummary is the denormalized call reference carried on an Agent.
// The registry remains authoritative for the full call payload; this
// summary is refreshed on each emit.
type CallSummary struct {
	UniqueID    string        `json:"uniqueid"`
	PhoneNumber string        `json:"phoneNumber"`
	Direction   CallDirection `json:"direction"`
	Duration    int           `json:"duration"` // seconds
	State       string        `json:"state"`
}

// Agent represents a call center agent with current presence
type Agent struct {
	ID               string       `json:"id"`
	Extension        string       `json:"extension"`
	Name             string       `json:"name"`
	Email            string       `json:"email,omitempty"`
	Status           AgentStatus  `json:"status"`
	DeviceState      string       `json:"deviceState,omitempty"`
	Departments      []string     `json:"departments"`
	CurrentCall      *CallSummary `json:"currentCall,omitempty"`
	LastStatusChange time.Time    `json:"lastStatusChange"`
}

// Queue represents a call queue with live counters and operating parameters
type Queue struct {
	ID          string `json:"id"`
	Extension   string `json:"extension"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Strategy    string `json:"strategy"`
	Timeout     int    `json:"timeout"`    // ring timeout, seconds
	Retry       int    `json:"retry"`      // retry interval, seconds
	WrapupTime  int    `json:"wrapuptime"` // seconds

	WaitingCalls   int `json:"waitingCalls"`
	TotalCalls     int `json:"totalCalls"`
	AnsweredCalls  int `json:"answeredCalls"`
	AbandonedCalls int `json:"abandonedCalls"`

	TotalAgents     int `json:"totalAgents"`
	AgentsAvailable int `json:"agentsAvailable"`
	AgentsOnCall    int `json:"agentsOnCall"`

	LongestWait  int     `json:"longestWait"` // seconds
	AverageWait  int     `json:"averageWait"` // seconds
	ServiceLevel float64 `json:"serviceLevel"`
}

// AgentStats holds agent counts by status
type AgentStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Busy      int `json:"busy"`
	Away      int `json:"away"`
	Offline   int `json:"offline"`
}

// CallStats holds call counts by state
type CallStats struct {
	Active    int `json:"active"`
	Waiting   int `json:"waiting"`
	Answered  int `json:"answered"`
	Abandoned int `json:"abandoned"`
}

// QueueStats holds queue-level wait aggregates
type QueueStats struct {
	Total           int     `json:"total"`
	AverageWaitTime float64 `json:"averageWaitTime"` // seconds
	LongestWaitTime int     `json:"longestWaitTime"` // seconds
}

// AggregatedStats is the derived overview sampled at emission time.
// It is recomputed fresh on every tick, never cached across ticks.
type AggregatedStats struct {
	Agents    AgentStats `json:"agents"`
	Calls     CallStats  `json:"calls"`
	Queues    QueueStats `json:"queues"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertSeverity represents the severity of a dashboard alert
type AlertSeverity string

const (
	SeverityInfo    AlertSeverity = "info"
	SeverityWarning AlertSeverity = "warning"
	SeverityError   AlertSeverity = "error"
)

// Alert represents a threshold alert delivered once per evaluation window.
// Alerts carry no stable identity; deduplication across windows is a
// consumer concern.
type Alert struct {
	Severity  AlertSeverity `json:"severity"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	QueueID   string        `json:"queueId,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Broadcast channel names
const (
	ChannelAgents = "dashboard:agents"
	ChannelQueues = "dashboard:queues"
	ChannelCalls  = "dashboard:calls"
	ChannelStats  = "dashboard:stats"
	ChannelAlerts = "dashboard:alerts"
	ChannelError  = "dashboard:error"

	// Narrow channels driven by discrete events
	ChannelAgentUpdated = "agent:updated"
	ChannelCallStarted  = "call:started"
	ChannelCallEnded    = "call:ended"
)

// Message is the envelope for every subscriber broadcast
type Message struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}
