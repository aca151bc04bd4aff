package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/pbxwatch/backend/internal/types"
)

// Thresholds for the queue and agent rules
const (
	longWaitThreshold     = 300 * time.Second
	waitingCallsThreshold = 10
	availableFraction     = 0.20
)

// Evaluator inspects the aggregated view against fixed thresholds. The
// window guard is a sampling de-bounce: calls inside the window return
// nil regardless of input, so qualifying conditions surface at most once
// per window.
type Evaluator struct {
	window   time.Duration
	mu       sync.Mutex
	lastEval time.Time
}

// NewEvaluator creates an evaluator with the given de-bounce window
func NewEvaluator(window time.Duration) *Evaluator {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &Evaluator{window: window}
}

// Evaluate runs all alert rules against the given view. Returns nil when
// called again within the de-bounce window.
func (e *Evaluator) Evaluate(queues []types.Queue, agents []types.Agent, providerHealthy bool) []types.Alert {
	now := time.Now()

	e.mu.Lock()
	if now.Sub(e.lastEval) < e.window {
		e.mu.Unlock()
		return nil
	}
	e.lastEval = now
	e.mu.Unlock()

	var alerts []types.Alert

	for _, queue := range queues {
		if queue.LongestWait > int(longWaitThreshold.Seconds()) {
			alerts = append(alerts, types.Alert{
				Severity:  types.SeverityWarning,
				Title:     "Long wait time",
				Message:   fmt.Sprintf("Queue %s has calls waiting over %d minutes", queue.Name, queue.LongestWait/60),
				QueueID:   queue.ID,
				Timestamp: now,
			})
		}
		if queue.WaitingCalls > waitingCallsThreshold {
			alerts = append(alerts, types.Alert{
				Severity:  types.SeverityWarning,
				Title:     "High call volume",
				Message:   fmt.Sprintf("Queue %s has %d calls waiting", queue.Name, queue.WaitingCalls),
				QueueID:   queue.ID,
				Timestamp: now,
			})
		}
	}

	if total := len(agents); total > 0 {
		available := 0
		for _, agent := range agents {
			if agent.Status == types.StatusAvailable {
				available++
			}
		}
		if float64(available)/float64(total) < availableFraction {
			alerts = append(alerts, types.Alert{
				Severity:  types.SeverityError,
				Title:     "Low agent availability",
				Message:   fmt.Sprintf("%d of %d agents are available", available, total),
				Timestamp: now,
			})
		}
	}

	if !providerHealthy {
		alerts = append(alerts, types.Alert{
			Severity:  types.SeverityError,
			Title:     "Provider offline",
			Message:   "PBX connector is unreachable, synthetic data is being shown",
			Timestamp: now,
		})
	}

	return alerts
}
