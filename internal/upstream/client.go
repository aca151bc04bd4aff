package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pbxwatch/backend/internal/types"
	"github.com/rs/zerolog"
)

// Client fetches agents, queues and calls from the FreePBX local
// connector. Every fetch degrades to the synthetic dataset instead of
// failing the caller; Healthy reports whether real provider data is
// currently being served.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger

	// Per-resource health so concurrent fetches never overwrite each
	// other's verdict. A resource is unhealthy from the moment its fetch
	// degrades to synthetic data until the same fetch serves real data.
	mu      sync.Mutex
	serving map[string]bool
}

// NewClient creates a new upstream client. An empty baseURL puts the
// client permanently in synthetic-fallback mode.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "upstream").Logger(),
		serving:    make(map[string]bool),
	}
}

// Healthy reports whether every resource fetched so far was served with
// real provider data. Any resource degraded to synthetic is a standing
// "provider offline" condition surfaced as an alert downstream.
func (c *Client) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, servedReal := range c.serving {
		if !servedReal {
			return false
		}
	}
	return true
}

// FetchAgents returns the current agent roster. Falls back to the
// synthetic roster when the provider is unreachable or returns nothing.
func (c *Client) FetchAgents(ctx context.Context) []types.Agent {
	now := time.Now()

	var dtos []AgentDTO
	if err := c.get(ctx, "/api/agents", &dtos); err != nil || len(dtos) == 0 {
		c.markUnhealthy("agents", err, len(dtos))
		return SyntheticAgents(now)
	}
	c.markHealthy("agents")

	agents := make([]types.Agent, 0, len(dtos))
	for _, dto := range dtos {
		agents = append(agents, normalizeAgent(dto, now))
	}
	return agents
}

// FetchQueues returns the current queue listing, falling back to the
// synthetic queues on failure or an empty payload.
func (c *Client) FetchQueues(ctx context.Context) []types.Queue {
	var dtos []QueueDTO
	if err := c.get(ctx, "/api/queues", &dtos); err != nil || len(dtos) == 0 {
		c.markUnhealthy("queues", err, len(dtos))
		return SyntheticQueues()
	}
	c.markHealthy("queues")

	queues := make([]types.Queue, 0, len(dtos))
	for _, dto := range dtos {
		queues = append(queues, normalizeQueue(dto))
	}
	return queues
}

// FetchCalls returns the currently active calls, falling back to
// synthetic calls on failure or an empty payload. An empty payload is
// treated as unavailable to avoid presenting a falsely empty dashboard.
func (c *Client) FetchCalls(ctx context.Context) []types.Call {
	now := time.Now()

	var dtos []CallDTO
	if err := c.get(ctx, "/api/calls", &dtos); err != nil || len(dtos) == 0 {
		c.markUnhealthy("calls", err, len(dtos))
		return SyntheticCalls(now)
	}
	c.markHealthy("calls")

	calls := make([]types.Call, 0, len(dtos))
	for _, dto := range dtos {
		calls = append(calls, normalizeCall(dto, now))
	}
	return calls
}

// FetchHealth returns the provider health status. On failure it reports
// the provider as unreachable rather than returning an error.
func (c *Client) FetchHealth(ctx context.Context) Health {
	var health Health
	if err := c.get(ctx, "/api/health", &health); err != nil {
		return Health{Status: "unreachable"}
	}
	if health.Status == "" {
		health.Status = "unknown"
	}
	return health
}

// get performs an authenticated GET against the provider and decodes
// the JSON response into v.
func (c *Client) get(ctx context.Context, path string, v any) error {
	if c.baseURL == "" {
		return fmt.Errorf("upstream endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) markHealthy(resource string) {
	c.mu.Lock()
	c.serving[resource] = true
	c.mu.Unlock()
}

func (c *Client) markUnhealthy(resource string, err error, count int) {
	c.mu.Lock()
	wasReal, seen := c.serving[resource]
	c.serving[resource] = false
	c.mu.Unlock()

	// Log once per real->synthetic transition
	if seen && !wasReal {
		return
	}
	evt := c.logger.Warn().Str("resource", resource)
	if err != nil {
		evt = evt.Err(err)
	} else {
		evt = evt.Int("count", count)
	}
	evt.Msg("provider unavailable, serving synthetic data")
}
