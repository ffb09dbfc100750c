// Package optimizer is the client for the external portfolio-optimization
// engine. The learning core only proposes directional constraints; this
// client ships them out and never feeds numeric weights back into beliefs.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/frontieralpha/frontier/internal/cvrf"
)

// Config holds optimizer endpoint settings.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	Burst          int           `yaml:"burst"`
	Enabled        bool          `yaml:"enabled"`
}

// DefaultConfig returns a disabled client pointing at the local engine.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		Timeout:        10 * time.Second,
		RequestsPerSec: 5,
		Burst:          5,
		Enabled:        false,
	}
}

// Request is the optimization payload: return history plus the belief-derived
// constraints.
type Request struct {
	Symbols      []string                      `json:"symbols"`
	Returns      [][]float64                   `json:"returns"`
	Objective    string                        `json:"objective"`
	RiskFreeRate float64                       `json:"risk_free_rate"`
	Constraints  *cvrf.OptimizationConstraints `json:"constraints,omitempty"`
}

// Response carries the engine's proposed weights and expected performance.
type Response struct {
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
}

// Client wraps the engine's HTTP API with a circuit breaker and rate limiter.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewClient builds a guarded optimizer client.
func NewClient(cfg Config) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "optimizer",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Optimize submits an optimization request. Calls are rate limited and the
// breaker opens after consecutive engine failures.
func (c *Client) Optimize(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("optimizer rate limit: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, "/optimize", req)
	})
	if err != nil {
		return nil, fmt.Errorf("optimizer call: %w", err)
	}
	return result.(*Response), nil
}

// Health probes the engine's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("optimizer health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("optimizer health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("optimizer returned status %d: %s", resp.StatusCode, data)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
