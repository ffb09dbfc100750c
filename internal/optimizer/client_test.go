package optimizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontieralpha/frontier/internal/cvrf"
)

func testClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RequestsPerSec = 1000
	cfg.Burst = 1000
	return NewClient(cfg)
}

func TestOptimize(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/optimize", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(Response{
			Weights:     map[string]float64{"AAPL": 0.6, "NVDA": 0.4},
			SharpeRatio: 1.3,
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.Optimize(context.Background(), Request{
		Symbols:   []string{"AAPL", "NVDA"},
		Objective: "max_sharpe",
		Constraints: &cvrf.OptimizationConstraints{
			Objective:        "max_sharpe",
			VolatilityTarget: 0.12,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.6, resp.Weights["AAPL"])
	assert.Equal(t, 1.3, resp.SharpeRatio)
	assert.Equal(t, "max_sharpe", got.Objective)
	require.NotNil(t, got.Constraints)
	assert.Equal(t, 0.12, got.Constraints.VolatilityTarget)
}

func TestOptimize_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "infeasible constraints", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Optimize(context.Background(), Request{Objective: "max_sharpe"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestOptimize_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	for i := 0; i < 5; i++ {
		_, err := c.Optimize(context.Background(), Request{})
		require.Error(t, err)
	}
	require.Equal(t, int64(5), atomic.LoadInt64(&hits))

	// The breaker is open now: the next call fails without hitting the wire.
	_, err := c.Optimize(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, int64(5), atomic.LoadInt64(&hits))
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		assert.NoError(t, testClient(srv.URL).Health(context.Background()))
	})

	t.Run("unhealthy_status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		assert.Error(t, testClient(srv.URL).Health(context.Background()))
	})
}
