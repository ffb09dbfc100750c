package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontieralpha/frontier/internal/domain"
)

func newMockCache(t *testing.T) (*SnapshotCache, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return &SnapshotCache{client: client, ttl: 15 * time.Minute}, mock
}

func testState(user string) *domain.BeliefState {
	return &domain.BeliefState{
		UserID:           user,
		FactorWeights:    domain.FactorMap{"momentum": 0.62, "value": -0.2},
		CurrentRegime:    domain.RegimeBull,
		RegimeConfidence: 0.8,
		RiskTolerance:    0.5,
		RecentDeltas:     []float64{0.01, 0.02},
		Version:          3,
		UpdatedAt:        time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func TestGetBeliefs_MissReturnsNil(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectGet("frontier:beliefs:u1").RedisNil()

	state, err := c.GetBeliefs(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSetThenGetBeliefs(t *testing.T) {
	c, mock := newMockCache(t)
	want := testState("u1")
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectSet("frontier:beliefs:u1", payload, 15*time.Minute).SetVal("OK")
	mock.ExpectGet("frontier:beliefs:u1").SetVal(string(payload))

	require.NoError(t, c.SetBeliefs(context.Background(), want))

	got, err := c.GetBeliefs(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)
}

func TestGetBeliefs_RedisError(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectGet("frontier:beliefs:u1").SetErr(assert.AnError)

	state, err := c.GetBeliefs(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get belief snapshot")
	assert.Nil(t, state)
}

func TestGetBeliefs_CorruptPayload(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectGet("frontier:beliefs:u1").SetVal("{not json")

	state, err := c.GetBeliefs(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal belief snapshot")
	assert.Nil(t, state)
}

func TestInvalidate(t *testing.T) {
	c, mock := newMockCache(t)
	mock.ExpectDel("frontier:beliefs:u1").SetVal(1)

	require.NoError(t, c.Invalidate(context.Background(), "u1"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.TTL)
	assert.Equal(t, "localhost:6379", cfg.Addr)
}
