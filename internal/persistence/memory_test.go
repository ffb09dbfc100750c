package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontieralpha/frontier/internal/domain"
)

func memEpisode(userID string, number int, status domain.EpisodeStatus) *domain.Episode {
	ep := &domain.Episode{
		ID:            fmt.Sprintf("%s-%d", userID, number),
		UserID:        userID,
		EpisodeNumber: number,
		StartDate:     time.Now().UTC(),
		Status:        status,
		Decisions: []domain.Decision{
			{Symbol: "AAPL", Action: domain.ActionBuy, Factors: domain.FactorMap{"momentum": 0.5}},
		},
	}
	if status == domain.EpisodeCompleted {
		end := time.Now().UTC()
		ep.EndDate = &end
	}
	return ep
}

func TestMemoryStore_EpisodeLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Episodes().Save(ctx, memEpisode("u1", 1, domain.EpisodeActive)))

	active, err := s.Episodes().GetActive(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, 1, active.EpisodeNumber)

	// Save with the same ID replaces, not appends.
	updated := memEpisode("u1", 1, domain.EpisodeActive)
	updated.Decisions = append(updated.Decisions, domain.Decision{Symbol: "NVDA", Action: domain.ActionBuy})
	require.NoError(t, s.Episodes().Save(ctx, updated))

	list, err := s.Episodes().List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Decisions, 2)
}

func TestMemoryStore_GetLastCompletedPicksHighestNumber(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CommitClose(ctx, memEpisode("u1", 1, domain.EpisodeCompleted)))
	require.NoError(t, s.CommitClose(ctx, memEpisode("u1", 2, domain.EpisodeCompleted)))
	require.NoError(t, s.Episodes().Save(ctx, memEpisode("u1", 3, domain.EpisodeActive)))

	last, err := s.Episodes().GetLastCompleted(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.EpisodeNumber)

	max, err := s.Episodes().MaxNumber(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, max)
}

func TestMemoryStore_NilResultsForAbsentRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	active, err := s.Episodes().GetActive(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, active)

	last, err := s.Episodes().GetLastCompleted(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, last)

	byNum, err := s.Episodes().GetByNumber(ctx, "nobody", 1)
	require.NoError(t, err)
	assert.Nil(t, byNum)

	state, err := s.Beliefs().Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestMemoryStore_ReadsReturnClones(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Episodes().Save(ctx, memEpisode("u1", 1, domain.EpisodeActive)))

	first, err := s.Episodes().GetActive(ctx, "u1")
	require.NoError(t, err)
	first.Decisions[0].Factors["momentum"] = -99

	second, err := s.Episodes().GetActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, second.Decisions[0].Factors["momentum"])
}

func TestMemoryStore_CommitCycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ep := memEpisode("u1", 2, domain.EpisodeCompleted)
	state := domain.DefaultBeliefState("u1")
	state.Version = 2
	result := &domain.CycleResult{CycleID: "c1", UserID: "u1", NewBeliefState: state}

	// No prior belief row: any expectedVersion commits.
	require.NoError(t, s.CommitCycle(ctx, ep, state, result, 1))

	got, err := s.Beliefs().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	saved, err := s.Episodes().GetByNumber(ctx, "u1", 2)
	require.NoError(t, err)
	require.NotNil(t, saved)

	cycles, err := s.Cycles().List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, "c1", cycles[0].CycleID)

	history, err := s.Beliefs().History(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(2), history[0].Version)
}

func TestMemoryStore_CommitCycleVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stale := domain.DefaultBeliefState("u1")
	stale.Version = 2
	require.NoError(t, s.CommitCycle(ctx, memEpisode("u1", 2, domain.EpisodeCompleted), stale,
		&domain.CycleResult{CycleID: "c1", UserID: "u1"}, 1))

	// A second commit against the old version must be rejected, leaving the
	// store untouched.
	racer := domain.DefaultBeliefState("u1")
	racer.Version = 2
	err := s.CommitCycle(ctx, memEpisode("u1", 3, domain.EpisodeCompleted), racer,
		&domain.CycleResult{CycleID: "c2", UserID: "u1"}, 1)
	require.ErrorIs(t, err, ErrVersionConflict)

	cycles, err := s.Cycles().List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)

	lost, err := s.Episodes().GetByNumber(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Nil(t, lost)
}

func TestMemoryStore_Pagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.CommitClose(ctx, memEpisode("u1", i, domain.EpisodeCompleted)))
	}

	tests := []struct {
		name    string
		limit   int
		offset  int
		wantLen int
		first   int
	}{
		{name: "full", limit: 10, offset: 0, wantLen: 5, first: 1},
		{name: "first_page", limit: 2, offset: 0, wantLen: 2, first: 1},
		{name: "middle_page", limit: 2, offset: 2, wantLen: 2, first: 3},
		{name: "tail", limit: 10, offset: 4, wantLen: 1, first: 5},
		{name: "past_end", limit: 10, offset: 9, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.Episodes().List(ctx, "u1", tt.limit, tt.offset)
			require.NoError(t, err)
			require.Len(t, page, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.first, page[0].EpisodeNumber)
			}
		})
	}
}
