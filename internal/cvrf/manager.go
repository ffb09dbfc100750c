// Package cvrf orchestrates one full learning cycle: extract insights from an
// episode pair, apply a bounded belief update, and commit the result
// atomically. It owns belief-state versioning, cycle history, and the
// single-writer-per-user invariant.
package cvrf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/frontieralpha/frontier/internal/belief"
	"github.com/frontieralpha/frontier/internal/domain"
	"github.com/frontieralpha/frontier/internal/insight"
	"github.com/frontieralpha/frontier/internal/metrics"
	"github.com/frontieralpha/frontier/internal/persistence"
)

// SnapshotCache caches belief snapshots for the read path. Read accessors
// must never block on an in-flight cycle; the cache keeps them off Postgres
// entirely. A nil cache is valid.
type SnapshotCache interface {
	GetBeliefs(ctx context.Context, userID string) (*domain.BeliefState, error)
	SetBeliefs(ctx context.Context, state *domain.BeliefState) error
}

// OptimizationConstraints is the directional guidance handed to the external
// optimizer. The engine never touches numeric portfolio weights itself.
type OptimizationConstraints struct {
	Objective          string           `json:"objective"`
	FactorTilts        domain.FactorMap `json:"factor_tilts"`
	MaxPositionWeight  float64          `json:"max_position_weight"`
	MinPositionWeight  float64          `json:"min_position_weight"`
	VolatilityTarget   float64          `json:"volatility_target"`
	MaxDrawdown        float64          `json:"max_drawdown"`
	RebalanceThreshold float64          `json:"rebalance_threshold"`
}

// Manager runs cycles and serves read-only belief snapshots. Cycles for
// distinct users are independent; cycles for the same user are serialized by
// the in-flight guard plus an optimistic version check at commit.
type Manager struct {
	store     persistence.Store
	extractor *insight.Extractor
	updater   *belief.Updater
	cache     SnapshotCache
	metrics   *metrics.Registry
	log       zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewManager wires a cycle orchestrator. cache and reg may be nil.
func NewManager(store persistence.Store, extractor *insight.Extractor, updater *belief.Updater, cache SnapshotCache, reg *metrics.Registry) *Manager {
	return &Manager{
		store:     store,
		extractor: extractor,
		updater:   updater,
		cache:     cache,
		metrics:   reg,
		log:       log.With().Str("component", "cvrf").Logger(),
		inFlight:  make(map[string]struct{}),
	}
}

// RunCycle executes extract -> update -> commit for a closed episode pair.
// later is the just-closed episode; the commit makes its closure durable
// together with the new belief state and the cycle record.
func (m *Manager) RunCycle(ctx context.Context, userID string, earlier, later *domain.Episode) (*domain.CycleResult, error) {
	if err := validatePair(userID, earlier, later); err != nil {
		return nil, err
	}

	if !m.acquire(userID) {
		return nil, &domain.ConcurrentCycleError{UserID: userID}
	}
	defer m.release(userID)

	started := time.Now()

	state, err := m.store.Beliefs().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load belief state: %w", err)
	}
	if state == nil {
		state = domain.DefaultBeliefState(userID)
	}
	expectedVersion := state.Version

	comparison, insights := m.extractor.Extract(earlier, later, state.PrevDelta())
	newState, updates, metaPrompt := m.updater.Update(state, comparison, insights)

	signal := len(insights) > 0
	if signal {
		newState.Version = expectedVersion + 1
		newState.UpdatedAt = time.Now().UTC()
	}

	result := &domain.CycleResult{
		CycleID:           uuid.NewString(),
		UserID:            userID,
		Timestamp:         time.Now().UTC(),
		EpisodeComparison: comparison,
		ExtractedInsights: insights,
		MetaPrompt:        metaPrompt,
		BeliefUpdates:     updates,
		NewBeliefState:    newState,
		Explanation:       explain(comparison, insights, updates, newState),
	}

	if err := m.store.CommitCycle(ctx, later, newState, result, expectedVersion); err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			return nil, &domain.ConcurrentCycleError{UserID: userID}
		}
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.SetBeliefs(ctx, newState); err != nil {
			m.log.Warn().Err(err).Str("user", userID).Msg("belief snapshot cache write failed")
		}
	}
	m.metrics.ObserveCycle(userID, signal, len(insights), newState.Version, time.Since(started))
	if signal && state.CurrentRegime != newState.CurrentRegime {
		m.metrics.RegimeSwitch(string(state.CurrentRegime), string(newState.CurrentRegime))
	}

	m.log.Info().
		Str("user", userID).
		Str("cycle", result.CycleID).
		Int("insights", len(insights)).
		Int("updates", len(updates)).
		Int64("version", newState.Version).
		Float64("performance_delta", comparison.PerformanceDelta).
		Str("regime", string(newState.CurrentRegime)).
		Msg("cycle committed")

	return result, nil
}

// CurrentBeliefs returns an immutable belief snapshot, preferring the cache.
// Never blocks on an in-flight cycle.
func (m *Manager) CurrentBeliefs(ctx context.Context, userID string) (*domain.BeliefState, error) {
	if m.cache != nil {
		if cached, err := m.cache.GetBeliefs(ctx, userID); err == nil && cached != nil {
			return cached, nil
		}
	}

	state, err := m.store.Beliefs().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load belief state: %w", err)
	}
	if state == nil {
		return domain.DefaultBeliefState(userID), nil
	}
	if m.cache != nil {
		if err := m.cache.SetBeliefs(ctx, state); err != nil {
			m.log.Debug().Err(err).Str("user", userID).Msg("belief snapshot cache backfill failed")
		}
	}
	return state, nil
}

// GetOptimizationConstraints derives optimizer guidance from the current
// beliefs. Objective selection follows the regime assessment.
func (m *Manager) GetOptimizationConstraints(ctx context.Context, userID string) (*OptimizationConstraints, error) {
	state, err := m.CurrentBeliefs(ctx, userID)
	if err != nil {
		return nil, err
	}

	objective := "max_sharpe"
	if state.CurrentRegime == domain.RegimeBear || state.CurrentRegime == domain.RegimeVolatile {
		objective = "min_volatility"
	}
	return &OptimizationConstraints{
		Objective:          objective,
		FactorTilts:        state.FactorWeights.Clone(),
		MaxPositionWeight:  state.ConcentrationLimit,
		MinPositionWeight:  state.MinPositionSize,
		VolatilityTarget:   state.VolatilityTarget,
		MaxDrawdown:        state.MaxDrawdownThreshold,
		RebalanceThreshold: state.RebalanceThreshold,
	}, nil
}

// GetCycleHistory returns past cycle results oldest-first.
func (m *Manager) GetCycleHistory(ctx context.Context, userID string, limit, offset int) ([]domain.CycleResult, error) {
	return m.store.Cycles().List(ctx, userID, limit, offset)
}

func (m *Manager) acquire(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.inFlight[userID]; running {
		return false
	}
	m.inFlight[userID] = struct{}{}
	return true
}

func (m *Manager) release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, userID)
}

func validatePair(userID string, earlier, later *domain.Episode) error {
	if earlier == nil || later == nil {
		return &domain.ValidationError{Field: "episodes", Value: nil, Reason: "both episodes are required"}
	}
	if earlier.UserID != userID || later.UserID != userID {
		return &domain.ValidationError{Field: "user_id", Value: userID, Reason: "episodes belong to a different user"}
	}
	if earlier.Status != domain.EpisodeCompleted || later.Status != domain.EpisodeCompleted {
		return &domain.StateError{Op: "runCycle", UserID: userID, Current: "active", Reason: "both episodes must be completed"}
	}
	if earlier.EpisodeNumber >= later.EpisodeNumber {
		return &domain.ValidationError{Field: "episode_number", Value: earlier.EpisodeNumber, Reason: "earlier episode must precede the later one"}
	}
	return nil
}

func explain(cmp domain.EpisodeComparison, insights []domain.ConceptualInsight, updates []domain.BeliefUpdate, state *domain.BeliefState) string {
	if len(insights) == 0 {
		return fmt.Sprintf("episodes %d->%d: delta %+.4f, overlap %.2f, no significant signal; beliefs unchanged at v%d",
			cmp.EarlierEpisode, cmp.LaterEpisode, cmp.PerformanceDelta, cmp.DecisionOverlap, state.Version)
	}
	return fmt.Sprintf("episodes %d->%d: delta %+.4f, overlap %.2f, %d insight(s) applied %d field update(s); regime %s (%.2f), beliefs now v%d",
		cmp.EarlierEpisode, cmp.LaterEpisode, cmp.PerformanceDelta, cmp.DecisionOverlap,
		len(insights), len(updates), state.CurrentRegime, state.RegimeConfidence, state.Version)
}
