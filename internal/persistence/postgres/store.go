// Package postgres implements the persistence boundary on PostgreSQL via
// sqlx. Factor maps, decisions, and cycle payloads live in JSONB columns;
// the atomic tri-entity commit runs in a single transaction with an
// optimistic version check on the belief row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frontieralpha/frontier/internal/domain"
	"github.com/frontieralpha/frontier/internal/persistence"
)

// Store implements persistence.Store on PostgreSQL.
type Store struct {
	db       *sqlx.DB
	timeout  time.Duration
	episodes *episodeRepo
	beliefs  *beliefRepo
	cycles   *cycleRepo
}

// NewStore creates a Postgres-backed store with a per-query timeout.
func NewStore(db *sqlx.DB, timeout time.Duration) *Store {
	return &Store{
		db:       db,
		timeout:  timeout,
		episodes: &episodeRepo{db: db, timeout: timeout},
		beliefs:  &beliefRepo{db: db, timeout: timeout},
		cycles:   &cycleRepo{db: db, timeout: timeout},
	}
}

func (s *Store) Episodes() persistence.EpisodeRepo { return s.episodes }
func (s *Store) Beliefs() persistence.BeliefRepo   { return s.beliefs }
func (s *Store) Cycles() persistence.CycleRepo     { return s.cycles }

// CommitClose persists a completed episode without a cycle.
func (s *Store) CommitClose(ctx context.Context, ep *domain.Episode) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin close transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertEpisode(ctx, tx, ep); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit episode close: %w", err)
	}
	return nil
}

// CommitCycle atomically persists the closed episode, the new belief state,
// and the cycle result. The belief upsert is guarded by expectedVersion; a
// stale read aborts the whole transaction with ErrVersionConflict.
func (s *Store) CommitCycle(ctx context.Context, ep *domain.Episode, state *domain.BeliefState, result *domain.CycleResult, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cycle transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertEpisode(ctx, tx, ep); err != nil {
		return err
	}
	if err := upsertBelief(ctx, tx, state, expectedVersion); err != nil {
		return err
	}
	if err := insertCycle(ctx, tx, result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cycle: %w", err)
	}
	return nil
}

func upsertEpisode(ctx context.Context, tx *sqlx.Tx, ep *domain.Episode) error {
	decisionsJSON, err := json.Marshal(ep.Decisions)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}

	query := `
		INSERT INTO episodes
		(id, user_id, episode_number, start_date, end_date, decisions,
		 portfolio_return, sharpe_ratio, max_drawdown, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			end_date = EXCLUDED.end_date,
			decisions = EXCLUDED.decisions,
			portfolio_return = EXCLUDED.portfolio_return,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			status = EXCLUDED.status`

	if _, err := tx.ExecContext(ctx, query,
		ep.ID, ep.UserID, ep.EpisodeNumber, ep.StartDate, ep.EndDate,
		decisionsJSON, ep.PortfolioReturn, ep.SharpeRatio, ep.MaxDrawdown, ep.Status); err != nil {
		return fmt.Errorf("upsert episode: %w", err)
	}
	return nil
}

func upsertBelief(ctx context.Context, tx *sqlx.Tx, state *domain.BeliefState, expectedVersion int64) error {
	weightsJSON, err := json.Marshal(state.FactorWeights)
	if err != nil {
		return fmt.Errorf("marshal factor weights: %w", err)
	}
	confidencesJSON, err := json.Marshal(state.FactorConfidences)
	if err != nil {
		return fmt.Errorf("marshal factor confidences: %w", err)
	}
	deltasJSON, err := json.Marshal(state.RecentDeltas)
	if err != nil {
		return fmt.Errorf("marshal recent deltas: %w", err)
	}

	query := `
		INSERT INTO belief_states
		(user_id, factor_weights, factor_confidences, current_regime,
		 regime_confidence, risk_tolerance, max_drawdown_threshold,
		 volatility_target, momentum_horizon, mean_reversion_threshold,
		 concentration_limit, min_position_size, rebalance_threshold,
		 recent_deltas, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (user_id) DO UPDATE SET
			factor_weights = EXCLUDED.factor_weights,
			factor_confidences = EXCLUDED.factor_confidences,
			current_regime = EXCLUDED.current_regime,
			regime_confidence = EXCLUDED.regime_confidence,
			risk_tolerance = EXCLUDED.risk_tolerance,
			max_drawdown_threshold = EXCLUDED.max_drawdown_threshold,
			volatility_target = EXCLUDED.volatility_target,
			momentum_horizon = EXCLUDED.momentum_horizon,
			mean_reversion_threshold = EXCLUDED.mean_reversion_threshold,
			concentration_limit = EXCLUDED.concentration_limit,
			min_position_size = EXCLUDED.min_position_size,
			rebalance_threshold = EXCLUDED.rebalance_threshold,
			recent_deltas = EXCLUDED.recent_deltas,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE belief_states.version = $17`

	res, err := tx.ExecContext(ctx, query,
		state.UserID, weightsJSON, confidencesJSON, state.CurrentRegime,
		state.RegimeConfidence, state.RiskTolerance, state.MaxDrawdownThreshold,
		state.VolatilityTarget, state.MomentumHorizon, state.MeanReversionThreshold,
		state.ConcentrationLimit, state.MinPositionSize, state.RebalanceThreshold,
		deltasJSON, state.Version, state.UpdatedAt, expectedVersion)
	if err != nil {
		return fmt.Errorf("upsert belief state: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read belief upsert result: %w", err)
	}
	if rows == 0 {
		return persistence.ErrVersionConflict
	}

	historyQuery := `
		INSERT INTO belief_history
		(user_id, version, snapshot, created_at)
		VALUES ($1, $2, $3, $4)`
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal belief snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, historyQuery, state.UserID, state.Version, snapshot, state.UpdatedAt); err != nil {
		return fmt.Errorf("append belief history: %w", err)
	}
	return nil
}

func insertCycle(ctx context.Context, tx *sqlx.Tx, result *domain.CycleResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cycle result: %w", err)
	}

	query := `
		INSERT INTO cvrf_cycles (cycle_id, user_id, ts, payload)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, result.CycleID, result.UserID, result.Timestamp, payload); err != nil {
		return fmt.Errorf("insert cycle result: %w", err)
	}
	return nil
}

// nilIfNoRows normalizes sql.ErrNoRows into the (nil, nil) absent contract.
func nilIfNoRows(err error) error {
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}
