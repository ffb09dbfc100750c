package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frontieralpha/frontier/internal/domain"
)

type beliefRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (r *beliefRepo) Get(ctx context.Context, userID string) (*domain.BeliefState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT user_id, factor_weights, factor_confidences, current_regime,
		       regime_confidence, risk_tolerance, max_drawdown_threshold,
		       volatility_target, momentum_horizon, mean_reversion_threshold,
		       concentration_limit, min_position_size, rebalance_threshold,
		       recent_deltas, version, updated_at
		FROM belief_states
		WHERE user_id = $1`

	var state domain.BeliefState
	var weightsJSON, confidencesJSON, deltasJSON []byte

	err := r.db.QueryRowxContext(ctx, query, userID).Scan(
		&state.UserID, &weightsJSON, &confidencesJSON, &state.CurrentRegime,
		&state.RegimeConfidence, &state.RiskTolerance, &state.MaxDrawdownThreshold,
		&state.VolatilityTarget, &state.MomentumHorizon, &state.MeanReversionThreshold,
		&state.ConcentrationLimit, &state.MinPositionSize, &state.RebalanceThreshold,
		&deltasJSON, &state.Version, &state.UpdatedAt)
	if err != nil {
		if nilIfNoRows(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get belief state: %w", err)
	}

	// Factor maps may come back in either the canonical object shape or the
	// legacy entry-array shape; FactorMap normalizes both on decode.
	if err := json.Unmarshal(weightsJSON, &state.FactorWeights); err != nil {
		return nil, fmt.Errorf("unmarshal factor weights: %w", err)
	}
	if err := json.Unmarshal(confidencesJSON, &state.FactorConfidences); err != nil {
		return nil, fmt.Errorf("unmarshal factor confidences: %w", err)
	}
	if len(deltasJSON) > 0 {
		if err := json.Unmarshal(deltasJSON, &state.RecentDeltas); err != nil {
			return nil, fmt.Errorf("unmarshal recent deltas: %w", err)
		}
	}
	return &state, nil
}

func (r *beliefRepo) History(ctx context.Context, userID string, limit, offset int) ([]domain.BeliefState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT snapshot
		FROM belief_history
		WHERE user_id = $1
		ORDER BY version ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryxContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list belief history: %w", err)
	}
	defer rows.Close()

	var history []domain.BeliefState
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan belief snapshot: %w", err)
		}
		var state domain.BeliefState
		if err := json.Unmarshal(snapshot, &state); err != nil {
			return nil, fmt.Errorf("unmarshal belief snapshot: %w", err)
		}
		history = append(history, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate belief history: %w", err)
	}
	return history, nil
}
