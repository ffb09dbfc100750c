package domain

import (
	"time"
)

// Regime is a coarse market-condition classification used to modulate
// belief updates.
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeSideways Regime = "sideways"
	RegimeVolatile Regime = "volatile"
)

// Valid reports whether r is one of the four recognized regimes.
func (r Regime) Valid() bool {
	switch r {
	case RegimeBull, RegimeBear, RegimeSideways, RegimeVolatile:
		return true
	}
	return false
}

// Factor weight and confidence bounds. Weights are directional tilts on a
// standardized scale; confidences are epistemic weights on those tilts.
const (
	FactorWeightMin = -3.0
	FactorWeightMax = 3.0
)

// BeliefState is the canonical, versioned factor-tilt weights/confidences,
// regime assessment, and risk parameters for one user. Exactly one canonical
// state exists per user; it is mutated only inside a committed cycle.
type BeliefState struct {
	UserID string `json:"user_id" db:"user_id"`

	FactorWeights     FactorMap `json:"factor_weights" db:"factor_weights"`
	FactorConfidences FactorMap `json:"factor_confidences" db:"factor_confidences"`

	CurrentRegime    Regime  `json:"current_regime" db:"current_regime"`
	RegimeConfidence float64 `json:"regime_confidence" db:"regime_confidence"`

	RiskTolerance          float64 `json:"risk_tolerance" db:"risk_tolerance"`
	MaxDrawdownThreshold   float64 `json:"max_drawdown_threshold" db:"max_drawdown_threshold"`
	VolatilityTarget       float64 `json:"volatility_target" db:"volatility_target"`
	MomentumHorizon        int     `json:"momentum_horizon" db:"momentum_horizon"`
	MeanReversionThreshold float64 `json:"mean_reversion_threshold" db:"mean_reversion_threshold"`
	ConcentrationLimit     float64 `json:"concentration_limit" db:"concentration_limit"`
	MinPositionSize        float64 `json:"min_position_size" db:"min_position_size"`
	RebalanceThreshold     float64 `json:"rebalance_threshold" db:"rebalance_threshold"`

	// RecentDeltas is the rolling window of cycle performance deltas used
	// for regime classification. The last entry is the previous cycle's
	// delta.
	RecentDeltas []float64 `json:"recent_deltas" db:"recent_deltas"`

	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultBeliefState returns the cold-start state for a user. The first
// episode closure leaves this untouched; beliefs only move once two
// completed episodes exist.
func DefaultBeliefState(userID string) *BeliefState {
	return &BeliefState{
		UserID: userID,
		FactorWeights: FactorMap{
			"momentum": 0.5,
			"value":    0.5,
			"quality":  0.5,
			"size":     0.0,
			"low_vol":  0.0,
		},
		FactorConfidences: FactorMap{
			"momentum": 0.5,
			"value":    0.5,
			"quality":  0.5,
			"size":     0.5,
			"low_vol":  0.5,
		},
		CurrentRegime:          RegimeSideways,
		RegimeConfidence:       0.5,
		RiskTolerance:          0.5,
		MaxDrawdownThreshold:   0.15,
		VolatilityTarget:       0.12,
		MomentumHorizon:        90,
		MeanReversionThreshold: 2.0,
		ConcentrationLimit:     0.25,
		MinPositionSize:        0.01,
		RebalanceThreshold:     0.05,
		RecentDeltas:           nil,
		Version:                1,
		UpdatedAt:              time.Now().UTC(),
	}
}

// Clone returns a deep copy, used to keep the updater pure and read
// accessors immutable.
func (s *BeliefState) Clone() *BeliefState {
	cp := *s
	cp.FactorWeights = s.FactorWeights.Clone()
	cp.FactorConfidences = s.FactorConfidences.Clone()
	cp.RecentDeltas = append([]float64(nil), s.RecentDeltas...)
	return &cp
}

// PrevDelta returns the previous cycle's performance delta, or nil when no
// cycle has run yet.
func (s *BeliefState) PrevDelta() *float64 {
	if len(s.RecentDeltas) == 0 {
		return nil
	}
	d := s.RecentDeltas[len(s.RecentDeltas)-1]
	return &d
}

// BeliefUpdate is a single field-level delta applied during a cycle.
type BeliefUpdate struct {
	Field string  `json:"field"`
	Old   float64 `json:"old"`
	New   float64 `json:"new"`
	Delta float64 `json:"delta"`
}

// MetaPrompt is the structured explainability summary of a cycle's direction
// and learnings. It is emitted for downstream consumers and never consumed
// internally.
type MetaPrompt struct {
	OptimizationDirection string            `json:"optimization_direction"`
	KeyLearnings          []string          `json:"key_learnings"`
	FactorAdjustments     map[string]string `json:"factor_adjustments"`
	RiskGuidance          string            `json:"risk_guidance"`
	TimingInsights        []string          `json:"timing_insights"`
}
