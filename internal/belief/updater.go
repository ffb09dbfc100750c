// Package belief applies bounded, explainable updates to a user's belief
// state from a cycle's comparison and insights. Update is pure; the
// orchestrator owns versioning and persistence.
package belief

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/frontieralpha/frontier/internal/domain"
)

// UpdaterConfig holds the learning-rate, regime, and risk-nudge parameters.
type UpdaterConfig struct {
	BaseRate         float64 `yaml:"base_rate"`          // Default: 0.1
	MinRate          float64 `yaml:"min_rate"`           // Default: 0.02
	MaxRate          float64 `yaml:"max_rate"`           // Default: 0.3
	DeltaWindow      int     `yaml:"delta_window"`       // Default: 5
	VolThreshold     float64 `yaml:"vol_threshold"`      // Default: 0.04 stddev of window deltas
	FlatBand         float64 `yaml:"flat_band"`          // Default: 0.005
	RiskStepFraction float64 `yaml:"risk_step_fraction"` // Default: 0.5 of the learning rate

	VolTargetMin float64 `yaml:"vol_target_min"` // Default: 0.05
	VolTargetMax float64 `yaml:"vol_target_max"` // Default: 0.25
	DrawdownMin  float64 `yaml:"drawdown_min"`   // Default: 0.05
	DrawdownMax  float64 `yaml:"drawdown_max"`   // Default: 0.30
}

// DefaultUpdaterConfig returns the standard learning parameters.
func DefaultUpdaterConfig() UpdaterConfig {
	return UpdaterConfig{
		BaseRate:         0.1,
		MinRate:          0.02,
		MaxRate:          0.3,
		DeltaWindow:      5,
		VolThreshold:     0.04,
		FlatBand:         0.005,
		RiskStepFraction: 0.5,
		VolTargetMin:     0.05,
		VolTargetMax:     0.25,
		DrawdownMin:      0.05,
		DrawdownMax:      0.30,
	}
}

// Updater applies belief updates under a fixed configuration.
type Updater struct {
	cfg UpdaterConfig
}

// NewUpdater creates an updater, filling zero-valued fields from defaults.
func NewUpdater(cfg UpdaterConfig) *Updater {
	def := DefaultUpdaterConfig()
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = def.BaseRate
	}
	if cfg.MinRate <= 0 {
		cfg.MinRate = def.MinRate
	}
	if cfg.MaxRate <= 0 {
		cfg.MaxRate = def.MaxRate
	}
	if cfg.DeltaWindow <= 0 {
		cfg.DeltaWindow = def.DeltaWindow
	}
	if cfg.VolThreshold <= 0 {
		cfg.VolThreshold = def.VolThreshold
	}
	if cfg.FlatBand <= 0 {
		cfg.FlatBand = def.FlatBand
	}
	if cfg.RiskStepFraction <= 0 {
		cfg.RiskStepFraction = def.RiskStepFraction
	}
	if cfg.VolTargetMin <= 0 {
		cfg.VolTargetMin = def.VolTargetMin
	}
	if cfg.VolTargetMax <= 0 {
		cfg.VolTargetMax = def.VolTargetMax
	}
	if cfg.DrawdownMin <= 0 {
		cfg.DrawdownMin = def.DrawdownMin
	}
	if cfg.DrawdownMax <= 0 {
		cfg.DrawdownMax = def.DrawdownMax
	}
	return &Updater{cfg: cfg}
}

// Update emits a new belief state, one BeliefUpdate per changed field, and a
// MetaPrompt summary. Empty insights is the no-signal branch: the state comes
// back unchanged and the caller must not bump the version.
func (u *Updater) Update(state *domain.BeliefState, cmp domain.EpisodeComparison, insights []domain.ConceptualInsight) (*domain.BeliefState, []domain.BeliefUpdate, domain.MetaPrompt) {
	if len(insights) == 0 {
		return state.Clone(), nil, domain.MetaPrompt{
			OptimizationDirection: "hold current tilts",
			KeyLearnings:          []string{"no significant signal between episodes"},
			FactorAdjustments:     map[string]string{},
			RiskGuidance:          "risk parameters unchanged",
		}
	}

	next := state.Clone()
	lr := u.learningRate(state.RegimeConfidence, cmp.DecisionOverlap)
	var updates []domain.BeliefUpdate

	// Factor tilts: bounded additive weight steps, EMA confidence blending.
	// One noisy cycle cannot whiplash belief.
	for _, ins := range insights {
		if ins.Type != domain.InsightFactor || ins.Factor == "" {
			continue
		}
		oldW := next.FactorWeights[ins.Factor]
		newW := clamp(oldW+lr*ins.ImpactDirection.Sign()*ins.Confidence, domain.FactorWeightMin, domain.FactorWeightMax)
		if newW != oldW {
			next.FactorWeights[ins.Factor] = newW
			updates = append(updates, domain.BeliefUpdate{
				Field: "factor_weight." + ins.Factor,
				Old:   oldW, New: newW, Delta: newW - oldW,
			})
		}

		oldC := next.FactorConfidences[ins.Factor]
		newC := clamp(oldC+lr*(ins.Confidence-oldC), 0, 1)
		if newC != oldC {
			next.FactorConfidences[ins.Factor] = newC
			updates = append(updates, domain.BeliefUpdate{
				Field: "factor_confidence." + ins.Factor,
				Old:   oldC, New: newC, Delta: newC - oldC,
			})
		}
	}

	// Regime classification from the rolling delta window.
	next.RecentDeltas = appendWindow(next.RecentDeltas, cmp.PerformanceDelta, u.cfg.DeltaWindow)
	oldRegime, oldRegimeConf := next.CurrentRegime, next.RegimeConfidence
	next.CurrentRegime, next.RegimeConfidence = u.classifyRegime(next.RecentDeltas, oldRegime, oldRegimeConf)
	if next.RegimeConfidence != oldRegimeConf {
		updates = append(updates, domain.BeliefUpdate{
			Field: "regime_confidence",
			Old:   oldRegimeConf, New: next.RegimeConfidence, Delta: next.RegimeConfidence - oldRegimeConf,
		})
	}

	// Risk parameters nudge tighter after a losing cycle, looser after a
	// winning one, bounded by configured min/max.
	losing := cmp.LaterReturn < 0
	step := lr * u.cfg.RiskStepFraction
	factor := 1 + step
	if losing {
		factor = 1 - step
	}
	oldVT := next.VolatilityTarget
	next.VolatilityTarget = clamp(oldVT*factor, u.cfg.VolTargetMin, u.cfg.VolTargetMax)
	if next.VolatilityTarget != oldVT {
		updates = append(updates, domain.BeliefUpdate{
			Field: "volatility_target",
			Old:   oldVT, New: next.VolatilityTarget, Delta: next.VolatilityTarget - oldVT,
		})
	}
	oldDD := next.MaxDrawdownThreshold
	next.MaxDrawdownThreshold = clamp(oldDD*factor, u.cfg.DrawdownMin, u.cfg.DrawdownMax)
	if next.MaxDrawdownThreshold != oldDD {
		updates = append(updates, domain.BeliefUpdate{
			Field: "max_drawdown_threshold",
			Old:   oldDD, New: next.MaxDrawdownThreshold, Delta: next.MaxDrawdownThreshold - oldDD,
		})
	}

	return next, updates, u.metaPrompt(next, cmp, insights, oldRegime, losing, lr)
}

// learningRate derives the cycle's step size: stability when regime belief is
// already strong, faster adaptation when the decision mix is novel.
func (u *Updater) learningRate(regimeConfidence, overlap float64) float64 {
	lr := u.cfg.BaseRate * (1 - 0.5*regimeConfidence) * (1 + (1 - overlap))
	return clamp(lr, u.cfg.MinRate, u.cfg.MaxRate)
}

// classifyRegime applies fixed thresholds over the rolling delta window.
// Confidence is the agreement fraction within the window.
func (u *Updater) classifyRegime(window []float64, current domain.Regime, currentConf float64) (domain.Regime, float64) {
	n := len(window)
	if n < 2 {
		return current, currentConf
	}

	sd := stddev(window)
	lastTwoPositive := window[n-1] > 0 && window[n-2] > 0
	lastTwoNegative := window[n-1] < 0 && window[n-2] < 0

	switch {
	case sd > u.cfg.VolThreshold:
		return domain.RegimeVolatile, math.Min(1, sd/u.cfg.VolThreshold-1+0.5)
	case lastTwoPositive:
		return domain.RegimeBull, fraction(window, func(d float64) bool { return d > 0 })
	case lastTwoNegative:
		return domain.RegimeBear, fraction(window, func(d float64) bool { return d < 0 })
	default:
		return domain.RegimeSideways, fraction(window, func(d float64) bool { return math.Abs(d) < u.cfg.FlatBand })
	}
}

// metaPrompt renders the explainability summary. Factor keys are emitted in
// alphabetical order so the text is reproducible.
func (u *Updater) metaPrompt(next *domain.BeliefState, cmp domain.EpisodeComparison, insights []domain.ConceptualInsight, oldRegime domain.Regime, losing bool, lr float64) domain.MetaPrompt {
	adjustments := make(map[string]string)
	var learnings []string
	var timing []string
	for _, ins := range insights {
		switch ins.Type {
		case domain.InsightFactor:
			verb := "increase"
			if ins.ImpactDirection == domain.ImpactNegative {
				verb = "decrease"
			}
			adjustments[ins.Factor] = fmt.Sprintf("%s tilt (confidence %.2f)", verb, ins.Confidence)
			learnings = append(learnings, ins.Concept)
		case domain.InsightRegime:
			timing = append(timing, ins.Evidence)
		}
	}

	var tilts []string
	for _, factor := range sortedKeys(adjustments) {
		tilts = append(tilts, factor+": "+adjustments[factor])
	}
	direction := "lean into recent winners"
	if cmp.PerformanceDelta < 0 {
		direction = "pull back toward what worked previously"
	}

	risk := fmt.Sprintf("loosen risk: volatility target %.3f, max drawdown %.3f", next.VolatilityTarget, next.MaxDrawdownThreshold)
	if losing {
		risk = fmt.Sprintf("tighten risk: volatility target %.3f, max drawdown %.3f", next.VolatilityTarget, next.MaxDrawdownThreshold)
	}
	if oldRegime != next.CurrentRegime {
		timing = append(timing, fmt.Sprintf("regime moved %s -> %s (confidence %.2f)", oldRegime, next.CurrentRegime, next.RegimeConfidence))
	}

	return domain.MetaPrompt{
		OptimizationDirection: fmt.Sprintf("%s at learning rate %.3f; %s", direction, lr, strings.Join(tilts, "; ")),
		KeyLearnings:          learnings,
		FactorAdjustments:     adjustments,
		RiskGuidance:          risk,
		TimingInsights:        timing,
	}
}

func appendWindow(window []float64, delta float64, size int) []float64 {
	window = append(window, delta)
	if len(window) > size {
		window = window[len(window)-size:]
	}
	return window
}

func fraction(window []float64, match func(float64) bool) float64 {
	if len(window) == 0 {
		return 0
	}
	count := 0
	for _, d := range window {
		if match(d) {
			count++
		}
	}
	return float64(count) / float64(len(window))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
