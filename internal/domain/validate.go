package domain

import (
	"math"
)

// ValidateDecision checks a decision before it enters the log. Exposures and
// weights must be finite; confidence must sit in [0,1].
func ValidateDecision(d Decision) error {
	if d.Symbol == "" {
		return &ValidationError{Field: "symbol", Value: d.Symbol, Reason: "must not be empty"}
	}
	if d.Action == "" {
		return &ValidationError{Field: "action", Value: d.Action, Reason: "must not be empty"}
	}
	if d.Confidence < 0 || d.Confidence > 1 || math.IsNaN(d.Confidence) {
		return &ValidationError{Field: "confidence", Value: d.Confidence, Reason: "must be within [0,1]"}
	}
	for name, exposure := range d.Factors {
		if math.IsNaN(exposure) || math.IsInf(exposure, 0) {
			return &ValidationError{Field: "factors." + name, Value: exposure, Reason: "exposure must be finite"}
		}
	}
	for field, v := range map[string]float64{"weight_before": d.WeightBefore, "weight_after": d.WeightAfter} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: field, Value: v, Reason: "must be finite"}
		}
	}
	return nil
}

// ValidateCloseMetrics checks metrics supplied at episode close.
// decisionCount is the length of the episode's decision log; when outcomes
// are supplied they must align with it one-to-one.
func ValidateCloseMetrics(m CloseMetrics, decisionCount int) error {
	for field, v := range map[string]float64{
		"portfolio_return": m.PortfolioReturn,
		"sharpe_ratio":     m.SharpeRatio,
		"max_drawdown":     m.MaxDrawdown,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: field, Value: v, Reason: "must be finite"}
		}
	}
	if m.MaxDrawdown < 0 {
		return &ValidationError{Field: "max_drawdown", Value: m.MaxDrawdown, Reason: "must be non-negative"}
	}
	if len(m.DecisionOutcomes) > 0 && len(m.DecisionOutcomes) != decisionCount {
		return &ValidationError{
			Field:  "decision_outcomes",
			Value:  len(m.DecisionOutcomes),
			Reason: "must align one-to-one with the decision log",
		}
	}
	return nil
}
