package domain

import (
	"time"
)

// EpisodeStatus tracks the episode lifecycle
type EpisodeStatus string

const (
	EpisodeActive    EpisodeStatus = "active"
	EpisodeCompleted EpisodeStatus = "completed"
)

// Action is the portfolio action recorded on a decision
type Action string

const (
	ActionBuy    Action = "buy"
	ActionSell   Action = "sell"
	ActionHold   Action = "hold"
	ActionReduce Action = "reduce"
	ActionAdd    Action = "add"
)

// FactorSnapshot maps factor name to standardized exposure at decision time.
// Exposures are on a consistent standardized scale across calls.
type FactorSnapshot = FactorMap

// Decision is a single portfolio action recorded during an episode.
// Insertion order is chronological and semantically significant.
type Decision struct {
	Symbol       string         `json:"symbol" db:"symbol"`
	Action       Action         `json:"action" db:"action"`
	WeightBefore float64        `json:"weight_before" db:"weight_before"`
	WeightAfter  float64        `json:"weight_after" db:"weight_after"`
	Reason       string         `json:"reason" db:"reason"`
	Confidence   float64        `json:"confidence" db:"confidence"`
	Factors      FactorSnapshot `json:"factors" db:"factors"`
	Timestamp    time.Time      `json:"ts" db:"ts"`

	// Outcome is the realized profit/loss sign (+1 profitable, -1 losing,
	// 0 unknown), stamped from the metrics provider when the episode closes.
	Outcome int `json:"outcome" db:"outcome"`
}

// Episode is a bounded trading period with an ordered decision log and
// realized performance metrics. At most one active episode per user.
type Episode struct {
	ID              string        `json:"id" db:"id"`
	UserID          string        `json:"user_id" db:"user_id"`
	EpisodeNumber   int           `json:"episode_number" db:"episode_number"`
	StartDate       time.Time     `json:"start_date" db:"start_date"`
	EndDate         *time.Time    `json:"end_date,omitempty" db:"end_date"`
	Decisions       []Decision    `json:"decisions" db:"decisions"`
	PortfolioReturn float64       `json:"portfolio_return" db:"portfolio_return"`
	SharpeRatio     float64       `json:"sharpe_ratio" db:"sharpe_ratio"`
	MaxDrawdown     float64       `json:"max_drawdown" db:"max_drawdown"`
	Status          EpisodeStatus `json:"status" db:"status"`
}

// CloseMetrics carries the realized metrics supplied by the metrics provider
// at close time. DecisionOutcomes, when present, is aligned with the
// episode's decision order and carries each decision's profit/loss sign.
type CloseMetrics struct {
	PortfolioReturn  float64 `json:"portfolio_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	DecisionOutcomes []int   `json:"decision_outcomes,omitempty"`
}

// IsActive reports whether the episode is still accepting decisions.
func (e *Episode) IsActive() bool {
	return e.Status == EpisodeActive
}

// Clone returns a deep copy so close/commit failures never leave a partially
// mutated episode observable.
func (e *Episode) Clone() *Episode {
	cp := *e
	if e.EndDate != nil {
		end := *e.EndDate
		cp.EndDate = &end
	}
	cp.Decisions = make([]Decision, len(e.Decisions))
	for i, d := range e.Decisions {
		cp.Decisions[i] = d
		cp.Decisions[i].Factors = d.Factors.Clone()
	}
	return &cp
}

// Summary is the read-only episode projection exposed over the API surface.
type Summary struct {
	ID              string        `json:"id"`
	EpisodeNumber   int           `json:"episode_number"`
	StartDate       time.Time     `json:"start_date"`
	EndDate         *time.Time    `json:"end_date,omitempty"`
	DecisionCount   int           `json:"decision_count"`
	PortfolioReturn float64       `json:"portfolio_return"`
	SharpeRatio     float64       `json:"sharpe_ratio"`
	MaxDrawdown     float64       `json:"max_drawdown"`
	Status          EpisodeStatus `json:"status"`
}

// Summarize projects an episode into its API summary.
func (e *Episode) Summarize() Summary {
	return Summary{
		ID:              e.ID,
		EpisodeNumber:   e.EpisodeNumber,
		StartDate:       e.StartDate,
		EndDate:         e.EndDate,
		DecisionCount:   len(e.Decisions),
		PortfolioReturn: e.PortfolioReturn,
		SharpeRatio:     e.SharpeRatio,
		MaxDrawdown:     e.MaxDrawdown,
		Status:          e.Status,
	}
}
