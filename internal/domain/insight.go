package domain

import (
	"time"
)

// InsightType distinguishes what kind of signal an insight carries.
type InsightType string

const (
	InsightFactor InsightType = "factor"
	InsightRegime InsightType = "regime_shift"
)

// ImpactDirection is the sign of an insight's suggested adjustment.
type ImpactDirection string

const (
	ImpactPositive ImpactDirection = "positive"
	ImpactNegative ImpactDirection = "negative"
)

// Sign returns +1/-1 for use in bounded weight updates.
func (d ImpactDirection) Sign() float64 {
	if d == ImpactNegative {
		return -1
	}
	return 1
}

// ConceptualInsight is a symbolic, confidence-scored statement about what
// distinguished good vs bad decisions across two episodes.
type ConceptualInsight struct {
	Type            InsightType     `json:"type"`
	Factor          string          `json:"factor,omitempty"`
	Concept         string          `json:"concept"`
	Evidence        string          `json:"evidence"`
	Confidence      float64         `json:"confidence"`
	SourceEpisode   int             `json:"source_episode"`
	ImpactDirection ImpactDirection `json:"impact_direction"`
}

// EpisodeComparison is the structured diff between two completed episodes.
type EpisodeComparison struct {
	EarlierEpisode   int     `json:"earlier_episode"`
	LaterEpisode     int     `json:"later_episode"`
	BetterEpisode    int     `json:"better_episode"`
	WorseEpisode     int     `json:"worse_episode"`
	PerformanceDelta float64 `json:"performance_delta"`
	DecisionOverlap  float64 `json:"decision_overlap"`
	EarlierReturn    float64 `json:"earlier_return"`
	LaterReturn      float64 `json:"later_return"`

	ProfitableTrades []Decision `json:"profitable_trades"`
	LosingTrades     []Decision `json:"losing_trades"`
}

// CycleResult is the full record of one completed learning cycle.
type CycleResult struct {
	CycleID           string              `json:"cycle_id" db:"cycle_id"`
	UserID            string              `json:"user_id" db:"user_id"`
	Timestamp         time.Time           `json:"ts" db:"ts"`
	EpisodeComparison EpisodeComparison   `json:"episode_comparison"`
	ExtractedInsights []ConceptualInsight `json:"extracted_insights"`
	MetaPrompt        MetaPrompt          `json:"meta_prompt"`
	BeliefUpdates     []BeliefUpdate      `json:"belief_updates"`
	NewBeliefState    *BeliefState        `json:"new_belief_state"`
	Explanation       string              `json:"explanation"`
}
