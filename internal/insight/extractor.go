// Package insight turns a pair of completed episodes into a structured
// comparison plus ranked symbolic insights. Extraction is pure: no clocks,
// no I/O, identical inputs produce identical outputs.
package insight

import (
	"fmt"
	"math"
	"sort"

	"github.com/frontieralpha/frontier/internal/domain"
)

// ExtractorConfig holds the thresholds governing insight extraction.
type ExtractorConfig struct {
	SignificanceThreshold float64 `yaml:"significance_threshold"` // Default: 0.3 on the standardized exposure scale
	OverlapFloor          float64 `yaml:"overlap_floor"`          // Default: 0.25
	LowOverlapThreshold   float64 `yaml:"low_overlap_threshold"`  // Default: 0.3
	MaxInsights           int     `yaml:"max_insights"`           // Default: 10
}

// DefaultExtractorConfig returns the standard thresholds.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		SignificanceThreshold: 0.3,
		OverlapFloor:          0.25,
		LowOverlapThreshold:   0.3,
		MaxInsights:           10,
	}
}

// Extractor compares episode pairs under a fixed configuration.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor creates an extractor with the given configuration, falling
// back to defaults for zero-valued fields.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	def := DefaultExtractorConfig()
	if cfg.SignificanceThreshold <= 0 {
		cfg.SignificanceThreshold = def.SignificanceThreshold
	}
	if cfg.OverlapFloor <= 0 {
		cfg.OverlapFloor = def.OverlapFloor
	}
	if cfg.LowOverlapThreshold <= 0 {
		cfg.LowOverlapThreshold = def.LowOverlapThreshold
	}
	if cfg.MaxInsights <= 0 {
		cfg.MaxInsights = def.MaxInsights
	}
	return &Extractor{cfg: cfg}
}

// Extract produces the comparison and ranked insights for two completed
// episodes. prevDelta is the previous cycle's performance delta (nil before
// any cycle has run); it feeds the regime-shift signal only.
func (x *Extractor) Extract(earlier, later *domain.Episode, prevDelta *float64) (domain.EpisodeComparison, []domain.ConceptualInsight) {
	cmp := domain.EpisodeComparison{
		EarlierEpisode:   earlier.EpisodeNumber,
		LaterEpisode:     later.EpisodeNumber,
		EarlierReturn:    earlier.PortfolioReturn,
		LaterReturn:      later.PortfolioReturn,
		PerformanceDelta: later.PortfolioReturn - earlier.PortfolioReturn,
		DecisionOverlap:  DecisionOverlap(earlier.Decisions, later.Decisions),
	}
	if cmp.PerformanceDelta >= 0 {
		cmp.BetterEpisode = later.EpisodeNumber
		cmp.WorseEpisode = earlier.EpisodeNumber
	} else {
		cmp.BetterEpisode = earlier.EpisodeNumber
		cmp.WorseEpisode = later.EpisodeNumber
	}

	// Partition by the outcome signs stamped at close; neutral decisions
	// carry no signal and belong to neither side.
	for _, d := range later.Decisions {
		switch {
		case d.Outcome > 0:
			cmp.ProfitableTrades = append(cmp.ProfitableTrades, d)
		case d.Outcome < 0:
			cmp.LosingTrades = append(cmp.LosingTrades, d)
		}
	}

	// Zero decisions in either episode: comparison with performance delta
	// only, no insights.
	if len(earlier.Decisions) == 0 || len(later.Decisions) == 0 {
		return cmp, nil
	}

	insights := x.factorInsights(cmp, later.EpisodeNumber)
	if shift := x.regimeShiftInsight(cmp, prevDelta); shift != nil {
		insights = append(insights, *shift)
	}

	sort.SliceStable(insights, func(i, j int) bool {
		if insights[i].Confidence != insights[j].Confidence {
			return insights[i].Confidence > insights[j].Confidence
		}
		return insights[i].Factor < insights[j].Factor
	})
	if len(insights) > x.cfg.MaxInsights {
		insights = insights[:x.cfg.MaxInsights]
	}
	return cmp, insights
}

// factorInsights compares average attached exposures between profitable and
// losing trades for every tracked factor.
func (x *Extractor) factorInsights(cmp domain.EpisodeComparison, sourceEpisode int) []domain.ConceptualInsight {
	profitAvg, profitN := averageExposures(cmp.ProfitableTrades)
	loseAvg, loseN := averageExposures(cmp.LosingTrades)

	var insights []domain.ConceptualInsight
	for _, factor := range unionKeys(profitAvg, loseAvg) {
		// Both sides must actually carry the factor to compare.
		if profitN[factor] == 0 || loseN[factor] == 0 {
			continue
		}
		diff := profitAvg[factor] - loseAvg[factor]
		if math.Abs(diff) <= x.cfg.SignificanceThreshold {
			continue
		}

		direction := domain.ImpactPositive
		if diff < 0 {
			direction = domain.ImpactNegative
		}
		conviction := math.Max(cmp.DecisionOverlap, x.cfg.OverlapFloor)
		insights = append(insights, domain.ConceptualInsight{
			Type:            domain.InsightFactor,
			Factor:          factor,
			Concept:         fmt.Sprintf("%s exposure separates profitable from losing trades", factor),
			Evidence:        fmt.Sprintf("profitable avg %.2f vs losing avg %.2f over %d/%d trades", profitAvg[factor], loseAvg[factor], profitN[factor], loseN[factor]),
			Confidence:      clamp01(math.Abs(diff) * conviction),
			SourceEpisode:   sourceEpisode,
			ImpactDirection: direction,
		})
	}
	return insights
}

// regimeShiftInsight fires when the performance delta's sign flips relative
// to the prior cycle while decision overlap is low: a structural change
// signal rather than noise.
func (x *Extractor) regimeShiftInsight(cmp domain.EpisodeComparison, prevDelta *float64) *domain.ConceptualInsight {
	if prevDelta == nil {
		return nil
	}
	if cmp.PerformanceDelta == 0 || *prevDelta == 0 {
		return nil
	}
	if (cmp.PerformanceDelta > 0) == (*prevDelta > 0) {
		return nil
	}
	if cmp.DecisionOverlap >= x.cfg.LowOverlapThreshold {
		return nil
	}

	direction := domain.ImpactPositive
	if cmp.PerformanceDelta < 0 {
		direction = domain.ImpactNegative
	}
	magnitude := math.Min(1, math.Abs(cmp.PerformanceDelta-*prevDelta)*10)
	return &domain.ConceptualInsight{
		Type:            domain.InsightRegime,
		Concept:         "performance reversal under a divergent decision mix",
		Evidence:        fmt.Sprintf("delta flipped from %+.4f to %+.4f with overlap %.2f", *prevDelta, cmp.PerformanceDelta, cmp.DecisionOverlap),
		Confidence:      clamp01((1 - cmp.DecisionOverlap) * magnitude),
		SourceEpisode:   cmp.LaterEpisode,
		ImpactDirection: direction,
	}
}

// DecisionOverlap is the Jaccard similarity of (symbol, action) pairs across
// two decision sets: 0 for disjoint or empty-vs-empty, 1 for identical sets.
func DecisionOverlap(a, b []domain.Decision) float64 {
	setA := pairSet(a)
	setB := pairSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for pair := range setA {
		if setB[pair] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

type pair struct {
	symbol string
	action domain.Action
}

func pairSet(decisions []domain.Decision) map[pair]bool {
	set := make(map[pair]bool, len(decisions))
	for _, d := range decisions {
		set[pair{symbol: d.Symbol, action: d.Action}] = true
	}
	return set
}

// averageExposures returns per-factor mean exposure and sample counts over
// the decisions that carry each factor.
func averageExposures(decisions []domain.Decision) (map[string]float64, map[string]int) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, d := range decisions {
		for factor, exposure := range d.Factors {
			sums[factor] += exposure
			counts[factor]++
		}
	}
	for factor := range sums {
		sums[factor] /= float64(counts[factor])
	}
	return sums, counts
}

func unionKeys(a, b map[string]float64) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
