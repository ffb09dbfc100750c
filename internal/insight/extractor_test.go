package insight

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontieralpha/frontier/internal/domain"
)

func decision(symbol string, action domain.Action, momentum float64, outcome int) domain.Decision {
	return domain.Decision{
		Symbol:     symbol,
		Action:     action,
		Confidence: 0.7,
		Factors:    domain.FactorMap{"momentum": momentum},
		Timestamp:  time.Now().UTC(),
		Outcome:    outcome,
	}
}

func completedEpisode(number int, ret float64, decisions ...domain.Decision) *domain.Episode {
	end := time.Now().UTC()
	return &domain.Episode{
		ID:              fmt.Sprintf("ep-%d", number),
		UserID:          "u1",
		EpisodeNumber:   number,
		EndDate:         &end,
		Decisions:       decisions,
		PortfolioReturn: ret,
		Status:          domain.EpisodeCompleted,
	}
}

func TestDecisionOverlap_Properties(t *testing.T) {
	a := []domain.Decision{
		decision("AAPL", domain.ActionBuy, 0, 0),
		decision("NVDA", domain.ActionBuy, 0, 0),
	}
	b := []domain.Decision{
		decision("AAPL", domain.ActionBuy, 0, 0),
		decision("TSLA", domain.ActionSell, 0, 0),
	}

	t.Run("symmetry", func(t *testing.T) {
		assert.Equal(t, DecisionOverlap(a, b), DecisionOverlap(b, a))
	})

	t.Run("identity", func(t *testing.T) {
		assert.Equal(t, 1.0, DecisionOverlap(a, a))
	})

	t.Run("empty_vs_empty_is_zero_not_nan", func(t *testing.T) {
		assert.Equal(t, 0.0, DecisionOverlap(nil, nil))
	})

	t.Run("disjoint", func(t *testing.T) {
		c := []domain.Decision{decision("GOOG", domain.ActionBuy, 0, 0)}
		assert.Equal(t, 0.0, DecisionOverlap(a, c))
	})

	t.Run("duplicate_pairs_count_once", func(t *testing.T) {
		dup := append([]domain.Decision{}, a...)
		dup = append(dup, decision("AAPL", domain.ActionBuy, 0.5, 0))
		assert.Equal(t, 1.0, DecisionOverlap(a, dup))
	})
}

// Scenario: episode 2 closes at -2% against episode 1's +3% with 40% decision
// overlap; momentum averages 0.8 profitable vs -0.4 losing. The 1.2 spread
// clears the 0.3 threshold and yields one positive momentum insight.
func TestExtract_FactorInsight(t *testing.T) {
	x := NewExtractor(DefaultExtractorConfig())

	earlier := completedEpisode(1, 0.03,
		decision("AAPL", domain.ActionBuy, 0.5, 0),
		decision("NVDA", domain.ActionBuy, 0.5, 0),
		decision("MSFT", domain.ActionBuy, 0.5, 0),
	)
	// Overlap: {AAPL,NVDA} shared, union 5 pairs -> 0.4.
	later := completedEpisode(2, -0.02,
		decision("AAPL", domain.ActionBuy, 0.8, 1),
		decision("NVDA", domain.ActionBuy, 0.8, 1),
		decision("TSLA", domain.ActionBuy, -0.4, -1),
		decision("AMZN", domain.ActionBuy, -0.4, -1),
	)

	cmp, insights := x.Extract(earlier, later, nil)

	assert.InDelta(t, -0.05, cmp.PerformanceDelta, 1e-9)
	assert.InDelta(t, 0.4, cmp.DecisionOverlap, 1e-9)
	assert.Equal(t, 1, cmp.BetterEpisode)
	assert.Equal(t, 2, cmp.WorseEpisode)
	assert.Len(t, cmp.ProfitableTrades, 2)
	assert.Len(t, cmp.LosingTrades, 2)

	require.Len(t, insights, 1)
	ins := insights[0]
	assert.Equal(t, domain.InsightFactor, ins.Type)
	assert.Equal(t, "momentum", ins.Factor)
	assert.Equal(t, domain.ImpactPositive, ins.ImpactDirection)
	assert.Equal(t, 2, ins.SourceEpisode)
	// |0.8 - (-0.4)| * overlap 0.4 = 0.48
	assert.InDelta(t, 0.48, ins.Confidence, 1e-9)
}

func TestExtract_BelowThresholdYieldsNothing(t *testing.T) {
	x := NewExtractor(DefaultExtractorConfig())

	earlier := completedEpisode(1, 0.01, decision("AAPL", domain.ActionBuy, 0.5, 0))
	later := completedEpisode(2, 0.02,
		decision("AAPL", domain.ActionBuy, 0.2, 1),
		decision("NVDA", domain.ActionBuy, 0.1, -1),
	)

	_, insights := x.Extract(earlier, later, nil)
	assert.Empty(t, insights)
}

func TestExtract_EmptyEpisodeGivesComparisonOnly(t *testing.T) {
	x := NewExtractor(DefaultExtractorConfig())

	earlier := completedEpisode(1, 0.03)
	later := completedEpisode(2, -0.02, decision("AAPL", domain.ActionBuy, 0.9, 1))

	cmp, insights := x.Extract(earlier, later, nil)
	assert.InDelta(t, -0.05, cmp.PerformanceDelta, 1e-9)
	assert.Empty(t, insights)
}

func TestExtract_RegimeShift(t *testing.T) {
	x := NewExtractor(DefaultExtractorConfig())

	earlier := completedEpisode(1, 0.01, decision("AAPL", domain.ActionBuy, 0.1, 1))
	later := completedEpisode(2, -0.03, decision("TSLA", domain.ActionSell, 0.1, -1))

	prev := 0.04 // prior cycle improved; this one reverses with zero overlap

	_, insights := x.Extract(earlier, later, &prev)
	require.NotEmpty(t, insights)

	var shift *domain.ConceptualInsight
	for i := range insights {
		if insights[i].Type == domain.InsightRegime {
			shift = &insights[i]
		}
	}
	require.NotNil(t, shift, "expected a regime-shift insight")
	assert.Equal(t, domain.ImpactNegative, shift.ImpactDirection)
	assert.Greater(t, shift.Confidence, 0.0)
}

func TestExtract_NoRegimeShiftWhenOverlapHigh(t *testing.T) {
	x := NewExtractor(DefaultExtractorConfig())

	earlier := completedEpisode(1, 0.01, decision("AAPL", domain.ActionBuy, 0.1, 1))
	later := completedEpisode(2, -0.03, decision("AAPL", domain.ActionBuy, 0.1, -1))

	prev := 0.04
	_, insights := x.Extract(earlier, later, &prev)
	for _, ins := range insights {
		assert.NotEqual(t, domain.InsightRegime, ins.Type)
	}
}

func TestExtract_CapAndOrdering(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.MaxInsights = 3
	x := NewExtractor(cfg)

	// Many factors with distinct spreads so every factor clears the
	// threshold with a distinct confidence.
	profitable := domain.Decision{
		Symbol: "AAPL", Action: domain.ActionBuy, Confidence: 0.5, Outcome: 1,
		Factors: domain.FactorMap{},
	}
	losing := domain.Decision{
		Symbol: "TSLA", Action: domain.ActionSell, Confidence: 0.5, Outcome: -1,
		Factors: domain.FactorMap{},
	}
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("factor_%d", i)
		profitable.Factors[name] = 0.5 + float64(i)*0.2
		losing.Factors[name] = -0.5
	}

	earlier := completedEpisode(1, 0.01, decision("GOOG", domain.ActionBuy, 0.1, 0))
	later := completedEpisode(2, 0.04, profitable, losing)

	_, insights := x.Extract(earlier, later, nil)
	require.Len(t, insights, 3)
	for i := 1; i < len(insights); i++ {
		assert.GreaterOrEqual(t, insights[i-1].Confidence, insights[i].Confidence)
	}
	// Highest spreads survive the cap.
	assert.Equal(t, "factor_5", insights[0].Factor)
}

func TestExtract_TiesBrokenByFactorName(t *testing.T) {
	x := NewExtractor(DefaultExtractorConfig())

	profitable := domain.Decision{
		Symbol: "AAPL", Action: domain.ActionBuy, Confidence: 0.5, Outcome: 1,
		Factors: domain.FactorMap{"alpha": 0.8, "beta": 0.8},
	}
	losing := domain.Decision{
		Symbol: "TSLA", Action: domain.ActionSell, Confidence: 0.5, Outcome: -1,
		Factors: domain.FactorMap{"alpha": -0.4, "beta": -0.4},
	}
	earlier := completedEpisode(1, 0.01, decision("GOOG", domain.ActionBuy, 0.1, 0))
	later := completedEpisode(2, 0.04, profitable, losing)

	_, insights := x.Extract(earlier, later, nil)
	require.Len(t, insights, 2)
	assert.Equal(t, "alpha", insights[0].Factor)
	assert.Equal(t, "beta", insights[1].Factor)
}

func TestExtract_IsPure(t *testing.T) {
	x := NewExtractor(DefaultExtractorConfig())

	earlier := completedEpisode(1, 0.03,
		decision("AAPL", domain.ActionBuy, 0.5, 0))
	later := completedEpisode(2, -0.02,
		decision("AAPL", domain.ActionBuy, 0.8, 1),
		decision("TSLA", domain.ActionBuy, -0.4, -1))
	prev := 0.01

	cmp1, ins1 := x.Extract(earlier, later, &prev)
	cmp2, ins2 := x.Extract(earlier, later, &prev)
	assert.Equal(t, cmp1, cmp2)
	assert.Equal(t, ins1, ins2)
}
