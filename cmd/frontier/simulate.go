package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/frontieralpha/frontier/internal/belief"
	"github.com/frontieralpha/frontier/internal/cvrf"
	"github.com/frontieralpha/frontier/internal/domain"
	"github.com/frontieralpha/frontier/internal/episode"
	"github.com/frontieralpha/frontier/internal/insight"
	"github.com/frontieralpha/frontier/internal/persistence"
)

// runSimulate drives a full cold-start-then-cycle sequence against the
// in-memory store and prints the resulting cycle record.
func runSimulate(cmd *cobra.Command, _ []string) error {
	user, _ := cmd.Flags().GetString("user")
	ctx := context.Background()

	store := persistence.NewMemoryStore()
	cycles := cvrf.NewManager(store, insight.NewExtractor(insight.DefaultExtractorConfig()), belief.NewUpdater(belief.DefaultUpdaterConfig()), nil, nil)
	episodes := episode.NewManager(store, cycles, nil)

	// Episode 1: momentum-heavy buys, closed at a modest gain. Cold start,
	// so no cycle runs.
	if _, err := episodes.StartEpisode(ctx, user); err != nil {
		return err
	}
	for _, d := range demoDecisions(0.8, "AAPL", "NVDA", "MSFT") {
		if err := episodes.RecordDecision(ctx, user, d); err != nil {
			return err
		}
	}
	first, err := episodes.CloseEpisode(ctx, user, domain.CloseMetrics{
		PortfolioReturn: 0.03, SharpeRatio: 1.1, MaxDrawdown: 0.04,
		DecisionOutcomes: []int{1, 1, -1},
	}, true)
	if err != nil {
		return err
	}
	log.Info().Bool("cold_start", first.Cycle == nil).Msg("episode 1 closed")

	// Episode 2: partially overlapping decisions with a clear momentum
	// split between winners and losers.
	if _, err := episodes.StartEpisode(ctx, user); err != nil {
		return err
	}
	for _, d := range demoDecisions(0.9, "AAPL", "AMZN", "TSLA") {
		if err := episodes.RecordDecision(ctx, user, d); err != nil {
			return err
		}
	}
	second, err := episodes.CloseEpisode(ctx, user, domain.CloseMetrics{
		PortfolioReturn: -0.02, SharpeRatio: 0.4, MaxDrawdown: 0.09,
		DecisionOutcomes: []int{1, -1, -1},
	}, true)
	if err != nil {
		return err
	}
	if second.Cycle == nil {
		return fmt.Errorf("expected a cycle result on the second close")
	}

	out, err := json.MarshalIndent(second.Cycle, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func demoDecisions(momentum float64, symbols ...string) []domain.Decision {
	decisions := make([]domain.Decision, 0, len(symbols))
	for i, symbol := range symbols {
		exposure := momentum
		if i > 0 {
			// Later picks carry progressively weaker momentum so the
			// profitable/losing split separates on the factor.
			exposure = momentum - float64(i)*0.7
		}
		decisions = append(decisions, domain.Decision{
			Symbol:       symbol,
			Action:       domain.ActionBuy,
			WeightBefore: 0,
			WeightAfter:  0.1,
			Reason:       "momentum screen",
			Confidence:   0.7,
			Factors:      domain.FactorMap{"momentum": exposure, "value": -0.1, "quality": 0.2},
			Timestamp:    time.Now().UTC(),
		})
	}
	return decisions
}
