// Package episode owns the episode lifecycle and the ordered decision log.
// Closing an episode optionally hands the completed pair to the cycle runner;
// a failed close leaves the episode active.
package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/frontieralpha/frontier/internal/domain"
	"github.com/frontieralpha/frontier/internal/metrics"
	"github.com/frontieralpha/frontier/internal/persistence"
)

// CycleRunner triggers one learning cycle over a completed episode pair and
// commits the closed episode atomically with the belief update.
type CycleRunner interface {
	RunCycle(ctx context.Context, userID string, earlier, later *domain.Episode) (*domain.CycleResult, error)
}

// CloseResult is what closeEpisode hands back: the frozen episode and the
// cycle result. Cycle is nil on cold start or when learning was deferred.
type CloseResult struct {
	Episode *domain.Episode     `json:"episode"`
	Cycle   *domain.CycleResult `json:"cycle,omitempty"`
}

// Manager drives episode lifecycle per user. All state lives in the store;
// the manager itself is stateless and safe for concurrent use across users.
type Manager struct {
	store   persistence.Store
	cycles  CycleRunner
	metrics *metrics.Registry
	log     zerolog.Logger
	now     func() time.Time
}

// NewManager wires an episode manager. reg may be nil.
func NewManager(store persistence.Store, cycles CycleRunner, reg *metrics.Registry) *Manager {
	return &Manager{
		store:   store,
		cycles:  cycles,
		metrics: reg,
		log:     log.With().Str("component", "episode").Logger(),
		now:     time.Now,
	}
}

// StartEpisode creates a new active episode with the next episode number.
// Fails with a StateError if an active episode already exists.
func (m *Manager) StartEpisode(ctx context.Context, userID string) (*domain.Episode, error) {
	if userID == "" {
		return nil, &domain.ValidationError{Field: "user_id", Value: userID, Reason: "must not be empty"}
	}

	active, err := m.store.Episodes().GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load active episode: %w", err)
	}
	if active != nil {
		return nil, &domain.StateError{
			Op: "startEpisode", UserID: userID, Current: string(domain.EpisodeActive),
			Reason: fmt.Sprintf("episode %d is still active", active.EpisodeNumber),
		}
	}

	maxNumber, err := m.store.Episodes().MaxNumber(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve episode number: %w", err)
	}

	ep := &domain.Episode{
		ID:            uuid.NewString(),
		UserID:        userID,
		EpisodeNumber: maxNumber + 1,
		StartDate:     m.now().UTC(),
		Status:        domain.EpisodeActive,
	}
	if err := m.store.Episodes().Save(ctx, ep); err != nil {
		return nil, fmt.Errorf("save episode: %w", err)
	}

	m.log.Info().Str("user", userID).Int("episode", ep.EpisodeNumber).Msg("episode started")
	return ep.Clone(), nil
}

// RecordDecision appends a decision to the active episode, preserving call
// order. Fails with a StateError if no active episode exists.
func (m *Manager) RecordDecision(ctx context.Context, userID string, d domain.Decision) error {
	if err := domain.ValidateDecision(d); err != nil {
		return err
	}

	active, err := m.store.Episodes().GetActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("load active episode: %w", err)
	}
	if active == nil {
		return &domain.StateError{
			Op: "recordDecision", UserID: userID, Current: "no_episode",
			Reason: "no active episode to record into",
		}
	}

	if d.Timestamp.IsZero() {
		d.Timestamp = m.now().UTC()
	}
	active.Decisions = append(active.Decisions, d)
	if err := m.store.Episodes().Save(ctx, active); err != nil {
		return fmt.Errorf("save decision: %w", err)
	}

	m.metrics.ObserveDecision(string(d.Action))
	m.log.Debug().Str("user", userID).Str("symbol", d.Symbol).Str("action", string(d.Action)).
		Int("decisions", len(active.Decisions)).Msg("decision recorded")
	return nil
}

// CloseEpisode freezes the active episode's metrics and transitions it to
// completed. When runCvrf is set and a prior completed episode exists, one
// learning cycle runs and its commit carries the closure; the very first
// closure is a cold-start no-op with a nil cycle result. Any failure leaves
// the episode active.
func (m *Manager) CloseEpisode(ctx context.Context, userID string, metrics domain.CloseMetrics, runCvrf bool) (*CloseResult, error) {
	active, err := m.store.Episodes().GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load active episode: %w", err)
	}
	if active == nil {
		return nil, &domain.StateError{
			Op: "closeEpisode", UserID: userID, Current: "no_episode",
			Reason: "no active episode to close",
		}
	}
	if err := domain.ValidateCloseMetrics(metrics, len(active.Decisions)); err != nil {
		return nil, err
	}

	// Work on a clone: nothing observable changes unless the commit lands.
	closed := active.Clone()
	end := m.now().UTC()
	closed.EndDate = &end
	closed.PortfolioReturn = metrics.PortfolioReturn
	closed.SharpeRatio = metrics.SharpeRatio
	closed.MaxDrawdown = metrics.MaxDrawdown
	closed.Status = domain.EpisodeCompleted
	for i := range metrics.DecisionOutcomes {
		closed.Decisions[i].Outcome = metrics.DecisionOutcomes[i]
	}

	earlier, err := m.store.Episodes().GetLastCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load prior episode: %w", err)
	}

	if !runCvrf || earlier == nil {
		if err := m.store.CommitClose(ctx, closed); err != nil {
			return nil, fmt.Errorf("commit episode close: %w", err)
		}
		m.metrics.ObserveEpisodeClose()
		m.log.Info().Str("user", userID).Int("episode", closed.EpisodeNumber).
			Bool("cold_start", earlier == nil).Bool("cvrf_deferred", !runCvrf).
			Msg("episode closed without cycle")
		return &CloseResult{Episode: closed}, nil
	}

	cycle, err := m.cycles.RunCycle(ctx, userID, earlier, closed)
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveEpisodeClose()
	return &CloseResult{Episode: closed, Cycle: cycle}, nil
}

// ActiveEpisode returns the user's active episode snapshot, or nil.
func (m *Manager) ActiveEpisode(ctx context.Context, userID string) (*domain.Episode, error) {
	return m.store.Episodes().GetActive(ctx, userID)
}

// ListEpisodes returns episode summaries oldest-first.
func (m *Manager) ListEpisodes(ctx context.Context, userID string, limit, offset int) ([]domain.Summary, error) {
	episodes, err := m.store.Episodes().List(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.Summary, len(episodes))
	for i := range episodes {
		summaries[i] = episodes[i].Summarize()
	}
	return summaries, nil
}
