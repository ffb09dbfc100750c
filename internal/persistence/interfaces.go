// Package persistence defines the durable storage boundary for episodes,
// belief states, and cycle history. The core reads before it mutates and
// commits the (closedEpisode, newBeliefState, cycleResult) triple atomically;
// a partially applied cycle is never observable.
package persistence

import (
	"context"
	"errors"

	"github.com/frontieralpha/frontier/internal/domain"
)

// ErrVersionConflict is returned by CommitCycle when the belief version read
// at cycle start no longer matches at commit time. The orchestrator maps it
// to a ConcurrentCycleError.
var ErrVersionConflict = errors.New("belief state version conflict")

// EpisodeRepo provides episode persistence with per-user ordering.
type EpisodeRepo interface {
	// Save upserts an episode (active episodes are saved on every decision).
	Save(ctx context.Context, ep *domain.Episode) error

	// GetActive returns the user's active episode, or nil when none exists.
	GetActive(ctx context.Context, userID string) (*domain.Episode, error)

	// GetLastCompleted returns the most recently completed episode, or nil.
	GetLastCompleted(ctx context.Context, userID string) (*domain.Episode, error)

	// GetByNumber retrieves a specific episode, or nil when absent.
	GetByNumber(ctx context.Context, userID string, number int) (*domain.Episode, error)

	// List returns episodes oldest-first; limit/offset make it restartable.
	List(ctx context.Context, userID string, limit, offset int) ([]domain.Episode, error)

	// MaxNumber returns the highest episode number assigned so far (0 if none).
	MaxNumber(ctx context.Context, userID string) (int, error)
}

// BeliefRepo provides belief state persistence. History is append-only.
type BeliefRepo interface {
	// Get returns the canonical belief state, or nil when none exists yet.
	Get(ctx context.Context, userID string) (*domain.BeliefState, error)

	// History returns retained belief versions oldest-first.
	History(ctx context.Context, userID string, limit, offset int) ([]domain.BeliefState, error)
}

// CycleRepo provides cycle-history reads. Writes happen only through the
// unit of work.
type CycleRepo interface {
	// List returns past cycle results oldest-first; limit/offset make the
	// sequence finite and restartable.
	List(ctx context.Context, userID string, limit, offset int) ([]domain.CycleResult, error)
}

// UnitOfWork is the atomic commit surface. Either every entity in a call is
// durable or none is.
type UnitOfWork interface {
	// CommitClose persists a completed episode without a learning cycle
	// (cold start, or runCvrf deferred to a batch job).
	CommitClose(ctx context.Context, ep *domain.Episode) error

	// CommitCycle atomically persists the closed episode, the new belief
	// state, and the cycle result. expectedVersion is the belief version
	// read at cycle start; a mismatch aborts with ErrVersionConflict.
	CommitCycle(ctx context.Context, ep *domain.Episode, state *domain.BeliefState, result *domain.CycleResult, expectedVersion int64) error
}

// Store aggregates the persistence surface consumed by the managers.
type Store interface {
	Episodes() EpisodeRepo
	Beliefs() BeliefRepo
	Cycles() CycleRepo
	UnitOfWork
}
