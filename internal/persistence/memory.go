package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/frontieralpha/frontier/internal/domain"
)

// MemoryStore is the in-process Store implementation used by tests and the
// simulate command. It honors the same atomic-commit and version-conflict
// contract as the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	episodes map[string][]*domain.Episode   // by user, insertion order
	beliefs  map[string]*domain.BeliefState // canonical per user
	history  map[string][]domain.BeliefState
	cycles   map[string][]domain.CycleResult
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		episodes: make(map[string][]*domain.Episode),
		beliefs:  make(map[string]*domain.BeliefState),
		history:  make(map[string][]domain.BeliefState),
		cycles:   make(map[string][]domain.CycleResult),
	}
}

func (s *MemoryStore) Episodes() EpisodeRepo { return (*memEpisodes)(s) }
func (s *MemoryStore) Beliefs() BeliefRepo   { return (*memBeliefs)(s) }
func (s *MemoryStore) Cycles() CycleRepo     { return (*memCycles)(s) }

// CommitClose persists a completed episode without a cycle.
func (s *MemoryStore) CommitClose(_ context.Context, ep *domain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveEpisodeLocked(ep)
	return nil
}

// CommitCycle commits the triple, rejecting on belief version drift.
func (s *MemoryStore) CommitCycle(_ context.Context, ep *domain.Episode, state *domain.BeliefState, result *domain.CycleResult, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.beliefs[state.UserID]; ok && current.Version != expectedVersion {
		return ErrVersionConflict
	}

	s.saveEpisodeLocked(ep)
	s.beliefs[state.UserID] = state.Clone()
	s.history[state.UserID] = append(s.history[state.UserID], *state.Clone())
	s.cycles[state.UserID] = append(s.cycles[state.UserID], *result)
	return nil
}

func (s *MemoryStore) saveEpisodeLocked(ep *domain.Episode) {
	list := s.episodes[ep.UserID]
	for i, existing := range list {
		if existing.ID == ep.ID {
			list[i] = ep.Clone()
			return
		}
	}
	s.episodes[ep.UserID] = append(list, ep.Clone())
}

type memEpisodes MemoryStore

func (r *memEpisodes) Save(_ context.Context, ep *domain.Episode) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveEpisodeLocked(ep)
	return nil
}

func (r *memEpisodes) GetActive(_ context.Context, userID string) (*domain.Episode, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ep := range s.episodes[userID] {
		if ep.IsActive() {
			return ep.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memEpisodes) GetLastCompleted(_ context.Context, userID string) (*domain.Episode, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *domain.Episode
	for _, ep := range s.episodes[userID] {
		if ep.Status == domain.EpisodeCompleted && (last == nil || ep.EpisodeNumber > last.EpisodeNumber) {
			last = ep
		}
	}
	if last == nil {
		return nil, nil
	}
	return last.Clone(), nil
}

func (r *memEpisodes) GetByNumber(_ context.Context, userID string, number int) (*domain.Episode, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ep := range s.episodes[userID] {
		if ep.EpisodeNumber == number {
			return ep.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memEpisodes) List(_ context.Context, userID string, limit, offset int) ([]domain.Episode, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := make([]*domain.Episode, len(s.episodes[userID]))
	copy(ordered, s.episodes[userID])
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EpisodeNumber < ordered[j].EpisodeNumber
	})
	return paginateEpisodes(ordered, limit, offset), nil
}

func (r *memEpisodes) MaxNumber(_ context.Context, userID string) (int, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, ep := range s.episodes[userID] {
		if ep.EpisodeNumber > max {
			max = ep.EpisodeNumber
		}
	}
	return max, nil
}

type memBeliefs MemoryStore

func (r *memBeliefs) Get(_ context.Context, userID string) (*domain.BeliefState, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.beliefs[userID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (r *memBeliefs) History(_ context.Context, userID string, limit, offset int) ([]domain.BeliefState, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.history[userID], limit, offset), nil
}

type memCycles MemoryStore

func (r *memCycles) List(_ context.Context, userID string, limit, offset int) ([]domain.CycleResult, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.cycles[userID], limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}

func paginateEpisodes(items []*domain.Episode, limit, offset int) []domain.Episode {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]domain.Episode, 0, end-offset)
	for _, ep := range items[offset:end] {
		out = append(out, *ep.Clone())
	}
	return out
}
