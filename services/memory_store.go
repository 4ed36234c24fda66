package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"strategy-game-server/engine"
	"strategy-game-server/models"
)

// MemoryStore keeps games in process memory. Used with DB_DRIVER=memory and
// in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*engine.State
	// full turn log per game; the State only carries the current round
	turns map[string][]models.Turn

	Clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*engine.State),
		turns: make(map[string][]models.Turn),
		Clock: time.Now,
	}
}

func (s *MemoryStore) CreateGame(_ context.Context, st *engine.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[st.Game.ID] = st.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, gameID string) (*engine.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.games[gameID]
	if !ok {
		return nil, engine.ErrGameNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, gameID string, fn UpdateFunc) (*engine.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.games[gameID]
	if !ok {
		return nil, engine.ErrGameNotFound
	}
	after, err := fn(st.Clone())
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(st.Turns))
	for _, t := range st.Turns {
		known[t.ID] = true
	}
	for _, t := range after.Turns {
		if !known[t.ID] {
			s.turns[gameID] = append(s.turns[gameID], t)
		}
	}

	saved := after.Clone()
	saved.Game.UpdatedAt = s.Clock()
	current := saved.Turns[:0]
	for _, t := range saved.Turns {
		if t.TurnNumber == saved.Game.CurrentTurn {
			current = append(current, t)
		}
	}
	saved.Turns = current
	s.games[gameID] = saved
	return saved.Clone(), nil
}

func (s *MemoryStore) ListGames(_ context.Context, activeOnly bool) ([]models.GameSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.GameSummary, 0, len(s.games))
	for _, st := range s.games {
		if activeOnly && !st.Game.IsActive {
			continue
		}
		out = append(out, summarize(st.Game, len(st.ActivePlayers())))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TurnHistory(_ context.Context, gameID string) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.games[gameID]; !ok {
		return nil, engine.ErrGameNotFound
	}
	return append([]models.Turn{}, s.turns[gameID]...), nil
}

func (s *MemoryStore) IdleGames(_ context.Context, before time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, st := range s.games {
		if st.Game.IsActive && st.Game.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) PendingArchive(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, st := range s.games {
		if !st.Game.IsActive && st.Game.ArchivedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) MarkArchived(_ context.Context, gameID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.games[gameID]
	if !ok {
		return engine.ErrGameNotFound
	}
	st.Game.ArchivedAt = &at
	return nil
}
