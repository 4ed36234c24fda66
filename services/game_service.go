package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
	"strategy-game-server/models"
)

// GameService exposes the player-facing game operations. Every state change
// goes through Store.Update under the game's writer lock, and events are
// published only after the commit succeeds.
type GameService struct {
	Store       Store
	Notifier    Notifier
	Rules       engine.Rules
	Coordinator *engine.Coordinator
	FogOfWar    bool

	Rand engine.Rand
	Now  func() time.Time

	locks *gameLocks
	log   *logrus.Entry
}

type Options struct {
	Rules    engine.Rules
	FogOfWar bool
	// Rand seeds map generation and combat; nil uses the global source.
	Rand engine.Rand
}

func NewGameService(store Store, notifier Notifier, opts Options) *GameService {
	rng := opts.Rand
	if rng == nil {
		rng = engine.GlobalRand
	}
	if notifier == nil {
		notifier = discard{}
	}
	return &GameService{
		Store:       store,
		Notifier:    notifier,
		Rules:       opts.Rules,
		Coordinator: engine.NewCoordinator(opts.Rules, rng),
		FogOfWar:    opts.FogOfWar,
		Rand:        rng,
		Now:         time.Now,
		locks:       newGameLocks(),
		log:         logger.Component("game_service"),
	}
}

type discard struct{}

func (discard) Publish(...engine.Event) {}

// CreateGame sets up a new game with the creator seated as player 1.
func (s *GameService) CreateGame(ctx context.Context, creatorID, name string, mapSize, maxPlayers int) (*models.Game, error) {
	st, events, err := engine.NewGame(s.Rules, s.Rand, creatorID, name, mapSize, maxPlayers, s.Now())
	if err != nil {
		return nil, err
	}
	st.Game.Slug = gameSlug(st.Game.Name, st.Game.ID)

	if err := s.Store.CreateGame(ctx, st); err != nil {
		s.log.WithError(err).WithField("game_id", st.Game.ID).Error("Failed to create game.")
		return nil, err
	}
	s.Notifier.Publish(events...)

	s.log.WithFields(logrus.Fields{
		"game_id":     st.Game.ID,
		"slug":        st.Game.Slug,
		"creator":     creatorID,
		"map_size":    mapSize,
		"max_players": maxPlayers,
	}).Info("🎮 Game created.")
	game := st.Game
	return &game, nil
}

// gameSlug builds a readable, unique handle such as "friday-skirmish-1a2b3c4d".
func gameSlug(name, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	base := slug.Make(name)
	if base == "" {
		return short
	}
	return base + "-" + short
}

// update runs fn under the game's lock as one store transaction and
// publishes the events it produced after the commit.
func (s *GameService) update(ctx context.Context, gameID string, fn func(st *engine.State) (*engine.State, []engine.Event, error)) (*engine.State, error) {
	unlock := s.locks.lock(gameID)
	defer unlock()

	var events []engine.Event
	next, err := s.Store.Update(ctx, gameID, func(st *engine.State) (*engine.State, error) {
		out, evs, err := fn(st)
		if err != nil {
			return nil, err
		}
		events = evs
		return out, nil
	})
	if err != nil {
		if !engine.IsPlayerError(err) {
			s.log.WithError(err).WithField("game_id", gameID).Error("Game update failed.")
		}
		return nil, err
	}
	s.Notifier.Publish(events...)
	return next, nil
}

func (s *GameService) JoinGame(ctx context.Context, userID, gameID string) (*models.Player, error) {
	var player models.Player
	_, err := s.update(ctx, gameID, func(st *engine.State) (*engine.State, []engine.Event, error) {
		next, p, events, err := engine.Join(s.Rules, st, userID, s.Now())
		if err != nil {
			return nil, nil, err
		}
		player = *p
		return next, events, nil
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// LeaveGame deactivates the user's seat. Leaving twice succeeds.
func (s *GameService) LeaveGame(ctx context.Context, userID, gameID string) error {
	_, err := s.update(ctx, gameID, func(st *engine.State) (*engine.State, []engine.Event, error) {
		return engine.Leave(s.Rules, st, userID, s.Now())
	})
	return err
}

// SubmitTurn applies the user's whole action batch atomically.
func (s *GameService) SubmitTurn(ctx context.Context, userID, gameID string, actions []json.RawMessage) (*engine.TurnResult, error) {
	var result *engine.TurnResult
	_, err := s.update(ctx, gameID, func(st *engine.State) (*engine.State, []engine.Event, error) {
		next, res, events, err := s.Coordinator.Submit(st, userID, actions)
		if err != nil {
			return nil, nil, err
		}
		result = res
		return next, events, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForfeitTurn submits an empty batch for whoever the game is waiting on.
// It reports false when the game has nobody to wait for.
func (s *GameService) ForfeitTurn(ctx context.Context, gameID string) (*engine.TurnResult, bool, error) {
	var (
		result *engine.TurnResult
		userID string
	)
	_, err := s.update(ctx, gameID, func(st *engine.State) (*engine.State, []engine.Event, error) {
		u, ok := engine.ForfeitUser(st)
		if !ok {
			return st, nil, nil
		}
		userID = u
		next, res, events, err := s.Coordinator.Submit(st, u, nil)
		if err != nil {
			return nil, nil, err
		}
		result = res
		return next, events, nil
	})
	if err != nil {
		return nil, false, err
	}
	if result == nil {
		return nil, false, nil
	}
	s.log.WithFields(logrus.Fields{"game_id": gameID, "user_id": userID, "turn": result.TurnNumber}).Info("⏰ Turn forfeited.")
	return result, true, nil
}

// GetState renders the game for userID.
func (s *GameService) GetState(ctx context.Context, userID, gameID string) (*engine.StateView, error) {
	st, err := s.Store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return engine.BuildView(s.Rules, st, userID, s.FogOfWar), nil
}

func (s *GameService) ListGames(ctx context.Context, activeOnly bool) ([]models.GameSummary, error) {
	return s.Store.ListGames(ctx, activeOnly)
}

func (s *GameService) TurnHistory(ctx context.Context, gameID string) ([]models.Turn, error) {
	return s.Store.TurnHistory(ctx, gameID)
}

func (s *GameService) RulesView() engine.RulesView {
	return engine.DescribeRules(s.Rules)
}
