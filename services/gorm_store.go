package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
	"strategy-game-server/models"
)

// GormStore keeps games in a SQL database through gorm.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// AutoMigrate creates or updates the game tables.
func (s *GormStore) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Game{},
		&models.Player{},
		&models.Unit{},
		&models.Building{},
		&models.Turn{},
	)
}

func (s *GormStore) CreateGame(ctx context.Context, st *engine.State) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&st.Game).Error; err != nil {
			return fmt.Errorf("create game: %w", err)
		}
		for i := range st.Players {
			if err := tx.Create(&st.Players[i]).Error; err != nil {
				return fmt.Errorf("create player: %w", err)
			}
		}
		if len(st.Units) > 0 {
			if err := tx.Create(&st.Units).Error; err != nil {
				return fmt.Errorf("create units: %w", err)
			}
		}
		if len(st.Buildings) > 0 {
			if err := tx.Create(&st.Buildings).Error; err != nil {
				return fmt.Errorf("create buildings: %w", err)
			}
		}
		return nil
	})
}

// Load reads the aggregate inside one read transaction. On postgres it runs
// at REPEATABLE READ so all five queries see the same commit.
func (s *GormStore) Load(ctx context.Context, gameID string) (*engine.State, error) {
	var opts []*sql.TxOptions
	if s.DB.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}

	var st *engine.State
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = loadState(tx, gameID, false)
		return err
	}, opts...)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// loadState reads the aggregate. With lock set the game row is taken FOR
// UPDATE so a second writer waits for this transaction to finish.
func loadState(tx *gorm.DB, gameID string, lock bool) (*engine.State, error) {
	st := &engine.State{}

	q := tx
	if lock && tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("id = ?", gameID).First(&st.Game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrGameNotFound
		}
		return nil, fmt.Errorf("load game: %w", err)
	}
	if err := tx.Where("game_id = ?", gameID).Order("player_number ASC").Find(&st.Players).Error; err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	if err := tx.Where("game_id = ?", gameID).Order("created_at ASC, id ASC").Find(&st.Units).Error; err != nil {
		return nil, fmt.Errorf("load units: %w", err)
	}
	if err := tx.Where("game_id = ?", gameID).Order("created_at ASC, id ASC").Find(&st.Buildings).Error; err != nil {
		return nil, fmt.Errorf("load buildings: %w", err)
	}
	if err := tx.Where("game_id = ? AND turn_number = ?", gameID, st.Game.CurrentTurn).Find(&st.Turns).Error; err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	return st, nil
}

// Update loads, transforms and writes back one game inside a single
// transaction. Any error from fn or from the writes rolls everything back.
func (s *GormStore) Update(ctx context.Context, gameID string, fn UpdateFunc) (*engine.State, error) {
	var out *engine.State
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := loadState(tx, gameID, true)
		if err != nil {
			return err
		}
		after, err := fn(before)
		if err != nil {
			return err
		}
		if err := persistDiff(tx, before, after); err != nil {
			return err
		}
		out = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// persistDiff writes what changed between two states of the same game.
func persistDiff(tx *gorm.DB, before, after *engine.State) error {
	if err := tx.Save(&after.Game).Error; err != nil {
		return fmt.Errorf("save game: %w", err)
	}

	oldPlayers := make(map[string]models.Player, len(before.Players))
	for _, p := range before.Players {
		oldPlayers[p.ID] = p
	}
	for i := range after.Players {
		p := &after.Players[i]
		old, ok := oldPlayers[p.ID]
		switch {
		case !ok:
			if err := tx.Create(p).Error; err != nil {
				return fmt.Errorf("create player: %w", err)
			}
		case old != *p:
			if err := tx.Save(p).Error; err != nil {
				return fmt.Errorf("save player: %w", err)
			}
		}
	}

	oldUnits := make(map[string]models.Unit, len(before.Units))
	for _, u := range before.Units {
		oldUnits[u.ID] = u
	}
	for i := range after.Units {
		u := &after.Units[i]
		old, ok := oldUnits[u.ID]
		delete(oldUnits, u.ID)
		switch {
		case !ok:
			if err := tx.Create(u).Error; err != nil {
				return fmt.Errorf("create unit: %w", err)
			}
		case old != *u:
			if err := tx.Save(u).Error; err != nil {
				return fmt.Errorf("save unit: %w", err)
			}
		}
	}
	for id := range oldUnits {
		if err := tx.Delete(&models.Unit{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete unit: %w", err)
		}
	}

	oldBuildings := make(map[string]models.Building, len(before.Buildings))
	for _, b := range before.Buildings {
		oldBuildings[b.ID] = b
	}
	for i := range after.Buildings {
		b := &after.Buildings[i]
		old, ok := oldBuildings[b.ID]
		delete(oldBuildings, b.ID)
		switch {
		case !ok:
			if err := tx.Create(b).Error; err != nil {
				return fmt.Errorf("create building: %w", err)
			}
		case old != *b:
			if err := tx.Save(b).Error; err != nil {
				return fmt.Errorf("save building: %w", err)
			}
		}
	}
	for id := range oldBuildings {
		if err := tx.Delete(&models.Building{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete building: %w", err)
		}
	}

	oldTurns := make(map[string]bool, len(before.Turns))
	for _, t := range before.Turns {
		oldTurns[t.ID] = true
	}
	for i := range after.Turns {
		if oldTurns[after.Turns[i].ID] {
			continue
		}
		// the unique (game, player, turn_number) index rejects a second record
		if err := tx.Create(&after.Turns[i]).Error; err != nil {
			return fmt.Errorf("create turn: %w", err)
		}
	}
	return nil
}

type playerCount struct {
	GameID string
	N      int
}

func (s *GormStore) ListGames(ctx context.Context, activeOnly bool) ([]models.GameSummary, error) {
	db := s.DB.WithContext(ctx)

	var games []models.Game
	q := db.Order("created_at DESC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&games).Error; err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	var counts []playerCount
	if err := db.Model(&models.Player{}).
		Select("game_id, count(*) as n").
		Where("is_active = ?", true).
		Group("game_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count players: %w", err)
	}
	byGame := make(map[string]int, len(counts))
	for _, c := range counts {
		byGame[c.GameID] = c.N
	}

	out := make([]models.GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, summarize(g, byGame[g.ID]))
	}
	return out, nil
}

func summarize(g models.Game, players int) models.GameSummary {
	return models.GameSummary{
		ID:          g.ID,
		Name:        g.Name,
		Slug:        g.Slug,
		CreatedBy:   g.CreatedBy,
		MapSize:     g.MapSize,
		PlayerCount: players,
		MaxPlayers:  g.MaxPlayers,
		CurrentTurn: g.CurrentTurn,
		IsActive:    g.IsActive,
		CreatedAt:   g.CreatedAt,
	}
}

func (s *GormStore) TurnHistory(ctx context.Context, gameID string) ([]models.Turn, error) {
	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Game{}).Where("id = ?", gameID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	if n == 0 {
		return nil, engine.ErrGameNotFound
	}
	var turns []models.Turn
	if err := db.Where("game_id = ?", gameID).
		Order("turn_number ASC, completed_at ASC").
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	return turns, nil
}

func (s *GormStore) IdleGames(ctx context.Context, before time.Time) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.Game{}).
		Where("is_active = ? AND updated_at < ?", true, before).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("idle games: %w", err)
	}
	return ids, nil
}

func (s *GormStore) PendingArchive(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.Game{}).
		Where("is_active = ? AND archived_at IS NULL", false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("pending archive: %w", err)
	}
	return ids, nil
}

func (s *GormStore) MarkArchived(ctx context.Context, gameID string, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Game{}).
		Where("id = ?", gameID).
		UpdateColumn("archived_at", at)
	if res.Error != nil {
		return fmt.Errorf("mark archived: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		logger.Log.WithFields(logrus.Fields{"component": "store", "game_id": gameID}).Warn("Archive mark matched no game.")
	}
	return nil
}
