// models/game.go
package models

import (
	"encoding/json"
	"time"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Game is one match on a square terrain grid.
// Terrain is addressed Terrain[y][x].
type Game struct {
	ID         string      `json:"id" gorm:"primaryKey"`
	Name       string      `json:"name" gorm:"not null"`
	Slug       string      `json:"slug" gorm:"index"`
	CreatedBy  string      `json:"created_by" gorm:"index"`
	MapSize    int         `json:"map_size" gorm:"not null"`
	MaxPlayers int         `json:"max_players" gorm:"not null"`
	Terrain    TerrainGrid `json:"terrain" gorm:"type:text;serializer:json"`
	IsActive   bool        `json:"is_active" gorm:"not null;index"`

	// Round bookkeeping
	CurrentTurn       int `json:"current_turn" gorm:"not null"`
	ActivePlayerIndex int `json:"active_player_index" gorm:"not null"`

	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	Timestamps
}

// Player is a user's seat in one game. Leaving only clears IsActive.
type Player struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	GameID       string    `json:"game_id" gorm:"not null;uniqueIndex:idx_player_game_number;uniqueIndex:idx_player_game_user"`
	UserID       string    `json:"user_id" gorm:"not null;uniqueIndex:idx_player_game_user"`
	PlayerNumber int       `json:"player_number" gorm:"not null;uniqueIndex:idx_player_game_number"`
	Resources    int       `json:"resources" gorm:"not null;check:resources >= 0"`
	IsActive     bool      `json:"is_active" gorm:"not null"`
	JoinedAt     time.Time `json:"joined_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type Unit struct {
	ID            string `json:"id" gorm:"primaryKey"`
	GameID        string `json:"game_id" gorm:"not null;index"`
	PlayerID      string `json:"player_id" gorm:"not null;index"`
	UnitType      string `json:"unit_type" gorm:"type:varchar(20);not null"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Health        int    `json:"health"`
	Attack        int    `json:"attack"`
	Defense       int    `json:"defense"`
	MovementRange int    `json:"movement_range"`
	AttackRange   int    `json:"attack_range"`
	HasMoved      bool   `json:"has_moved" gorm:"not null"`
	HasAttacked   bool   `json:"has_attacked" gorm:"not null"`

	Timestamps
}

type Building struct {
	ID                 string `json:"id" gorm:"primaryKey"`
	GameID             string `json:"game_id" gorm:"not null;index"`
	PlayerID           string `json:"player_id" gorm:"not null;index"`
	BuildingType       string `json:"building_type" gorm:"type:varchar(20);not null"`
	X                  int    `json:"x"`
	Y                  int    `json:"y"`
	Health             int    `json:"health"`
	ResourceProduction int    `json:"resource_production"`
	HasTrained         bool   `json:"has_trained" gorm:"not null"` // barracks used this round

	Timestamps
}

// Turn records one player's submitted batch for one turn number.
// Immutable once Completed is true.
type Turn struct {
	ID          string          `json:"id" gorm:"primaryKey"`
	GameID      string          `json:"game_id" gorm:"not null;uniqueIndex:idx_turn_game_player_number"`
	PlayerID    string          `json:"player_id" gorm:"not null;uniqueIndex:idx_turn_game_player_number"`
	TurnNumber  int             `json:"turn_number" gorm:"not null;uniqueIndex:idx_turn_game_player_number;index"`
	Actions     json.RawMessage `json:"actions" gorm:"type:text"`
	Completed   bool            `json:"completed" gorm:"not null"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// GameSummary is the lightweight lobby listing row.
type GameSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	CreatedBy   string    `json:"created_by"`
	MapSize     int       `json:"map_size"`
	PlayerCount int       `json:"player_count"`
	MaxPlayers  int       `json:"max_players"`
	CurrentTurn int       `json:"current_turn"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
