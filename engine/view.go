package engine

import (
	"time"

	"strategy-game-server/models"
)

// GameView is the public part of the game row.
type GameView struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Slug              string             `json:"slug"`
	CreatedBy         string             `json:"created_by"`
	MapSize           int                `json:"map_size"`
	MaxPlayers        int                `json:"max_players"`
	Terrain           models.TerrainGrid `json:"terrain"`
	IsActive          bool               `json:"is_active"`
	CurrentTurn       int                `json:"current_turn"`
	ActivePlayerIndex int                `json:"active_player_index"`
	CreatedAt         time.Time          `json:"created_at"`
}

// PlayerView carries a seat and its derived statistics.
type PlayerView struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	PlayerNumber       int    `json:"player_number"`
	Resources          int    `json:"resources"`
	IsActive           bool   `json:"is_active"`
	TurnCompleted      bool   `json:"turn_completed"`
	UnitCount          int    `json:"unit_count"`
	BuildingCount      int    `json:"building_count"`
	ResourceProduction int    `json:"resource_production"`
	Income             int    `json:"income"`
}

// StateView is what getState hands to one caller.
type StateView struct {
	Game            GameView          `json:"game"`
	Players         []PlayerView      `json:"players"`
	Units           []models.Unit     `json:"units"`
	Buildings       []models.Building `json:"buildings"`
	Visibility      []Cell            `json:"visibility,omitempty"`
	CurrentPlayerID string            `json:"current_player_id,omitempty"`
	YourPlayerID    string            `json:"your_player_id,omitempty"`
	FogOfWar        bool              `json:"fog_of_war"`
}

// BuildView renders st for userID. Active participants see every entity and
// their own visibility set; with fogOfWar set, opponents' units and buildings
// outside that set are dropped. Everyone else sees terrain and seats only.
func BuildView(rules Rules, st *State, userID string, fogOfWar bool) *StateView {
	v := &StateView{
		Game: GameView{
			ID:                st.Game.ID,
			Name:              st.Game.Name,
			Slug:              st.Game.Slug,
			CreatedBy:         st.Game.CreatedBy,
			MapSize:           st.Game.MapSize,
			MaxPlayers:        st.Game.MaxPlayers,
			Terrain:           st.Game.Terrain,
			IsActive:          st.Game.IsActive,
			CurrentTurn:       st.Game.CurrentTurn,
			ActivePlayerIndex: st.Game.ActivePlayerIndex,
			CreatedAt:         st.Game.CreatedAt,
		},
		Players:   make([]PlayerView, 0, len(st.Players)),
		Units:     []models.Unit{},
		Buildings: []models.Building{},
		FogOfWar:  fogOfWar,
	}

	for _, p := range st.Players {
		pv := PlayerView{
			ID:                 p.ID,
			UserID:             p.UserID,
			PlayerNumber:       p.PlayerNumber,
			Resources:          p.Resources,
			IsActive:           p.IsActive,
			TurnCompleted:      st.hasCompleted(p.ID),
			ResourceProduction: ResourceProduction(st, p.ID),
		}
		for _, u := range st.Units {
			if u.PlayerID == p.ID {
				pv.UnitCount++
			}
		}
		for _, b := range st.Buildings {
			if b.PlayerID == p.ID {
				pv.BuildingCount++
			}
		}
		if p.IsActive {
			pv.Income = TurnIncome(rules, st, p.ID)
		}
		v.Players = append(v.Players, pv)
	}
	if cur := st.CurrentPlayer(); cur != nil && st.Game.IsActive {
		v.CurrentPlayerID = cur.ID
	}

	viewer := st.PlayerByUser(userID)
	if viewer == nil || !viewer.IsActive {
		return v
	}
	v.YourPlayerID = viewer.ID

	visible := VisibleCells(st, viewer.ID, rules.VisionRadius)
	v.Visibility = SortedCells(visible)

	seen := func(playerID string, x, y int) bool {
		if !fogOfWar || playerID == viewer.ID {
			return true
		}
		_, ok := visible[Cell{X: x, Y: y}]
		return ok
	}
	for _, u := range st.Units {
		if seen(u.PlayerID, u.X, u.Y) {
			v.Units = append(v.Units, u)
		}
	}
	for _, b := range st.Buildings {
		if seen(b.PlayerID, b.X, b.Y) {
			v.Buildings = append(v.Buildings, b)
		}
	}
	return v
}

// RulesView is the static catalog plus the economy constants in force.
type RulesView struct {
	Units             map[string]models.UnitStats           `json:"units"`
	Buildings         map[string]models.BuildingStats       `json:"buildings"`
	Terrain           map[models.Terrain]models.TerrainInfo `json:"terrain"`
	StartingResources int                                   `json:"starting_resources"`
	BaseIncome        int                                   `json:"base_income"`
	IncomePerBuilding map[string]int                        `json:"income_per_building"`
	VisionRadius      int                                   `json:"vision_radius"`
	MaxDamageBonus    int                                   `json:"max_damage_bonus"`
	MinMapSize        int                                   `json:"min_map_size"`
	MaxMapSize        int                                   `json:"max_map_size"`
	MinPlayers        int                                   `json:"min_players"`
	MaxPlayers        int                                   `json:"max_players"`
}

func DescribeRules(rules Rules) RulesView {
	return RulesView{
		Units:             models.UnitCatalog,
		Buildings:         models.BuildingCatalog,
		Terrain:           models.TerrainCatalog,
		StartingResources: rules.StartingResources,
		BaseIncome:        rules.BaseIncome,
		IncomePerBuilding: rules.IncomePerBuilding,
		VisionRadius:      rules.VisionRadius,
		MaxDamageBonus:    rules.MaxDamageBonus,
		MinMapSize:        MinMapSize,
		MaxMapSize:        MaxMapSize,
		MinPlayers:        MinPlayers,
		MaxPlayers:        MaxPlayers,
	}
}
