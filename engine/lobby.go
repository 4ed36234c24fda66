package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"strategy-game-server/logger"
	"strategy-game-server/models"
)

// NewGame validates the parameters, draws the map and seats the creator as
// player 1.
func NewGame(rules Rules, rng Rand, creatorID, name string, size, maxPlayers int, now time.Time) (*State, []Event, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, nil, configError("game name is required")
	case size < MinMapSize || size > MaxMapSize:
		return nil, nil, configError("map size must be between %d and %d, got %d", MinMapSize, MaxMapSize, size)
	case maxPlayers < MinPlayers || maxPlayers > MaxPlayers:
		return nil, nil, configError("max players must be between %d and %d, got %d", MinPlayers, MaxPlayers, maxPlayers)
	case creatorID == "":
		return nil, nil, configError("creator is required")
	}

	st := &State{
		Game: models.Game{
			ID:          uuid.NewString(),
			Name:        name,
			CreatedBy:   creatorID,
			MapSize:     size,
			MaxPlayers:  maxPlayers,
			Terrain:     GenerateMap(size, rules.TerrainWeights, rng),
			IsActive:    true,
			CurrentTurn: 1,
			Timestamps:  models.Timestamps{CreatedAt: now, UpdatedAt: now},
		},
	}

	next, _, events, err := Join(rules, st, creatorID, now)
	if err != nil {
		return nil, nil, err
	}
	return next, events, nil
}

// Join seats userID at the next free player number and hands out the
// starting kit: resources, a base on the player's corner and one infantry
// unit beside it. An occupied corner moves the base to the nearest free cell.
func Join(rules Rules, st *State, userID string, now time.Time) (*State, *models.Player, []Event, error) {
	if !st.Game.IsActive {
		return nil, nil, nil, ErrGameInactive
	}
	if st.PlayerByUser(userID) != nil {
		return nil, nil, nil, ErrAlreadyJoined
	}
	if len(st.ActivePlayers()) >= st.Game.MaxPlayers {
		return nil, nil, nil, ErrGameFull
	}
	number := nextPlayerNumber(st)
	if number == 0 {
		return nil, nil, nil, withDetail(ErrGameFull, "no free player number")
	}

	next := st.Clone()
	var currentID string
	if cur := next.CurrentPlayer(); cur != nil {
		currentID = cur.ID
	}

	player := models.Player{
		ID:           uuid.NewString(),
		GameID:       next.Game.ID,
		UserID:       userID,
		PlayerNumber: number,
		Resources:    rules.StartingResources,
		IsActive:     true,
		JoinedAt:     now,
		UpdatedAt:    now,
	}

	basePos := StartingPosition(next.Game.Terrain, next.Game.MapSize, number)
	if next.Occupied(basePos.X, basePos.Y) {
		pos, ok := nearestFreeCell(next, basePos)
		if !ok {
			return nil, nil, nil, withDetail(ErrGameFull, "no free cell for a base")
		}
		basePos = pos
		next.Game.Terrain[pos.Y][pos.X] = models.TerrainPlains
	}
	baseStats := models.BuildingCatalog[models.BuildingBase]
	base := models.Building{
		ID:                 uuid.NewString(),
		GameID:             next.Game.ID,
		PlayerID:           player.ID,
		BuildingType:       baseStats.Name,
		X:                  basePos.X,
		Y:                  basePos.Y,
		Health:             baseStats.Health,
		ResourceProduction: baseStats.ResourceProduction,
		Timestamps:         models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	next.Buildings = append(next.Buildings, base)

	unitPos := Cell{X: basePos.X + 1, Y: basePos.Y}
	if next.InBounds(unitPos.X, unitPos.Y) && !next.Occupied(unitPos.X, unitPos.Y) {
		next.Game.Terrain[unitPos.Y][unitPos.X] = models.TerrainPlains
	} else if pos, ok := spawnCell(next, basePos); ok {
		unitPos = pos
	} else if pos, ok := nearestFreeCell(next, basePos); ok {
		unitPos = pos
		next.Game.Terrain[pos.Y][pos.X] = models.TerrainPlains
	} else {
		return nil, nil, nil, withDetail(ErrGameFull, "no free cell for the starting unit")
	}
	unit := newUnit(uuid.NewString(), next.Game.ID, player.ID, models.UnitCatalog[models.UnitInfantry], unitPos, now)
	next.Units = append(next.Units, unit)

	next.Players = append(next.Players, player)
	next.sortPlayers()
	if currentID != "" {
		next.pointAt(currentID)
	} else {
		next.pointAt(player.ID)
	}
	next.Game.UpdatedAt = now

	logger.Log.WithFields(logrus.Fields{
		"component":     "lobby",
		"game_id":       next.Game.ID,
		"user_id":       userID,
		"player_number": number,
	}).Info("Player joined.")

	events := []Event{
		entityChanged(next.Game.ID, TargetBuilding, base.ID, player.ID, entityCreated),
		entityChanged(next.Game.ID, TargetUnit, unit.ID, player.ID, entityCreated),
		gameStateChanged(next),
	}
	return next, next.PlayerByID(player.ID), events, nil
}

// nearestFreeCell searches outward from origin in rings of growing Manhattan
// distance and returns the first unoccupied in-bounds cell. Within a ring
// cells are scanned row by row. Terrain is ignored; callers flatten the cell.
func nearestFreeCell(st *State, origin Cell) (Cell, bool) {
	size := st.Game.MapSize
	for d := 1; d <= 2*size; d++ {
		for y := origin.Y - d; y <= origin.Y+d; y++ {
			dx := d - abs(y-origin.Y)
			for _, x := range []int{origin.X - dx, origin.X + dx} {
				if st.InBounds(x, y) && !st.Occupied(x, y) {
					return Cell{X: x, Y: y}, true
				}
				if dx == 0 {
					break
				}
			}
		}
	}
	return Cell{}, false
}

// nextPlayerNumber returns the lowest number in [1, MaxPlayers] not held by
// any seat, active or not, or 0 when none is free.
func nextPlayerNumber(st *State) int {
	taken := make(map[int]bool, len(st.Players))
	for _, p := range st.Players {
		taken[p.PlayerNumber] = true
	}
	for n := 1; n <= st.Game.MaxPlayers; n++ {
		if !taken[n] {
			return n
		}
	}
	return 0
}

// Leave deactivates the user's seat and clears their units and buildings.
// Leaving twice is a no-op. When nobody active remains the game is closed;
// when everyone left has already finished the round, the round advances.
func Leave(rules Rules, st *State, userID string, now time.Time) (*State, []Event, error) {
	leaver := st.PlayerByUser(userID)
	if leaver == nil {
		return nil, nil, withDetail(ErrNotFound, "user %s is not a member of game %s", userID, st.Game.ID)
	}
	if !leaver.IsActive {
		return st.Clone(), nil, nil
	}

	next := st.Clone()
	leaverID := leaver.ID
	var currentID string
	if cur := next.CurrentPlayer(); cur != nil {
		currentID = cur.ID
	}
	position := -1
	for i, p := range next.ActivePlayers() {
		if p.ID == leaverID {
			position = i
		}
	}

	var events []Event
	p := next.PlayerByID(leaverID)
	p.IsActive = false
	p.UpdatedAt = now

	kept := next.Units[:0]
	for _, u := range next.Units {
		if u.PlayerID == leaverID {
			events = append(events, entityChanged(next.Game.ID, TargetUnit, u.ID, leaverID, entityDeleted))
			continue
		}
		kept = append(kept, u)
	}
	next.Units = kept
	keptB := next.Buildings[:0]
	for _, b := range next.Buildings {
		if b.PlayerID == leaverID {
			events = append(events, entityChanged(next.Game.ID, TargetBuilding, b.ID, leaverID, entityDeleted))
			continue
		}
		keptB = append(keptB, b)
	}
	next.Buildings = keptB

	log := logger.Log.WithFields(logrus.Fields{
		"component": "lobby",
		"game_id":   next.Game.ID,
		"user_id":   userID,
	})

	switch {
	case len(next.ActivePlayers()) == 0:
		next.Game.IsActive = false
		next.Game.ActivePlayerIndex = 0
		log.Info("Last player left, game closed.")
	case next.RoundComplete():
		advanceRound(rules, next, position-1)
		log.WithField("next_turn", next.Game.CurrentTurn).Info("Player left, round advanced.")
	case currentID == leaverID:
		next.pointAfter(position - 1)
		log.Info("Expected player left, pointer moved on.")
	default:
		next.pointAt(currentID)
		log.Info("Player left.")
	}
	next.Game.UpdatedAt = now

	events = append(events, gameStateChanged(next))
	return next, events, nil
}
