package engine

import (
	"sort"

	"strategy-game-server/models"
)

// Cell is a map coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) Distance(o Cell) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// State is the full aggregate of one game: the game row, every player
// (active or not) ordered by player number, live units and buildings, and the
// Turn records of the current turn number plus any created in this transition.
//
// Engine operations never mutate their input State; they return a new one.
type State struct {
	Game      models.Game
	Players   []models.Player
	Units     []models.Unit
	Buildings []models.Building
	Turns     []models.Turn
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	out := &State{
		Game:      s.Game,
		Players:   append([]models.Player(nil), s.Players...),
		Units:     append([]models.Unit(nil), s.Units...),
		Buildings: append([]models.Building(nil), s.Buildings...),
		Turns:     append([]models.Turn(nil), s.Turns...),
	}
	out.Game.Terrain = s.Game.Terrain.Clone()
	return out
}

func (s *State) sortPlayers() {
	sort.SliceStable(s.Players, func(i, j int) bool {
		return s.Players[i].PlayerNumber < s.Players[j].PlayerNumber
	})
}

func (s *State) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.Game.MapSize && y < s.Game.MapSize
}

func (s *State) playerIndexByUser(userID string) int {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (s *State) playerIndexByID(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// PlayerByUser returns the user's seat, active or not.
func (s *State) PlayerByUser(userID string) *models.Player {
	if i := s.playerIndexByUser(userID); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

func (s *State) PlayerByID(id string) *models.Player {
	if i := s.playerIndexByID(id); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// ActivePlayers returns the active players in player-number order.
func (s *State) ActivePlayers() []models.Player {
	var out []models.Player
	for _, p := range s.Players {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// CurrentPlayer is the active player expected to submit next, or nil when
// nobody is active.
func (s *State) CurrentPlayer() *models.Player {
	active := s.ActivePlayers()
	if len(active) == 0 {
		return nil
	}
	idx := s.Game.ActivePlayerIndex
	if idx < 0 || idx >= len(active) {
		idx = 0
	}
	return s.PlayerByID(active[idx].ID)
}

func (s *State) unitIndex(id string) int {
	for i := range s.Units {
		if s.Units[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) buildingIndex(id string) int {
	for i := range s.Buildings {
		if s.Buildings[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) UnitAt(x, y int) *models.Unit {
	for i := range s.Units {
		if s.Units[i].X == x && s.Units[i].Y == y {
			return &s.Units[i]
		}
	}
	return nil
}

func (s *State) BuildingAt(x, y int) *models.Building {
	for i := range s.Buildings {
		if s.Buildings[i].X == x && s.Buildings[i].Y == y {
			return &s.Buildings[i]
		}
	}
	return nil
}

// Occupied reports whether a live unit or building stands on (x, y).
func (s *State) Occupied(x, y int) bool {
	return s.UnitAt(x, y) != nil || s.BuildingAt(x, y) != nil
}

func (s *State) removeUnit(id string) {
	if i := s.unitIndex(id); i >= 0 {
		s.Units = append(s.Units[:i], s.Units[i+1:]...)
	}
}

func (s *State) removeBuilding(id string) {
	if i := s.buildingIndex(id); i >= 0 {
		s.Buildings = append(s.Buildings[:i], s.Buildings[i+1:]...)
	}
}

// turnFor returns the player's Turn for the current turn number.
func (s *State) turnFor(playerID string) *models.Turn {
	for i := range s.Turns {
		t := &s.Turns[i]
		if t.PlayerID == playerID && t.TurnNumber == s.Game.CurrentTurn {
			return t
		}
	}
	return nil
}

func (s *State) hasCompleted(playerID string) bool {
	t := s.turnFor(playerID)
	return t != nil && t.Completed
}

// completedActiveCount counts active players whose Turn for the current
// turn number is completed.
func (s *State) completedActiveCount() int {
	n := 0
	for _, p := range s.ActivePlayers() {
		if s.hasCompleted(p.ID) {
			n++
		}
	}
	return n
}

// RoundComplete reports whether every active player finished the current turn.
func (s *State) RoundComplete() bool {
	active := len(s.ActivePlayers())
	return active > 0 && s.completedActiveCount() == active
}

// pointAt sets the active-player index to the given player's position
// among active players. Unknown or inactive players reset it to 0.
func (s *State) pointAt(playerID string) {
	for i, p := range s.ActivePlayers() {
		if p.ID == playerID {
			s.Game.ActivePlayerIndex = i
			return
		}
	}
	s.Game.ActivePlayerIndex = 0
}

// pointAfter moves the index to the first active player after position from
// (cyclic) who has not completed the current turn. When everyone completed,
// the index lands on from+1.
func (s *State) pointAfter(from int) {
	active := s.ActivePlayers()
	n := len(active)
	if n == 0 {
		s.Game.ActivePlayerIndex = 0
		return
	}
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if !s.hasCompleted(active[i].ID) {
			s.Game.ActivePlayerIndex = i
			return
		}
	}
	s.Game.ActivePlayerIndex = (from + 1) % n
}
