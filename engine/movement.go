package engine

import (
	"strategy-game-server/models"
)

// CanMove checks whether unit may move to (x, y). It has no side effects.
// Distance is Manhattan and range-only: terrain movement cost is not applied.
func CanMove(st *State, unit *models.Unit, x, y int) error {
	if !st.InBounds(x, y) {
		return invalidAction(KindStateConflict, ActionMoveUnit, "(%d,%d) is outside the map", x, y)
	}
	dist := Cell{X: unit.X, Y: unit.Y}.Distance(Cell{X: x, Y: y})
	if dist > unit.MovementRange {
		return invalidAction(KindStateConflict, ActionMoveUnit, "distance %d exceeds movement range %d", dist, unit.MovementRange)
	}
	if st.Occupied(x, y) {
		return invalidAction(KindStateConflict, ActionMoveUnit, "(%d,%d) is occupied", x, y)
	}
	if !models.TerrainCatalog[st.Game.Terrain.At(x, y)].Passable {
		return invalidAction(KindStateConflict, ActionMoveUnit, "(%d,%d) is %s", x, y, st.Game.Terrain.At(x, y))
	}
	return nil
}

// CanBuild checks whether a building may be placed on (x, y).
func CanBuild(st *State, x, y int) error {
	if !st.InBounds(x, y) {
		return invalidAction(KindStateConflict, ActionBuild, "(%d,%d) is outside the map", x, y)
	}
	if st.Occupied(x, y) {
		return invalidAction(KindStateConflict, ActionBuild, "(%d,%d) is occupied", x, y)
	}
	if terrain := st.Game.Terrain.At(x, y); !models.TerrainCatalog[terrain].Buildable {
		return invalidAction(KindStateConflict, ActionBuild, "cannot build on %s at (%d,%d)", terrain, x, y)
	}
	return nil
}

// spawnCell finds the first free passable cell next to origin, trying
// east, west, south, north.
func spawnCell(st *State, origin Cell) (Cell, bool) {
	for _, d := range []Cell{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
		c := Cell{X: origin.X + d.X, Y: origin.Y + d.Y}
		if !st.InBounds(c.X, c.Y) || st.Occupied(c.X, c.Y) {
			continue
		}
		if !models.TerrainCatalog[st.Game.Terrain.At(c.X, c.Y)].Passable {
			continue
		}
		return c, true
	}
	return Cell{}, false
}
