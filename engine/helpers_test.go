package engine

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"strategy-game-server/logger"
	"strategy-game-server/models"
)

func init() {
	logger.Silence()
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func plainsGrid(size int) models.TerrainGrid {
	grid := make(models.TerrainGrid, size)
	for y := range grid {
		grid[y] = make([]models.Terrain, size)
		for x := range grid[y] {
			grid[y][x] = models.TerrainPlains
		}
	}
	return grid
}

// newTestGame creates a game of the given size on an all-plains map and seats
// users in order. users[0] is the creator.
func newTestGame(t *testing.T, size, maxPlayers int, users ...string) *State {
	t.Helper()
	rules := DefaultRules()
	st, _, err := NewGame(rules, seeded(1), users[0], "test game", size, maxPlayers, testNow)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	st.Game.Terrain = plainsGrid(size)
	for _, u := range users[1:] {
		st, _, _, err = Join(rules, st, u, testNow)
		if err != nil {
			t.Fatalf("Join(%s): %v", u, err)
		}
	}
	return st
}

func unitsOf(st *State, playerID string) []models.Unit {
	var out []models.Unit
	for _, u := range st.Units {
		if u.PlayerID == playerID {
			out = append(out, u)
		}
	}
	return out
}

func buildingsOf(st *State, playerID string) []models.Building {
	var out []models.Building
	for _, b := range st.Buildings {
		if b.PlayerID == playerID {
			out = append(out, b)
		}
	}
	return out
}

func batch(t *testing.T, actions ...map[string]any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(actions))
	for _, a := range actions {
		b, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("marshal action: %v", err)
		}
		out = append(out, b)
	}
	return out
}

func testCoordinator() *Coordinator {
	c := NewCoordinator(DefaultRules(), seeded(7))
	c.Dispatcher.Now = func() time.Time { return testNow }
	return c
}
