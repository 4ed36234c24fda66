package engine

import (
	"strategy-game-server/models"
)

// GenerateMap draws a size×size grid, each cell independently from the
// weighted terrain distribution. Pass a seeded Rand for a reproducible map.
// Zero or missing weights fall back to the default distribution.
func GenerateMap(size int, weights map[models.Terrain]float64, rng Rand) models.TerrainGrid {
	if rng == nil {
		rng = GlobalRand
	}
	types, cumulative := cumulativeWeights(weights)

	grid := make(models.TerrainGrid, size)
	for y := 0; y < size; y++ {
		row := make([]models.Terrain, size)
		for x := 0; x < size; x++ {
			row[x] = pick(types, cumulative, rng.Float64())
		}
		grid[y] = row
	}
	return grid
}

func cumulativeWeights(weights map[models.Terrain]float64) ([]models.Terrain, []float64) {
	total := 0.0
	for _, t := range models.TerrainTypes {
		if w := weights[t]; w > 0 {
			total += w
		}
	}
	if total <= 0 {
		weights = DefaultRules().TerrainWeights
		return cumulativeWeights(weights)
	}

	types := make([]models.Terrain, 0, len(models.TerrainTypes))
	cumulative := make([]float64, 0, len(models.TerrainTypes))
	acc := 0.0
	for _, t := range models.TerrainTypes {
		w := weights[t]
		if w <= 0 {
			continue
		}
		acc += w / total
		types = append(types, t)
		cumulative = append(cumulative, acc)
	}
	return types, cumulative
}

func pick(types []models.Terrain, cumulative []float64, r float64) models.Terrain {
	for i, c := range cumulative {
		if r < c {
			return types[i]
		}
	}
	// float rounding can leave r just above the last bound
	return types[len(types)-1]
}

// StartingPosition returns the spawn corner for a player number, inset one cell
// from the edges: 1 top-left, 2 bottom-right, 3 bottom-left, 4 top-right.
// Numbers past 4 reuse the last slot. The cell is forced to plains.
func StartingPosition(grid models.TerrainGrid, size, playerNumber int) Cell {
	positions := []Cell{
		{X: 1, Y: 1},
		{X: size - 2, Y: size - 2},
		{X: 1, Y: size - 2},
		{X: size - 2, Y: 1},
	}
	idx := playerNumber - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(positions)-1 {
		idx = len(positions) - 1
	}
	pos := positions[idx]
	grid[pos.Y][pos.X] = models.TerrainPlains
	return pos
}
