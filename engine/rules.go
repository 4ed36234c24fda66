package engine

import (
	"math/rand/v2"

	"strategy-game-server/models"
)

const (
	MinMapSize = 10
	MaxMapSize = 30
	MinPlayers = 2
	MaxPlayers = 4
)

// Rules holds the tunable game constants.
type Rules struct {
	VisionRadius      int
	StartingResources int
	BaseIncome        int
	// IncomePerBuilding is added per owned building of the given type each round.
	IncomePerBuilding map[string]int
	MaxDamageBonus    int
	TerrainWeights    map[models.Terrain]float64
}

func DefaultRules() Rules {
	return Rules{
		VisionRadius:      3,
		StartingResources: 100,
		BaseIncome:        5,
		IncomePerBuilding: map[string]int{
			models.BuildingFarm: 3,
			models.BuildingMine: 5,
		},
		MaxDamageBonus: 3,
		TerrainWeights: map[models.Terrain]float64{
			models.TerrainPlains:   0.6,
			models.TerrainForest:   0.2,
			models.TerrainMountain: 0.1,
			models.TerrainWater:    0.1,
		},
	}
}

// Rand is the randomness the engine consumes. *rand.Rand from math/rand/v2
// satisfies it; tests pass a seeded one.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// GlobalRand draws from the process-wide source, safe for concurrent use.
var GlobalRand Rand = globalRand{}
