package models

// Terrain is the kind of a single map cell.
type Terrain string

const (
	TerrainPlains   Terrain = "plains"
	TerrainForest   Terrain = "forest"
	TerrainMountain Terrain = "mountain"
	TerrainWater    Terrain = "water"
)

// TerrainTypes lists every terrain in catalog order.
var TerrainTypes = []Terrain{TerrainPlains, TerrainForest, TerrainMountain, TerrainWater}

// TerrainGrid is a square map addressed [row][col], i.e. [y][x].
type TerrainGrid [][]Terrain

// At returns the terrain at (x, y). The caller checks bounds.
func (g TerrainGrid) At(x, y int) Terrain {
	return g[y][x]
}

// Clone deep-copies the grid.
func (g TerrainGrid) Clone() TerrainGrid {
	if g == nil {
		return nil
	}
	out := make(TerrainGrid, len(g))
	for y := range g {
		out[y] = append([]Terrain(nil), g[y]...)
	}
	return out
}

// TerrainInfo describes a terrain type. MovementCost is informational only:
// movement legality is range-based. Impassable terrain has MovementCost -1.
type TerrainInfo struct {
	Name         Terrain `json:"name"`
	MovementCost int     `json:"movement_cost"`
	Passable     bool    `json:"passable"`
	Buildable    bool    `json:"buildable"`
	SpawnWeight  float64 `json:"spawn_weight"`
}

var TerrainCatalog = map[Terrain]TerrainInfo{
	TerrainPlains:   {Name: TerrainPlains, MovementCost: 1, Passable: true, Buildable: true, SpawnWeight: 0.6},
	TerrainForest:   {Name: TerrainForest, MovementCost: 2, Passable: true, Buildable: true, SpawnWeight: 0.2},
	TerrainMountain: {Name: TerrainMountain, MovementCost: 3, Passable: true, SpawnWeight: 0.1},
	TerrainWater:    {Name: TerrainWater, MovementCost: -1, SpawnWeight: 0.1},
}

const (
	UnitInfantry = "infantry"
	UnitArcher   = "archer"
	UnitCavalry  = "cavalry"
	UnitSiege    = "siege"
)

const (
	BuildingBase     = "base"
	BuildingBarracks = "barracks"
	BuildingFarm     = "farm"
	BuildingMine     = "mine"
)

type UnitStats struct {
	Name          string `json:"name"`
	Display       string `json:"display"`
	Health        int    `json:"health"`
	Attack        int    `json:"attack"`
	Defense       int    `json:"defense"`
	MovementRange int    `json:"movement_range"`
	AttackRange   int    `json:"attack_range"`
	Cost          int    `json:"cost"`
}

type BuildingStats struct {
	Name               string `json:"name"`
	Display            string `json:"display"`
	Health             int    `json:"health"`
	ResourceProduction int    `json:"resource_production"`
	Cost               int    `json:"cost"`
	Buildable          bool   `json:"buildable"` // base is granted on join, never built
}

var UnitCatalog = map[string]UnitStats{
	UnitInfantry: {Name: UnitInfantry, Display: "Infantry", Health: 100, Attack: 10, Defense: 5, MovementRange: 2, AttackRange: 1, Cost: 20},
	UnitArcher:   {Name: UnitArcher, Display: "Archer", Health: 70, Attack: 15, Defense: 3, MovementRange: 2, AttackRange: 3, Cost: 30},
	UnitCavalry:  {Name: UnitCavalry, Display: "Cavalry", Health: 120, Attack: 12, Defense: 7, MovementRange: 4, AttackRange: 1, Cost: 40},
	UnitSiege:    {Name: UnitSiege, Display: "Siege Engine", Health: 80, Attack: 20, Defense: 4, MovementRange: 1, AttackRange: 2, Cost: 60},
}

var BuildingCatalog = map[string]BuildingStats{
	BuildingBase:     {Name: BuildingBase, Display: "Base", Health: 300, ResourceProduction: 10, Cost: 0},
	BuildingBarracks: {Name: BuildingBarracks, Display: "Barracks", Health: 200, ResourceProduction: 0, Cost: 50, Buildable: true},
	BuildingFarm:     {Name: BuildingFarm, Display: "Farm", Health: 100, ResourceProduction: 5, Cost: 30, Buildable: true},
	BuildingMine:     {Name: BuildingMine, Display: "Mine", Health: 150, ResourceProduction: 8, Cost: 40, Buildable: true},
}
