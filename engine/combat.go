package engine

import (
	"github.com/sirupsen/logrus"

	"strategy-game-server/logger"
	"strategy-game-server/models"
)

const (
	TargetUnit     = "unit"
	TargetBuilding = "building"
)

// Target is whatever stands on an attacked cell.
type Target struct {
	Kind     string
	ID       string
	PlayerID string
	Pos      Cell
	Defense  int // structures have none
}

// TargetAt resolves the entity on (x, y), preferring units over buildings.
func TargetAt(st *State, x, y int) (Target, bool) {
	if u := st.UnitAt(x, y); u != nil {
		return Target{Kind: TargetUnit, ID: u.ID, PlayerID: u.PlayerID, Pos: Cell{X: x, Y: y}, Defense: u.Defense}, true
	}
	if b := st.BuildingAt(x, y); b != nil {
		return Target{Kind: TargetBuilding, ID: b.ID, PlayerID: b.PlayerID, Pos: Cell{X: x, Y: y}}, true
	}
	return Target{}, false
}

// AttackResult reports one resolved attack.
type AttackResult struct {
	TargetKind   string `json:"target_type"`
	TargetID     string `json:"target_id"`
	Damage       int    `json:"damage"`
	HealthBefore int    `json:"health_before"`
	HealthAfter  int    `json:"health_after"`
	Destroyed    bool   `json:"target_destroyed"`
}

// CanAttack checks range only. Ownership and liveness are the caller's job.
func CanAttack(attacker *models.Unit, target Target) error {
	dist := Cell{X: attacker.X, Y: attacker.Y}.Distance(target.Pos)
	if dist > attacker.AttackRange {
		return invalidAction(KindStateConflict, ActionAttack, "target at distance %d is beyond attack range %d", dist, attacker.AttackRange)
	}
	return nil
}

// Damage is max(1, attack-defense) plus a uniform bonus in [0, maxBonus].
func Damage(attack, defense, maxBonus int, rng Rand) int {
	base := attack - defense
	if base < 1 {
		base = 1
	}
	if maxBonus > 0 {
		base += rng.IntN(maxBonus + 1)
	}
	return base
}

// ResolveAttack applies damage to the target inside st, removing it when its
// health drops to zero or below. The attacker is marked as having attacked
// whatever the outcome.
func ResolveAttack(st *State, attackerID string, target Target, maxBonus int, rng Rand) AttackResult {
	ai := st.unitIndex(attackerID)
	attacker := st.Units[ai]
	st.Units[ai].HasAttacked = true

	dmg := Damage(attacker.Attack, target.Defense, maxBonus, rng)
	res := AttackResult{TargetKind: target.Kind, TargetID: target.ID, Damage: dmg}

	switch target.Kind {
	case TargetUnit:
		ti := st.unitIndex(target.ID)
		res.HealthBefore = st.Units[ti].Health
		st.Units[ti].Health -= dmg
		res.HealthAfter = st.Units[ti].Health
		if res.HealthAfter <= 0 {
			res.Destroyed = true
			st.removeUnit(target.ID)
		}
	case TargetBuilding:
		bi := st.buildingIndex(target.ID)
		res.HealthBefore = st.Buildings[bi].Health
		st.Buildings[bi].Health -= dmg
		res.HealthAfter = st.Buildings[bi].Health
		if res.HealthAfter <= 0 {
			res.Destroyed = true
			st.removeBuilding(target.ID)
		}
	}
	if res.HealthAfter < 0 {
		res.HealthAfter = 0
	}

	logger.Log.WithFields(logrus.Fields{
		"component":     "combat",
		"game_id":       st.Game.ID,
		"attacker_id":   attacker.ID,
		"target_id":     target.ID,
		"target_type":   target.Kind,
		"damage":        dmg,
		"hp_before":     res.HealthBefore,
		"hp_after":      res.HealthAfter,
		"target_killed": res.Destroyed,
	}).Debug("Attack resolved.")

	return res
}
