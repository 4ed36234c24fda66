package engine

import (
	"strategy-game-server/models"
)

// Cost returns the price of a unit or building type, 0 for unknown types.
// A zero only means "free" once the caller has checked the type exists.
func Cost(itemType string) int {
	if u, ok := models.UnitCatalog[itemType]; ok {
		return u.Cost
	}
	if b, ok := models.BuildingCatalog[itemType]; ok {
		return b.Cost
	}
	return 0
}

// Charge debits amount from the player, or fails leaving the balance untouched.
func Charge(p *models.Player, amount int) error {
	if amount < 0 {
		return withDetail(ErrUnknownItem, "negative charge %d", amount)
	}
	if p.Resources < amount {
		return withDetail(ErrInsufficientResources, "need %d, have %d", amount, p.Resources)
	}
	p.Resources -= amount
	return nil
}

// TurnIncome is the flat base income plus the per-building bonus for every
// building the player owns.
func TurnIncome(rules Rules, st *State, playerID string) int {
	income := rules.BaseIncome
	for _, b := range st.Buildings {
		if b.PlayerID == playerID {
			income += rules.IncomePerBuilding[b.BuildingType]
		}
	}
	return income
}

// CreditTurnIncome adds one round of income to every active player.
func CreditTurnIncome(rules Rules, st *State) map[string]int {
	credited := make(map[string]int)
	for i := range st.Players {
		p := &st.Players[i]
		if !p.IsActive {
			continue
		}
		income := TurnIncome(rules, st, p.ID)
		p.Resources += income
		credited[p.ID] = income
	}
	return credited
}

// ResourceProduction sums the catalog production of a player's buildings.
func ResourceProduction(st *State, playerID string) int {
	total := 0
	for _, b := range st.Buildings {
		if b.PlayerID == playerID {
			total += b.ResourceProduction
		}
	}
	return total
}
