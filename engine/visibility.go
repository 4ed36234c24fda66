package engine

import (
	"sort"
)

// VisibleCells returns every in-bounds cell within Manhattan distance radius
// of any unit or building owned by playerID.
func VisibleCells(st *State, playerID string, radius int) map[Cell]struct{} {
	visible := make(map[Cell]struct{})
	if radius < 0 {
		return visible
	}

	var sources []Cell
	for _, u := range st.Units {
		if u.PlayerID == playerID {
			sources = append(sources, Cell{X: u.X, Y: u.Y})
		}
	}
	for _, b := range st.Buildings {
		if b.PlayerID == playerID {
			sources = append(sources, Cell{X: b.X, Y: b.Y})
		}
	}

	for _, src := range sources {
		for dy := -radius; dy <= radius; dy++ {
			span := radius - abs(dy)
			for dx := -span; dx <= span; dx++ {
				x, y := src.X+dx, src.Y+dy
				if st.InBounds(x, y) {
					visible[Cell{X: x, Y: y}] = struct{}{}
				}
			}
		}
	}
	return visible
}

// SortedCells flattens a cell set in row-major order.
func SortedCells(set map[Cell]struct{}) []Cell {
	out := make([]Cell, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
