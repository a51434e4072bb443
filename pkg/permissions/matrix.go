package permissions

import "sort"

// Matrix maps page → action → 0|1. A missing page or action means denied.
type Matrix map[Page]map[Action]int

// Can reports whether the cell is exactly 1. Nil matrices deny everything.
func (m Matrix) Can(page Page, action Action) bool {
	return m[page][action] == 1
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for page, row := range m {
		cp := make(map[Action]int, len(row))
		for action, v := range row {
			cp[action] = v
		}
		out[page] = cp
	}
	return out
}

// Normalize projects m onto the catalog: every applicable cell is present
// with an explicit 0 or 1, and inapplicable or unknown cells are dropped.
// Any value other than 1 becomes 0.
func (m Matrix) Normalize(c *Catalog) Matrix {
	out := c.ZeroMatrix()
	for page, row := range out {
		for action := range row {
			if m.Can(page, action) {
				out[page][action] = 1
			}
		}
	}
	return out
}

// Granted lists the allowed actions per page, sorted, omitting pages with
// no grants.
func (m Matrix) Granted() map[Page][]Action {
	out := make(map[Page][]Action)
	for page, row := range m {
		var actions []Action
		for action, v := range row {
			if v == 1 {
				actions = append(actions, action)
			}
		}
		if len(actions) == 0 {
			continue
		}
		sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
		out[page] = actions
	}
	return out
}

// Equal reports whether both matrices grant the same cells.
func (m Matrix) Equal(other Matrix) bool {
	a, b := m.Granted(), other.Granted()
	if len(a) != len(b) {
		return false
	}
	for page, actions := range a {
		if len(actions) != len(b[page]) {
			return false
		}
		for i := range actions {
			if actions[i] != b[page][i] {
				return false
			}
		}
	}
	return true
}
