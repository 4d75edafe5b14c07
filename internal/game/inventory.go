package game

import "idlecraft/internal/catalog"

// Inventory maps item id to quantity. Quantities never go negative.
type Inventory map[string]int

func (inv Inventory) QuantityOf(id string) int { return inv[id] }

func (inv Inventory) Add(id string, n int) {
	if n <= 0 || id == "" {
		return
	}
	inv[id] += n
}

// Remove takes n of id and reports whether it could. Nothing is removed on
// failure.
func (inv Inventory) Remove(id string, n int) bool {
	if n <= 0 {
		return true
	}
	have := inv[id]
	if have < n {
		return false
	}
	if have == n {
		delete(inv, id)
		return true
	}
	inv[id] = have - n
	return true
}

// Has reports whether every stack is affordable.
func (inv Inventory) Has(stacks []catalog.Stack) bool {
	need := make(map[string]int, len(stacks))
	for _, s := range stacks {
		need[s.Item] += s.Qty
	}
	for id, n := range need {
		if inv[id] < n {
			return false
		}
	}
	return true
}

// RemoveAll consumes every stack, or nothing if any is short.
func (inv Inventory) RemoveAll(stacks []catalog.Stack) bool {
	if !inv.Has(stacks) {
		return false
	}
	for _, s := range stacks {
		inv.Remove(s.Item, s.Qty)
	}
	return true
}

func (inv Inventory) AddAll(stacks []catalog.Stack) {
	for _, s := range stacks {
		inv.Add(s.Item, s.Qty)
	}
}
