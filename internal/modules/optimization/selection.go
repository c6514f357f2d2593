package optimization

// Selection marks which assets are held: one 0/1 entry per asset, in input order.
type Selection []int

// Count returns the number of selected assets.
func (s Selection) Count() int {
	count := 0
	for _, v := range s {
		count += v
	}
	return count
}

// Indices returns the positions of the selected assets in ascending order.
func (s Selection) Indices() []int {
	indices := make([]int, 0, s.Count())
	for i, v := range s {
		if v == 1 {
			indices = append(indices, i)
		}
	}
	return indices
}

// IsBinary reports whether every entry is 0 or 1.
func (s Selection) IsBinary() bool {
	for _, v := range s {
		if v != 0 && v != 1 {
			return false
		}
	}
	return true
}

// selectionFromBits decodes a basis-state index into a selection of n assets.
// Bit i of the state corresponds to asset i.
func selectionFromBits(state uint64, n int) Selection {
	sel := make(Selection, n)
	for i := 0; i < n; i++ {
		if state&(1<<uint(i)) != 0 {
			sel[i] = 1
		}
	}
	return sel
}
