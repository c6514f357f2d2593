package optimization

import "sort"

// SolveGreedy selects the budget assets with the highest expected return.
//
// Risk is ignored: the heuristic trades solution quality for unconditional
// availability. Ties are broken by original index, lowest first, so the result
// is identical across calls. The caller guarantees 0 <= budget <= len(returns);
// out-of-range budgets are clamped.
func SolveGreedy(returns []float64, budget int) Selection {
	n := len(returns)
	sel := make(Selection, n)
	if budget <= 0 {
		return sel
	}
	if budget > n {
		budget = n
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return returns[order[a]] > returns[order[b]]
	})

	for _, idx := range order[:budget] {
		sel[idx] = 1
	}
	return sel
}
