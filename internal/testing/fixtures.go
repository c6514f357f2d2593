package testing

// PortfolioFixture is an asset universe with its expected greedy selection
type PortfolioFixture struct {
	Name           string
	Returns        []float64
	Risks          []float64
	Budget         int
	GreedySelected []int
}

// NewPortfolioFixtures returns small asset universes for use in tests
func NewPortfolioFixtures() []PortfolioFixture {
	return []PortfolioFixture{
		{
			Name:           "three assets, budget two",
			Returns:        []float64{0.05, 0.07, 0.02},
			Risks:          []float64{0.02, 0.03, 0.01},
			Budget:         2,
			GreedySelected: []int{1, 1, 0},
		},
		{
			Name:           "two assets, budget one",
			Returns:        []float64{0.1, 0.2},
			Risks:          []float64{0.05, 0.03},
			Budget:         1,
			GreedySelected: []int{0, 1},
		},
		{
			Name:           "five assets, budget three",
			Returns:        []float64{0.04, 0.09, 0.01, 0.06, 0.03},
			Risks:          []float64{0.01, 0.08, 0.00, 0.02, 0.05},
			Budget:         3,
			GreedySelected: []int{1, 1, 0, 1, 0},
		},
	}
}

// DefaultProbabilityFixtures returns per-asset default probabilities and the
// expected portfolio default rate mean(p)
func DefaultProbabilityFixtures() map[string]struct {
	Probabilities []float64
	ExpectedRate  float64
} {
	return map[string]struct {
		Probabilities []float64
		ExpectedRate  float64
	}{
		"three borrowers": {[]float64{0.1, 0.05, 0.2}, 0.35 / 3},
		"two borrowers":   {[]float64{0.1, 0.2}, 0.15},
		"certain default": {[]float64{1, 1}, 1},
	}
}
