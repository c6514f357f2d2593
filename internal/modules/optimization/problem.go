package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Problem is a binary quadratic program for asset selection.
//
// Mathematical formulation:
//   - Variables: x_i ∈ {0,1}, one per asset
//   - Objective: minimize Σ c_i x_i + x'Qx where c_i = risk_i - return_i
//   - Constraint: Σ x_i == budget
//
// Q is empty for the base objective; WithQuadratic adds cross terms.
// A Problem is never mutated after construction.
type Problem struct {
	linear    []float64
	quadratic *mat.SymDense
	budget    int
}

// Formulate builds the selection problem for the given returns, risks and budget.
func Formulate(returns, risks []float64, budget int) (*Problem, error) {
	if len(returns) != len(risks) {
		return nil, fmt.Errorf("%w: %d returns, %d risks", ErrShapeMismatch, len(returns), len(risks))
	}

	n := len(returns)
	if budget < 0 || budget > n {
		return nil, fmt.Errorf("%w: budget %d for %d assets", ErrInfeasibleBudget, budget, n)
	}

	linear := make([]float64, n)
	for i := 0; i < n; i++ {
		if !isFinite(returns[i]) || !isFinite(risks[i]) {
			return nil, fmt.Errorf("%w: asset %d has return %v, risk %v", ErrNonFiniteInput, i, returns[i], risks[i])
		}
		// Minimizing risk - return favours high return, low risk
		linear[i] = risks[i] - returns[i]
	}

	return &Problem{linear: linear, budget: budget}, nil
}

// WithQuadratic returns a copy of the problem with the cross-term matrix q added
// to the objective. The receiver is left untouched.
func (p *Problem) WithQuadratic(q *mat.SymDense) (*Problem, error) {
	n := p.NumVariables()
	if q == nil {
		return p, nil
	}
	if r, _ := q.Dims(); r != n {
		return nil, fmt.Errorf("%w: quadratic term is %dx%d for %d assets", ErrShapeMismatch, r, r, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if !isFinite(q.At(i, j)) {
				return nil, fmt.Errorf("%w: quadratic term (%d,%d) is %v", ErrNonFiniteInput, i, j, q.At(i, j))
			}
		}
	}

	clone := &Problem{
		linear: append([]float64(nil), p.linear...),
		budget: p.budget,
	}
	clone.quadratic = mat.NewSymDense(n, nil)
	clone.quadratic.CopySym(q)
	return clone, nil
}

// NumVariables returns the number of binary decision variables.
func (p *Problem) NumVariables() int {
	return len(p.linear)
}

// Budget returns the right-hand side of the cardinality constraint.
func (p *Problem) Budget() int {
	return p.budget
}

// VariableNames returns the variable names x0..x{n-1}.
func (p *Problem) VariableNames() []string {
	names := make([]string, len(p.linear))
	for i := range names {
		names[i] = fmt.Sprintf("x%d", i)
	}
	return names
}

// Linear returns a copy of the linear objective coefficients.
func (p *Problem) Linear() []float64 {
	return append([]float64(nil), p.linear...)
}

// HasQuadratic reports whether the objective carries cross terms.
func (p *Problem) HasQuadratic() bool {
	return p.quadratic != nil
}

// Evaluate returns the objective value of a selection, ignoring the constraint.
func (p *Problem) Evaluate(sel Selection) float64 {
	n := p.NumVariables()
	if n == 0 || len(sel) != n {
		return 0
	}

	x := mat.NewVecDense(n, nil)
	for i, v := range sel {
		x.SetVec(i, float64(v))
	}

	value := mat.Dot(mat.NewVecDense(n, p.Linear()), x)
	if p.quadratic != nil {
		value += mat.Inner(x, p.quadratic, x)
	}
	return value
}

// IsFeasible reports whether sel is a binary vector of the right length that
// selects exactly Budget assets.
func (p *Problem) IsFeasible(sel Selection) bool {
	return len(sel) == p.NumVariables() && sel.IsBinary() && sel.Count() == p.budget
}

// DefaultPenalty returns a constraint penalty large enough that every
// infeasible assignment costs more than any feasible one.
func (p *Problem) DefaultPenalty() float64 {
	bound := 0.0
	for _, c := range p.linear {
		bound += math.Abs(c)
	}
	if p.quadratic != nil {
		n := p.NumVariables()
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				bound += math.Abs(p.quadratic.At(i, j))
			}
		}
	}
	return 2*bound + 1
}

// QUBO folds the budget constraint into the objective as
// penalty·(Σx_i - budget)² and returns the resulting matrix Q and constant
// offset, so that x'Qx + offset equals the penalised objective for binary x.
//
// Expansion with x_i² = x_i:
//   - Q_ii = c_i + penalty·(1 - 2·budget)
//   - Q_ij = penalty (i ≠ j), giving 2·penalty·x_i·x_j per pair
//   - offset = penalty·budget²
func (p *Problem) QUBO(penalty float64) (*mat.SymDense, float64) {
	n := p.NumVariables()
	if n == 0 {
		return nil, penalty * float64(p.budget*p.budget)
	}

	q := mat.NewSymDense(n, nil)
	b := float64(p.budget)
	for i := 0; i < n; i++ {
		q.SetSym(i, i, p.linear[i]+penalty*(1-2*b))
		for j := i + 1; j < n; j++ {
			q.SetSym(i, j, penalty)
		}
	}
	if p.quadratic != nil {
		q.AddSym(q, p.quadratic)
	}

	return q, penalty * b * b
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
