package optimization

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSolver is a scripted ApproxSolver.
type fakeSolver struct {
	available bool
	solve     func(ctx context.Context, p *Problem) (Selection, error)
	calls     int
}

func (f *fakeSolver) Name() string    { return "fake" }
func (f *fakeSolver) Available() bool { return f.available }

func (f *fakeSolver) Solve(ctx context.Context, p *Problem) (Selection, error) {
	f.calls++
	return f.solve(ctx, p)
}

type recordingObserver struct {
	mu      sync.Mutex
	solvers []string
	reasons []string
}

func (r *recordingObserver) ObserveOptimization(solver, reason string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solvers = append(r.solvers, solver)
	r.reasons = append(r.reasons, reason)
}

func newTestOptimizer(approx ApproxSolver, timeout time.Duration) *Optimizer {
	return NewOptimizer(approx, OptimizerConfig{SolverTimeout: timeout}, zerolog.New(nil).Level(zerolog.Disabled))
}

var (
	scenarioReturns = []float64{0.05, 0.07, 0.02}
	scenarioRisks   = []float64{0.02, 0.03, 0.01}
)

func TestOptimizer_UsesApproxSolver(t *testing.T) {
	approx := &fakeSolver{
		available: true,
		solve: func(context.Context, *Problem) (Selection, error) {
			return Selection{1, 0, 1}, nil
		},
	}
	o := newTestOptimizer(approx, time.Second)

	result, err := o.OptimizePortfolio(context.Background(), scenarioReturns, scenarioRisks, 2)
	require.NoError(t, err)

	assert.Equal(t, "fake", result.Solver)
	assert.Empty(t, result.FallbackReason)
	assert.Equal(t, Selection{1, 0, 1}, result.Selection)
	assert.InDelta(t, -0.04, result.Objective, 1e-12)
	assert.Equal(t, 1, approx.calls)
}

func TestOptimizer_Fallbacks(t *testing.T) {
	testCases := []struct {
		name   string
		solver *fakeSolver
		reason string
	}{
		{
			name:   "unavailable",
			solver: &fakeSolver{available: false},
			reason: FallbackUnavailable,
		},
		{
			name: "unavailable at solve time",
			solver: &fakeSolver{available: true, solve: func(context.Context, *Problem) (Selection, error) {
				return nil, ErrSolverUnavailable
			}},
			reason: FallbackUnavailable,
		},
		{
			name: "solver error",
			solver: &fakeSolver{available: true, solve: func(context.Context, *Problem) (Selection, error) {
				return nil, errors.New("backend exploded")
			}},
			reason: FallbackFailed,
		},
		{
			name: "solver panic",
			solver: &fakeSolver{available: true, solve: func(context.Context, *Problem) (Selection, error) {
				panic("index out of range")
			}},
			reason: FallbackFailed,
		},
		{
			name: "wrong cardinality",
			solver: &fakeSolver{available: true, solve: func(context.Context, *Problem) (Selection, error) {
				return Selection{1, 1, 1}, nil
			}},
			reason: FallbackInfeasible,
		},
		{
			name: "wrong length",
			solver: &fakeSolver{available: true, solve: func(context.Context, *Problem) (Selection, error) {
				return Selection{1, 1}, nil
			}},
			reason: FallbackInfeasible,
		},
		{
			name: "non-binary",
			solver: &fakeSolver{available: true, solve: func(context.Context, *Problem) (Selection, error) {
				return Selection{2, 0, 0}, nil
			}},
			reason: FallbackInfeasible,
		},
		{
			name: "timeout",
			solver: &fakeSolver{available: true, solve: func(ctx context.Context, _ *Problem) (Selection, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}},
			reason: FallbackTimeout,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			observer := &recordingObserver{}
			o := newTestOptimizer(tc.solver, 20*time.Millisecond)
			o.SetObserver(observer)

			result, err := o.OptimizePortfolio(context.Background(), scenarioReturns, scenarioRisks, 2)
			require.NoError(t, err)

			assert.Equal(t, SolverGreedy, result.Solver)
			assert.Equal(t, tc.reason, result.FallbackReason)
			assert.Equal(t, Selection{1, 1, 0}, result.Selection)
			assert.Equal(t, []string{SolverGreedy}, observer.solvers)
			assert.Equal(t, []string{tc.reason}, observer.reasons)
		})
	}
}

func TestOptimizer_SolverIgnoringDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	approx := &fakeSolver{available: true, solve: func(context.Context, *Problem) (Selection, error) {
		<-release
		return Selection{1, 1, 0}, nil
	}}
	o := newTestOptimizer(approx, 10*time.Millisecond)

	start := time.Now()
	result, err := o.OptimizePortfolio(context.Background(), scenarioReturns, scenarioRisks, 2)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, FallbackTimeout, result.FallbackReason)
}

func TestOptimizer_ValidationErrorsSurface(t *testing.T) {
	approx := &fakeSolver{available: true}
	o := newTestOptimizer(approx, time.Second)

	_, err := o.OptimizePortfolio(context.Background(), []float64{1, 2, 3}, []float64{1, 2}, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = o.OptimizePortfolio(context.Background(), []float64{0.1, 0.2}, []float64{0.05, 0.03}, 3)
	assert.ErrorIs(t, err, ErrInfeasibleBudget)

	assert.Zero(t, approx.calls, "solver must not run on invalid input")
}

func TestOptimizer_NilSolverUsesGreedy(t *testing.T) {
	o := newTestOptimizer(nil, time.Second)

	assert.False(t, o.Solver().Available())

	result, err := o.OptimizePortfolio(context.Background(), []float64{0.1, 0.2}, []float64{0.05, 0.03}, 1)
	require.NoError(t, err)
	assert.Equal(t, Selection{0, 1}, result.Selection)
	assert.Equal(t, FallbackUnavailable, result.FallbackReason)
}

func TestOptimizer_WithQAOA(t *testing.T) {
	qaoa := NewQAOASolver(seededConfig(), zerolog.Nop(), fixedMemory(1<<30))
	o := newTestOptimizer(qaoa, 30*time.Second)

	result, err := o.OptimizePortfolio(context.Background(), scenarioReturns, scenarioRisks, 2)
	require.NoError(t, err)

	assert.Equal(t, "qaoa", result.Solver)
	assert.Equal(t, 2, result.Selection.Count())
	assert.Len(t, result.Selection, 3)
}

func TestOptimizer_AlwaysFeasible(t *testing.T) {
	inputs := []struct {
		returns []float64
		risks   []float64
	}{
		{[]float64{0.05, 0.07, 0.02}, []float64{0.02, 0.03, 0.01}},
		{[]float64{0.1, 0.2}, []float64{0.05, 0.03}},
		{[]float64{0.01, -0.02, 0.03, 0.04, 0.0}, []float64{0.1, 0.0, 0.02, 0.5, 0.01}},
	}

	qaoa := NewQAOASolver(seededConfig(), zerolog.Nop(), fixedMemory(1<<30))
	o := newTestOptimizer(qaoa, 30*time.Second)

	for _, in := range inputs {
		for budget := 0; budget <= len(in.returns); budget++ {
			result, err := o.OptimizePortfolio(context.Background(), in.returns, in.risks, budget)
			require.NoError(t, err)
			assert.Len(t, result.Selection, len(in.returns))
			assert.True(t, result.Selection.IsBinary())
			assert.Equal(t, budget, result.Selection.Count(), "budget %d", budget)
		}
	}
}

func TestOptimizePortfolio_Default(t *testing.T) {
	sel, err := OptimizePortfolio(scenarioReturns, scenarioRisks, 2)
	require.NoError(t, err)
	assert.Len(t, sel, 3)
	assert.Equal(t, 2, sel.Count())

	sel, err = OptimizePortfolio([]float64{0.1, 0.2}, []float64{0.05, 0.03}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Count())

	_, err = OptimizePortfolio([]float64{1, 2, 3}, []float64{1, 2}, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
