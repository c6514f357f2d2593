package optimization

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Assets 0 and 1 swing together; asset 2 barely moves.
var correlatedHistory = [][]float64{
	{0.3, 0.3, 0.01},
	{-0.3, -0.3, -0.01},
	{0.3, 0.3, 0.01},
	{-0.3, -0.3, -0.01},
}

func TestCovariance_Shrinkage(t *testing.T) {
	cov, err := Covariance(correlatedHistory, 3)
	require.NoError(t, err)
	require.Equal(t, 3, cov.SymmetricDim())

	// Sample variance of asset 0 is 0.12; shrinkage pulls it toward the
	// average variance, never past it
	avgVar := (0.12 + 0.12 + 0.0004/3) / 3
	assert.Less(t, cov.At(0, 0), 0.12)
	assert.Greater(t, cov.At(0, 0), avgVar)

	// Symmetric, and the correlated pair still dominates
	assert.Equal(t, cov.At(0, 1), cov.At(1, 0))
	assert.Greater(t, cov.At(0, 1), cov.At(0, 2))

	var eig mat.EigenSym
	require.True(t, eig.Factorize(cov, false))
	for _, v := range eig.Values(nil) {
		assert.GreaterOrEqual(t, v, -1e-12, "shrunk covariance must stay positive semi-definite")
	}
}

func TestCovariance_TwoAssetsUseDefaultShrinkage(t *testing.T) {
	history := [][]float64{{0.1, 0.0}, {-0.1, 0.0}}
	cov, err := Covariance(history, 2)
	require.NoError(t, err)

	// sample var(0)=0.02, var(1)=0, cov=0; target diag 0.01, off-diagonal 0
	assert.InDelta(t, 0.8*0.02+0.2*0.01, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 0.2*0.01, cov.At(1, 1), 1e-12)
	assert.InDelta(t, 0, cov.At(0, 1), 1e-12)
}

func TestCovariance_SingleAssetIsSampleVariance(t *testing.T) {
	cov, err := Covariance([][]float64{{0.1}, {0.3}}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, cov.At(0, 0), 1e-12)
}

func TestCovariance_Validation(t *testing.T) {
	tests := []struct {
		name    string
		history [][]float64
		assets  int
		want    error
	}{
		{"no periods", nil, 2, ErrInsufficientHistory},
		{"one period", [][]float64{{0.1, 0.2}}, 2, ErrInsufficientHistory},
		{"ragged", [][]float64{{0.1, 0.2}, {0.1}}, 2, ErrShapeMismatch},
		{"wrong width", [][]float64{{0.1}, {0.2}}, 2, ErrShapeMismatch},
		{"nan", [][]float64{{0.1, math.NaN()}, {0.1, 0.2}}, 2, ErrNonFiniteInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Covariance(tt.history, tt.assets)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestRiskTerm(t *testing.T) {
	cov, err := Covariance(correlatedHistory, 3)
	require.NoError(t, err)

	term, err := RiskTerm(correlatedHistory, 3, 2.5)
	require.NoError(t, err)
	assert.InDelta(t, 2.5*cov.At(0, 1), term.At(0, 1), 1e-12)

	zero, err := RiskTerm(correlatedHistory, 3, 0)
	require.NoError(t, err)
	assert.Zero(t, zero.At(0, 0))

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := RiskTerm(correlatedHistory, 3, bad)
		assert.ErrorIs(t, err, ErrInvalidRiskAversion)
	}
}

func exhaustiveSolver() *fakeSolver {
	return &fakeSolver{
		available: true,
		solve: func(_ context.Context, p *Problem) (Selection, error) {
			n := p.NumVariables()
			var best Selection
			bestValue := math.Inf(1)
			for state := uint64(0); state < 1<<uint(n); state++ {
				sel := selectionFromBits(state, n)
				if p.IsFeasible(sel) && p.Evaluate(sel) < bestValue {
					best, bestValue = sel, p.Evaluate(sel)
				}
			}
			return best, nil
		},
	}
}

func TestOptimizer_RiskTermChangesSelection(t *testing.T) {
	returns := []float64{0.10, 0.09, 0.03}
	risks := []float64{0, 0, 0}
	o := newTestOptimizer(exhaustiveSolver(), time.Second)

	base, err := o.OptimizePortfolio(context.Background(), returns, risks, 2)
	require.NoError(t, err)
	assert.Equal(t, Selection{1, 1, 0}, base.Selection)

	term, err := RiskTerm(correlatedHistory, 3, 1)
	require.NoError(t, err)

	diversified, err := o.OptimizePortfolioWithRisk(context.Background(), returns, risks, 2, term)
	require.NoError(t, err)
	assert.Equal(t, Selection{1, 0, 1}, diversified.Selection)
	assert.Empty(t, diversified.FallbackReason)
}

func TestOptimizer_RiskTermShapeMismatch(t *testing.T) {
	o := newTestOptimizer(exhaustiveSolver(), time.Second)

	_, err := o.OptimizePortfolioWithRisk(context.Background(), scenarioReturns, scenarioRisks, 2, mat.NewSymDense(2, nil))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestOptimizer_RiskTermWithQAOA(t *testing.T) {
	returns := []float64{0.10, 0.09, 0.03}
	risks := []float64{0, 0, 0}
	term, err := RiskTerm(correlatedHistory, 3, 1)
	require.NoError(t, err)

	o := newTestOptimizer(NewQAOASolver(seededConfig(), zerolog.Nop(), fixedMemory(1<<30)), 10*time.Second)
	result, err := o.OptimizePortfolioWithRisk(context.Background(), returns, risks, 2, term)
	require.NoError(t, err)

	problem, err := Formulate(returns, risks, 2)
	require.NoError(t, err)
	problem, err = problem.WithQuadratic(term)
	require.NoError(t, err)

	// Whichever path produced it, the selection is feasible
	assert.True(t, problem.IsFeasible(result.Selection))
	assert.InDelta(t, problem.Evaluate(result.Selection), result.Objective, 1e-12)
}
