package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// defaultShrinkage is the weight on the target when it cannot be estimated.
const defaultShrinkage = 0.2

// Covariance estimates the asset covariance matrix from a return history,
// where history[t][i] is the return of asset i in period t. The sample
// estimate is shrunk toward a constant-covariance target, which keeps the
// matrix well conditioned when there are few periods per asset.
func Covariance(history [][]float64, assets int) (*mat.SymDense, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientHistory, len(history))
	}
	if assets == 0 {
		return nil, nil
	}

	data := mat.NewDense(len(history), assets, nil)
	for t, row := range history {
		if len(row) != assets {
			return nil, fmt.Errorf("%w: period %d has %d returns for %d assets", ErrShapeMismatch, t, len(row), assets)
		}
		for i, v := range row {
			if !isFinite(v) {
				return nil, fmt.Errorf("%w: period %d asset %d is %v", ErrNonFiniteInput, t, i, v)
			}
			data.Set(t, i, v)
		}
	}

	// Sample covariance with the N-1 denominator
	sample := mat.NewSymDense(assets, nil)
	stat.CovarianceMatrix(sample, data, nil)

	return shrinkCovariance(sample), nil
}

// shrinkCovariance returns (1-δ)·S + δ·T where T carries the average
// variance on the diagonal and the average covariance elsewhere.
func shrinkCovariance(sample *mat.SymDense) *mat.SymDense {
	n := sample.SymmetricDim()
	if n < 2 {
		return sample
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))
	if avgVar <= 0 {
		avgCov = 0
	}

	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		return avgCov
	}

	shrinkage := defaultShrinkage
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sum, sumSq float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := sample.At(i, j)
				d := v - target(i, j)
				sumSqDiff += d * d
				sum += v
				sumSq += v * v
			}
		}
		count := float64(n * n)
		meanSqDiff := sumSqDiff / count
		mean := sum / count
		variance := sumSq/count - mean*mean

		if variance > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0, variance/(variance+meanSqDiff)))
		}
	}

	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			shrunk.SetSym(i, j, (1-shrinkage)*sample.At(i, j)+shrinkage*target(i, j))
		}
	}
	return shrunk
}

// RiskTerm returns aversion·Σ, the quadratic penalty added to the selection
// objective when a return history is available.
func RiskTerm(history [][]float64, assets int, aversion float64) (*mat.SymDense, error) {
	if !isFinite(aversion) || aversion < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRiskAversion, aversion)
	}

	cov, err := Covariance(history, assets)
	if err != nil || cov == nil {
		return cov, err
	}

	term := mat.NewSymDense(assets, nil)
	term.ScaleSym(aversion, cov)
	return term, nil
}
