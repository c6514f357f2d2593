package simulation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimulator(seed uint64) *Simulator {
	return NewSimulator(Config{Workers: 4, MaxTrials: 1_000_000, Seed: seed}, zerolog.Nop())
}

type countingObserver struct {
	trials int
	calls  int
}

func (c *countingObserver) ObserveSimulation(trials int, _ time.Duration) {
	c.trials += trials
	c.calls++
}

func TestSimulator_ScenarioB(t *testing.T) {
	s := newTestSimulator(7)

	result, err := s.Run(context.Background(), []float64{0.1, 0.05, 0.2}, 10000)
	require.NoError(t, err)

	assert.InDelta(t, 0.1167, result.DefaultRate, 0.02)
	assert.InDelta(t, 0.35/3, result.ExpectedRate, 1e-12)
	assert.Equal(t, 10000, result.Trials)
	assert.Equal(t, 3, result.Assets)
	assert.Greater(t, result.StdError, 0.0)
	assert.Less(t, result.StdError, 0.01)
}

func TestSimulator_Convergence(t *testing.T) {
	probabilities := []float64{0.02, 0.3, 0.15, 0.6, 0.01}
	s := newTestSimulator(2024)

	result, err := s.Run(context.Background(), probabilities, 100000)
	require.NoError(t, err)

	assert.InDelta(t, result.ExpectedRate, result.DefaultRate, 0.01)
}

func TestSimulator_Bounds(t *testing.T) {
	testCases := []struct {
		name          string
		probabilities []float64
		trials        int
	}{
		{"single trial", []float64{0.5, 0.5}, 1},
		{"certain defaults", []float64{1, 1, 1}, 50},
		{"no defaults", []float64{0, 0}, 50},
		{"mixed", []float64{0, 1, 0.5}, 333},
		{"fewer trials than workers", []float64{0.3}, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := newTestSimulator(1).Run(context.Background(), tc.probabilities, tc.trials)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, result.DefaultRate, 0.0)
			assert.LessOrEqual(t, result.DefaultRate, 1.0)
			assert.LessOrEqual(t, result.MinRate, result.DefaultRate)
			assert.GreaterOrEqual(t, result.MaxRate, result.DefaultRate)
			assert.Equal(t, tc.trials, result.Trials)
		})
	}
}

func TestSimulator_DegenerateProbabilities(t *testing.T) {
	s := newTestSimulator(3)

	result, err := s.Run(context.Background(), []float64{1, 1}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.DefaultRate)
	assert.Zero(t, result.StdError)

	result, err = s.Run(context.Background(), []float64{0, 0, 0}, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.DefaultRate)
	assert.Equal(t, 0.0, result.MaxRate)

	result, err = s.Run(context.Background(), []float64{0, 1}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result.DefaultRate, 1e-12)
	assert.Equal(t, 0.5, result.MinRate)
	assert.Equal(t, 0.5, result.MaxRate)
}

func TestSimulator_SeedIsReproducible(t *testing.T) {
	probabilities := []float64{0.1, 0.4, 0.25}

	first, err := newTestSimulator(99).Run(context.Background(), probabilities, 5000)
	require.NoError(t, err)
	second, err := newTestSimulator(99).Run(context.Background(), probabilities, 5000)
	require.NoError(t, err)

	assert.Equal(t, first.DefaultRate, second.DefaultRate)
	assert.Equal(t, first.StdError, second.StdError)
}

func TestSimulator_ValidationErrors(t *testing.T) {
	s := newTestSimulator(1)

	testCases := []struct {
		name          string
		probabilities []float64
		trials        int
		expected      error
	}{
		{"empty", []float64{}, 10, ErrEmptyPortfolio},
		{"nil", nil, 10, ErrEmptyPortfolio},
		{"above one", []float64{0.1, 1.5}, 10, ErrInvalidProbability},
		{"negative", []float64{-0.1}, 10, ErrInvalidProbability},
		{"nan", []float64{math.NaN()}, 10, ErrInvalidProbability},
		{"zero trials", []float64{0.1}, 0, ErrInvalidTrialCount},
		{"negative trials", []float64{0.1}, -5, ErrInvalidTrialCount},
		{"too many trials", []float64{0.1}, 1_000_001, ErrInvalidTrialCount},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Run(context.Background(), tc.probabilities, tc.trials)
			assert.ErrorIs(t, err, tc.expected)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestSimulator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSimulator(1).Run(ctx, []float64{0.1, 0.2}, 10000)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsValidationError(err))
}

func TestSimulator_Observer(t *testing.T) {
	observer := &countingObserver{}
	s := newTestSimulator(5)
	s.SetObserver(observer)

	_, err := s.Run(context.Background(), []float64{0.1}, 100)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), []float64{0.1}, 0)
	require.Error(t, err)

	assert.Equal(t, 1, observer.calls)
	assert.Equal(t, 100, observer.trials)
}

func TestSimulateDefaults(t *testing.T) {
	rate, err := SimulateDefaults([]float64{0.1, 0.05, 0.2}, 10000)
	require.NoError(t, err)
	assert.InDelta(t, 0.1167, rate, 0.02)

	_, err = SimulateDefaults([]float64{0.1, 1.5}, 1000)
	assert.ErrorIs(t, err, ErrInvalidProbability)
}
