package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config configures the simulator.
type Config struct {
	Workers   int    // parallel workers; <= 0 uses GOMAXPROCS
	MaxTrials int    // upper bound on trials per request
	Seed      uint64 // 0 draws a fresh seed per run
}

// DefaultConfig returns the default simulator configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   runtime.GOMAXPROCS(0),
		MaxTrials: 10_000_000,
	}
}

// Result summarises one simulation run. DefaultRate is the mean fraction of
// the portfolio defaulting per trial.
type Result struct {
	DefaultRate  float64       `json:"default_rate"`
	StdError     float64       `json:"std_error"`
	MinRate      float64       `json:"min_rate"`
	MaxRate      float64       `json:"max_rate"`
	ExpectedRate float64       `json:"expected_rate"`
	Trials       int           `json:"trials"`
	Assets       int           `json:"assets"`
	Duration     time.Duration `json:"-"`
}

// Observer receives one notification per completed simulation.
type Observer interface {
	ObserveSimulation(trials int, duration time.Duration)
}

// Simulator estimates portfolio default rates by Monte Carlo sampling.
// Each asset defaults independently with its own probability.
type Simulator struct {
	cfg      Config
	observer Observer
	log      zerolog.Logger
}

// NewSimulator creates a simulator.
func NewSimulator(cfg Config, log zerolog.Logger) *Simulator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Simulator{
		cfg: cfg,
		log: log.With().Str("component", "default_simulator").Logger(),
	}
}

// SetObserver sets the observer notified after every run.
func (s *Simulator) SetObserver(observer Observer) {
	s.observer = observer
}

// Config returns the simulator configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Run draws trials independent portfolio outcomes and aggregates them.
//
// Trials are split across workers, each with its own random stream. Workers
// tally how many trials saw k defaults; statistics are computed after all of
// them finish.
func (s *Simulator) Run(ctx context.Context, probabilities []float64, trials int) (*Result, error) {
	if err := s.validate(probabilities, trials); err != nil {
		return nil, err
	}

	start := time.Now()
	n := len(probabilities)
	workers := s.cfg.Workers
	if workers > trials {
		workers = trials
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	tally := make([]float64, n+1)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	chunk, extra := trials/workers, trials%workers
	for w := 0; w < workers; w++ {
		count := chunk
		if w < extra {
			count++
		}
		src := rand.NewPCG(seed, uint64(w))

		g.Go(func() error {
			local, err := runTrials(gctx, probabilities, count, src)
			if err != nil {
				return err
			}
			mu.Lock()
			for k, c := range local {
				tally[k] += c
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation aborted: %w", err)
	}

	result := summarise(tally, probabilities, trials)
	result.Duration = time.Since(start)

	s.log.Debug().
		Int("assets", n).
		Int("trials", trials).
		Int("workers", workers).
		Float64("default_rate", result.DefaultRate).
		Dur("duration", result.Duration).
		Msg("Default simulation completed")

	if s.observer != nil {
		s.observer.ObserveSimulation(trials, result.Duration)
	}

	return result, nil
}

func (s *Simulator) validate(probabilities []float64, trials int) error {
	if len(probabilities) == 0 {
		return ErrEmptyPortfolio
	}
	for i, p := range probabilities {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: asset %d has probability %v", ErrInvalidProbability, i, p)
		}
	}
	if trials <= 0 {
		return fmt.Errorf("%w: %d, must be positive", ErrInvalidTrialCount, trials)
	}
	if s.cfg.MaxTrials > 0 && trials > s.cfg.MaxTrials {
		return fmt.Errorf("%w: %d exceeds limit of %d", ErrInvalidTrialCount, trials, s.cfg.MaxTrials)
	}
	return nil
}

// runTrials returns tally[k] = number of trials in which exactly k assets defaulted.
func runTrials(ctx context.Context, probabilities []float64, trials int, src rand.Source) ([]float64, error) {
	draws := make([]distuv.Bernoulli, len(probabilities))
	for i, p := range probabilities {
		draws[i] = distuv.Bernoulli{P: p, Src: src}
	}

	tally := make([]float64, len(probabilities)+1)
	for t := 0; t < trials; t++ {
		if t%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		defaults := 0
		for i := range draws {
			defaults += int(draws[i].Rand())
		}
		tally[defaults]++
	}
	return tally, nil
}

// summarise turns the default-count tally into rate statistics.
func summarise(tally, probabilities []float64, trials int) *Result {
	n := len(probabilities)
	rates := make([]float64, n+1)
	for k := range rates {
		rates[k] = float64(k) / float64(n)
	}

	result := &Result{
		DefaultRate:  stat.Mean(rates, tally),
		ExpectedRate: stat.Mean(probabilities, nil),
		Trials:       trials,
		Assets:       n,
		MinRate:      math.NaN(),
	}
	for k, c := range tally {
		if c == 0 {
			continue
		}
		if math.IsNaN(result.MinRate) {
			result.MinRate = rates[k]
		}
		result.MaxRate = rates[k]
	}
	if trials > 1 {
		result.StdError = math.Sqrt(stat.Variance(rates, tally) / float64(trials))
	}
	// Guard against rounding pushing the weighted mean outside [0, 1].
	result.DefaultRate = math.Min(1, math.Max(0, result.DefaultRate))
	return result
}

var (
	defaultSimulator     *Simulator
	defaultSimulatorOnce sync.Once
)

// SimulateDefaults runs the default simulator and returns the estimated mean
// portfolio default rate.
func SimulateDefaults(probabilities []float64, trials int) (float64, error) {
	defaultSimulatorOnce.Do(func() {
		defaultSimulator = NewSimulator(DefaultConfig(), zerolog.Nop())
	})

	result, err := defaultSimulator.Run(context.Background(), probabilities, trials)
	if err != nil {
		return 0, err
	}
	return result.DefaultRate, nil
}
