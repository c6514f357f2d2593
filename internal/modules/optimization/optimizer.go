package optimization

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Solver names reported in results.
const (
	SolverGreedy = "greedy"
)

// Reasons the optimizer fell back to the greedy solver.
const (
	FallbackUnavailable = "solver_unavailable"
	FallbackTimeout     = "solver_timeout"
	FallbackFailed      = "solver_failed"
	FallbackInfeasible  = "infeasible_selection"
)

// state names the optimizer's progress through a single request.
type state string

const (
	stateFormulating state = "formulating"
	stateTryQuantum  state = "try_quantum"
	stateFallback    state = "fallback"
	stateDone        state = "done"
)

// Result is the outcome of one optimization request.
type Result struct {
	Selection      Selection     `json:"selection"`
	Solver         string        `json:"solver"`
	Objective      float64       `json:"objective"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	Duration       time.Duration `json:"-"`
}

// Observer receives one notification per completed optimization.
type Observer interface {
	ObserveOptimization(solver, fallbackReason string, duration time.Duration)
}

// OptimizerConfig configures the optimizer.
type OptimizerConfig struct {
	// SolverTimeout bounds the approximate solver; expiry triggers the fallback.
	// Zero disables the bound.
	SolverTimeout time.Duration
}

// DefaultOptimizerConfig returns the default optimizer configuration.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{SolverTimeout: 10 * time.Second}
}

// Optimizer selects a budget-constrained subset of assets. It tries the
// approximate solver first and falls back to SolveGreedy whenever that solver
// is unavailable, fails, times out or returns an infeasible selection.
type Optimizer struct {
	approx   ApproxSolver
	cfg      OptimizerConfig
	observer Observer
	log      zerolog.Logger
}

// NewOptimizer creates an optimizer. approx may be nil, in which case every
// request takes the greedy path.
func NewOptimizer(approx ApproxSolver, cfg OptimizerConfig, log zerolog.Logger) *Optimizer {
	if approx == nil {
		approx = NewDisabledSolver("no approximate solver configured")
	}
	return &Optimizer{
		approx: approx,
		cfg:    cfg,
		log:    log.With().Str("component", "portfolio_optimizer").Logger(),
	}
}

// SetObserver sets the observer notified after every optimization.
func (o *Optimizer) SetObserver(observer Observer) {
	o.observer = observer
}

// Solver returns the approximate solver used on the primary path.
func (o *Optimizer) Solver() ApproxSolver {
	return o.approx
}

// OptimizePortfolio returns a selection of exactly budget assets.
// Only input validation errors are returned; solver failures are absorbed by
// the greedy fallback.
func (o *Optimizer) OptimizePortfolio(ctx context.Context, returns, risks []float64, budget int) (*Result, error) {
	return o.OptimizePortfolioWithRisk(ctx, returns, risks, budget, nil)
}

// OptimizePortfolioWithRisk is OptimizePortfolio with a quadratic cross-asset
// term (see RiskTerm) added to the objective. A nil quadratic is the base
// objective. The greedy fallback still ranks by return alone.
func (o *Optimizer) OptimizePortfolioWithRisk(ctx context.Context, returns, risks []float64, budget int, quadratic *mat.SymDense) (*Result, error) {
	start := time.Now()
	o.transition(stateFormulating, "")

	problem, err := Formulate(returns, risks, budget)
	if err != nil {
		return nil, err
	}
	if quadratic != nil {
		if problem, err = problem.WithQuadratic(quadratic); err != nil {
			return nil, err
		}
	}

	o.transition(stateTryQuantum, "")
	result := &Result{Solver: o.approx.Name()}

	sel, reason := o.tryApprox(ctx, problem)
	if reason != "" {
		o.transition(stateFallback, reason)
		sel = SolveGreedy(returns, budget)
		result.Solver = SolverGreedy
		result.FallbackReason = reason
	}

	result.Selection = sel
	result.Objective = problem.Evaluate(sel)
	result.Duration = time.Since(start)
	o.transition(stateDone, "")

	o.log.Debug().
		Str("solver", result.Solver).
		Str("fallback_reason", result.FallbackReason).
		Int("assets", problem.NumVariables()).
		Int("budget", budget).
		Bool("quadratic", problem.HasQuadratic()).
		Dur("duration", result.Duration).
		Msg("Portfolio optimized")

	if o.observer != nil {
		o.observer.ObserveOptimization(result.Solver, result.FallbackReason, result.Duration)
	}

	return result, nil
}

type solveOutcome struct {
	sel Selection
	err error
}

// tryApprox runs the approximate solver under the configured timeout. It
// returns the selection, or an empty selection and the fallback reason.
func (o *Optimizer) tryApprox(ctx context.Context, problem *Problem) (Selection, string) {
	if !o.approx.Available() {
		return nil, FallbackUnavailable
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.SolverTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.SolverTimeout)
	}
	defer cancel()

	done := make(chan solveOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- solveOutcome{err: fmt.Errorf("solver panic: %v", r)}
			}
		}()
		sel, err := o.approx.Solve(runCtx, problem)
		done <- solveOutcome{sel: sel, err: err}
	}()

	var out solveOutcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		if !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, FallbackUnavailable
		}
		o.log.Warn().Dur("timeout", o.cfg.SolverTimeout).Msg("Approximate solver timed out")
		return nil, FallbackTimeout
	}

	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) {
			return nil, FallbackTimeout
		}
		if errors.Is(out.err, ErrSolverUnavailable) {
			o.log.Info().Err(out.err).Msg("Approximate solver unavailable")
			return nil, FallbackUnavailable
		}
		o.log.Warn().Err(out.err).Msg("Approximate solver failed")
		return nil, FallbackFailed
	}

	if !problem.IsFeasible(out.sel) {
		o.log.Warn().
			Int("selected", out.sel.Count()).
			Int("budget", problem.Budget()).
			Int("length", len(out.sel)).
			Msg("Approximate solver returned infeasible selection")
		return nil, FallbackInfeasible
	}

	return out.sel, ""
}

func (o *Optimizer) transition(to state, reason string) {
	event := o.log.Trace().Str("state", string(to))
	if reason != "" {
		event = event.Str("reason", reason)
	}
	event.Msg("Optimizer state")
}

var (
	defaultOptimizer     *Optimizer
	defaultOptimizerOnce sync.Once
)

// OptimizePortfolio runs the default optimizer (QAOA with greedy fallback)
// and returns only the selection.
func OptimizePortfolio(returns, risks []float64, budget int) (Selection, error) {
	defaultOptimizerOnce.Do(func() {
		nop := zerolog.Nop()
		defaultOptimizer = NewOptimizer(NewQAOASolver(DefaultQAOAConfig(), nop), DefaultOptimizerConfig(), nop)
	})

	result, err := defaultOptimizer.OptimizePortfolio(context.Background(), returns, risks, budget)
	if err != nil {
		return nil, err
	}
	return result.Selection, nil
}
