package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// bytesPerBasisState covers one amplitude, one energy and one probability.
	bytesPerBasisState = 32
	// memoryShare is the fraction of available memory a state vector may use.
	memoryShare = 4
	maxReps     = 10
)

// QAOAConfig configures the variational solver.
type QAOAConfig struct {
	Enabled       bool
	Reps          int     // ansatz depth p
	Optimizer     string  // nelder_mead, bfgs, lbfgs, cg, gradient_descent
	Shots         int     // samples drawn from the final state
	MaxQubits     int     // hard cap on problem size
	MaxIterations int     // major iterations of the parameter fit
	Penalty       float64 // constraint penalty; <= 0 uses Problem.DefaultPenalty
	Seed          uint64  // 0 draws a fresh seed per solve
}

// DefaultQAOAConfig returns the configuration used when nothing is overridden.
func DefaultQAOAConfig() QAOAConfig {
	return QAOAConfig{
		Enabled:       true,
		Reps:          1,
		Optimizer:     "nelder_mead",
		Shots:         1024,
		MaxQubits:     14,
		MaxIterations: 200,
	}
}

// MemoryProbe reports the bytes of memory available to the process.
type MemoryProbe func() (uint64, error)

func systemMemoryProbe() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// QAOAOption customises a QAOASolver.
type QAOAOption func(*QAOASolver)

// WithMemoryProbe replaces the host memory probe used to size the solver.
func WithMemoryProbe(probe MemoryProbe) QAOAOption {
	return func(s *QAOASolver) {
		s.probe = probe
	}
}

// stage is one way of turning a fitted circuit into a selection.
type stage func(ctx context.Context, p *Problem, v *variational, c *circuit, src rand.Source) (Selection, error)

// QAOASolver solves the selection problem with the Quantum Approximate
// Optimization Algorithm, simulated on a dense state vector.
//
// The constrained path fits the ansatz on the penalised QUBO, samples the
// final state and keeps the best feasible sample. If that fails the solver
// falls back to reading out the ground state of the fitted circuit directly.
type QAOASolver struct {
	cfg      QAOAConfig
	probe    MemoryProbe
	capacity int
	log      zerolog.Logger

	constrained   stage
	unconstrained stage
}

// NewQAOASolver creates the solver and sizes it against host memory.
func NewQAOASolver(cfg QAOAConfig, log zerolog.Logger, opts ...QAOAOption) *QAOASolver {
	s := &QAOASolver{
		cfg:   cfg,
		probe: systemMemoryProbe,
		log:   log.With().Str("component", "qaoa_solver").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.constrained = s.solveConstrained
	s.unconstrained = s.solveUnconstrained
	s.capacity = s.detectCapacity()
	return s
}

// detectCapacity returns the largest qubit count whose state vector fits in
// the configured share of available memory, capped by MaxQubits.
func (s *QAOASolver) detectCapacity() int {
	if !s.cfg.Enabled || s.cfg.MaxQubits < 1 {
		return 0
	}

	available, err := s.probe()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to probe memory, using configured qubit cap")
		return s.cfg.MaxQubits
	}

	states := available / memoryShare / bytesPerBasisState
	if states < 2 {
		return 0
	}
	qubits := bits.Len64(states) - 1
	if qubits > s.cfg.MaxQubits {
		qubits = s.cfg.MaxQubits
	}
	return qubits
}

// Name identifies the solver in results and metrics.
func (s *QAOASolver) Name() string { return "qaoa" }

// Available reports whether the solver can run at all.
func (s *QAOASolver) Available() bool {
	return s.cfg.Enabled && s.capacity >= 1
}

// Capacity returns the largest number of assets the solver accepts.
func (s *QAOASolver) Capacity() int {
	return s.capacity
}

// Config returns the solver configuration.
func (s *QAOASolver) Config() QAOAConfig {
	return s.cfg
}

// solveTrace records which options and path produced a selection.
type solveTrace struct {
	options variationalOptions
	path    string
}

// Solve returns the best selection found, or an error wrapping ErrSolverUnavailable.
func (s *QAOASolver) Solve(ctx context.Context, p *Problem) (Selection, error) {
	sel, _, err := s.solve(ctx, p)
	return sel, err
}

func (s *QAOASolver) solve(ctx context.Context, p *Problem) (Selection, solveTrace, error) {
	var trace solveTrace

	if !s.Available() {
		return nil, trace, fmt.Errorf("%w: qaoa solver disabled", ErrSolverUnavailable)
	}

	n := p.NumVariables()
	if n == 0 {
		return Selection{}, trace, nil
	}
	if n > s.capacity {
		return nil, trace, fmt.Errorf("%w: %d assets exceed %d-qubit capacity", ErrSolverUnavailable, n, s.capacity)
	}

	v, err := s.buildVariational()
	if err != nil {
		return nil, trace, fmt.Errorf("%w: %w", ErrSolverUnavailable, err)
	}
	trace.options = v.options

	penalty := s.cfg.Penalty
	if penalty <= 0 {
		penalty = p.DefaultPenalty()
	}
	q, offset := p.QUBO(penalty)
	c := newCircuit(q, offset)
	src := s.newSource()

	sel, errConstrained := s.constrained(ctx, p, v, c, src)
	if errConstrained == nil {
		trace.path = "constrained"
		return sel, trace, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, trace, fmt.Errorf("%w: %w", ErrSolverUnavailable, ctxErr)
	}

	s.log.Debug().Err(errConstrained).Int("assets", n).Msg("Constrained solve failed, trying unconstrained readout")

	sel, errUnconstrained := s.unconstrained(ctx, p, v, c, src)
	if errUnconstrained == nil {
		trace.path = "unconstrained"
		return sel, trace, nil
	}

	return nil, trace, fmt.Errorf("%w: %w", ErrSolverUnavailable, errors.Join(errConstrained, errUnconstrained))
}

func (s *QAOASolver) newSource() rand.Source {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// buildVariational constructs the variational solver from the configured
// options, retrying with the conservative defaults when they are rejected.
func (s *QAOASolver) buildVariational() (*variational, error) {
	configured := variationalOptions{
		reps:          s.cfg.Reps,
		method:        s.cfg.Optimizer,
		shots:         s.cfg.Shots,
		maxIterations: s.cfg.MaxIterations,
	}
	alternate := variationalOptions{
		reps:          1,
		method:        "nelder_mead",
		shots:         s.cfg.Shots,
		maxIterations: s.cfg.MaxIterations,
	}
	if alternate.shots < 1 {
		alternate.shots = DefaultQAOAConfig().Shots
	}
	if alternate.maxIterations < 1 {
		alternate.maxIterations = DefaultQAOAConfig().MaxIterations
	}

	v, err := newVariational(configured)
	if err == nil {
		return v, nil
	}
	s.log.Warn().Err(err).Msg("Variational options rejected, retrying with defaults")

	v, errAlt := newVariational(alternate)
	if errAlt == nil {
		return v, nil
	}
	return nil, errors.Join(err, errAlt)
}

// solveConstrained fits the ansatz, samples the final state and returns the
// feasible sample with the lowest objective.
func (s *QAOASolver) solveConstrained(ctx context.Context, p *Problem, v *variational, c *circuit, src rand.Source) (Selection, error) {
	params, err := v.fit(ctx, c, initialParams(v.options.reps, 0.8, 0.4))
	if err != nil {
		return nil, err
	}
	c.prepare(params, v.options.reps)

	counts, err := sample(ctx, c.probabilities(), v.options.shots, src)
	if err != nil {
		return nil, err
	}

	states := make([]uint64, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Slice(states, func(a, b int) bool { return states[a] < states[b] })

	n := p.NumVariables()
	var best Selection
	bestValue, bestCount := math.Inf(1), 0
	for _, state := range states {
		sel := selectionFromBits(state, n)
		if !p.IsFeasible(sel) {
			continue
		}
		value := p.Evaluate(sel)
		if value < bestValue || (value == bestValue && counts[state] > bestCount) {
			best, bestValue, bestCount = sel, value, counts[state]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no feasible assignment in %d samples", v.options.shots)
	}
	return best, nil
}

// solveUnconstrained refits from a small-angle start and reads out the lowest
// energy basis state the circuit amplifies. Feasibility is left to the caller.
func (s *QAOASolver) solveUnconstrained(ctx context.Context, p *Problem, v *variational, c *circuit, _ rand.Source) (Selection, error) {
	params, err := v.fit(ctx, c, initialParams(v.options.reps, 0.1, 0.1))
	if err != nil {
		return nil, err
	}
	c.prepare(params, v.options.reps)

	state, ok := c.groundStateReadout()
	if !ok {
		return nil, fmt.Errorf("state vector has no readable amplitude")
	}
	return selectionFromBits(state, p.NumVariables()), nil
}

// sample draws shots basis states from probs and counts each outcome.
func sample(ctx context.Context, probs []float64, shots int, src rand.Source) (map[uint64]int, error) {
	total := 0.0
	for _, p := range probs {
		if math.IsNaN(p) || p < 0 {
			return nil, fmt.Errorf("invalid amplitude probability %v", p)
		}
		total += p
	}
	if total <= 0 {
		return nil, fmt.Errorf("state vector has zero norm")
	}

	sampler := distuv.NewCategorical(probs, src)
	counts := make(map[uint64]int)
	for shot := 0; shot < shots; shot++ {
		if shot%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		counts[uint64(sampler.Rand())]++
	}
	return counts, nil
}

func initialParams(reps int, gamma, beta float64) []float64 {
	params := make([]float64, 2*reps)
	for i := 0; i < reps; i++ {
		params[i] = gamma
		params[reps+i] = beta
	}
	return params
}

type variationalOptions struct {
	reps          int
	method        string
	shots         int
	maxIterations int
}

// variational fits the QAOA angles with a classical inner-loop optimizer.
type variational struct {
	options   variationalOptions
	newMethod func() optimize.Method
	needsGrad bool
}

func newVariational(opts variationalOptions) (*variational, error) {
	if opts.reps < 1 || opts.reps > maxReps {
		return nil, fmt.Errorf("reps must be between 1 and %d, got %d", maxReps, opts.reps)
	}
	if opts.shots < 1 {
		return nil, fmt.Errorf("shots must be positive, got %d", opts.shots)
	}
	if opts.maxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", opts.maxIterations)
	}

	v := &variational{options: opts}
	switch strings.ToLower(opts.method) {
	case "", "nelder_mead":
		v.options.method = "nelder_mead"
		v.newMethod = func() optimize.Method { return &optimize.NelderMead{} }
	case "bfgs":
		v.newMethod = func() optimize.Method { return &optimize.BFGS{} }
		v.needsGrad = true
	case "lbfgs":
		v.newMethod = func() optimize.Method { return &optimize.LBFGS{} }
		v.needsGrad = true
	case "cg":
		v.newMethod = func() optimize.Method { return &optimize.CG{} }
		v.needsGrad = true
	case "gradient_descent":
		v.newMethod = func() optimize.Method { return &optimize.GradientDescent{} }
		v.needsGrad = true
	default:
		return nil, fmt.Errorf("unknown optimizer %q", opts.method)
	}
	return v, nil
}

// Accepted terminal statuses. Hitting an iteration limit still yields usable
// angles, the same way a capped COBYLA run does.
var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:                 true,
	optimize.FunctionConvergence:     true,
	optimize.GradientThreshold:       true,
	optimize.StepConvergence:         true,
	optimize.FunctionThreshold:       true,
	optimize.MethodConverge:          true,
	optimize.IterationLimit:          true,
	optimize.FunctionEvaluationLimit: true,
	optimize.RuntimeLimit:            true,
}

// fit minimizes the expected energy <ψ(γ,β)|H|ψ(γ,β)> over the angles.
func (v *variational) fit(ctx context.Context, c *circuit, initial []float64) ([]float64, error) {
	reps := v.options.reps
	energy := func(x []float64) float64 {
		c.prepare(x, reps)
		return c.expectation()
	}

	problem := optimize.Problem{
		Func: energy,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	if v.needsGrad {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, energy, x, nil)
		}
	}

	settings := &optimize.Settings{MajorIterations: v.options.maxIterations}

	result, err := optimize.Minimize(problem, initial, settings, v.newMethod())
	if err != nil {
		return nil, fmt.Errorf("variational fit failed: %w", err)
	}
	if !acceptedStatuses[result.Status] {
		// Try with the derivative-free method before giving up
		if v.options.method == "nelder_mead" {
			return nil, fmt.Errorf("variational fit did not converge: status=%v", result.Status)
		}
		problem.Grad = nil
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("variational fit failed: %w", err)
		}
		if !acceptedStatuses[result.Status] {
			return nil, fmt.Errorf("variational fit did not converge: status=%v", result.Status)
		}
	}
	if math.IsNaN(result.F) {
		return nil, fmt.Errorf("variational fit produced NaN energy")
	}

	return result.X, nil
}
