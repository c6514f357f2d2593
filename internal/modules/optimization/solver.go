package optimization

import (
	"context"
	"fmt"
)

// ApproxSolver is an approximate backend for the selection problem.
//
// Availability is known before solving: callers check Available and skip the
// solver entirely when it reports false. Solve fails only with errors wrapping
// ErrSolverUnavailable.
type ApproxSolver interface {
	Name() string
	Available() bool
	Solve(ctx context.Context, problem *Problem) (Selection, error)
}

// disabledSolver stands in when no approximate backend is configured.
type disabledSolver struct {
	reason string
}

// NewDisabledSolver returns an ApproxSolver that is never available.
func NewDisabledSolver(reason string) ApproxSolver {
	return &disabledSolver{reason: reason}
}

func (s *disabledSolver) Name() string { return "disabled" }

func (s *disabledSolver) Available() bool { return false }

func (s *disabledSolver) Solve(context.Context, *Problem) (Selection, error) {
	return nil, fmt.Errorf("%w: %s", ErrSolverUnavailable, s.reason)
}
