package optimization

import "errors"

// Input validation errors. These are caller bugs and are always surfaced.
var (
	ErrShapeMismatch    = errors.New("returns and risks have different lengths")
	ErrInfeasibleBudget = errors.New("budget cannot be satisfied by the asset universe")
	ErrNonFiniteInput   = errors.New("returns and risks must be finite")

	ErrInsufficientHistory = errors.New("return history needs at least two periods")
	ErrInvalidRiskAversion = errors.New("risk aversion must be a finite, non-negative number")
)

// ErrSolverUnavailable signals that the approximate solver could not produce a
// selection. The optimizer recovers from it by running the greedy fallback.
var ErrSolverUnavailable = errors.New("approximate solver unavailable")

// IsValidationError reports whether err is one of the input validation errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrInfeasibleBudget) ||
		errors.Is(err, ErrNonFiniteInput) ||
		errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrInvalidRiskAversion)
}
