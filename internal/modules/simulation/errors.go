package simulation

import "errors"

// Input validation errors, surfaced verbatim to callers.
var (
	ErrEmptyPortfolio     = errors.New("probabilities must not be empty")
	ErrInvalidProbability = errors.New("probabilities must lie in [0, 1]")
	ErrInvalidTrialCount  = errors.New("invalid trial count")
)

// IsValidationError reports whether err is one of the simulator's input errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyPortfolio) ||
		errors.Is(err, ErrInvalidProbability) ||
		errors.Is(err, ErrInvalidTrialCount)
}
