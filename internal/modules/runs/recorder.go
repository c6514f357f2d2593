package runs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Recorder writes request/response pairs to the ledger. Failures are logged
// and never returned: the ledger must not fail the request it describes.
type Recorder struct {
	repo *Repository
	log  zerolog.Logger
}

// NewRecorder creates a recorder backed by repo. A nil repo disables recording.
func NewRecorder(repo *Repository, log zerolog.Logger) *Recorder {
	return &Recorder{
		repo: repo,
		log:  log.With().Str("component", "run_recorder").Logger(),
	}
}

// Record stores one run and returns its ID, or "" if it could not be stored.
func (r *Recorder) Record(ctx context.Context, kind Kind, solver string, input, output interface{}, duration time.Duration) string {
	if r == nil || r.repo == nil {
		return ""
	}

	in, err := encode(input)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to encode run input")
		return ""
	}
	out, err := encode(output)
	if err != nil {
		r.log.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to encode run output")
		return ""
	}

	run := &Run{
		Kind:       kind,
		Solver:     solver,
		Input:      in,
		Output:     out,
		DurationMs: duration.Milliseconds(),
	}
	// Use a detached context so a cancelled request still gets recorded.
	if err := r.repo.Create(context.WithoutCancel(ctx), run); err != nil {
		r.log.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to record run")
		return ""
	}
	return run.ID
}
