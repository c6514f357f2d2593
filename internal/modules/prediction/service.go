package prediction

import (
	"math"

	"github.com/rs/zerolog"
)

// PlaceholderPD is returned whenever the classifier cannot score a request.
const PlaceholderPD = 0.1

// PDResult is a probability of default for one borrower.
type PDResult struct {
	PD          float64 `json:"pd"`
	Placeholder bool    `json:"placeholder"`
}

// Observer is notified whenever the placeholder is substituted.
type Observer interface {
	ObservePlaceholder()
}

// Service predicts probabilities of default. It never fails: any classifier
// error yields PlaceholderPD.
type Service struct {
	classifier Classifier
	observer   Observer
	log        zerolog.Logger
}

// NewService creates a prediction service around classifier.
func NewService(classifier Classifier, log zerolog.Logger) *Service {
	return &Service{
		classifier: classifier,
		log:        log.With().Str("service", "prediction").Logger(),
	}
}

// SetObserver sets the observer notified on placeholder substitution.
func (s *Service) SetObserver(observer Observer) {
	s.observer = observer
}

// PredictPD returns the probability of default for a single feature vector.
func (s *Service) PredictPD(features []float64) PDResult {
	if s.classifier == nil {
		return s.placeholder(ErrModelNotTrained)
	}

	predictions, err := s.classifier.Predict([][]float64{features})
	if err != nil {
		return s.placeholder(err)
	}
	if len(predictions) != 1 {
		return s.placeholder(nil)
	}

	pd := predictions[0]
	if math.IsNaN(pd) || pd < 0 || pd > 1 {
		s.log.Warn().Float64("pd", pd).Msg("Classifier returned out-of-range probability")
		return s.placeholder(nil)
	}
	return PDResult{PD: pd}
}

func (s *Service) placeholder(err error) PDResult {
	s.log.Debug().Err(err).Msg("Using placeholder probability of default")
	if s.observer != nil {
		s.observer.ObservePlaceholder()
	}
	return PDResult{PD: PlaceholderPD, Placeholder: true}
}
