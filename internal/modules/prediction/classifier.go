package prediction

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrModelNotTrained is returned when a classifier has no parameters.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrFeatureDimension is returned when a feature vector has the wrong width.
	ErrFeatureDimension = errors.New("feature vector has wrong dimension")
)

// Classifier maps feature vectors to default probabilities.
type Classifier interface {
	Predict(features [][]float64) ([]float64, error)
}

// LogisticClassifier scores feature vectors with a fixed linear model
// passed through the logistic function:
//
//	pd = 1 / (1 + exp(-(w·x + b)))
//
// It carries no training logic; weights are supplied by configuration.
type LogisticClassifier struct {
	Weights []float64
	Bias    float64
}

// NewLogisticClassifier creates a classifier with the given parameters.
// Empty weights produce an untrained classifier.
func NewLogisticClassifier(weights []float64, bias float64) *LogisticClassifier {
	return &LogisticClassifier{
		Weights: append([]float64(nil), weights...),
		Bias:    bias,
	}
}

// Trained reports whether the classifier has parameters to score with.
func (c *LogisticClassifier) Trained() bool {
	return len(c.Weights) > 0
}

// Predict returns one probability per feature vector.
func (c *LogisticClassifier) Predict(features [][]float64) ([]float64, error) {
	if !c.Trained() {
		return nil, ErrModelNotTrained
	}

	out := make([]float64, len(features))
	for i, x := range features {
		if len(x) != len(c.Weights) {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d",
				ErrFeatureDimension, i, len(x), len(c.Weights))
		}
		z := floats.Dot(c.Weights, x) + c.Bias
		if math.IsNaN(z) {
			return nil, fmt.Errorf("row %d: non-finite score", i)
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
