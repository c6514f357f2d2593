package testing

import (
	"context"
	"sync"

	"github.com/aristath/creditrisk/internal/modules/optimization"
)

// MockApproxSolver is a scripted implementation of optimization.ApproxSolver
type MockApproxSolver struct {
	mu        sync.Mutex
	available bool
	selection optimization.Selection
	err       error
	calls     int
}

// NewMockApproxSolver creates an available mock solver returning selection
func NewMockApproxSolver(selection optimization.Selection) *MockApproxSolver {
	return &MockApproxSolver{available: true, selection: selection}
}

// SetAvailable sets the availability reported to the optimizer
func (m *MockApproxSolver) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// SetError sets the error to return from Solve
func (m *MockApproxSolver) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Solve ran
func (m *MockApproxSolver) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name identifies the mock in results
func (m *MockApproxSolver) Name() string { return "mock" }

// Available reports the configured availability
func (m *MockApproxSolver) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Solve returns the configured selection or error
func (m *MockApproxSolver) Solve(context.Context, *optimization.Problem) (optimization.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append(optimization.Selection(nil), m.selection...), nil
}

// MockClassifier is a scripted prediction.Classifier
type MockClassifier struct {
	mu          sync.Mutex
	predictions []float64
	err         error
	lastInput   [][]float64
}

// NewMockClassifier creates a classifier returning predictions
func NewMockClassifier(predictions ...float64) *MockClassifier {
	return &MockClassifier{predictions: predictions}
}

// SetError sets the error to return from Predict
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LastInput returns the features passed to the last Predict call
func (m *MockClassifier) LastInput() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInput
}

// Predict returns the configured predictions or error
func (m *MockClassifier) Predict(features [][]float64) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastInput = features
	if m.err != nil {
		return nil, m.err
	}
	return m.predictions, nil
}
