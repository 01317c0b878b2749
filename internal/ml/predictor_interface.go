// Package ml loads trained binary classifiers and runs single-row inference.
// Backends cover native JSON tree ensembles, ONNX artifacts, scikit-learn
// joblib artifacts served by a Python worker, and the fixed ovulation-window
// rule.
//
// A loaded classifier is immutable and safe for concurrent use.
package ml

import (
	"context"
	"errors"

	"cycle-dashboard/internal/features"
)

// ErrInference is matched by every failed Predict call.
var ErrInference = errors.New("inference failed")

// Prediction is the raw output of a binary classifier. Label is meaningful
// only when HasLabel is true; Probability (of class 1) only when
// HasProbability is true.
type Prediction struct {
	Label          int
	HasLabel       bool
	Probability    float64
	HasProbability bool
}

// Classifier is one loaded model.
type Classifier interface {
	// Predict classifies a single assembled row.
	Predict(ctx context.Context, row features.Row) (Prediction, error)

	// Features returns the training columns the artifact declares, in
	// order, or nil when the artifact does not record them.
	Features() []string

	// Close releases runtime resources held by the classifier.
	Close() error
}

// MetricsInterface defines metrics methods needed by the classifier backends
type MetricsInterface interface {
	MLModelAgeSet(model string, seconds float64)
	MLTimeoutsInc(model string)
	MLWorkerRestartsInc(model string)
}

type nopMetrics struct{}

func (nopMetrics) MLModelAgeSet(string, float64) {}
func (nopMetrics) MLTimeoutsInc(string)          {}
func (nopMetrics) MLWorkerRestartsInc(string)    {}
