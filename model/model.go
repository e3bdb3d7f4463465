package model

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sartorproj/goforecast/panel"
)

var (
	// ErrNotFitted is returned by operations that need a fitted model.
	ErrNotFitted = errors.New("model must be fitted before use")
	// ErrUnknownParam is returned when a parameter set names a field the
	// model configuration does not have.
	ErrUnknownParam = errors.New("unknown model parameter")
	// ErrDiverged is returned when training produces a non-finite loss.
	ErrDiverged = errors.New("training diverged")
)

// Model is a forecasting model trained on a panel dataset.
type Model interface {
	// Fit trains on the first Length - valSize - testSize points of every
	// entity and validates on the next valSize points.
	Fit(ctx context.Context, ds *panel.Dataset, valSize, testSize int) error
	// Predict forecasts H steps from rolling origins spaced stepSize apart
	// over the test region, or once past the end when there is none.
	Predict(ctx context.Context, ds *panel.Dataset, stepSize int) (*Forecast, error)
	// SetTestSize changes the test region used by Predict.
	SetTestSize(testSize int)
	// Save writes a checkpoint of the fitted model to path.
	Save(path string) error
}

// Constructor builds an unfitted model from a configuration.
type Constructor func(cfg Config) (Model, error)

// ValidationReport is emitted after every validation pass.
type ValidationReport struct {
	Step int
	Loss float64
}

// Callback observes training progress.
type Callback interface {
	OnValidationEnd(report ValidationReport)
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(report ValidationReport)

// OnValidationEnd calls f(report).
func (f CallbackFunc) OnValidationEnd(report ValidationReport) { f(report) }
