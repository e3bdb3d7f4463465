// Package loss provides point-forecast losses used for training and validation.
package loss

import (
	"math"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// Loss scores forecasts and maps raw model outputs into the forecast domain.
type Loss interface {
	// Name returns the lower-case name understood by ByName.
	Name() string
	// Compute returns the mask-weighted loss. A nil mask weights every point
	// by one; a zero total weight yields NaN.
	Compute(y, yhat, mask []float64) float64
	// DomainMap transforms raw model output before it is returned as a forecast.
	DomainMap(out []float64) []float64
}

// MAE is the mean absolute error.
type MAE struct{}

// MSE is the mean squared error.
type MSE struct{}

// RMSE is the root mean squared error.
type RMSE struct{}

// MAPE is the mean absolute percentage error. Points with y == 0 are skipped.
type MAPE struct{}

// SMAPE is the symmetric mean absolute percentage error, bounded by 2.
type SMAPE struct{}

// NonNegative wraps a loss and clamps forecasts at zero.
type NonNegative struct {
	Loss Loss
}

func (MAE) Name() string   { return "mae" }
func (MSE) Name() string   { return "mse" }
func (RMSE) Name() string  { return "rmse" }
func (MAPE) Name() string  { return "mape" }
func (SMAPE) Name() string { return "smape" }

func (n NonNegative) Name() string { return "nonneg_" + n.inner().Name() }

func (MAE) Compute(y, yhat, mask []float64) float64 {
	return weightedMean(y, yhat, mask, func(a, b float64) (float64, bool) {
		return math.Abs(a - b), true
	})
}

func (MSE) Compute(y, yhat, mask []float64) float64 {
	return weightedMean(y, yhat, mask, func(a, b float64) (float64, bool) {
		return (a - b) * (a - b), true
	})
}

func (RMSE) Compute(y, yhat, mask []float64) float64 {
	return math.Sqrt(MSE{}.Compute(y, yhat, mask))
}

func (MAPE) Compute(y, yhat, mask []float64) float64 {
	return weightedMean(y, yhat, mask, func(a, b float64) (float64, bool) {
		if a == 0 {
			return 0, false
		}
		return math.Abs((a - b) / a), true
	})
}

func (SMAPE) Compute(y, yhat, mask []float64) float64 {
	return weightedMean(y, yhat, mask, func(a, b float64) (float64, bool) {
		den := math.Abs(a) + math.Abs(b)
		if den == 0 {
			return 0, true
		}
		return 2 * math.Abs(a-b) / den, true
	})
}

func (n NonNegative) Compute(y, yhat, mask []float64) float64 {
	return n.inner().Compute(y, yhat, mask)
}

func (MAE) DomainMap(out []float64) []float64   { return out }
func (MSE) DomainMap(out []float64) []float64   { return out }
func (RMSE) DomainMap(out []float64) []float64  { return out }
func (MAPE) DomainMap(out []float64) []float64  { return out }
func (SMAPE) DomainMap(out []float64) []float64 { return out }

func (n NonNegative) DomainMap(out []float64) []float64 {
	out = n.inner().DomainMap(out)
	for i, v := range out {
		if v < 0 {
			out[i] = 0
		}
	}
	return out
}

func (n NonNegative) inner() Loss {
	if n.Loss == nil {
		return MAE{}
	}
	return n.Loss
}

// ByName returns the loss registered under name, case-insensitively.
// The "nonneg_" prefix wraps the named loss in NonNegative.
func ByName(name string) (Loss, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, "nonneg_") {
		inner, err := ByName(strings.TrimPrefix(name, "nonneg_"))
		if err != nil {
			return nil, err
		}
		return NonNegative{Loss: inner}, nil
	}
	switch name {
	case "mae":
		return MAE{}, nil
	case "mse":
		return MSE{}, nil
	case "rmse":
		return RMSE{}, nil
	case "mape":
		return MAPE{}, nil
	case "smape":
		return SMAPE{}, nil
	}
	return nil, errors.Errorf("loss: unknown loss %q", name)
}

// weightedMean averages point errors weighted by mask.
func weightedMean(y, yhat, mask []float64, point func(a, b float64) (float64, bool)) float64 {
	n := len(y)
	if len(yhat) < n {
		n = len(yhat)
	}
	var values, weights []float64
	for i := 0; i < n; i++ {
		w := 1.0
		if mask != nil {
			w = mask[i]
		}
		if w == 0 {
			continue
		}
		v, ok := point(y[i], yhat[i])
		if !ok {
			continue
		}
		values = append(values, v*w)
		weights = append(weights, w)
	}
	total, err := stats.Sum(weights)
	if err != nil || total == 0 {
		return math.NaN()
	}
	sum, _ := stats.Sum(values)
	return sum / total
}
