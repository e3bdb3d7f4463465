// Package baseline provides simple benchmark forecasters.
package baseline

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/tune"
)

// SeasonalNaive repeats the last observed season.
type SeasonalNaive struct {
	SeasonLength int `json:"season_length"`
	fitted       bool
}

// MinLength returns the season length.
func (r *SeasonalNaive) MinLength() int { return r.SeasonLength }

// Fit only checks that y covers a full season.
func (r *SeasonalNaive) Fit(y []float64) error {
	if len(y) < r.SeasonLength {
		return errors.Errorf("seasonal naive: %d points do not cover a season of %d", len(y), r.SeasonLength)
	}
	r.fitted = true
	return nil
}

// ForecastFrom repeats the last SeasonLength values of history.
func (r *SeasonalNaive) ForecastFrom(history []float64, h int) ([]float64, error) {
	if !r.fitted {
		return nil, errors.Wrap(model.ErrNotFitted, "seasonal naive")
	}
	if len(history) < r.SeasonLength {
		return nil, errors.Errorf("seasonal naive: history of %d points is shorter than a season", len(history))
	}
	season := history[len(history)-r.SeasonLength:]
	out := make([]float64, h)
	for i := range out {
		out[i] = season[i%r.SeasonLength]
	}
	return out, nil
}

// WindowAverage forecasts the mean of the last Window values.
type WindowAverage struct {
	Window int `json:"window"`
	fitted bool
}

// MinLength returns the window size.
func (r *WindowAverage) MinLength() int { return r.Window }

// Fit only checks that y covers the window.
func (r *WindowAverage) Fit(y []float64) error {
	if len(y) < r.Window {
		return errors.Errorf("window average: %d points do not cover a window of %d", len(y), r.Window)
	}
	r.fitted = true
	return nil
}

// ForecastFrom returns h copies of the mean of the last Window values.
func (r *WindowAverage) ForecastFrom(history []float64, h int) ([]float64, error) {
	if !r.fitted {
		return nil, errors.Wrap(model.ErrNotFitted, "window average")
	}
	if len(history) < r.Window {
		return nil, errors.Errorf("window average: history of %d points is shorter than the window", len(history))
	}
	avg := stat.Mean(history[len(history)-r.Window:], nil)
	out := make([]float64, h)
	for i := range out {
		out[i] = avg
	}
	return out, nil
}

// NewSeasonalNaive returns a panel seasonal naive model using
// cfg.SeasonLength. A season length of one gives the naive forecast.
func NewSeasonalNaive(cfg model.Config) (model.Model, error) {
	if cfg.SeasonLength < 1 {
		return nil, errors.Errorf("seasonal naive: season length must be at least 1, got %d", cfg.SeasonLength)
	}
	return model.NewUnivariate("seasonal_naive", cfg, func() (model.Rule, error) {
		return &SeasonalNaive{SeasonLength: cfg.SeasonLength}, nil
	})
}

// NewWindowAverage returns a panel window average model averaging the last
// cfg.InputSize values.
func NewWindowAverage(cfg model.Config) (model.Model, error) {
	if cfg.InputSize < 1 {
		return nil, errors.Errorf("window average: input size must be at least 1, got %d", cfg.InputSize)
	}
	return model.NewUnivariate("window_average", cfg, func() (model.Rule, error) {
		return &WindowAverage{Window: cfg.InputSize}, nil
	})
}

// SeasonalNaiveSpace returns the search space of NewSeasonalNaive.
func SeasonalNaiveSpace() tune.Space {
	return tune.Space{
		model.ParamSeasonLength: tune.GridSearch(1, 7, 12),
		model.ParamLoss:         "mae",
	}
}

// WindowAverageSpace returns the search space of NewWindowAverage.
func WindowAverageSpace() tune.Space {
	return tune.Space{
		model.ParamInputSize: tune.RandInt(1, 30),
		model.ParamLoss:      "mae",
	}
}
