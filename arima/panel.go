package arima

import (
	"github.com/pkg/errors"

	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/tune"
)

// NewModel returns a panel model that fits an ARIMA(cfg.P, cfg.D, cfg.Q)
// per series. cfg.LearningRate and cfg.MaxSteps drive the estimator.
func NewModel(cfg model.Config) (model.Model, error) {
	if cfg.P < 0 || cfg.D < 0 || cfg.Q < 0 {
		return nil, errors.Errorf("arima: negative order (%d,%d,%d)", cfg.P, cfg.D, cfg.Q)
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.Errorf("arima: learning rate must be positive, got %v", cfg.LearningRate)
	}
	return model.NewUnivariate("arima", cfg, func() (model.Rule, error) {
		m := New(cfg.P, cfg.D, cfg.Q)
		m.LearningRate = cfg.LearningRate
		if cfg.MaxSteps > 0 {
			m.MaxIter = cfg.MaxSteps
		}
		return m, nil
	})
}

// DefaultSpace returns the default search space for ARIMA models. Every
// dimension is read by NewModel.
func DefaultSpace() tune.Space {
	return tune.Space{
		model.ParamP:            tune.Choice(0, 1, 2),
		model.ParamD:            tune.Choice(0, 1),
		model.ParamQ:            tune.Choice(0, 1, 2),
		model.ParamLearningRate: tune.LogUniform(1e-3, 1e-1),
		model.ParamMaxSteps:     tune.Choice(50, 100, 200),
		model.ParamLoss:         "mae",
		model.ParamValidLoss:    "mae",
		model.ParamStepSize:     1,
	}
}
