package model

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/sartorproj/goforecast/loss"
)

// Parameter names accepted by ConfigFromParams.
const (
	ParamH                   = "h"
	ParamInputSize           = "input_size"
	ParamLoss                = "loss"
	ParamValidLoss           = "valid_loss"
	ParamStepSize            = "step_size"
	ParamWindowSamplingLimit = "window_sampling_limit"
	ParamLearningRate        = "learning_rate"
	ParamMaxSteps            = "max_steps"
	ParamRandomSeed          = "random_seed"
	ParamP                   = "p"
	ParamD                   = "d"
	ParamQ                   = "q"
	ParamSeasonLength        = "season_length"
)

// Config holds the hyperparameters shared by every model in this module.
// Fields a model does not use are ignored by it.
type Config struct {
	H                   int       // Forecast horizon
	InputSize           int       // Lookback length for window-based rules
	Loss                loss.Loss // Training loss, also maps outputs into the forecast domain
	ValidLoss           loss.Loss // Validation loss (default: Loss)
	StepSize            int       // Stride between validation origins
	WindowSamplingLimit int       // Most recent timestamps used for training (<= 0: all)
	LearningRate        float64
	MaxSteps            int
	RandomSeed          int64
	P, D, Q             int // ARIMA order
	SeasonLength        int
	Callbacks           []Callback
}

// DefaultConfig returns a configuration with the module defaults.
func DefaultConfig() Config {
	return Config{
		H:                   1,
		InputSize:           1,
		Loss:                loss.MAE{},
		StepSize:            1,
		WindowSamplingLimit: 1024,
		LearningRate:        0.01,
		MaxSteps:            100,
		RandomSeed:          1,
		SeasonLength:        1,
	}
}

// validLoss returns the loss used for validation.
func (c Config) validLoss() loss.Loss {
	if c.ValidLoss != nil {
		return c.ValidLoss
	}
	if c.Loss != nil {
		return c.Loss
	}
	return loss.MAE{}
}

func (c Config) trainLoss() loss.Loss {
	if c.Loss != nil {
		return c.Loss
	}
	return loss.MAE{}
}

// ConfigFromParams builds a Config from DefaultConfig and a parameter set
// drawn by a search. Numeric values may be any Go integer or float type;
// integer fields reject fractional values. Losses may be given by name.
// Unknown keys are rejected with ErrUnknownParam.
func ConfigFromParams(params map[string]any) (Config, error) {
	cfg := DefaultConfig()
	var unknown []string

	for key, value := range params {
		var err error
		switch key {
		case ParamH:
			cfg.H, err = toInt(value)
		case ParamInputSize:
			cfg.InputSize, err = toInt(value)
		case ParamStepSize:
			cfg.StepSize, err = toInt(value)
		case ParamWindowSamplingLimit:
			cfg.WindowSamplingLimit, err = toInt(value)
		case ParamMaxSteps:
			cfg.MaxSteps, err = toInt(value)
		case ParamP:
			cfg.P, err = toInt(value)
		case ParamD:
			cfg.D, err = toInt(value)
		case ParamQ:
			cfg.Q, err = toInt(value)
		case ParamSeasonLength:
			cfg.SeasonLength, err = toInt(value)
		case ParamRandomSeed:
			var seed int
			seed, err = toInt(value)
			cfg.RandomSeed = int64(seed)
		case ParamLearningRate:
			cfg.LearningRate, err = toFloat(value)
		case ParamLoss:
			cfg.Loss, err = toLoss(value)
		case ParamValidLoss:
			cfg.ValidLoss, err = toLoss(value)
		default:
			unknown = append(unknown, key)
			continue
		}
		if err != nil {
			return Config{}, errors.Wrapf(err, "parameter %q", key)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, errors.Wrapf(ErrUnknownParam, "%s", strings.Join(unknown, ", "))
	}
	return cfg, nil
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float32:
		return toInt(float64(x))
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, errors.Errorf("%v is not an integer", x)
		}
		return int(x), nil
	}
	return 0, errors.Errorf("cannot use %T as an integer", v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	i, err := toInt(v)
	if err != nil {
		return 0, errors.Errorf("cannot use %T as a number", v)
	}
	return float64(i), nil
}

func toLoss(v any) (loss.Loss, error) {
	switch x := v.(type) {
	case loss.Loss:
		return x, nil
	case string:
		return loss.ByName(x)
	}
	return nil, errors.Errorf("cannot use %T as a loss", v)
}
