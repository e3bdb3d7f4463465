// Package auto selects model hyperparameters by search and refits the
// winner.
package auto

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sartorproj/goforecast/arima"
	"github.com/sartorproj/goforecast/baseline"
	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/panel"
	"github.com/sartorproj/goforecast/tune"
)

// ErrNotFitted is returned by operations that need a fitted AutoModel.
var ErrNotFitted = model.ErrNotFitted

// Config holds configuration for an automatic model.
type Config struct {
	H            int                  // Forecast horizon, injected into every trial
	Space        tune.Space           // Search space (H is added as a constant)
	NewSearcher  tune.SearcherFactory // Search algorithm (default: basic variant, seed 1)
	NumSamples   int                  // Trials to run (default: 10)
	Resources    tune.Resources       // Compute budget (default: DetectResources)
	RefitWithVal bool                 // Refit the winner on the validation region too
	TrialTimeout time.Duration        // Per-trial limit (0: none)
	// Callbacks receive the validation reports of every trial and of the
	// refit. Trials run concurrently, so they must be safe for concurrent use.
	Callbacks []model.Callback
	Logger    *zap.Logger
	Progress  chan<- tune.Event
}

// DefaultConfig returns the default automatic model configuration.
func DefaultConfig() *Config {
	return &Config{
		NewSearcher: tune.NewBasicVariant(1),
		NumSamples:  10,
		Resources:   tune.DetectResources(),
	}
}

// AutoModel searches hyperparameters for a model constructor and delegates
// to the best configuration once fitted.
type AutoModel struct {
	newModel model.Constructor
	cfg      Config
	space    tune.Space
	results  *tune.Results
	best     tune.TrialResult
	model    model.Model
}

// New creates an automatic model. cfg.H and cfg.Space are required.
func New(newModel model.Constructor, cfg *Config) (*AutoModel, error) {
	if newModel == nil {
		return nil, errors.New("auto: nil model constructor")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.H < 1 {
		return nil, errors.Errorf("auto: horizon must be at least 1, got %d", cfg.H)
	}
	if len(cfg.Space) == 0 {
		return nil, errors.New("auto: empty search space")
	}
	if cfg.NumSamples < 1 {
		return nil, errors.Errorf("auto: number of samples must be at least 1, got %d", cfg.NumSamples)
	}

	space := cfg.Space.Copy()
	space[model.ParamH] = cfg.H
	return &AutoModel{newModel: newModel, cfg: *cfg, space: space}, nil
}

// NewARIMA returns an automatic ARIMA over arima.DefaultSpace unless cfg
// carries a space.
func NewARIMA(h int, cfg *Config) (*AutoModel, error) {
	return newWithSpace(arima.NewModel, arima.DefaultSpace(), h, cfg)
}

// NewSeasonalNaive returns an automatic seasonal naive model over
// baseline.SeasonalNaiveSpace unless cfg carries a space.
func NewSeasonalNaive(h int, cfg *Config) (*AutoModel, error) {
	return newWithSpace(baseline.NewSeasonalNaive, baseline.SeasonalNaiveSpace(), h, cfg)
}

// NewWindowAverage returns an automatic window average model over
// baseline.WindowAverageSpace unless cfg carries a space.
func NewWindowAverage(h int, cfg *Config) (*AutoModel, error) {
	return newWithSpace(baseline.NewWindowAverage, baseline.WindowAverageSpace(), h, cfg)
}

func newWithSpace(newModel model.Constructor, space tune.Space, h int, cfg *Config) (*AutoModel, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.H = h
	if c.Space == nil {
		c.Space = space
	}
	return New(newModel, &c)
}

// Space returns the search space with the horizon injected.
func (a *AutoModel) Space() tune.Space { return a.space.Copy() }

// Fit searches the space, then fits a fresh model built from the best
// parameters. A non-positive valSize defaults to the horizon. The refit
// uses no validation region when RefitWithVal is set and valSize otherwise.
// After a failed Fit the AutoModel is unfitted again; Results still
// describes the failed search.
func (a *AutoModel) Fit(ctx context.Context, ds *panel.Dataset, valSize, testSize int) error {
	a.model = nil
	a.best = tune.TrialResult{}
	if valSize <= 0 {
		valSize = a.cfg.H
	}
	logger := a.cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	results, err := tune.Run(ctx, &tune.RunConfig{
		Space:        a.space,
		NewSearcher:  a.cfg.NewSearcher,
		NewModel:     a.newModel,
		Dataset:      ds,
		ValSize:      valSize,
		TestSize:     testSize,
		NumSamples:   a.cfg.NumSamples,
		Resources:    a.cfg.Resources,
		TrialTimeout: a.cfg.TrialTimeout,
		Callbacks:    a.cfg.Callbacks,
		Logger:       logger,
		Progress:     a.cfg.Progress,
	})
	a.results = results
	if err != nil {
		return errors.Wrap(err, "auto: search failed")
	}
	best, _ := results.Best()

	cfg, err := model.ConfigFromParams(best.Params)
	if err != nil {
		return errors.Wrap(err, "auto: best parameters")
	}
	cfg.Callbacks = append(cfg.Callbacks, a.cfg.Callbacks...)
	m, err := a.newModel(cfg)
	if err != nil {
		return errors.Wrap(err, "auto: building best model")
	}

	var refitVal int
	if a.cfg.RefitWithVal {
		refitVal = 0
	} else {
		refitVal = valSize
	}
	logger.Info("refitting best configuration",
		zap.Int("trial", best.ID),
		zap.Float64(tune.MetricKey, best.Loss),
		zap.Int("val_size", refitVal))
	if err := m.Fit(ctx, ds, refitVal, testSize); err != nil {
		return errors.Wrap(err, "auto: refitting best model")
	}

	a.best = best
	a.model = m
	return nil
}

// Predict forecasts with the fitted model.
func (a *AutoModel) Predict(ctx context.Context, ds *panel.Dataset, stepSize int) (*model.Forecast, error) {
	if a.model == nil {
		return nil, errors.Wrap(ErrNotFitted, "auto")
	}
	return a.model.Predict(ctx, ds, stepSize)
}

// SetTestSize sets the test region of the fitted model.
func (a *AutoModel) SetTestSize(testSize int) error {
	if a.model == nil {
		return errors.Wrap(ErrNotFitted, "auto")
	}
	a.model.SetTestSize(testSize)
	return nil
}

// Save writes a checkpoint of the fitted model.
func (a *AutoModel) Save(path string) error {
	if a.model == nil {
		return errors.Wrap(ErrNotFitted, "auto")
	}
	return a.model.Save(path)
}

// Model returns the fitted model, or nil before Fit.
func (a *AutoModel) Model() model.Model { return a.model }

// Results returns every trial of the last search, or nil before Fit.
func (a *AutoModel) Results() *tune.Results { return a.results }

// BestParams returns the parameters of the winning trial.
func (a *AutoModel) BestParams() (tune.Params, bool) {
	if a.model == nil {
		return nil, false
	}
	return a.best.Params.Copy(), true
}
