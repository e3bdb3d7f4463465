package model

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/sartorproj/goforecast/panel"
)

// Rule is a single-series forecaster.
type Rule interface {
	// Fit estimates the rule from a gap-free history.
	Fit(y []float64) error
	// ForecastFrom forecasts h steps continuing history with the fitted
	// parameters.
	ForecastFrom(history []float64, h int) ([]float64, error)
	// MinLength is the shortest history Fit accepts.
	MinLength() int
}

// RuleFactory creates an unfitted rule.
type RuleFactory func() (Rule, error)

// Univariate fits one Rule per entity of a panel.
//
// Missing observations (available_mask = 0 or NaN) are forward filled before
// they reach a rule; losses weight every point by available_mask *
// sample_mask.
type Univariate struct {
	name     string
	cfg      Config
	newRule  RuleFactory
	testSize int
	rules    map[string]Rule
	fitted   bool
}

// NewUnivariate creates a panel model named name that fits rules built by
// newRule.
func NewUnivariate(name string, cfg Config, newRule RuleFactory) (*Univariate, error) {
	if cfg.H < 1 {
		return nil, errors.Errorf("%s: horizon must be at least 1, got %d", name, cfg.H)
	}
	if cfg.StepSize < 1 {
		return nil, errors.Errorf("%s: step size must be at least 1, got %d", name, cfg.StepSize)
	}
	if newRule == nil {
		return nil, errors.Errorf("%s: nil rule factory", name)
	}
	return &Univariate{name: name, cfg: cfg, newRule: newRule}, nil
}

// Name returns the model name.
func (u *Univariate) Name() string { return u.name }

// Config returns the model configuration.
func (u *Univariate) Config() Config { return u.cfg }

// Rule returns the rule fitted for entity id.
func (u *Univariate) Rule(id string) (Rule, bool) {
	r, ok := u.rules[id]
	return r, ok
}

// Fit fits a rule per entity and reports the validation loss, computed with
// rolling origins StepSize apart over the validation region, to the
// configured callbacks.
func (u *Univariate) Fit(ctx context.Context, ds *panel.Dataset, valSize, testSize int) error {
	if valSize < 0 || testSize < 0 {
		return errors.Errorf("%s: negative validation or test size (%d, %d)", u.name, valSize, testSize)
	}
	w, err := ds.FilteredTensor(u.cfg.H, u.cfg.WindowSamplingLimit, nil)
	if err != nil {
		return err
	}

	domain := u.cfg.trainLoss()
	rules := make(map[string]Rule, len(w.Entities))
	var ys, yhats, weights []float64

	for i, e := range w.Entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := ds.Entity(e)
		s := observe(ds, w, i)

		rule, err := u.newRule()
		if err != nil {
			return errors.Wrap(err, u.name)
		}
		trainEnd := len(s.y) - valSize - testSize
		if trainEnd < rule.MinLength() || trainEnd < 1 {
			return errors.Errorf("%s: series %q has %d training points, need %d",
				u.name, id, trainEnd, rule.MinLength())
		}
		if err := rule.Fit(s.filled[:trainEnd]); err != nil {
			return errors.Wrapf(err, "%s: fitting series %q", u.name, id)
		}

		for origin := trainEnd; origin < trainEnd+valSize; origin += u.cfg.StepSize {
			h := u.cfg.H
			if origin+h > trainEnd+valSize {
				h = trainEnd + valSize - origin
			}
			f, err := rule.ForecastFrom(s.filled[:origin], h)
			if err != nil {
				return errors.Wrapf(err, "%s: validating series %q", u.name, id)
			}
			ys = append(ys, s.y[origin:origin+h]...)
			yhats = append(yhats, domain.DomainMap(f)...)
			weights = append(weights, s.weight[origin:origin+h]...)
		}
		rules[id] = rule
	}

	if valSize > 0 {
		l := u.cfg.validLoss().Compute(ys, yhats, weights)
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return errors.Wrapf(ErrDiverged, "%s: validation loss is %v", u.name, l)
		}
		for _, cb := range u.cfg.Callbacks {
			cb.OnValidationEnd(ValidationReport{Step: 1, Loss: l})
		}
	}

	u.rules = rules
	u.testSize = testSize
	u.fitted = true
	return nil
}

// Predict forecasts every entity of ds with the rule fitted for its id.
func (u *Univariate) Predict(ctx context.Context, ds *panel.Dataset, stepSize int) (*Forecast, error) {
	if !u.fitted {
		return nil, errors.Wrap(ErrNotFitted, u.name)
	}
	if stepSize < 1 {
		return nil, errors.Errorf("%s: step size must be at least 1, got %d", u.name, stepSize)
	}
	w, err := ds.FilteredTensor(u.cfg.H, 0, nil)
	if err != nil {
		return nil, err
	}

	h := u.cfg.H
	windows := 1
	if u.testSize > h {
		windows = (u.testSize-h)/stepSize + 1
	}
	fc := newForecast(u.name, ds.Entities(), windows, h)
	domain := u.cfg.trainLoss()

	for i, e := range w.Entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := ds.Entity(e)
		rule, ok := u.rules[id]
		if !ok {
			return nil, errors.Wrapf(panel.ErrLookup, "%s: no fitted rule for series %q", u.name, id)
		}
		s := observe(ds, w, i)
		for k := 0; k < windows; k++ {
			origin := len(s.y) - u.testSize + k*stepSize
			if origin < 1 {
				return nil, errors.Errorf("%s: series %q is shorter than the test size %d", u.name, id, u.testSize)
			}
			f, err := rule.ForecastFrom(s.filled[:origin], h)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: forecasting series %q", u.name, id)
			}
			copy(fc.Series(e, k), domain.DomainMap(f))
			fc.Cutoffs[e*windows+k] = s.times[origin-1]
		}
	}
	return fc, nil
}

// SetTestSize sets the test region used by Predict.
func (u *Univariate) SetTestSize(testSize int) {
	u.testSize = testSize
}

type checkpoint struct {
	Model    string          `json:"model"`
	Config   configRecord    `json:"config"`
	TestSize int             `json:"test_size"`
	Rules    map[string]Rule `json:"rules"`
}

type configRecord struct {
	H                   int     `json:"h"`
	InputSize           int     `json:"input_size"`
	Loss                string  `json:"loss"`
	ValidLoss           string  `json:"valid_loss"`
	StepSize            int     `json:"step_size"`
	WindowSamplingLimit int     `json:"window_sampling_limit"`
	LearningRate        float64 `json:"learning_rate"`
	MaxSteps            int     `json:"max_steps"`
	RandomSeed          int64   `json:"random_seed"`
	P                   int     `json:"p"`
	D                   int     `json:"d"`
	Q                   int     `json:"q"`
	SeasonLength        int     `json:"season_length"`
}

// Save writes the configuration and every fitted rule as JSON.
func (u *Univariate) Save(path string) error {
	if !u.fitted {
		return errors.Wrap(ErrNotFitted, u.name)
	}
	c := u.cfg
	data, err := json.MarshalIndent(checkpoint{
		Model: u.name,
		Config: configRecord{
			H:                   c.H,
			InputSize:           c.InputSize,
			Loss:                c.trainLoss().Name(),
			ValidLoss:           c.validLoss().Name(),
			StepSize:            c.StepSize,
			WindowSamplingLimit: c.WindowSamplingLimit,
			LearningRate:        c.LearningRate,
			MaxSteps:            c.MaxSteps,
			RandomSeed:          c.RandomSeed,
			P:                   c.P,
			D:                   c.D,
			Q:                   c.Q,
			SeasonLength:        c.SeasonLength,
		},
		TestSize: u.testSize,
		Rules:    u.rules,
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// series is one entity's stored observations inside a window.
type series struct {
	y      []float64
	filled []float64
	weight []float64
	times  []time.Time
}

func observe(ds *panel.Dataset, w *panel.Window, i int) series {
	e := w.Entities[i]
	n := ds.Length(e)
	if n > w.Len {
		n = w.Len
	}
	off := w.Len - n

	avail, _ := ds.ChannelIndex(panel.AvailableMaskColumn)
	sample, _ := ds.ChannelIndex(panel.SampleMaskColumn)
	times := ds.Times(e)

	s := series{
		y:      w.Series(i, 0)[off:],
		filled: make([]float64, n),
		weight: make([]float64, n),
		times:  times[len(times)-n:],
	}
	am := w.Series(i, avail)[off:]
	sm := w.Series(i, sample)[off:]

	first := 0.0
	for t, v := range s.y {
		if am[t] != 0 && !math.IsNaN(v) {
			first = v
			break
		}
	}
	// Leading gaps take the first available value.
	last := first
	for t, v := range s.y {
		if am[t] != 0 && !math.IsNaN(v) {
			s.weight[t] = am[t] * sm[t]
			last = v
		}
		s.filled[t] = last
	}
	return s
}
