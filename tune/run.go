package tune

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/panel"
)

// ErrNoSuccessfulTrials is matched by the error of a search in which every
// trial failed.
var ErrNoSuccessfulTrials = errors.New("no trial succeeded")

// SearchError reports a search without a successful trial. Err combines
// the errors of every trial.
type SearchError struct {
	Trials int
	Err    error
}

func (e *SearchError) Error() string {
	return "tune: " + ErrNoSuccessfulTrials.Error() + " out of " + humanize.Comma(int64(e.Trials)) + ": " + e.Err.Error()
}

// Is matches ErrNoSuccessfulTrials.
func (e *SearchError) Is(target error) bool { return target == ErrNoSuccessfulTrials }

func (e *SearchError) Unwrap() error { return e.Err }

// EventKind classifies progress events.
type EventKind int

// Progress event kinds.
const (
	TrialStarted EventKind = iota
	TrialCompleted
	TrialFailed
)

func (k EventKind) String() string {
	switch k {
	case TrialStarted:
		return "started"
	case TrialCompleted:
		return "completed"
	case TrialFailed:
		return "failed"
	}
	return "unknown"
}

// Event reports trial progress. Result is set for finished trials.
type Event struct {
	Kind   EventKind
	Trial  int
	Params Params
	Result *TrialResult
}

// RunConfig configures a search.
type RunConfig struct {
	Space       Space
	NewSearcher SearcherFactory // default: NewBasicVariant(1)
	NewModel    model.Constructor
	Dataset     *panel.Dataset
	ValSize     int
	TestSize    int
	NumSamples  int
	Resources   Resources
	// TrialTimeout bounds each trial through its context (0: no limit).
	TrialTimeout time.Duration
	// Callbacks are attached to every trial next to the loss reporter.
	Callbacks []model.Callback
	Logger    *zap.Logger
	// Progress receives events while the search runs; sends block until
	// received or the search context ends.
	Progress chan<- Event
}

// Run searches cfg.Space with up to cfg.NumSamples trials, never running
// more trials at once than cfg.Resources has slots. Results are ordered by
// trial id whatever the completion order. When every trial fails, Run
// returns the results with a *SearchError. When ctx ends, no further trial
// is launched and the results so far are returned with the context error.
func Run(ctx context.Context, cfg *RunConfig) (*Results, error) {
	if cfg.NewModel == nil || cfg.Dataset == nil {
		return nil, errors.New("tune: model constructor and dataset are required")
	}
	if cfg.NumSamples < 1 {
		return nil, errors.Errorf("tune: number of samples must be at least 1, got %d", cfg.NumSamples)
	}
	if err := cfg.Space.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Resources.Validate(); err != nil {
		return nil, err
	}
	newSearcher := cfg.NewSearcher
	if newSearcher == nil {
		newSearcher = NewBasicVariant(1)
	}
	searcher, err := newSearcher(cfg.Space)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("search started",
		zap.Int("samples", cfg.NumSamples),
		zap.Int("slots", cfg.Resources.Slots()),
		zap.Strings("parameters", cfg.Space.Keys()))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []TrialResult
		units   = newPool(cfg.Resources)
	)
	emit := func(ev Event) {
		if cfg.Progress == nil {
			return
		}
		select {
		case cfg.Progress <- ev:
		case <-ctx.Done():
		}
	}

	for id := 0; id < cfg.NumSamples; id++ {
		unit, err := units.acquire(ctx)
		if err != nil {
			break
		}
		mu.Lock()
		params, ok := searcher.Suggest(id)
		mu.Unlock()
		if !ok {
			units.release(unit)
			break
		}

		emit(Event{Kind: TrialStarted, Trial: id, Params: params})
		wg.Add(1)
		go func(id int, params Params, unit Allocation) {
			defer wg.Done()
			defer units.release(unit)

			tctx, cancel := ctx, context.CancelFunc(func() {})
			if cfg.TrialTimeout > 0 {
				tctx, cancel = context.WithTimeout(ctx, cfg.TrialTimeout)
			}
			res := RunTrial(tctx, TrialSpec{
				ID:         id,
				Params:     params,
				NewModel:   cfg.NewModel,
				Dataset:    cfg.Dataset,
				ValSize:    cfg.ValSize,
				TestSize:   cfg.TestSize,
				Allocation: unit,
				Callbacks:  cfg.Callbacks,
				Logger:     logger,
			})
			cancel()

			mu.Lock()
			searcher.Observe(id, res.Loss, res.Err)
			results = append(results, res)
			mu.Unlock()

			kind := TrialCompleted
			if res.Err != nil {
				kind = TrialFailed
			}
			emit(Event{Kind: kind, Trial: id, Params: params, Result: &res})
		}(id, params, unit)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	out := &Results{Trials: results}
	if err := ctx.Err(); err != nil {
		logger.Warn("search interrupted", zap.Int("trials", len(results)), zap.Error(err))
		return out, errors.Wrap(err, "tune: search interrupted")
	}

	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = multierr.Append(errs, r.Err)
		}
	}
	best, ok := out.Best()
	if !ok {
		return out, &SearchError{Trials: len(results), Err: errs}
	}
	logger.Info("search finished",
		zap.Int("trials", len(results)),
		zap.Int("failed", len(multierr.Errors(errs))),
		zap.Int("best_trial", best.ID),
		zap.Float64(MetricKey, best.Loss))
	return out, nil
}
