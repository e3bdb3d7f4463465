package tune

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/panel"
)

// MetricKey is the name under which trials report their validation loss.
const MetricKey = "loss"

// TrialSpec describes one trial.
type TrialSpec struct {
	ID         int
	Params     Params
	NewModel   model.Constructor
	Dataset    *panel.Dataset
	ValSize    int
	TestSize   int
	Allocation Allocation
	// Callbacks receive the model's validation reports too.
	Callbacks []model.Callback
	Logger    *zap.Logger
}

// TrialResult is the outcome of a trial. Loss is NaN when Err is set.
type TrialResult struct {
	ID         int
	Params     Params
	Loss       float64
	Reports    []model.ValidationReport
	Allocation Allocation
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the trial produced a usable loss.
func (r TrialResult) Succeeded() bool {
	return r.Err == nil
}

// Metrics returns the reported metrics keyed by name.
func (r TrialResult) Metrics() map[string]float64 {
	if r.Err != nil {
		return nil
	}
	return map[string]float64{MetricKey: r.Loss}
}

// RunTrial builds a model from spec.Params and fits it. The loss is the
// last validation loss the model reports. A trial fails when construction
// or fitting fails, when it panics, when it reports nothing or when the
// loss is not finite.
func RunTrial(ctx context.Context, spec TrialSpec) (res TrialResult) {
	logger := spec.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	res = TrialResult{
		ID:         spec.ID,
		Params:     spec.Params,
		Loss:       math.NaN(),
		Allocation: spec.Allocation,
	}
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = errors.Errorf("trial %d panicked: %v", spec.ID, r)
		}
		res.Duration = time.Since(started)
		if res.Err != nil {
			res.Loss = math.NaN()
			logger.Info("trial failed", zap.Int("trial", spec.ID), zap.Error(res.Err))
			return
		}
		logger.Info("trial finished",
			zap.Int("trial", spec.ID),
			zap.Float64(MetricKey, res.Loss),
			zap.Duration("duration", res.Duration))
	}()

	cfg, err := model.ConfigFromParams(spec.Params)
	if err != nil {
		res.Err = errors.Wrapf(err, "trial %d", spec.ID)
		return res
	}
	cfg.Callbacks = append(cfg.Callbacks, spec.Callbacks...)
	cfg.Callbacks = append(cfg.Callbacks, model.CallbackFunc(func(r model.ValidationReport) {
		res.Reports = append(res.Reports, r)
	}))

	m, err := spec.NewModel(cfg)
	if err != nil {
		res.Err = errors.Wrapf(err, "trial %d: building model", spec.ID)
		return res
	}

	logger.Debug("trial started",
		zap.Int("trial", spec.ID),
		zap.Stringer("device", spec.Allocation),
		zap.String("params", fmt.Sprint(map[string]any(spec.Params))))
	ctx = WithAllocation(ctx, spec.Allocation)
	if err := m.Fit(ctx, spec.Dataset, spec.ValSize, spec.TestSize); err != nil {
		res.Err = errors.Wrapf(err, "trial %d", spec.ID)
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = errors.Wrapf(err, "trial %d", spec.ID)
		return res
	}

	if len(res.Reports) == 0 {
		res.Err = errors.Errorf("trial %d: model reported no %s", spec.ID, MetricKey)
		return res
	}
	loss := res.Reports[len(res.Reports)-1].Loss
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		res.Err = errors.Wrapf(model.ErrDiverged, "trial %d: %s is %v", spec.ID, MetricKey, loss)
		return res
	}
	res.Loss = loss
	return res
}
