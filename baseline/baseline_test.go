package baseline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/panel"
)

func TestSeasonalNaive(t *testing.T) {
	r := &SeasonalNaive{SeasonLength: 3}
	_, err := r.ForecastFrom([]float64{1, 2, 3}, 2)
	assert.ErrorIs(t, err, model.ErrNotFitted)

	require.Error(t, r.Fit([]float64{1, 2}))
	require.NoError(t, r.Fit([]float64{1, 2, 3, 4}))

	got, err := r.ForecastFrom([]float64{9, 1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 1, 2}, got)

	_, err = r.ForecastFrom([]float64{1}, 1)
	assert.Error(t, err)
}

func TestWindowAverage(t *testing.T) {
	r := &WindowAverage{Window: 2}
	require.NoError(t, r.Fit([]float64{1, 2}))

	got, err := r.ForecastFrom([]float64{10, 1, 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2}, got)
}

func TestSeasonalNaiveRecoversSeasonality(t *testing.T) {
	ds, err := panel.New(panel.Generate(panel.GenerateOptions{
		NSeries: 2, MinLength: 70, SeasonLength: 7,
	}), nil)
	require.NoError(t, err)

	cfg := model.DefaultConfig()
	cfg.H = 7
	cfg.SeasonLength = 7
	var losses []float64
	cfg.Callbacks = []model.Callback{model.CallbackFunc(func(r model.ValidationReport) {
		losses = append(losses, r.Loss)
	})}

	m, err := NewSeasonalNaive(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Fit(context.Background(), ds, 14, 0))
	require.Len(t, losses, 1)
	// A noiseless seasonal series is forecast exactly.
	assert.InDelta(t, 0, losses[0], 1e-9)
}

func TestConstructorsRejectBadConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.SeasonLength = 0
	_, err := NewSeasonalNaive(cfg)
	assert.Error(t, err)

	cfg = model.DefaultConfig()
	cfg.InputSize = 0
	_, err = NewWindowAverage(cfg)
	assert.Error(t, err)
}

func TestSpacesOnlyCarryFieldsTheModelReads(t *testing.T) {
	sn := SeasonalNaiveSpace()
	require.NoError(t, sn.Validate())
	assert.Contains(t, sn, model.ParamSeasonLength)
	assert.NotContains(t, sn, model.ParamInputSize)

	wa := WindowAverageSpace()
	require.NoError(t, wa.Validate())
	assert.Contains(t, wa, model.ParamInputSize)
	assert.NotContains(t, wa, model.ParamSeasonLength)
}
