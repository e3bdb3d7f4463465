package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointLosses(t *testing.T) {
	y := []float64{1, 2, 4}
	yhat := []float64{2, 2, 2}

	assert.InDelta(t, 1.0, MAE{}.Compute(y, yhat, nil), 1e-12)
	assert.InDelta(t, 5.0/3, MSE{}.Compute(y, yhat, nil), 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3), RMSE{}.Compute(y, yhat, nil), 1e-12)
	assert.InDelta(t, (1+0+0.5)/3, MAPE{}.Compute(y, yhat, nil), 1e-12)
	assert.InDelta(t, (2.0/3+0+4.0/6)/3, SMAPE{}.Compute(y, yhat, nil), 1e-12)
}

func TestMaskWeighting(t *testing.T) {
	y := []float64{1, 2, 4}
	yhat := []float64{2, 2, 2}

	assert.InDelta(t, 2.0, MAE{}.Compute(y, yhat, []float64{0, 0, 1}), 1e-12)
	assert.InDelta(t, 1.5, MAE{}.Compute(y, yhat, []float64{1, 0, 1}), 1e-12)
	assert.True(t, math.IsNaN(MAE{}.Compute(y, yhat, []float64{0, 0, 0})))
	assert.True(t, math.IsNaN(MAPE{}.Compute([]float64{0}, []float64{1}, nil)))
}

func TestNonNegative(t *testing.T) {
	l := NonNegative{Loss: MSE{}}
	assert.Equal(t, "nonneg_mse", l.Name())
	assert.Equal(t, []float64{0, 1.5, 0}, l.DomainMap([]float64{-1, 1.5, -0.1}))
	assert.InDelta(t, 1.0, l.Compute([]float64{1}, []float64{2}, nil), 1e-12)

	// Zero value wraps MAE.
	assert.Equal(t, "nonneg_mae", NonNegative{}.Name())
}

func TestByName(t *testing.T) {
	for _, name := range []string{"mae", "MSE", "rmse", "mape", "smape"} {
		l, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, l)
	}

	l, err := ByName("nonneg_rmse")
	require.NoError(t, err)
	assert.Equal(t, NonNegative{Loss: RMSE{}}, l)

	_, err = ByName("huber")
	assert.Error(t, err)
}
