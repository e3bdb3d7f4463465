package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ar1(n int, phi float64) []float64 {
	values := make([]float64, n)
	for i := 1; i < n; i++ {
		values[i] = phi*values[i-1] + (float64(i%10)-5)/10
	}
	return values
}

func TestACF(t *testing.T) {
	acf := ACF(ar1(100, 0.8), 10)
	require.Len(t, acf, 11)
	assert.InDelta(t, 1, acf[0], 1e-10)
	assert.Greater(t, acf[1], 0.0)

	assert.Nil(t, ACF([]float64{3, 3, 3, 3}, 2), "constant series")
	assert.Len(t, ACF([]float64{1, 2, 3}, 10), 3, "maxLag is clamped to n-1")
}

func TestPACF(t *testing.T) {
	values := ar1(200, 0.7)
	pacf := PACF(values, 5)
	require.NotNil(t, pacf)
	assert.Equal(t, 1.0, pacf[0])

	acf := ACF(values, 1)
	assert.InDelta(t, acf[1], pacf[1], 1e-12)
	assert.Nil(t, PACF([]float64{1}, 3))
}

func TestYuleWalker(t *testing.T) {
	assert.Equal(t, []float64{0.5}, YuleWalker([]float64{1, 0.5}, 1))

	// AR(2) with phi = (0.5, 0.2): rho1 = phi1/(1-phi2), rho2 = phi1*rho1 + phi2.
	rho1 := 0.5 / 0.8
	rho2 := 0.5*rho1 + 0.2
	assert.InDeltaSlice(t, []float64{0.5, 0.2}, YuleWalker([]float64{1, rho1, rho2}, 2), 1e-9)

	assert.Nil(t, YuleWalker([]float64{1}, 1), "too few autocorrelations")
}

func TestDiffIntegrate(t *testing.T) {
	y := []float64{1, 4, 9, 16, 25}
	levels := DiffN(y, 2)
	require.Len(t, levels, 3)
	assert.Equal(t, []float64{2, 2, 2}, levels[2])

	// Continuing the constant second difference reproduces the squares.
	assert.InDeltaSlice(t, []float64{36, 49}, Integrate([]float64{2, 2}, levels), 1e-12)

	assert.Equal(t, []float64{2, 3}, SeasonalDiff([]float64{1, 2, 3, 5}, 2))
	assert.Nil(t, SeasonalDiff([]float64{1}, 1), "series shorter than the lag")
}

func TestLjungBox(t *testing.T) {
	noise := make([]float64, 100)
	for i := range noise {
		noise[i] = math.Sin(float64(i)*12.9898) * 43758.5453
		noise[i] -= math.Floor(noise[i])
	}
	lb := LjungBox(noise, 10, 0)
	require.NotNil(t, lb)
	assert.True(t, lb.PValue >= 0 && lb.PValue <= 1, "p-value %f", lb.PValue)
	assert.Equal(t, 10, lb.DOF)

	correlated := LjungBox(ar1(100, 0.9), 10, 0)
	require.NotNil(t, correlated)
	assert.Less(t, correlated.PValue, 0.05)

	assert.Nil(t, LjungBox(noise[:5], 3, 0), "fewer than ten residuals")
	t.Logf("Ljung-Box: Q=%.3f p=%.4f", lb.Statistic, lb.PValue)
}
