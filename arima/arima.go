package arima

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/stats"
)

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int `json:"p"` // AR order
	D int `json:"d"` // Differencing order
	Q int `json:"q"` // MA order
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// Model is an ARIMA(p, d, q) model estimated by conditional sum of squares.
type Model struct {
	Order     Order     `json:"order"`
	ARCoeffs  []float64 `json:"ar"`
	MACoeffs  []float64 `json:"ma"`
	Intercept float64   `json:"intercept"`
	Variance  float64   `json:"variance"`
	AIC       float64   `json:"-"`
	AICc      float64   `json:"-"`
	BIC       float64   `json:"-"`
	LogLik    float64   `json:"-"`

	// LearningRate and MaxIter control the CSS gradient descent.
	LearningRate float64 `json:"-"`
	MaxIter      int     `json:"-"`

	fitted     bool
	nObs       int
	residuals  []float64
	fittedVals []float64
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return &Model{
		Order:        Order{P: p, D: d, Q: q},
		ARCoeffs:     make([]float64, p),
		MACoeffs:     make([]float64, q),
		LearningRate: 0.01,
		MaxIter:      100,
	}
}

// MinLength returns the shortest series Fit accepts.
func (m *Model) MinLength() int {
	return m.Order.P + m.Order.Q + m.Order.D + 10
}

// Fit estimates the model from y.
func (m *Model) Fit(y []float64) error {
	if len(y) < m.MinLength() {
		return errors.Errorf("%v: insufficient data points: %d < %d", m.Order, len(y), m.MinLength())
	}
	levels := stats.DiffN(y, m.Order.D)
	z := levels[m.Order.D]
	if len(z) == 0 {
		return errors.New("differencing resulted in empty series")
	}

	m.fitCSS(z)
	for _, c := range append(append([]float64{m.Intercept}, m.ARCoeffs...), m.MACoeffs...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.Wrapf(model.ErrDiverged, "%v: non-finite coefficient", m.Order)
		}
	}
	m.calculateIC()
	m.nObs = len(y)
	m.fitted = true
	return nil
}

// fitCSS fits the model to the differenced series z.
func (m *Model) fitCSS(z []float64) {
	p, q := m.Order.P, m.Order.Q
	m.Intercept = stat.Mean(z, nil)

	if p > 0 {
		// Yule-Walker starting values.
		if acf := stats.ACF(z, p); acf != nil {
			if phi := stats.YuleWalker(acf, p); phi != nil {
				copy(m.ARCoeffs, phi)
			}
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	if p > 0 || q > 0 {
		m.optimizeCSS(z)
	}

	m.residuals = m.filter(z)
	m.fittedVals = make([]float64, len(z))
	for t := range z {
		m.fittedVals[t] = z[t] - m.residuals[t]
	}

	start := max(p, q)
	sse := 0.0
	count := 0
	for t := start; t < len(z); t++ {
		sse += m.residuals[t] * m.residuals[t]
		count++
	}
	switch {
	case count > p+q+1:
		m.Variance = sse / float64(count-p-q-1)
	case count > 0:
		m.Variance = sse / float64(count)
	}
}

// optimizeCSS runs gradient descent on the conditional sum of squares.
func (m *Model) optimizeCSS(z []float64) {
	n := len(z)
	p, q := m.Order.P, m.Order.Q
	start := max(p, q)
	const tolerance = 1e-6

	prevSSE := math.Inf(1)
	for iter := 0; iter < m.MaxIter; iter++ {
		residuals := m.filter(z)

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)
		sse := 0.0
		for t := start; t < n; t++ {
			sse += residuals[t] * residuals[t]
			for i := 0; i < p; i++ {
				arGrad[i] -= 2 * residuals[t] * (z[t-i-1] - m.Intercept)
			}
			for i := 0; i < q; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}
		if math.Abs(prevSSE-sse) < tolerance {
			break
		}
		prevSSE = sse

		// Coefficients stay inside (-1, 1) for stationarity and invertibility.
		for i := range arGrad {
			m.ARCoeffs[i] = clamp(m.ARCoeffs[i] - m.LearningRate*arGrad[i]/float64(n))
		}
		for i := range maGrad {
			m.MACoeffs[i] = clamp(m.MACoeffs[i] - m.LearningRate*maGrad[i]/float64(n))
		}
	}
}

// filter returns the one-step residuals of z under the current coefficients.
// Residuals before max(p, q) are taken against the intercept.
func (m *Model) filter(z []float64) []float64 {
	residuals := make([]float64, len(z))
	start := max(m.Order.P, m.Order.Q)
	for t := range z {
		if t < start {
			residuals[t] = z[t] - m.Intercept
			continue
		}
		residuals[t] = z[t] - m.predictAt(z, residuals, t)
	}
	return residuals
}

// predictAt is the one-step prediction of z[t] from values and residuals
// before t.
func (m *Model) predictAt(z, residuals []float64, t int) float64 {
	pred := m.Intercept
	for i := 0; i < m.Order.P && t-i-1 >= 0; i++ {
		pred += m.ARCoeffs[i] * (z[t-i-1] - m.Intercept)
	}
	for i := 0; i < m.Order.Q && t-i-1 >= 0; i++ {
		pred += m.MACoeffs[i] * residuals[t-i-1]
	}
	return pred
}

// calculateIC calculates AIC, AICc and BIC assuming Gaussian errors.
func (m *Model) calculateIC() {
	n := float64(len(m.residuals))
	k := float64(m.Order.P + m.Order.Q + 1)

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}
	if m.Variance > 0 {
		m.LogLik = -n/2*math.Log(2*math.Pi) - n/2*math.Log(m.Variance) - sse/(2*m.Variance)
	} else {
		m.LogLik = math.Inf(-1)
	}

	m.AIC = -2*m.LogLik + 2*k
	if n-k-1 > 0 {
		m.AICc = m.AIC + 2*k*(k+1)/(n-k-1)
	} else {
		m.AICc = math.Inf(1)
	}
	m.BIC = -2*m.LogLik + k*math.Log(n)
}

// ForecastFrom forecasts steps ahead of history, which need not be the
// series the model was fitted on. Forecasts are integrated back d times.
func (m *Model) ForecastFrom(history []float64, steps int) ([]float64, error) {
	if !m.fitted {
		return nil, errors.Wrap(model.ErrNotFitted, "arima")
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}
	if len(history) <= m.Order.D {
		return nil, errors.Errorf("%v: history of %d points is too short", m.Order, len(history))
	}

	levels := stats.DiffN(history, m.Order.D)
	z := levels[m.Order.D]
	n := len(z)

	ext := make([]float64, n+steps)
	copy(ext, z)
	resid := make([]float64, n+steps)
	copy(resid, m.filter(z))

	// Future residuals are zero in expectation.
	for t := n; t < n+steps; t++ {
		ext[t] = m.predictAt(ext, resid, t)
	}
	return stats.Integrate(ext[n:], levels), nil
}

// Residuals returns the in-sample residuals of the differenced series.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.residuals...)
}

// FittedValues returns the in-sample one-step predictions of the
// differenced series.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	return append([]float64(nil), m.fittedVals...)
}

// Summary describes a fitted model.
type Summary struct {
	Order     Order
	ARCoeffs  []float64
	MACoeffs  []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64
	BIC       float64
	LogLik    float64
	NObs      int
	LjungBox  *stats.LjungBoxResult
}

// Summary returns a summary of the fitted model, or nil before Fit.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}
	return &Summary{
		Order:     m.Order,
		ARCoeffs:  m.ARCoeffs,
		MACoeffs:  m.MACoeffs,
		Intercept: m.Intercept,
		Variance:  m.Variance,
		AIC:       m.AIC,
		AICc:      m.AICc,
		BIC:       m.BIC,
		LogLik:    m.LogLik,
		NObs:      m.nObs,
		LjungBox:  stats.LjungBox(m.residuals, 10, m.Order.P+m.Order.Q),
	}
}

func clamp(c float64) float64 {
	return math.Max(-0.99, math.Min(0.99, c))
}
