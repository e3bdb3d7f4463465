package tune

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// BayesConfig configures NewBayesSearch.
type BayesConfig struct {
	InitialSamples int     // Random trials before the surrogate is used (default: 5)
	NumCandidates  int     // Random candidates scored per suggestion (default: 256)
	Xi             float64 // Expected improvement margin, in standard deviations (default: 0.01)
	LengthScale    float64 // RBF length scale in the unit cube (default: 0.25)
	Noise          float64 // Observation noise variance (default: 1e-6)
}

// DefaultBayesConfig returns default options for Bayesian search.
func DefaultBayesConfig() *BayesConfig {
	return &BayesConfig{
		InitialSamples: 5,
		NumCandidates:  256,
		Xi:             0.01,
		LengthScale:    0.25,
		Noise:          1e-6,
	}
}

// NewBayesSearch samples at random until cfg.InitialSamples trials have
// succeeded, then proposes the random candidate with the highest expected
// improvement under a Gaussian-process surrogate of the loss. Every domain
// is encoded into the unit interval; failed trials are ignored.
func NewBayesSearch(seed int64, cfg *BayesConfig) SearcherFactory {
	if cfg == nil {
		cfg = DefaultBayesConfig()
	}
	return func(space Space) (Searcher, error) {
		if cfg.LengthScale <= 0 || cfg.NumCandidates < 1 {
			return nil, errors.New("tune: bayes search needs a positive length scale and candidate count")
		}
		var keys []string
		for _, k := range space.Keys() {
			if _, ok := space[k].(Domain); ok {
				keys = append(keys, k)
			}
		}
		return &bayesSearch{
			space:   space,
			keys:    keys,
			cfg:     *cfg,
			rng:     rand.New(rand.NewSource(seed)),
			pending: make(map[int][]float64),
		}, nil
	}
}

type bayesSearch struct {
	space   Space
	keys    []string
	cfg     BayesConfig
	rng     *rand.Rand
	pending map[int][]float64
	xs      [][]float64
	ys      []float64
}

func (s *bayesSearch) Suggest(trialID int) (Params, bool) {
	p := s.space.Sample(s.rng)
	if len(s.ys) >= s.cfg.InitialSamples && len(s.ys) > 0 && len(s.keys) > 0 {
		if gp, err := fitGP(s.xs, s.ys, s.cfg.LengthScale, s.cfg.Noise); err == nil {
			best := math.Inf(-1)
			for i := 0; i < s.cfg.NumCandidates; i++ {
				c := s.space.Sample(s.rng)
				if ei := gp.expectedImprovement(s.encode(c), s.cfg.Xi); ei > best {
					best, p = ei, c
				}
			}
		}
	}
	s.pending[trialID] = s.encode(p)
	return p, true
}

func (s *bayesSearch) Observe(trialID int, loss float64, err error) {
	x, ok := s.pending[trialID]
	delete(s.pending, trialID)
	if !ok || err != nil || math.IsNaN(loss) || math.IsInf(loss, 0) {
		return
	}
	s.xs = append(s.xs, x)
	s.ys = append(s.ys, loss)
}

func (s *bayesSearch) encode(p Params) []float64 {
	x := make([]float64, len(s.keys))
	for i, k := range s.keys {
		x[i] = s.space[k].(Domain).Encode(p[k])
	}
	return x
}

// gp is a zero-mean Gaussian process with an RBF kernel fitted to
// standardised losses.
type gp struct {
	xs          [][]float64
	chol        mat.Cholesky
	alpha       *mat.VecDense
	best        float64
	lengthScale float64
}

func fitGP(xs [][]float64, ys []float64, lengthScale, noise float64) (*gp, error) {
	n := len(xs)
	mean, std := stat.MeanStdDev(ys, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	y := mat.NewVecDense(n, nil)
	best := math.Inf(1)
	for i, v := range ys {
		z := (v - mean) / std
		y.SetVec(i, z)
		best = math.Min(best, z)
	}

	g := &gp{xs: xs, best: best, lengthScale: lengthScale}
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.kernel(xs[i], xs[j])
			if i == j {
				v += noise + 1e-9
			}
			k.SetSym(i, j, v)
		}
	}
	if ok := g.chol.Factorize(k); !ok {
		return nil, errors.New("tune: kernel matrix is not positive definite")
	}
	g.alpha = mat.NewVecDense(n, nil)
	if err := g.chol.SolveVecTo(g.alpha, y); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *gp) kernel(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		d += (a[i] - b[i]) * (a[i] - b[i])
	}
	return math.Exp(-d / (2 * g.lengthScale * g.lengthScale))
}

// predict returns the posterior mean and standard deviation at x.
func (g *gp) predict(x []float64) (float64, float64) {
	n := len(g.xs)
	k := mat.NewVecDense(n, nil)
	for i, xi := range g.xs {
		k.SetVec(i, g.kernel(x, xi))
	}
	mean := mat.Dot(k, g.alpha)

	v := mat.NewVecDense(n, nil)
	if err := g.chol.SolveVecTo(v, k); err != nil {
		return mean, 0
	}
	variance := 1 - mat.Dot(k, v)
	if variance < 1e-12 {
		return mean, 0
	}
	return mean, math.Sqrt(variance)
}

// expectedImprovement scores x for minimisation.
func (g *gp) expectedImprovement(x []float64, xi float64) float64 {
	mean, sd := g.predict(x)
	imp := g.best - mean - xi
	if sd == 0 {
		return math.Max(imp, 0)
	}
	z := imp / sd
	return imp*distuv.UnitNormal.CDF(z) + sd*distuv.UnitNormal.Prob(z)
}
