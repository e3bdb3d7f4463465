package tune

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Params is one draw from a Space.
type Params map[string]any

// Copy returns a shallow copy of p.
func (p Params) Copy() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Space maps parameter names to a Domain or to a fixed value.
type Space map[string]any

// Copy returns a shallow copy of s.
func (s Space) Copy() Space {
	out := make(Space, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (s Space) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks every domain of the space.
func (s Space) Validate() error {
	if len(s) == 0 {
		return errors.New("tune: empty search space")
	}
	for _, k := range s.Keys() {
		if d, ok := s[k].(Domain); ok {
			if err := d.Validate(); err != nil {
				return errors.Wrapf(err, "tune: parameter %q", k)
			}
		}
	}
	return nil
}

// Sample draws every parameter independently.
func (s Space) Sample(rng *rand.Rand) Params {
	p := make(Params, len(s))
	for _, k := range s.Keys() {
		if d, ok := s[k].(Domain); ok {
			p[k] = d.Sample(rng)
			continue
		}
		p[k] = s[k]
	}
	return p
}

// Domain is a distribution over the values of one parameter.
type Domain interface {
	// Sample draws one value.
	Sample(rng *rand.Rand) any
	// Validate reports a malformed domain.
	Validate() error
	// Encode maps a sampled value into [0, 1].
	Encode(v any) float64
}

// Categorical draws uniformly from a finite set of values.
type Categorical struct {
	Values []any
	// Grid marks a dimension that grid-aware searchers enumerate exhaustively.
	Grid bool
}

// Choice samples uniformly from values.
func Choice(values ...any) *Categorical {
	return &Categorical{Values: values}
}

// GridSearch enumerates values exhaustively under grid-aware searchers and
// samples uniformly otherwise.
func GridSearch(values ...any) *Categorical {
	return &Categorical{Values: values, Grid: true}
}

func (c *Categorical) Sample(rng *rand.Rand) any {
	return c.Values[rng.Intn(len(c.Values))]
}

func (c *Categorical) Validate() error {
	if len(c.Values) == 0 {
		return errors.New("no values to choose from")
	}
	return nil
}

func (c *Categorical) Encode(v any) float64 {
	if len(c.Values) < 2 {
		return 0
	}
	for i, x := range c.Values {
		if fmt.Sprint(x) == fmt.Sprint(v) {
			return float64(i) / float64(len(c.Values)-1)
		}
	}
	return 0
}

// Float draws real values from [Low, High), optionally on a log scale and
// rounded to a multiple of Q.
type Float struct {
	Low, High float64
	Log       bool
	Q         float64
}

// Uniform samples uniformly from [low, high).
func Uniform(low, high float64) *Float {
	return &Float{Low: low, High: high}
}

// LogUniform samples so that the logarithm of the value is uniform.
func LogUniform(low, high float64) *Float {
	return &Float{Low: low, High: high, Log: true}
}

// QUniform samples uniformly and rounds to a multiple of q.
func QUniform(low, high, q float64) *Float {
	return &Float{Low: low, High: high, Q: q}
}

func (f *Float) Sample(rng *rand.Rand) any {
	var v float64
	if f.Log {
		v = math.Exp(math.Log(f.Low) + rng.Float64()*(math.Log(f.High)-math.Log(f.Low)))
	} else {
		v = f.Low + rng.Float64()*(f.High-f.Low)
	}
	if f.Q > 0 {
		v = math.Round(v/f.Q) * f.Q
	}
	return v
}

func (f *Float) Validate() error {
	if !(f.Low < f.High) {
		return errors.Errorf("low %v must be below high %v", f.Low, f.High)
	}
	if f.Log && f.Low <= 0 {
		return errors.Errorf("log-uniform bounds must be positive, got %v", f.Low)
	}
	if f.Q < 0 {
		return errors.Errorf("negative quantum %v", f.Q)
	}
	return nil
}

func (f *Float) Encode(v any) float64 {
	x, ok := v.(float64)
	if !ok {
		return 0
	}
	if f.Log {
		return (math.Log(x) - math.Log(f.Low)) / (math.Log(f.High) - math.Log(f.Low))
	}
	return (x - f.Low) / (f.High - f.Low)
}

// Integer draws integers uniformly from [Low, High).
type Integer struct {
	Low, High int
}

// RandInt samples an integer from [low, high).
func RandInt(low, high int) *Integer {
	return &Integer{Low: low, High: high}
}

func (i *Integer) Sample(rng *rand.Rand) any {
	return i.Low + rng.Intn(i.High-i.Low)
}

func (i *Integer) Validate() error {
	if i.Low >= i.High {
		return errors.Errorf("low %d must be below high %d", i.Low, i.High)
	}
	return nil
}

func (i *Integer) Encode(v any) float64 {
	x, ok := v.(int)
	if !ok || i.High-i.Low < 2 {
		return 0
	}
	return float64(x-i.Low) / float64(i.High-i.Low-1)
}
