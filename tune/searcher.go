package tune

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Searcher proposes parameter sets and learns from their outcomes. The
// orchestrator serialises every call to a Searcher.
type Searcher interface {
	// Suggest returns the parameters of trial trialID, or false when the
	// searcher has nothing left to propose.
	Suggest(trialID int) (Params, bool)
	// Observe records the outcome of a trial. err is non-nil for failed
	// trials.
	Observe(trialID int, loss float64, err error)
}

// SearcherFactory builds a fresh searcher for one search over space.
type SearcherFactory func(space Space) (Searcher, error)

// NewGridSearch enumerates the cartesian product of every Categorical
// domain in sorted key order. Other domains are rejected.
func NewGridSearch() SearcherFactory {
	return func(space Space) (Searcher, error) {
		var dims []string
		for _, k := range space.Keys() {
			switch space[k].(type) {
			case *Categorical:
				dims = append(dims, k)
			case Domain:
				return nil, errors.Errorf("tune: grid search cannot enumerate parameter %q", k)
			}
		}
		return &gridSearch{grid: newGrid(space, dims)}, nil
	}
}

// NewRandomSearch samples every domain independently.
func NewRandomSearch(seed int64) SearcherFactory {
	return func(space Space) (Searcher, error) {
		return &randomSearch{space: space, rng: rand.New(rand.NewSource(seed))}, nil
	}
}

// NewBasicVariant enumerates GridSearch domains exhaustively, cycling
// through the grid, and samples every other domain at random for each
// trial.
func NewBasicVariant(seed int64) SearcherFactory {
	return func(space Space) (Searcher, error) {
		var dims []string
		for _, k := range space.Keys() {
			if c, ok := space[k].(*Categorical); ok && c.Grid {
				dims = append(dims, k)
			}
		}
		return &basicVariant{
			space: space,
			grid:  newGrid(space, dims),
			rng:   rand.New(rand.NewSource(seed)),
		}, nil
	}
}

// grid is a cartesian product of categorical dimensions.
type grid struct {
	space Space
	dims  []string
	size  int
}

func newGrid(space Space, dims []string) grid {
	size := 1
	for _, k := range dims {
		size *= len(space[k].(*Categorical).Values)
	}
	return grid{space: space, dims: dims, size: size}
}

// point writes grid point i into p. The last dimension varies fastest.
func (g grid) point(i int, p Params) {
	for j := len(g.dims) - 1; j >= 0; j-- {
		values := g.space[g.dims[j]].(*Categorical).Values
		p[g.dims[j]] = values[i%len(values)]
		i /= len(values)
	}
}

type gridSearch struct {
	grid grid
	next int
}

func (s *gridSearch) Suggest(int) (Params, bool) {
	if s.next >= s.grid.size {
		return nil, false
	}
	p := make(Params, len(s.grid.space))
	for k, v := range s.grid.space {
		p[k] = v
	}
	s.grid.point(s.next, p)
	s.next++
	return p, true
}

func (s *gridSearch) Observe(int, float64, error) {}

type randomSearch struct {
	space Space
	rng   *rand.Rand
}

func (s *randomSearch) Suggest(int) (Params, bool) {
	return s.space.Sample(s.rng), true
}

func (s *randomSearch) Observe(int, float64, error) {}

type basicVariant struct {
	space Space
	grid  grid
	rng   *rand.Rand
	next  int
}

func (s *basicVariant) Suggest(int) (Params, bool) {
	p := s.space.Sample(s.rng)
	s.grid.point(s.next%s.grid.size, p)
	s.next++
	return p, true
}

func (s *basicVariant) Observe(int, float64, error) {}
