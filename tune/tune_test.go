package tune

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/sartorproj/goforecast/model"
	"github.com/sartorproj/goforecast/panel"
)

// fakeModel reports the loss returned by fit as its validation loss.
type fakeModel struct {
	cfg model.Config
	fit func(ctx context.Context, cfg model.Config) (float64, error)
}

func (m *fakeModel) Fit(ctx context.Context, ds *panel.Dataset, valSize, testSize int) error {
	l, err := m.fit(ctx, m.cfg)
	if err != nil {
		return err
	}
	for _, cb := range m.cfg.Callbacks {
		cb.OnValidationEnd(model.ValidationReport{Step: 1, Loss: l})
	}
	return nil
}

func (m *fakeModel) Predict(context.Context, *panel.Dataset, int) (*model.Forecast, error) {
	return nil, nil
}

func (m *fakeModel) SetTestSize(int) {}

func (m *fakeModel) Save(string) error { return nil }

func constructor(fit func(ctx context.Context, cfg model.Config) (float64, error)) model.Constructor {
	return func(cfg model.Config) (model.Model, error) {
		return &fakeModel{cfg: cfg, fit: fit}, nil
	}
}

func testDataset(t *testing.T) *panel.Dataset {
	t.Helper()
	ds, err := panel.New(panel.Generate(panel.GenerateOptions{NSeries: 2, MinLength: 20}), nil)
	require.NoError(t, err)
	return ds
}

func TestSpaceSample(t *testing.T) {
	space := Space{
		"p":             Choice(0, 1, 2),
		"learning_rate": LogUniform(1e-3, 1e-1),
		"dropout":       QUniform(0, 0.5, 0.1),
		"input_size":    RandInt(8, 16),
		"lr":            Uniform(-1, 1),
		"loss":          "mae",
	}
	require.NoError(t, space.Validate())

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		p := space.Sample(rng)
		assert.Contains(t, []any{0, 1, 2}, p["p"])
		assert.Equal(t, "mae", p["loss"])

		lr := p["learning_rate"].(float64)
		assert.True(t, lr >= 1e-3 && lr <= 1e-1, "learning rate %v", lr)

		d := p["dropout"].(float64)
		assert.InDelta(t, math.Round(d*10)/10, d, 1e-9)

		n := p["input_size"].(int)
		assert.True(t, n >= 8 && n < 16, "input size %d", n)
	}
}

func TestSpaceValidate(t *testing.T) {
	assert.Error(t, Space{}.Validate())
	assert.Error(t, Space{"p": Choice()}.Validate())
	assert.Error(t, Space{"x": Uniform(1, 1)}.Validate())
	assert.Error(t, Space{"x": LogUniform(0, 1)}.Validate())
	assert.Error(t, Space{"x": RandInt(3, 3)}.Validate())
	assert.NoError(t, Space{"h": 12}.Validate())
}

func TestEncode(t *testing.T) {
	assert.Equal(t, 0.5, Choice("a", "b", "c").Encode("b"))
	assert.Equal(t, 1.0, RandInt(0, 5).Encode(4))
	assert.InDelta(t, 0.5, LogUniform(1, 100).Encode(10.0), 1e-12)
	assert.InDelta(t, 0.25, Uniform(0, 4).Encode(1.0), 1e-12)
}

func TestGridSearch(t *testing.T) {
	space := Space{"p": Choice(0, 1), "q": GridSearch("x", "y", "z"), "h": 3}
	s, err := NewGridSearch()(space)
	require.NoError(t, err)

	var got []string
	for id := 0; ; id++ {
		p, ok := s.Suggest(id)
		if !ok {
			break
		}
		assert.Equal(t, 3, p["h"])
		got = append(got, strings.Join([]string{toString(p["p"]), p["q"].(string)}, ""))
	}
	assert.Equal(t, []string{"0x", "0y", "0z", "1x", "1y", "1z"}, got)

	_, err = NewGridSearch()(Space{"x": Uniform(0, 1)})
	assert.Error(t, err)
}

func toString(v any) string {
	return string(rune('0' + v.(int)))
}

func TestRandomSearchIsSeeded(t *testing.T) {
	space := Space{"x": Uniform(0, 1), "p": Choice(1, 2, 3)}
	a, _ := NewRandomSearch(7)(space)
	b, _ := NewRandomSearch(7)(space)
	for id := 0; id < 10; id++ {
		pa, ok := a.Suggest(id)
		require.True(t, ok)
		pb, _ := b.Suggest(id)
		assert.Equal(t, pa, pb)
	}
}

func TestBasicVariantCyclesGrid(t *testing.T) {
	space := Space{"season_length": GridSearch(1, 7), "x": Uniform(0, 1)}
	s, err := NewBasicVariant(3)(space)
	require.NoError(t, err)

	var seasons []any
	xs := map[float64]bool{}
	for id := 0; id < 4; id++ {
		p, ok := s.Suggest(id)
		require.True(t, ok)
		seasons = append(seasons, p["season_length"])
		xs[p["x"].(float64)] = true
	}
	assert.Equal(t, []any{1, 7, 1, 7}, seasons)
	assert.Len(t, xs, 4)
}

func TestBayesSearchFindsMinimum(t *testing.T) {
	space := Space{"x": Uniform(0, 1), "h": 1}
	s, err := NewBayesSearch(11, nil)(space)
	require.NoError(t, err)

	best := math.Inf(1)
	for id := 0; id < 25; id++ {
		p, ok := s.Suggest(id)
		require.True(t, ok)
		assert.Equal(t, 1, p["h"])
		x := p["x"].(float64)
		loss := (x - 0.3) * (x - 0.3)
		best = math.Min(best, loss)
		s.Observe(id, loss, nil)
	}
	assert.Less(t, best, 0.01)

	// Failed trials never reach the surrogate.
	p, _ := s.Suggest(100)
	s.Observe(100, math.NaN(), errors.New("boom"))
	assert.NotNil(t, p)
	assert.Len(t, s.(*bayesSearch).ys, 25)
}

func TestLoadSpace(t *testing.T) {
	space, err := LoadSpace(strings.NewReader(`
p:
  choice: [0, 1, 2]
season_length:
  grid_search: [1, 7]
learning_rate:
  loguniform: [0.001, 0.1]
dropout:
  quniform: [0, 0.5, 0.1]
input_size:
  randint: [8, 64]
x:
  uniform: [0, 1]
loss: mae
h: 12
`))
	require.NoError(t, err)
	assert.Equal(t, Choice(0, 1, 2), space["p"])
	assert.Equal(t, GridSearch(1, 7), space["season_length"])
	assert.Equal(t, LogUniform(0.001, 0.1), space["learning_rate"])
	assert.Equal(t, QUniform(0, 0.5, 0.1), space["dropout"])
	assert.Equal(t, RandInt(8, 64), space["input_size"])
	assert.Equal(t, Uniform(0, 1), space["x"])
	assert.Equal(t, "mae", space["loss"])
	assert.Equal(t, 12, space["h"])

	for _, bad := range []string{
		"p: [1, 2]",
		"p:\n  normal: [0, 1]",
		"p:\n  randint: [0.5, 2]",
		"p:\n  uniform: [1]",
		"p:\n  choice: []",
		"p:\n  choice: [1]\n  grid_search: [2]",
	} {
		_, err := LoadSpace(strings.NewReader(bad))
		assert.Error(t, err, bad)
	}
}

func TestRunTrial(t *testing.T) {
	ds := testDataset(t)
	spec := TrialSpec{ID: 4, Params: Params{"p": 2}, Dataset: ds, ValSize: 2, Allocation: Allocation{Kind: CPU, Index: 1}}

	spec.NewModel = constructor(func(ctx context.Context, cfg model.Config) (float64, error) {
		a, ok := AllocationFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, Allocation{Kind: CPU, Index: 1}, a)
		return float64(cfg.P) / 10, nil
	})
	res := RunTrial(context.Background(), spec)
	require.NoError(t, res.Err)
	assert.Equal(t, 0.2, res.Loss)
	assert.Equal(t, map[string]float64{MetricKey: 0.2}, res.Metrics())
	assert.Len(t, res.Reports, 1)

	failures := map[string]TrialSpec{}
	s := spec
	s.NewModel = constructor(func(context.Context, model.Config) (float64, error) { panic("exploded") })
	failures["panic"] = s
	s = spec
	s.NewModel = constructor(func(context.Context, model.Config) (float64, error) { return math.NaN(), nil })
	failures["nan"] = s
	s = spec
	s.NewModel = func(cfg model.Config) (model.Model, error) {
		return &silentModel{}, nil
	}
	failures["no report"] = s
	s = spec
	s.NewModel = constructor(func(context.Context, model.Config) (float64, error) { return 0, errors.New("fit failed") })
	failures["fit error"] = s
	s = spec
	s.NewModel = func(model.Config) (model.Model, error) { return nil, errors.New("bad config") }
	failures["constructor"] = s
	s = spec
	s.Params = Params{"nonsense": 1}
	failures["unknown param"] = s

	for name, spec := range failures {
		res := RunTrial(context.Background(), spec)
		assert.Error(t, res.Err, name)
		assert.True(t, math.IsNaN(res.Loss), name)
		assert.False(t, res.Succeeded(), name)
		assert.Nil(t, res.Metrics(), name)
	}
}

func TestRunTrialCallbacks(t *testing.T) {
	var seen []model.ValidationReport
	spec := TrialSpec{
		ID:      1,
		Params:  Params{"p": 3},
		Dataset: testDataset(t),
		NewModel: constructor(func(ctx context.Context, cfg model.Config) (float64, error) {
			return float64(cfg.P), nil
		}),
		Callbacks: []model.Callback{model.CallbackFunc(func(r model.ValidationReport) {
			seen = append(seen, r)
		})},
	}

	res := RunTrial(context.Background(), spec)
	require.NoError(t, res.Err)
	assert.Equal(t, 3.0, res.Loss)
	assert.Equal(t, []model.ValidationReport{{Step: 1, Loss: 3}}, seen)
}

func TestRunForwardsCallbacks(t *testing.T) {
	var mu sync.Mutex
	var losses []float64
	_, err := Run(context.Background(), &RunConfig{
		Space:       Space{"p": GridSearch(0, 1, 2)},
		NewSearcher: NewGridSearch(),
		NewModel: constructor(func(ctx context.Context, cfg model.Config) (float64, error) {
			return float64(cfg.P), nil
		}),
		Dataset:    testDataset(t),
		ValSize:    2,
		NumSamples: 3,
		Resources:  Resources{CPUs: 3},
		Callbacks: []model.Callback{model.CallbackFunc(func(r model.ValidationReport) {
			mu.Lock()
			losses = append(losses, r.Loss)
			mu.Unlock()
		})},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{0, 1, 2}, losses)
}

type silentModel struct{ fakeModel }

func (silentModel) Fit(context.Context, *panel.Dataset, int, int) error { return nil }

func TestRunSelectsLowestLossWithTieBreak(t *testing.T) {
	losses := []float64{0.5, 0.3, 0.3, 0.9}
	// Trial 1 finishes after trial 2.
	delays := []time.Duration{0, 60 * time.Millisecond, 0, 0}

	res, err := Run(context.Background(), &RunConfig{
		Space:       Space{"p": GridSearch(0, 1, 2, 3)},
		NewSearcher: NewGridSearch(),
		NewModel: constructor(func(ctx context.Context, cfg model.Config) (float64, error) {
			time.Sleep(delays[cfg.P])
			return losses[cfg.P], nil
		}),
		Dataset:    testDataset(t),
		ValSize:    2,
		NumSamples: 4,
		Resources:  Resources{CPUs: 4},
	})
	require.NoError(t, err)
	require.Len(t, res.Trials, 4)
	for i, tr := range res.Trials {
		assert.Equal(t, i, tr.ID)
		assert.Equal(t, losses[i], tr.Loss)
	}

	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, 1, best.ID)
	assert.Equal(t, 1, best.Params["p"])

	sum := res.Summary()
	assert.Equal(t, 4, sum.Succeeded)
	assert.InDelta(t, 0.5, sum.Mean, 1e-12)
	assert.InDelta(t, 0.4, sum.Median, 1e-12)
	assert.Equal(t, 0.3, sum.Min)
	assert.Equal(t, 0.9, sum.Max)
}

func TestRunRespectsResources(t *testing.T) {
	for _, tc := range []struct {
		resources Resources
		slots     int
		kind      string
	}{
		{Resources{CPUs: 2}, 2, CPU},
		{Resources{CPUs: 8, GPUs: 1}, 1, GPU},
	} {
		var (
			mu      sync.Mutex
			running int
			peak    int
			held    = map[Allocation]bool{}
		)
		_, err := Run(context.Background(), &RunConfig{
			Space: Space{"p": Choice(0, 1, 2)},
			NewModel: constructor(func(ctx context.Context, cfg model.Config) (float64, error) {
				a, _ := AllocationFromContext(ctx)
				mu.Lock()
				assert.False(t, held[a], "unit %v handed out twice", a)
				assert.Equal(t, tc.kind, a.Kind)
				held[a] = true
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				held[a] = false
				running--
				mu.Unlock()
				return 1, nil
			}),
			Dataset:    testDataset(t),
			ValSize:    2,
			NumSamples: 8,
			Resources:  tc.resources,
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, peak, tc.slots)
	}

	_, err := Run(context.Background(), &RunConfig{
		Space:      Space{"p": 1},
		NewModel:   constructor(nil),
		Dataset:    testDataset(t),
		NumSamples: 1,
		Resources:  Resources{},
	})
	assert.Error(t, err)
}

func TestRunAllTrialsFail(t *testing.T) {
	res, err := Run(context.Background(), &RunConfig{
		Space: Space{"p": Choice(0, 1)},
		NewModel: constructor(func(context.Context, model.Config) (float64, error) {
			return 0, errors.New("no luck")
		}),
		Dataset:    testDataset(t),
		ValSize:    2,
		NumSamples: 3,
		Resources:  Resources{CPUs: 2},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuccessfulTrials))

	var se *SearchError
	require.True(t, errors.As(err, &se))
	assert.Len(t, multierr.Errors(se.Err), 3)
	assert.Len(t, res.Failed(), 3)
	assert.True(t, math.IsNaN(res.Summary().Mean))
}

func TestRunIsolatesFailures(t *testing.T) {
	events := make(chan Event, 64)
	res, err := Run(context.Background(), &RunConfig{
		Space:       Space{"p": GridSearch(0, 1, 2, 3)},
		NewSearcher: NewGridSearch(),
		NewModel: constructor(func(ctx context.Context, cfg model.Config) (float64, error) {
			switch cfg.P {
			case 0:
				panic("bad trial")
			case 2:
				return math.Inf(1), nil
			}
			return float64(cfg.P), nil
		}),
		Dataset:    testDataset(t),
		ValSize:    2,
		NumSamples: 10,
		Resources:  Resources{CPUs: 3},
		Progress:   events,
	})
	require.NoError(t, err)
	close(events)

	// The grid runs out after four trials.
	assert.Len(t, res.Trials, 4)
	assert.Len(t, res.Succeeded(), 2)
	best, _ := res.Best()
	assert.Equal(t, 1, best.ID)

	counts := map[EventKind]int{}
	for ev := range events {
		counts[ev.Kind]++
	}
	assert.Equal(t, 4, counts[TrialStarted])
	assert.Equal(t, 2, counts[TrialCompleted])
	assert.Equal(t, 2, counts[TrialFailed])
}

func TestRunTrialTimeout(t *testing.T) {
	res, err := Run(context.Background(), &RunConfig{
		Space: Space{"p": GridSearch(0, 1)},
		NewModel: constructor(func(ctx context.Context, cfg model.Config) (float64, error) {
			if cfg.P == 0 {
				<-ctx.Done()
				return 0, ctx.Err()
			}
			return 1, nil
		}),
		NewSearcher:  NewGridSearch(),
		Dataset:      testDataset(t),
		ValSize:      2,
		NumSamples:   2,
		Resources:    Resources{CPUs: 2},
		TrialTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, errors.Is(res.Trials[0].Err, context.DeadlineExceeded))
	assert.NoError(t, res.Trials[1].Err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	res, err := Run(ctx, &RunConfig{
		Space: Space{"x": Uniform(0, 1)},
		NewModel: constructor(func(context.Context, model.Config) (float64, error) {
			once.Do(cancel)
			return 1, nil
		}),
		Dataset:    testDataset(t),
		ValSize:    2,
		NumSamples: 50,
		Resources:  Resources{CPUs: 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, len(res.Trials), 50)
}
