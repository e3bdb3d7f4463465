package tune

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadSpaceFile reads a search space from a YAML file.
func LoadSpaceFile(filename string) (Space, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	space, err := LoadSpace(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return space, nil
}

// LoadSpace reads a search space from YAML. Each top-level key is a
// parameter whose value is either a constant or a single-key mapping naming
// a domain:
//
//	p:
//	  choice: [0, 1, 2]
//	season_length:
//	  grid_search: [1, 7]
//	learning_rate:
//	  loguniform: [0.001, 0.1]
//	dropout:
//	  quniform: [0.0, 0.5, 0.1]
//	input_size:
//	  randint: [8, 64]
//	loss: mae
func LoadSpace(r io.Reader) (Space, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raw yaml.MapSlice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "tune: parsing search space")
	}

	space := make(Space, len(raw))
	for _, item := range raw {
		key, ok := item.Key.(string)
		if !ok {
			return nil, errors.Errorf("tune: parameter name %v is not a string", item.Key)
		}
		v, err := parseEntry(item.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "tune: parameter %q", key)
		}
		space[key] = v
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return space, nil
}

func parseEntry(v any) (any, error) {
	m, ok := v.(yaml.MapSlice)
	if !ok {
		if _, isList := v.([]any); isList {
			return nil, errors.New("lists must be wrapped in a domain such as choice")
		}
		return v, nil
	}
	if len(m) != 1 {
		return nil, errors.Errorf("expected a single domain, got %d keys", len(m))
	}
	kind, _ := m[0].Key.(string)
	args, ok := m[0].Value.([]any)
	if !ok {
		return nil, errors.Errorf("domain %q needs a list of arguments", kind)
	}

	switch kind {
	case "choice":
		return Choice(args...), nil
	case "grid_search":
		return GridSearch(args...), nil
	case "randint":
		if len(args) != 2 {
			return nil, errors.New("randint needs [low, high]")
		}
		lo, lok := args[0].(int)
		hi, hok := args[1].(int)
		if !lok || !hok {
			return nil, errors.New("randint bounds must be integers")
		}
		return RandInt(lo, hi), nil
	case "uniform", "loguniform", "quniform":
		want := 2
		if kind == "quniform" {
			want = 3
		}
		if len(args) != want {
			return nil, errors.Errorf("%s needs %d numbers", kind, want)
		}
		xs := make([]float64, len(args))
		for i, a := range args {
			switch n := a.(type) {
			case int:
				xs[i] = float64(n)
			case float64:
				xs[i] = n
			default:
				return nil, errors.Errorf("%s argument %v is not a number", kind, a)
			}
		}
		switch kind {
		case "uniform":
			return Uniform(xs[0], xs[1]), nil
		case "loguniform":
			return LogUniform(xs[0], xs[1]), nil
		}
		return QUniform(xs[0], xs[1], xs[2]), nil
	}
	return nil, errors.Errorf("unknown domain %q", kind)
}
