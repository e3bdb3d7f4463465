package panel

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// GenerateOptions configures Generate.
type GenerateOptions struct {
	NSeries      int           // Number of entities (default: 3)
	MinLength    int           // Length of the shortest series (default: 50)
	MaxLength    int           // Length of the longest series (default: MinLength)
	SeasonLength int           // Seasonal period, 0 or 1 for none
	Trend        float64       // Slope per step
	Noise        float64       // Standard deviation of Gaussian noise
	Start        time.Time     // First timestamp (default: 2000-01-01 UTC)
	Step         time.Duration // Spacing between timestamps (default: 24h)
	Seed         int64
}

// Generate returns a synthetic target table. Series lengths are spread evenly
// between MinLength and MaxLength and every series ends on the same
// timestamp; entity ids are "series_0", "series_1", ...
func Generate(opts GenerateOptions) *Table {
	if opts.NSeries <= 0 {
		opts.NSeries = 3
	}
	if opts.MinLength <= 0 {
		opts.MinLength = 50
	}
	if opts.MaxLength < opts.MinLength {
		opts.MaxLength = opts.MinLength
	}
	if opts.Start.IsZero() {
		opts.Start = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.Step <= 0 {
		opts.Step = 24 * time.Hour
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	t := &Table{Times: []time.Time{}}
	var y []float64
	for i := 0; i < opts.NSeries; i++ {
		n := opts.MinLength
		if opts.NSeries > 1 {
			n += i * (opts.MaxLength - opts.MinLength) / (opts.NSeries - 1)
		}
		level := 10 * float64(i+1)
		offset := opts.MaxLength - n
		for s := 0; s < n; s++ {
			v := level + opts.Trend*float64(s)
			if opts.SeasonLength > 1 {
				v += level / 2 * math.Sin(2*math.Pi*float64(s)/float64(opts.SeasonLength))
			}
			if opts.Noise > 0 {
				v += opts.Noise * rng.NormFloat64()
			}
			t.IDs = append(t.IDs, fmt.Sprintf("series_%d", i))
			t.Times = append(t.Times, opts.Start.Add(time.Duration(offset+s)*opts.Step))
			y = append(y, v)
		}
	}
	return t.With(TargetColumn, y)
}
