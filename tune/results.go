package tune

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Results holds every trial of a search ordered by trial id.
type Results struct {
	Trials []TrialResult
}

// Best returns the successful trial with the lowest loss. Ties go to the
// lowest trial id.
func (r *Results) Best() (TrialResult, bool) {
	best := -1
	for i, t := range r.Trials {
		if t.Err != nil {
			continue
		}
		if best < 0 || t.Loss < r.Trials[best].Loss ||
			(t.Loss == r.Trials[best].Loss && t.ID < r.Trials[best].ID) {
			best = i
		}
	}
	if best < 0 {
		return TrialResult{}, false
	}
	return r.Trials[best], true
}

// Succeeded returns the successful trials.
func (r *Results) Succeeded() []TrialResult {
	var out []TrialResult
	for _, t := range r.Trials {
		if t.Err == nil {
			out = append(out, t)
		}
	}
	return out
}

// Failed returns the failed trials.
func (r *Results) Failed() []TrialResult {
	var out []TrialResult
	for _, t := range r.Trials {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// Summary aggregates the losses of a search. Statistics are NaN when no
// trial succeeded.
type Summary struct {
	Trials    int
	Succeeded int
	Failed    int
	Mean      float64
	Median    float64
	Min       float64
	Max       float64
}

// Summary returns loss statistics over the successful trials.
func (r *Results) Summary() Summary {
	s := Summary{
		Trials: len(r.Trials),
		Mean:   math.NaN(),
		Median: math.NaN(),
		Min:    math.NaN(),
		Max:    math.NaN(),
	}
	var losses stats.Float64Data
	for _, t := range r.Trials {
		if t.Err != nil {
			s.Failed++
			continue
		}
		losses = append(losses, t.Loss)
	}
	s.Succeeded = len(losses)
	if len(losses) == 0 {
		return s
	}
	s.Mean, _ = losses.Mean()
	s.Median, _ = losses.Median()
	s.Min, _ = losses.Min()
	s.Max, _ = losses.Max()
	return s
}
