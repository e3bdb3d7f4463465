package stats

// Diff returns the lag-1 differences of values.
func Diff(values []float64) []float64 {
	return SeasonalDiff(values, 1)
}

// SeasonalDiff returns values[t] - values[t-lag].
func SeasonalDiff(values []float64, lag int) []float64 {
	if lag < 1 || len(values) <= lag {
		return nil
	}
	out := make([]float64, len(values)-lag)
	for t := lag; t < len(values); t++ {
		out[t-lag] = values[t] - values[t-lag]
	}
	return out
}

// DiffN applies Diff d times and returns every level, from the input
// (level 0) to the d-times differenced series (level d).
func DiffN(values []float64, d int) [][]float64 {
	levels := [][]float64{values}
	for i := 0; i < d; i++ {
		levels = append(levels, Diff(levels[i]))
	}
	return levels
}

// Integrate undoes d-fold differencing of forecasts that continue the
// series whose difference levels are given (as returned by DiffN).
func Integrate(forecasts []float64, levels [][]float64) []float64 {
	out := append([]float64(nil), forecasts...)
	for lvl := len(levels) - 2; lvl >= 0; lvl-- {
		last := levels[lvl][len(levels[lvl])-1]
		for j := range out {
			out[j] += last
			last = out[j]
		}
	}
	return out
}
