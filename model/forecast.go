package model

import (
	"time"
)

// Forecast holds point forecasts for every entity and forecast window.
type Forecast struct {
	Model    string
	Entities []string
	Windows  int
	H        int
	// Cutoffs holds the last observed timestamp before each window, laid
	// out [entity][window].
	Cutoffs []time.Time
	// Values is laid out [entity][window][step].
	Values []float64
}

func newForecast(name string, entities []string, windows, h int) *Forecast {
	return &Forecast{
		Model:    name,
		Entities: entities,
		Windows:  windows,
		H:        h,
		Cutoffs:  make([]time.Time, len(entities)*windows),
		Values:   make([]float64, len(entities)*windows*h),
	}
}

// At returns step s of window w for entity e.
func (f *Forecast) At(e, w, s int) float64 {
	return f.Values[(e*f.Windows+w)*f.H+s]
}

// Series returns the H forecasts of window w for entity e. The slice aliases
// the forecast values.
func (f *Forecast) Series(e, w int) []float64 {
	i := (e*f.Windows + w) * f.H
	return f.Values[i : i+f.H]
}

// Cutoff returns the last observed timestamp before window w of entity e.
func (f *Forecast) Cutoff(e, w int) time.Time {
	return f.Cutoffs[e*f.Windows+w]
}
