package panel

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Window is a time slice of the panel tensor for a subset of entities.
// Data holds only stored observations; RightPadding counts the forecast
// slots past the stored maximum length that callers must fill with zeros.
type Window struct {
	// Data is laid out [entity][channel][time].
	Data      []float64
	Entities  []int // dataset entity index of each row
	NChannels int
	Len       int
	// Start is the first dataset time index covered by the window.
	Start        int
	RightPadding int
}

// FilteredTensor slices the most recent windowSamplingLimit timestamps of the
// selected entities and reports how many of the outputSize forecast steps fall
// past the stored data. A non-positive limit keeps the whole history and nil
// idxs selects every entity, otherwise idxs order is preserved.
func (d *Dataset) FilteredTensor(outputSize, windowSamplingLimit int, idxs []int) (*Window, error) {
	if outputSize < 0 {
		return nil, errors.Errorf("panel: output size must be non-negative, got %d", outputSize)
	}
	if idxs == nil {
		idxs = make([]int, len(d.entities))
		for i := range idxs {
			idxs[i] = i
		}
	}
	for _, e := range idxs {
		if e < 0 || e >= len(d.entities) {
			return nil, errors.Wrapf(ErrLookup, "entity index %d out of range [0, %d)", e, len(d.entities))
		}
	}

	lastOutsample := d.maxLen + outputSize
	first := 0
	if windowSamplingLimit > 0 && d.maxLen-windowSamplingLimit > 0 {
		first = d.maxLen - windowSamplingLimit
	}
	end := lastOutsample
	if end > d.maxLen {
		end = d.maxLen
	}
	rightPadding := lastOutsample - d.maxLen
	if rightPadding < 0 {
		rightPadding = 0
	}

	nc := len(d.channels)
	n := end - first
	w := &Window{
		Data:         make([]float64, len(idxs)*nc*n),
		Entities:     append([]int(nil), idxs...),
		NChannels:    nc,
		Len:          n,
		Start:        first,
		RightPadding: rightPadding,
	}
	for i, e := range idxs {
		for c := 0; c < nc; c++ {
			src := d.tensor[(e*nc+c)*d.maxLen+first : (e*nc+c)*d.maxLen+end]
			copy(w.Data[(i*nc+c)*n:(i*nc+c+1)*n], src)
		}
	}
	return w, nil
}

// At returns the value at (row, channel, time) of the window.
func (w *Window) At(i, c, t int) float64 {
	return w.Data[(i*w.NChannels+c)*w.Len+t]
}

// Series returns the time slice of one row and channel. The slice aliases
// the window data.
func (w *Window) Series(i, c int) []float64 {
	return w.Data[(i*w.NChannels+c)*w.Len : (i*w.NChannels+c+1)*w.Len]
}

// Padded returns a copy of the window with RightPadding zero slots appended
// to the time axis.
func (w *Window) Padded() *Window {
	n := w.Len + w.RightPadding
	out := &Window{
		Data:      make([]float64, len(w.Entities)*w.NChannels*n),
		Entities:  append([]int(nil), w.Entities...),
		NChannels: w.NChannels,
		Len:       n,
		Start:     w.Start,
	}
	for i := range w.Entities {
		for c := 0; c < w.NChannels; c++ {
			copy(out.Data[(i*w.NChannels+c)*n:], w.Series(i, c))
		}
	}
	return out
}

// Tensor converts the window into a gomlx tensor of shape
// [entities, channels, len].
func (w *Window) Tensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(append([]float64(nil), w.Data...), len(w.Entities), w.NChannels, w.Len)
}
