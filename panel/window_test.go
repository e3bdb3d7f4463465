package panel

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilteredTensorWholeHistory(t *testing.T) {
	ds, err := New(makeTarget([]string{"a", "b"}, []int{15, 9}), nil)
	require.NoError(t, err)
	require.Equal(t, 15, ds.MaxLen())

	w, err := ds.FilteredTensor(5, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Start)
	assert.Equal(t, 15, w.Len)
	assert.Equal(t, 5, w.RightPadding)
	assert.Equal(t, []int{0, 1}, w.Entities)
	for tt := 0; tt < w.Len; tt++ {
		assert.Equal(t, ds.At(1, 0, tt), w.At(1, 0, tt))
	}
}

func TestFilteredTensorLimit(t *testing.T) {
	ds, err := New(makeTarget([]string{"a", "b", "c"}, []int{15, 9, 12}), nil)
	require.NoError(t, err)

	w, err := ds.FilteredTensor(0, 6, []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 9, w.Start)
	assert.Equal(t, 6, w.Len)
	assert.Equal(t, 0, w.RightPadding)
	assert.Equal(t, []int{2, 0}, w.Entities)

	// Rows keep the requested order.
	assert.Equal(t, []float64{206, 207, 208, 209, 210, 211}, w.Series(0, 0))
	assert.Equal(t, []float64{9, 10, 11, 12, 13, 14}, w.Series(1, 0))
}

func TestFilteredTensorNoLimit(t *testing.T) {
	ds, err := New(makeTarget([]string{"a"}, []int{7}), nil)
	require.NoError(t, err)

	w, err := ds.FilteredTensor(2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Start)
	assert.Equal(t, 7, w.Len)
	assert.Equal(t, 2, w.RightPadding)
}

func TestFilteredTensorErrors(t *testing.T) {
	ds, err := New(makeTarget([]string{"a"}, []int{7}), nil)
	require.NoError(t, err)

	_, err = ds.FilteredTensor(1, 3, []int{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLookup))

	_, err = ds.FilteredTensor(-1, 3, nil)
	assert.Error(t, err)
}

func TestWindowPadded(t *testing.T) {
	ds, err := New(makeTarget([]string{"a", "b"}, []int{4, 3}), nil)
	require.NoError(t, err)

	w, err := ds.FilteredTensor(2, 3, nil)
	require.NoError(t, err)
	p := w.Padded()
	assert.Equal(t, 5, p.Len)
	assert.Zero(t, p.RightPadding)
	assert.Equal(t, []float64{1, 2, 3, 0, 0}, p.Series(0, 0))
	assert.Equal(t, []float64{100, 101, 102, 0, 0}, p.Series(1, 0))
}

func TestWindowTensor(t *testing.T) {
	ds, err := New(makeTarget([]string{"a", "b"}, []int{4, 3}), nil)
	require.NoError(t, err)

	w, err := ds.FilteredTensor(0, 0, nil)
	require.NoError(t, err)
	tensor := w.Tensor()
	assert.Equal(t, []int{2, ds.NChannels(), 4}, tensor.Shape().Dimensions)
}
