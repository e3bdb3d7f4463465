package panel

import (
	"sort"

	"github.com/pkg/errors"
)

type rowKey struct {
	id string
	ts int64
}

// DefaultMask derives a mask table from the target table. The most recent
// dsInTest timestamps of every entity get sample_mask 0, all other rows 1.
// available_mask is always 1. When isTest is set the sample mask is inverted
// so that the recent window becomes the included region.
//
// The result is sorted by (entity, timestamp).
func DefaultMask(target *Table, dsInTest int, isTest bool) (*Table, error) {
	if target == nil {
		return nil, errors.Wrap(ErrSchema, "target table is nil")
	}
	if dsInTest < 0 {
		return nil, errors.Errorf("panel: ds in test must be non-negative, got %d", dsInTest)
	}
	if target.Times == nil || len(target.Times) != len(target.IDs) {
		return nil, errors.Wrapf(ErrSchema, "target table needs one %q per %q", TimeColumn, IDColumn)
	}

	order := sortOrder(target)

	// Most recent dsInTest rows per entity, walking each entity backwards.
	heldOut := make(map[rowKey]int)
	for end := len(order); end > 0; {
		id := target.IDs[order[end-1]]
		start := end
		for start > 0 && target.IDs[order[start-1]] == id {
			start--
		}
		for i, n := end-1, 0; i >= start && n < dsInTest; i, n = i-1, n+1 {
			r := order[i]
			heldOut[rowKey{id: id, ts: target.Times[r].UnixNano()}]++
		}
		end = start
	}

	// Left join of the held-out marking back onto the target rows.
	mask := &Table{}
	var sample []float64
	for _, r := range order {
		k := rowKey{id: target.IDs[r], ts: target.Times[r].UnixNano()}
		matches := heldOut[k]
		if matches == 0 {
			mask.IDs = append(mask.IDs, target.IDs[r])
			mask.Times = append(mask.Times, target.Times[r])
			sample = append(sample, 1)
			continue
		}
		for i := 0; i < matches; i++ {
			mask.IDs = append(mask.IDs, target.IDs[r])
			mask.Times = append(mask.Times, target.Times[r])
			sample = append(sample, 0)
		}
	}

	if mask.Len() != target.Len() {
		return nil, errors.Errorf("panel: mask length %d is not equal to target length %d", mask.Len(), target.Len())
	}

	available := make([]float64, len(sample))
	for i := range available {
		available[i] = 1
	}
	if isTest {
		for i := range sample {
			sample[i] = 1 - sample[i]
		}
	}

	mask.With(SampleMaskColumn, sample)
	mask.With(AvailableMaskColumn, available)
	return mask, nil
}

// sortOrder returns the row permutation ordering t by (entity, timestamp).
// Static tables are ordered by entity only.
func sortOrder(t *Table) []int {
	order := make([]int, t.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := order[a], order[b]
		if t.IDs[ra] != t.IDs[rb] {
			return t.IDs[ra] < t.IDs[rb]
		}
		if t.Times == nil {
			return false
		}
		return t.Times[ra].Before(t.Times[rb])
	})
	return order
}
