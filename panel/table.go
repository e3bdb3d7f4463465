package panel

import (
	"math"
	"time"
)

// Well-known column names.
const (
	IDColumn            = "unique_id"
	TimeColumn          = "ds"
	TargetColumn        = "y"
	SampleMaskColumn    = "sample_mask"
	AvailableMaskColumn = "available_mask"
)

// Column is a named numeric column. Missing values are NaN.
type Column struct {
	Name   string
	Values []float64
}

// Table is a long-format table keyed by (entity id, timestamp).
// Static tables leave Times nil and carry one row per entity.
type Table struct {
	IDs     []string
	Times   []time.Time
	Columns []Column
}

// NewTable creates a keyed table with no value columns.
func NewTable(ids []string, times []time.Time) *Table {
	return &Table{IDs: ids, Times: times}
}

// NewStaticTable creates an entity-keyed table without timestamps.
func NewStaticTable(ids []string) *Table {
	return &Table{IDs: ids}
}

// With appends a column and returns the table for chaining.
// Lengths are checked when the table is handed to New.
func (t *Table) With(name string, values []float64) *Table {
	t.Columns = append(t.Columns, Column{Name: name, Values: values})
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.IDs)
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Values, true
		}
	}
	return nil, false
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ColumnNames returns the value column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Copy returns a deep copy of the table.
func (t *Table) Copy() *Table {
	out := &Table{
		IDs: append([]string(nil), t.IDs...),
	}
	if t.Times != nil {
		out.Times = append([]time.Time(nil), t.Times...)
	}
	for _, c := range t.Columns {
		out.Columns = append(out.Columns, Column{Name: c.Name, Values: append([]float64(nil), c.Values...)})
	}
	return out
}

// take returns the rows of t in the given order.
func (t *Table) take(order []int) *Table {
	out := &Table{IDs: make([]string, len(order))}
	for i, r := range order {
		out.IDs[i] = t.IDs[r]
	}
	if t.Times != nil {
		out.Times = make([]time.Time, len(order))
		for i, r := range order {
			out.Times[i] = t.Times[r]
		}
	}
	for _, c := range t.Columns {
		values := make([]float64, len(order))
		for i, r := range order {
			values[i] = c.Values[r]
		}
		out.Columns = append(out.Columns, Column{Name: c.Name, Values: values})
	}
	return out
}

// hasNaN reports whether any value is NaN.
func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
