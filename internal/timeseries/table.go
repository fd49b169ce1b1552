// Package timeseries provides the date-indexed numeric table that every
// parsed report and derived ratio set is built on.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Table is an ordered numeric table keyed by period date. Rows are reporting
// periods in ascending chronological order, columns are named metrics.
// Missing cells are NaN.
type Table struct {
	dates   []time.Time
	columns map[string][]float64
	order   []string // column insertion order, kept stable for output
}

// New creates a table over the given period dates. Rows are sorted
// ascending; column values set later must match the sorted order.
func New(dates []time.Time) *Table {
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	return &Table{
		dates:   sorted,
		columns: make(map[string][]float64),
	}
}

// NewEmpty creates a table with no rows and no columns. Parse failures
// degrade to an empty table so downstream derivations propagate missing
// values instead of erroring.
func NewEmpty() *Table {
	return New(nil)
}

// Len returns the number of periods.
func (t *Table) Len() int {
	return len(t.dates)
}

// Empty reports whether the table has no periods.
func (t *Table) Empty() bool {
	return len(t.dates) == 0
}

// Dates returns the period dates in ascending order.
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, len(t.dates))
	copy(out, t.dates)
	return out
}

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns a copy of the named column, or nil if absent.
func (t *Table) Column(name string) []float64 {
	values, ok := t.columns[name]
	if !ok {
		return nil
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

// SetColumn sets or replaces a column. The value count must match the
// period count.
func (t *Table) SetColumn(name string, values []float64) error {
	if len(values) != len(t.dates) {
		return fmt.Errorf("column %q has %d values for %d periods", name, len(values), len(t.dates))
	}
	if _, exists := t.columns[name]; !exists {
		t.order = append(t.order, name)
	}
	stored := make([]float64, len(values))
	copy(stored, values)
	t.columns[name] = stored
	return nil
}

// DropColumn removes a column. Missing columns are a no-op.
func (t *Table) DropColumn(name string) {
	if _, ok := t.columns[name]; !ok {
		return
	}
	delete(t.columns, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// RenameColumn renames a column in place, keeping its position.
func (t *Table) RenameColumn(oldName, newName string) {
	values, ok := t.columns[oldName]
	if !ok {
		return
	}
	delete(t.columns, oldName)
	t.columns[newName] = values
	for i, n := range t.order {
		if n == oldName {
			t.order[i] = newName
			break
		}
	}
}

// Value returns the cell for a column at row index i, NaN when the column
// is absent or the index is out of range.
func (t *Table) Value(name string, i int) float64 {
	values, ok := t.columns[name]
	if !ok || i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

// Latest returns the most recent value of a column, NaN when the column is
// absent or the table is empty.
func (t *Table) Latest(name string) float64 {
	return t.Value(name, len(t.dates)-1)
}

// NearestIndex returns the row index whose date is closest to the given
// date by absolute distance. Ties resolve to the earlier date. Returns -1
// for an empty table.
func (t *Table) NearestIndex(date time.Time) int {
	if len(t.dates) == 0 {
		return -1
	}
	best := 0
	bestDist := absDuration(t.dates[0].Sub(date))
	for i := 1; i < len(t.dates); i++ {
		dist := absDuration(t.dates[i].Sub(date))
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// AlignedColumn maps a column from another table onto this table's period
// index by exact date equality. Periods without a matching source date are
// NaN. Returns all-NaN when the source column is absent.
func (t *Table) AlignedColumn(src *Table, name string) []float64 {
	out := make([]float64, len(t.dates))
	for i := range out {
		out[i] = math.NaN()
	}
	values, ok := src.columns[name]
	if !ok {
		return out
	}
	byDate := make(map[time.Time]float64, len(src.dates))
	for i, d := range src.dates {
		byDate[d] = values[i]
	}
	for i, d := range t.dates {
		if v, ok := byDate[d]; ok {
			out[i] = v
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
