package project

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Effort input errors.
var (
	// ErrBadEffortShape indicates an effort vector or table row whose
	// length matches neither one nor the gear count.
	ErrBadEffortShape = errors.New("project: bad effort shape")

	// ErrUnknownGear indicates effort gear labels that are not
	// set-equal to the store's gears.
	ErrUnknownGear = errors.New("project: unknown gear in effort")
)

// Effort is the fishing effort input of one projection. Exactly one of
// the three accepted shapes is set: a scalar broadcast to every gear, a
// positional per-gear vector, or a time-indexed table whose optional
// gear labels are matched to the canonical gear order by name.
type Effort struct {
	scalar *float64
	vector []float64
	table  *effortTable
}

type effortTable struct {
	times []float64
	gears []string // optional; positional when empty
	rows  [][]float64
}

// Constant broadcasts one effort value to every gear.
func Constant(v float64) Effort {
	return Effort{scalar: &v}
}

// Vector supplies one effort value per gear, in the store's canonical
// gear order.
func Vector(v []float64) Effort {
	return Effort{vector: append([]float64(nil), v...)}
}

// Table supplies a time-indexed effort schedule. Each row applies from
// its time until the next row's time (piecewise constant); rows are
// broadcast like vectors. gears may be nil for positional columns, or
// name the columns in any order and case.
func Table(times []float64, gears []string, rows [][]float64) Effort {
	t := &effortTable{
		times: append([]float64(nil), times...),
		gears: append([]string(nil), gears...),
		rows:  make([][]float64, len(rows)),
	}
	for i, r := range rows {
		t.rows[i] = append([]float64(nil), r...)
	}
	return Effort{table: t}
}

// compile resolves the effort input against the canonical gear order
// once per projection, returning an evaluator from time to per-gear
// effort.
func (e Effort) compile(gears []string) (func(t float64) []float64, error) {
	n := len(gears)

	switch {
	case e.scalar != nil:
		row := make([]float64, n)
		for i := range row {
			row[i] = *e.scalar
		}
		return func(float64) []float64 { return row }, nil

	case e.vector != nil:
		if len(e.vector) != n {
			return nil, fmt.Errorf("%w: vector has %d entries, want %d gears",
				ErrBadEffortShape, len(e.vector), n)
		}
		return func(float64) []float64 { return e.vector }, nil

	case e.table != nil:
		return e.table.compile(gears)

	default:
		// Absent effort means no fishing.
		row := make([]float64, n)
		return func(float64) []float64 { return row }, nil
	}
}

func (tb *effortTable) compile(gears []string) (func(t float64) []float64, error) {
	n := len(gears)
	if len(tb.rows) == 0 || len(tb.times) != len(tb.rows) {
		return nil, fmt.Errorf("%w: table has %d times for %d rows",
			ErrBadEffortShape, len(tb.times), len(tb.rows))
	}
	if !sort.Float64sAreSorted(tb.times) {
		return nil, fmt.Errorf("%w: table times not increasing", ErrBadEffortShape)
	}

	// Column order: positional unless the table names its gears, in
	// which case names are matched case-insensitively and must be
	// set-equal to the store's gears.
	perm, err := gearPermutation(tb.gears, gears)
	if err != nil {
		return nil, err
	}

	resolved := make([][]float64, len(tb.rows))
	for ri, row := range tb.rows {
		switch {
		case len(row) == 1:
			// Single-column rows broadcast to every gear.
			r := make([]float64, n)
			for i := range r {
				r[i] = row[0]
			}
			resolved[ri] = r
		case len(row) == n:
			r := make([]float64, n)
			for i := range r {
				if perm != nil {
					r[i] = row[perm[i]]
				} else {
					r[i] = row[i]
				}
			}
			resolved[ri] = r
		default:
			return nil, fmt.Errorf("%w: table row %d has %d entries, want %d gears",
				ErrBadEffortShape, ri, len(row), n)
		}
	}

	times := tb.times
	return func(t float64) []float64 {
		// Latest row whose time does not exceed t; before the first
		// row the first row applies.
		idx := sort.SearchFloat64s(times, t)
		if idx < len(times) && times[idx] == t {
			return resolved[idx]
		}
		if idx == 0 {
			return resolved[0]
		}
		return resolved[idx-1]
	}, nil
}

// gearPermutation maps canonical gear positions to table columns. A nil
// permutation means positional columns.
func gearPermutation(labels, gears []string) ([]int, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	if len(labels) != len(gears) {
		return nil, fmt.Errorf("%w: effort names %d gears, store has %d",
			ErrUnknownGear, len(labels), len(gears))
	}
	byName := make(map[string]int, len(labels))
	for col, l := range labels {
		byName[strings.ToLower(l)] = col
	}
	perm := make([]int, len(gears))
	for i, g := range gears {
		col, ok := byName[strings.ToLower(g)]
		if !ok {
			return nil, fmt.Errorf("%w: store gear %q missing from effort labels %v",
				ErrUnknownGear, g, labels)
		}
		perm[i] = col
	}
	if len(byName) != len(gears) {
		return nil, fmt.Errorf("%w: effort labels %v are not set-equal to store gears %v",
			ErrUnknownGear, labels, gears)
	}
	return perm, nil
}
