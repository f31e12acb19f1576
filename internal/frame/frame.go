// Package frame is a small typed column store for applicant data. Numeric
// columns mark missing values with NaN; categorical columns use "".
package frame

import (
	"fmt"
	"math"
	"slices"
)

// Kind declares how a column is treated by the preprocessing stages.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column holds one named, typed sequence of values. Exactly one of Num or Cat
// is populated, according to Kind.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Cat  []string
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Num)
	}
	return len(c.Cat)
}

// IsMissing reports whether row i has no value.
func (c Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Num[i])
	}
	return c.Cat[i] == ""
}

func (c Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Num != nil {
		out.Num = slices.Clone(c.Num)
	}
	if c.Cat != nil {
		out.Cat = slices.Clone(c.Cat)
	}
	return out
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	rows  int
	cols  []Column
	index map[string]int
}

// New creates an empty frame that will hold rows records.
func New(rows int) *Frame {
	return &Frame{rows: rows, index: make(map[string]int)}
}

// Rows returns the record count.
func (f *Frame) Rows() int { return f.rows }

// Width returns the column count.
func (f *Frame) Width() int { return len(f.cols) }

// SetNumeric adds a numeric column, or replaces the column of the same name
// in place so column order is preserved.
func (f *Frame) SetNumeric(name string, values []float64) error {
	return f.set(Column{Name: name, Kind: Numeric, Num: values})
}

// SetCategorical adds or replaces a categorical column in place.
func (f *Frame) SetCategorical(name string, values []string) error {
	return f.set(Column{Name: name, Kind: Categorical, Cat: values})
}

func (f *Frame) set(col Column) error {
	if col.Len() != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", col.Name, col.Len(), f.rows)
	}
	if i, ok := f.index[col.Name]; ok {
		f.cols[i] = col
		return nil
	}
	f.index[col.Name] = len(f.cols)
	f.cols = append(f.cols, col)
	return nil
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return Column{}, false
	}
	return f.cols[i], true
}

// Has reports whether every named column is present.
func (f *Frame) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := f.index[name]; !ok {
			return false
		}
	}
	return true
}

// Names returns column names in frame order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns of the given kind in frame order.
func (f *Frame) Columns(kind Kind) []Column {
	var out []Column
	for _, c := range f.cols {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Drop removes the named columns; names that are absent are ignored.
func (f *Frame) Drop(names ...string) {
	if len(names) == 0 {
		return
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if !slices.Contains(names, c.Name) {
			kept = append(kept, c)
		}
	}
	f.cols = kept
	f.index = make(map[string]int, len(kept))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := New(f.rows)
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.clone())
	}
	return out
}

// Slice returns a deep copy holding only the given rows, in that order.
func (f *Frame) Slice(rows []int) *Frame {
	out := New(len(rows))
	for _, c := range f.cols {
		nc := Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Numeric {
			nc.Num = make([]float64, len(rows))
			for i, r := range rows {
				nc.Num[i] = c.Num[r]
			}
		} else {
			nc.Cat = make([]string, len(rows))
			for i, r := range rows {
				nc.Cat[i] = c.Cat[r]
			}
		}
		out.index[nc.Name] = len(out.cols)
		out.cols = append(out.cols, nc)
	}
	return out
}
