// Package dataset holds the in-memory tabular model that harmonization
// operates on, plus CSV reading and writing.
//
// A Table is column-oriented. Cells hold the values understood by the
// operations package: nil for a missing cell, int64, float64, string or bool.
package dataset

import (
	"fmt"
)

// Column is a named column of cell values.
type Column struct {
	Name   string
	Values []any
}

// Table is an ordered set of equal-length columns.
//
// Column names are unique. Tables are not safe for concurrent mutation.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates an empty table with the given number of rows.
func New(rows int) *Table {
	return &Table{index: make(map[string]int), rows: rows}
}

// FromColumns builds a table from columns, which must share a length and
// have distinct names.
func FromColumns(columns ...*Column) (*Table, error) {
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0].Values)
	}
	t := New(rows)
	for _, c := range columns {
		if err := t.AddColumn(c.Name, c.Values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddColumn appends a new column.
func (t *Table) AddColumn(name string, values []any) error {
	if _, ok := t.index[name]; ok {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(values) != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.rows)
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, &Column{Name: name, Values: values})
	return nil
}

// SetColumn replaces the values of an existing column, or appends the column
// when it does not exist.
func (t *Table) SetColumn(name string, values []any) error {
	i, ok := t.index[name]
	if !ok {
		return t.AddColumn(name, values)
	}
	if len(values) != t.rows {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.rows)
	}
	t.columns[i].Values = values
	return nil
}

// Rename renames a column in place, keeping its position.
func (t *Table) Rename(from, to string) error {
	if from == to {
		return nil
	}
	i, ok := t.index[from]
	if !ok {
		return fmt.Errorf("column %q not found", from)
	}
	if _, exists := t.index[to]; exists {
		return fmt.Errorf("duplicate column %q", to)
	}
	delete(t.index, from)
	t.index[to] = i
	t.columns[i].Name = to
	return nil
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Clone returns a copy of the table whose columns can be mutated without
// affecting t. Cell values are shared.
func (t *Table) Clone() *Table {
	out := New(t.rows)
	for _, c := range t.columns {
		values := make([]any, len(c.Values))
		copy(values, c.Values)
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, &Column{Name: c.Name, Values: values})
	}
	return out
}

// Concat stacks tables vertically. The result has the union of their
// columns in first-seen order; cells of columns a table lacks are nil.
func Concat(tables ...*Table) *Table {
	var names []string
	seen := make(map[string]bool)
	rows := 0
	for _, t := range tables {
		rows += t.rows
		for _, c := range t.columns {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}

	out := New(rows)
	for _, name := range names {
		values := make([]any, 0, rows)
		for _, t := range tables {
			if c, ok := t.Column(name); ok {
				values = append(values, c.Values...)
			} else {
				values = append(values, make([]any, t.rows)...)
			}
		}
		out.index[name] = len(out.columns)
		out.columns = append(out.columns, &Column{Name: name, Values: values})
	}
	return out
}
