// Package models defines the tabular data structures shared by the format
// detector and the transformation pipeline: the in-memory Table that rules
// operate on, the canonical transaction schema all reports converge to, and
// the value parsing helpers for amounts and dates found in payer exports.
package models

import (
	"fmt"
	"strings"
)

// Table is an ordered-column, row-oriented view of a delimited report.
// Cells are nullable strings; a nil cell models a blank or unparseable value.
// Transformation rules treat tables as immutable and return new instances.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row maps column names to nullable cell values.
type Row map[string]*string

// NewTable creates an empty table with the given column order.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		Columns: cols,
		Rows:    make([]Row, 0),
	}
}

// Cell returns a pointer to the given string, for populating nullable cells.
func Cell(s string) *string {
	return &s
}

// AppendRow adds a row to the table. Missing columns are left null;
// keys not in the column set are ignored.
func (t *Table) AppendRow(values Row) {
	row := make(Row, len(t.Columns))
	for _, col := range t.Columns {
		if v, ok := values[col]; ok {
			row[col] = v
		}
	}
	t.Rows = append(t.Rows, row)
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.Columns)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Get returns the cell at the given row index and column, or nil when the
// row is out of range, the column is absent, or the cell is null.
func (t *Table) Get(rowIdx int, column string) *string {
	if rowIdx < 0 || rowIdx >= len(t.Rows) {
		return nil
	}
	return t.Rows[rowIdx][column]
}

// GetString returns the cell value and whether it was non-null.
func (t *Table) GetString(rowIdx int, column string) (string, bool) {
	cell := t.Get(rowIdx, column)
	if cell == nil {
		return "", false
	}
	return *cell, true
}

// Set assigns a cell value. Setting an unknown column is a no-op so rules
// can target columns that a particular source format never produced.
func (t *Table) Set(rowIdx int, column string, value *string) {
	if rowIdx < 0 || rowIdx >= len(t.Rows) || !t.HasColumn(column) {
		return
	}
	t.Rows[rowIdx][column] = value
}

// Clone returns a deep copy of the table. Rules clone their input so the
// pipeline can thread outputs without sharing mutable state.
func (t *Table) Clone() *Table {
	clone := NewTable(t.Columns)
	clone.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		newRow := make(Row, len(row))
		for col, cell := range row {
			if cell != nil {
				v := *cell
				newRow[col] = &v
			} else {
				newRow[col] = nil
			}
		}
		clone.Rows[i] = newRow
	}
	return clone
}

// AddColumn appends a new null-filled column. Adding an existing column
// is a no-op.
func (t *Table) AddColumn(name string) {
	if t.HasColumn(name) {
		return
	}
	t.Columns = append(t.Columns, name)
	for _, row := range t.Rows {
		row[name] = nil
	}
}

// RenameColumn renames a column in place, preserving its position and
// cell values. Renaming an absent column returns an error.
func (t *Table) RenameColumn(from, to string) error {
	if !t.HasColumn(from) {
		return fmt.Errorf("column %q not present", from)
	}
	for i, col := range t.Columns {
		if col == from {
			t.Columns[i] = to
			break
		}
	}
	for _, row := range t.Rows {
		row[to] = row[from]
		delete(row, from)
	}
	return nil
}

// ReorderColumns rearranges the table to exactly the given column order.
// Columns absent from the table are added null-filled; columns not named
// in the order are dropped.
func (t *Table) ReorderColumns(order []string) {
	for _, col := range order {
		t.AddColumn(col)
	}

	keep := make(map[string]bool, len(order))
	for _, col := range order {
		keep[col] = true
	}
	for _, row := range t.Rows {
		for col := range row {
			if !keep[col] {
				delete(row, col)
			}
		}
	}

	cols := make([]string, len(order))
	copy(cols, order)
	t.Columns = cols
}

// IsNull reports whether the cell is null or blank after trimming.
func IsNull(cell *string) bool {
	return cell == nil || strings.TrimSpace(*cell) == ""
}

// String returns a short description of the table shape.
func (t *Table) String() string {
	return fmt.Sprintf("Table{%d columns, %d rows}", len(t.Columns), len(t.Rows))
}
