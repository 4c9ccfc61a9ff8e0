// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import "fmt"

// Table describes the schema of one database table: its name and
// ordered columns.
type Table struct {
	name           string
	columns        []*Column
	longStringRefs bool
}

// NewTable constructs a Table descriptor. It does not touch the
// package's stream storage; use Package.CreateTable to persist a new
// table's schema.
func NewTable(name string, columns []*Column, longStringRefs bool) *Table {
	return &Table{name: name, columns: columns, longStringRefs: longStringRefs}
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// Columns returns the table's columns, in storage order.
func (t *Table) Columns() []*Column { return t.columns }

// StreamName returns the CFB stream name this table's rows are stored
// under.
func (t *Table) StreamName() string { return encodeStreamName(t.name, true) }

// isValidTableName reports whether name is legal as both a SQL
// identifier and a table stream name.
func isValidTableName(name string) bool {
	return CategoryIdentifier.Validate(name) && isValidStreamName(name, true)
}

// PrimaryKeyIndices returns the positions of the table's primary-key
// columns.
func (t *Table) PrimaryKeyIndices() []int {
	var idx []int
	for i, c := range t.columns {
		if c.IsPrimaryKey() {
			idx = append(idx, i)
		}
	}
	return idx
}

// IndexForColumnName returns the position of the named column, or -1 if
// no such column exists.
func (t *Table) IndexForColumnName(name string) int {
	for i, c := range t.columns {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

func (t *Table) rowSize() int {
	size := 0
	for _, c := range t.columns {
		size += c.Type().width(t.longStringRefs)
	}
	return size
}

// readRows decodes a table's column-major stream data into raw
// per-row value refs. Each column is stored contiguously across every
// row before the next column begins.
func (t *Table) readRows(data []byte) ([][]valueRef, error) {
	rowSize := t.rowSize()
	if rowSize == 0 {
		return nil, nil
	}
	numRows := len(data) / rowSize
	if numRows*rowSize != len(data) {
		return nil, &InvalidDataError{Reason: fmt.Sprintf("table %q stream length not a multiple of row size", t.name)}
	}
	rows := make([][]valueRef, numRows)
	for i := range rows {
		rows[i] = make([]valueRef, len(t.columns))
	}
	colOffset := 0
	for ci, c := range t.columns {
		width := c.Type().width(t.longStringRefs)
		for ri := 0; ri < numRows; ri++ {
			offset := colOffset + ri*width
			v, _, err := c.Type().readValue(data, offset, t.longStringRefs)
			if err != nil {
				return nil, err
			}
			rows[ri][ci] = v
		}
		colOffset += numRows * width
	}
	return rows, nil
}

// writeRows encodes raw per-row value refs into a table's column-major
// stream representation.
func (t *Table) writeRows(rows [][]valueRef) ([]byte, error) {
	var buf []byte
	for ci, c := range t.columns {
		for _, row := range rows {
			encoded, err := c.Type().writeValue(row[ci], t.longStringRefs)
			if err != nil {
				return nil, err
			}
			buf = append(buf, encoded...)
		}
	}
	return buf, nil
}

// Row is one row of a Table, with every column's value already
// dereferenced through the string pool.
type Row struct {
	table *Table
	values []Value
}

// Table returns the table this row belongs to.
func (r *Row) Table() *Table { return r.table }

// Len returns the number of columns in the row.
func (r *Row) Len() int { return len(r.values) }

// Value returns the value at position i.
func (r *Row) Value(i int) Value { return r.values[i] }

// ValueByName returns the value of the named column. It panics if no
// such column exists, matching the original implementation's indexing
// operator.
func (r *Row) ValueByName(name string) Value {
	idx := r.table.IndexForColumnName(name)
	if idx < 0 {
		panic(fmt.Sprintf("no such column %q in table %q", name, r.table.name))
	}
	return r.values[idx]
}

// Rows is a decoded, string-pool-dereferenced list of Row values
// belonging to one table.
type Rows struct {
	table *Table
	rows  []Row
}

// Len returns the number of rows.
func (rs *Rows) Len() int { return len(rs.rows) }

// At returns the row at position i.
func (rs *Rows) At(i int) *Row { return &rs.rows[i] }

// All returns every row as a slice.
func (rs *Rows) All() []Row { return rs.rows }
