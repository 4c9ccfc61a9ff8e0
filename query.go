// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import "sort"

// tableStore is the narrow surface the query engine needs from a
// Package: lookup a table's schema, read/write its raw row data, and
// reach the shared string pool. Package implements this; keeping query
// execution behind an interface means the codec and the query engine
// never need to know about compound-file storage directly.
type tableStore interface {
	pool() *StringPool
	lookupTable(name string) (*Table, bool)
	readRawRows(t *Table) ([][]valueRef, error)
	writeRawRows(t *Table, rows [][]valueRef) error
}

// Join describes how to assemble an anonymous, possibly multi-table row
// set that a Select reads from.
type Join interface {
	resolve(store tableStore) (*joinedTable, error)
}

// joinedTable is the synthesized result of resolving a Join: a set of
// columns (possibly name-prefixed) and the rows gathered from the
// underlying tables.
type joinedTable struct {
	columns []*Column
	rows    [][]Value
}

func (j *joinedTable) indexForName(name string) int {
	for i, c := range j.columns {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// asTable wraps the joined columns in a Table so that a Row built over a
// joinedTable row can be walked by name by Expr.eval, reusing
// Row/Table's by-name lookup.
func (j *joinedTable) asTable() *Table {
	return &Table{name: "", columns: j.columns}
}

// TableJoin reads a single table as the base of a join chain.
type TableJoin struct{ Table string }

func (j TableJoin) resolve(store tableStore) (*joinedTable, error) {
	t, ok := store.lookupTable(j.Table)
	if !ok {
		return nil, &NotFoundError{Kind: "table", Name: j.Table}
	}
	raw, err := store.readRawRows(t)
	if err != nil {
		return nil, err
	}
	rows := rawRowsToValues(raw, store.pool())
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.withNamePrefix(j.Table)
	}
	return &joinedTable{columns: cols, rows: rows}, nil
}

// InnerJoin cross-joins Left and Right, keeping only row pairs where On
// evaluates true.
type InnerJoin struct {
	Left, Right Join
	On          Expr
}

func (j InnerJoin) resolve(store tableStore) (*joinedTable, error) {
	left, err := j.Left.resolve(store)
	if err != nil {
		return nil, err
	}
	right, err := j.Right.resolve(store)
	if err != nil {
		return nil, err
	}
	merged := &joinedTable{columns: append(append([]*Column{}, left.columns...), right.columns...)}
	table := merged.asTable()
	for _, lrow := range left.rows {
		for _, rrow := range right.rows {
			combined := append(append([]Value{}, lrow...), rrow...)
			row := &Row{table: table, values: combined}
			if j.On == nil || Eval(j.On, row) {
				merged.rows = append(merged.rows, combined)
			}
		}
	}
	return merged, nil
}

// LeftJoin is like InnerJoin but emits an all-NULL right-hand row for
// any left row with no matching right-hand row.
type LeftJoin struct {
	Left, Right Join
	On          Expr
}

func (j LeftJoin) resolve(store tableStore) (*joinedTable, error) {
	left, err := j.Left.resolve(store)
	if err != nil {
		return nil, err
	}
	right, err := j.Right.resolve(store)
	if err != nil {
		return nil, err
	}
	rightCols := make([]*Column, len(right.columns))
	for i, c := range right.columns {
		rightCols[i] = c.butNullable()
	}
	merged := &joinedTable{columns: append(append([]*Column{}, left.columns...), rightCols...)}
	table := merged.asTable()
	nullRight := make([]Value, len(right.columns))
	for i := range nullRight {
		nullRight[i] = NullValue
	}
	for _, lrow := range left.rows {
		matched := false
		for _, rrow := range right.rows {
			combined := append(append([]Value{}, lrow...), rrow...)
			row := &Row{table: table, values: combined}
			if j.On == nil || Eval(j.On, row) {
				merged.rows = append(merged.rows, combined)
				matched = true
			}
		}
		if !matched {
			merged.rows = append(merged.rows, append(append([]Value{}, lrow...), nullRight...))
		}
	}
	return merged, nil
}

func rawRowsToValues(raw [][]valueRef, pool *StringPool) [][]Value {
	rows := make([][]Value, len(raw))
	for i, r := range raw {
		values := make([]Value, len(r))
		for j, v := range r {
			values[j] = v.toValue(pool)
		}
		rows[i] = values
	}
	return rows
}

// Select reads a projected, optionally filtered view of a Join.
type Select struct {
	From    Join
	Columns []string // empty means all columns
	Where   Expr
}

// Exec runs the select against store and returns the resulting rows, as
// an anonymous table carrying only the projected columns.
func (s *Select) Exec(store tableStore) (*Rows, error) {
	joined, err := s.From.resolve(store)
	if err != nil {
		return nil, err
	}
	if s.Where != nil {
		for _, name := range s.Where.ColumnNames() {
			if joined.indexForName(name) < 0 {
				return nil, &InvalidInputError{Reason: "unknown column in WHERE clause: " + name}
			}
		}
	}
	projCols := joined.columns
	projIdx := make([]int, len(joined.columns))
	for i := range projIdx {
		projIdx[i] = i
	}
	if len(s.Columns) > 0 {
		projCols = make([]*Column, len(s.Columns))
		projIdx = make([]int, len(s.Columns))
		for i, name := range s.Columns {
			idx := joined.indexForName(name)
			if idx < 0 {
				return nil, &InvalidInputError{Reason: "unknown column in projection: " + name}
			}
			projCols[i] = joined.columns[idx]
			projIdx[i] = idx
		}
	}
	result := &Table{name: "", columns: projCols}
	var out []Row
	for _, row := range joined.rows {
		full := &Row{table: joined.asTable(), values: row}
		if s.Where != nil && !Eval(s.Where, full) {
			continue
		}
		projected := make([]Value, len(projIdx))
		for i, idx := range projIdx {
			projected[i] = row[idx]
		}
		out = append(out, Row{table: result, values: projected})
	}
	return &Rows{table: result, rows: out}, nil
}

// Insert adds new rows to a table.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]Value
}

// Exec validates and inserts the rows, rewriting the table's stream.
func (ins *Insert) Exec(store tableStore) error {
	t, ok := store.lookupTable(ins.Table)
	if !ok {
		return &NotFoundError{Kind: "table", Name: ins.Table}
	}
	colIdx := make([]int, len(ins.Columns))
	for i, name := range ins.Columns {
		idx := t.IndexForColumnName(name)
		if idx < 0 {
			return &InvalidInputError{Reason: "unknown column: " + name}
		}
		colIdx[i] = idx
	}
	raw, err := store.readRawRows(t)
	if err != nil {
		return err
	}
	pkIdx := t.PrimaryKeyIndices()
	pool := store.pool()
	existingKeys := map[string]bool{}
	for _, row := range raw {
		existingKeys[rowKey(derefRow(row, pool), pkIdx)] = true
	}
	newKeys := map[string]bool{}

	// Validate every row in the batch, including primary-key uniqueness,
	// before interning any string into the pool: a row that fails later
	// in the batch must leave earlier rows' strings un-refcounted.
	fullRows := make([][]Value, 0, len(ins.Rows))
	for _, values := range ins.Rows {
		if len(values) != len(ins.Columns) {
			return &InvalidInputError{Reason: "row has wrong number of values", Cause: ErrWrongNumberOfValues}
		}
		full := make([]Value, len(t.columns))
		for i := range full {
			full[i] = NullValue
		}
		for i, idx := range colIdx {
			full[idx] = values[i]
		}
		for i, c := range t.columns {
			if !c.IsValidValue(full[i]) {
				return &InvalidInputError{Reason: "invalid value for column " + c.Name()}
			}
		}
		key := rowKey(full, pkIdx)
		if existingKeys[key] {
			return &AlreadyExistsError{Kind: "row", Name: key}
		}
		if newKeys[key] {
			return &InvalidInputError{Reason: "duplicate primary key among inserted rows: " + key}
		}
		newKeys[key] = true
		fullRows = append(fullRows, full)
	}

	newRaw := make([][]valueRef, len(fullRows))
	for i, full := range fullRows {
		refRow := make([]valueRef, len(full))
		for j, v := range full {
			refRow[j] = valueToRef(v, pool)
		}
		newRaw[i] = refRow
	}
	raw = append(raw, newRaw...)
	sortRowsByPrimaryKey(raw, pkIdx, pool)
	return store.writeRawRows(t, raw)
}

// sortRowsByPrimaryKey orders rows by their primary-key tuple, matching
// the canonical row order a map keyed by primary key produces when
// rewritten to disk: new rows interleave with existing ones in key
// order rather than simply appending at the end.
func sortRowsByPrimaryKey(rows [][]valueRef, pkIdx []int, pool *StringPool) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, idx := range pkIdx {
			vi := rows[i][idx].toValue(pool)
			vj := rows[j][idx].toValue(pool)
			if c := compareOrder(vi, vj); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func valueToRef(v Value, pool *StringPool) valueRef {
	switch {
	case v.IsNull():
		return nullValueRef()
	case v.IsInt():
		return intValueRef(v.Int())
	default:
		return strValueRef(pool.Incref(v.Str()))
	}
}

// derefRow resolves a stored row's string refs into plain Values so it
// can be compared against freshly-built rows that don't have pool refs
// yet, regardless of which pool slot backs a given string.
func derefRow(row []valueRef, pool *StringPool) []Value {
	values := make([]Value, len(row))
	for i, v := range row {
		values[i] = v.toValue(pool)
	}
	return values
}

// rowKey builds a primary-key identity for row from its dereferenced
// values, not its string-pool refs: two rows holding the same text must
// collide even if a tombstone reuse or fresh incref gave them different
// refs.
func rowKey(row []Value, pkIdx []int) string {
	key := make([]byte, 0, 4*len(pkIdx))
	for _, i := range pkIdx {
		v := row[i]
		switch {
		case v.IsNull():
			key = append(key, 0)
		case v.IsInt():
			n := uint32(v.Int())
			key = append(key, 1, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
		default:
			key = append(key, 2)
			key = append(key, v.Str()...)
			key = append(key, 0)
		}
	}
	return string(key)
}

// Update changes the value of one or more columns on every row matching
// Where (or every row, if Where is nil).
type Update struct {
	Table       string
	Assignments map[string]Value
	Where       Expr
}

// Exec performs the update, rewriting the table's stream.
func (u *Update) Exec(store tableStore) error {
	t, ok := store.lookupTable(u.Table)
	if !ok {
		return &NotFoundError{Kind: "table", Name: u.Table}
	}
	assignIdx := map[int]Value{}
	for name, v := range u.Assignments {
		idx := t.IndexForColumnName(name)
		if idx < 0 {
			return &InvalidInputError{Reason: "unknown column: " + name}
		}
		if !t.columns[idx].IsValidValue(v) {
			return &InvalidInputError{Reason: "invalid value for column " + name}
		}
		assignIdx[idx] = v
	}
	if u.Where != nil {
		for _, name := range u.Where.ColumnNames() {
			if t.IndexForColumnName(name) < 0 {
				return &InvalidInputError{Reason: "unknown column in WHERE clause: " + name}
			}
		}
	}
	raw, err := store.readRawRows(t)
	if err != nil {
		return err
	}
	pool := store.pool()
	for ri, refRow := range raw {
		values := make([]Value, len(refRow))
		for i, v := range refRow {
			values[i] = v.toValue(pool)
		}
		row := &Row{table: t, values: values}
		if u.Where != nil && !Eval(u.Where, row) {
			continue
		}
		for idx, newVal := range assignIdx {
			old := refRow[idx]
			if !old.null && !old.isInt {
				pool.Decref(old.ref)
			}
			raw[ri][idx] = valueToRef(newVal, pool)
		}
	}
	return store.writeRawRows(t, raw)
}

// Delete removes every row matching Where (or every row, if Where is
// nil) from a table.
type Delete struct {
	Table string
	Where Expr
}

// Exec performs the delete, rewriting the table's stream.
func (d *Delete) Exec(store tableStore) error {
	t, ok := store.lookupTable(d.Table)
	if !ok {
		return &NotFoundError{Kind: "table", Name: d.Table}
	}
	if d.Where != nil {
		for _, name := range d.Where.ColumnNames() {
			if t.IndexForColumnName(name) < 0 {
				return &InvalidInputError{Reason: "unknown column in WHERE clause: " + name}
			}
		}
	}
	raw, err := store.readRawRows(t)
	if err != nil {
		return err
	}
	pool := store.pool()
	var kept [][]valueRef
	for _, refRow := range raw {
		values := make([]Value, len(refRow))
		for i, v := range refRow {
			values[i] = v.toValue(pool)
		}
		row := &Row{table: t, values: values}
		match := d.Where == nil || Eval(d.Where, row)
		if !match {
			kept = append(kept, refRow)
			continue
		}
		for _, v := range refRow {
			if !v.null && !v.isInt {
				pool.Decref(v.ref)
			}
		}
	}
	return store.writeRawRows(t, kept)
}

// sortedTableNames is a small helper used by Package.Tables to present a
// deterministic ordering of an in-memory map.
func sortedTableNames(m map[string]*Table) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
