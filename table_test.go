// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	return NewTable("Widgets", []*Column{
		BuildColumn("ID").PrimaryKey().Int32(),
		BuildColumn("Flags").Int16(),
		BuildColumn("Name").TextString(32),
	}, false)
}

func TestTableNameAndColumns(t *testing.T) {
	tbl := testTable()
	assert.Equal(t, "Widgets", tbl.Name())
	assert.Len(t, tbl.Columns(), 3)
	assert.Equal(t, []int{0}, tbl.PrimaryKeyIndices())
}

func TestTableStreamNameHasTableMarker(t *testing.T) {
	tbl := testTable()
	name := tbl.StreamName()
	runes := []rune(name)
	assert.Equal(t, rune(tableNameMarker), runes[0])
}

func TestTableIndexForColumnName(t *testing.T) {
	tbl := testTable()
	assert.Equal(t, 2, tbl.IndexForColumnName("Name"))
	assert.Equal(t, -1, tbl.IndexForColumnName("Bogus"))
}

func TestTableReadWriteRowsRoundTrip(t *testing.T) {
	tbl := testTable()
	rows := [][]valueRef{
		{intValueRef(1), intValueRef(7), strValueRef(stringRef(1))},
		{intValueRef(2), nullValueRef(), strValueRef(stringRef(2))},
	}
	encoded, err := tbl.writeRows(rows)
	require.NoError(t, err)

	decoded, err := tbl.readRows(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, rows, decoded)
}

func TestTableReadRowsRejectsMisalignedStream(t *testing.T) {
	tbl := testTable()
	_, err := tbl.readRows([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRowAccessors(t *testing.T) {
	tbl := testTable()
	row := Row{table: tbl, values: []Value{IntValue(1), IntValue(0), StrValue("Gadget")}}
	assert.Equal(t, tbl, row.Table())
	assert.Equal(t, 3, row.Len())
	assert.Equal(t, StrValue("Gadget"), row.ValueByName("Name"))
}

func TestRowValueByNamePanicsOnUnknownColumn(t *testing.T) {
	tbl := testTable()
	row := Row{table: tbl, values: []Value{IntValue(1), IntValue(0), StrValue("Gadget")}}
	assert.Panics(t, func() { row.ValueByName("Bogus") })
}

func TestRowsLenAtAll(t *testing.T) {
	tbl := testTable()
	rows := &Rows{table: tbl, rows: []Row{
		{table: tbl, values: []Value{IntValue(1), IntValue(0), StrValue("A")}},
		{table: tbl, values: []Value{IntValue(2), IntValue(0), StrValue("B")}},
	}}
	assert.Equal(t, 2, rows.Len())
	assert.Equal(t, StrValue("A"), rows.At(0).ValueByName("Name"))
	assert.Len(t, rows.All(), 2)
}
