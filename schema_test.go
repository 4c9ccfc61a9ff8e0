// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReservedTableName(t *testing.T) {
	assert.True(t, isReservedTableName(tableNameColumns))
	assert.True(t, isReservedTableName(tableNameTables))
	assert.True(t, isReservedTableName(tableNameValidation))
	assert.False(t, isReservedTableName("File"))
}

func TestMakeColumnsTableShape(t *testing.T) {
	tbl := makeColumnsTable(false)
	assert.Equal(t, tableNameColumns, tbl.Name())
	assert.Len(t, tbl.Columns(), 4)
	assert.ElementsMatch(t, []int{0, 1}, tbl.PrimaryKeyIndices())
}

func TestMakeTablesTableShape(t *testing.T) {
	tbl := makeTablesTable(false)
	assert.Equal(t, tableNameTables, tbl.Name())
	assert.Len(t, tbl.Columns(), 1)
	assert.Equal(t, []int{0}, tbl.PrimaryKeyIndices())
}

func TestMakeValidationTableShape(t *testing.T) {
	tbl := makeValidationTable(false)
	assert.Equal(t, tableNameValidation, tbl.Name())
	assert.Len(t, tbl.Columns(), 10)
	assert.ElementsMatch(t, []int{0, 1}, tbl.PrimaryKeyIndices())

	cat, ok := tbl.Columns()[7].Category()
	assert.True(t, ok)
	assert.Equal(t, CategoryText, cat)
}
