// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBytesRejectsNonCompoundFile(t *testing.T) {
	_, err := OpenBytes(make([]byte, 512), &Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotCompoundFile))
}

func TestCreatePackageHasBootstrapTables(t *testing.T) {
	pkg := Create(&Options{})
	assert.Equal(t, Installer, pkg.PackageType())
	assert.Empty(t, pkg.Tables(), "bootstrap tables must not appear in the public table list")
	assert.True(t, pkg.HasTable(tableNameTables))
}

func TestCreateTableRejectsReservedName(t *testing.T) {
	pkg := Create(&Options{})
	_, err := pkg.CreateTable(tableNameColumns, []*Column{BuildColumn("X").PrimaryKey().Int32()})
	assert.ErrorIs(t, err, ErrReservedTableName)
}

func TestCreateTableRejectsInvalidName(t *testing.T) {
	pkg := Create(&Options{})
	_, err := pkg.CreateTable("1Bad", []*Column{BuildColumn("X").PrimaryKey().Int32()})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCreateTableRequiresPrimaryKey(t *testing.T) {
	pkg := Create(&Options{})
	_, err := pkg.CreateTable("Foo", []*Column{BuildColumn("X").Int32()})
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestCreateTableRejectsDuplicateColumn(t *testing.T) {
	pkg := Create(&Options{})
	_, err := pkg.CreateTable("Foo", []*Column{
		BuildColumn("X").PrimaryKey().Int32(),
		BuildColumn("X").Int32(),
	})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestCreateTableAlreadyExists(t *testing.T) {
	pkg := Create(&Options{})
	cols := []*Column{BuildColumn("X").PrimaryKey().Int32()}
	_, err := pkg.CreateTable("Foo", cols)
	require.NoError(t, err)
	_, err = pkg.CreateTable("Foo", cols)
	var already *AlreadyExistsError
	assert.ErrorAs(t, err, &already)
}

func TestFullRoundTripThroughBytes(t *testing.T) {
	pkg := Create(&Options{})
	_, err := pkg.CreateTable("Widget", []*Column{
		BuildColumn("ID").PrimaryKey().Int32(),
		BuildColumn("Name").TextString(64),
	})
	require.NoError(t, err)

	ins := &Insert{
		Table:   "Widget",
		Columns: []string{"ID", "Name"},
		Rows: [][]Value{
			{IntValue(1), StrValue("Sprocket")},
			{IntValue(2), StrValue("Gear")},
		},
	}
	require.NoError(t, pkg.InsertRows(ins))

	pkg.SummaryInfo().SetTitle("Test Package")

	data, err := pkg.Bytes()
	require.NoError(t, err)

	reopened, err := OpenBytes(data, &Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Widget"}, reopened.Tables())

	title, ok := reopened.SummaryInfo().Title()
	require.True(t, ok)
	assert.Equal(t, "Test Package", title)

	rows, err := reopened.Select(&Select{From: TableJoin{Table: "Widget"}})
	require.NoError(t, err)
	require.Equal(t, 2, rows.Len())
	assert.Equal(t, StrValue("Sprocket"), rows.At(0).ValueByName("Widget.Name"))
	assert.Equal(t, StrValue("Gear"), rows.At(1).ValueByName("Widget.Name"))
}

func TestDropTableRemovesSchemaAndStream(t *testing.T) {
	pkg := Create(&Options{})
	_, err := pkg.CreateTable("Widget", []*Column{BuildColumn("ID").PrimaryKey().Int32()})
	require.NoError(t, err)
	require.NoError(t, pkg.DropTable("Widget"))
	assert.False(t, pkg.HasTable("Widget"))
}

func TestDropTableRejectsReservedName(t *testing.T) {
	pkg := Create(&Options{})
	assert.ErrorIs(t, pkg.DropTable(tableNameTables), ErrReservedTableName)
}

func TestWriteReadRemoveStream(t *testing.T) {
	pkg := Create(&Options{})
	require.NoError(t, pkg.WriteStream("Binary.MyIcon", []byte("icondata")))
	data, err := pkg.ReadStream("Binary.MyIcon")
	require.NoError(t, err)
	assert.Equal(t, []byte("icondata"), data)

	require.NoError(t, pkg.RemoveStream("Binary.MyIcon"))
	_, err = pkg.ReadStream("Binary.MyIcon")
	assert.Error(t, err)
}

func TestStreamsFiltersReservedNames(t *testing.T) {
	pkg := Create(&Options{})
	_, err := pkg.CreateTable("Widget", []*Column{BuildColumn("ID").PrimaryKey().Int32()})
	require.NoError(t, err)
	require.NoError(t, pkg.InsertRows(&Insert{
		Table: "Widget", Columns: []string{"ID"}, Rows: [][]Value{{IntValue(1)}},
	}))
	require.NoError(t, pkg.WriteStream("Binary.MyIcon", []byte("icondata")))
	pkg.SummaryInfo().SetTitle("x")

	data, err := pkg.Bytes()
	require.NoError(t, err)
	reopened, err := OpenBytes(data, &Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Binary.MyIcon"}, reopened.Streams())
}

func TestHasDigitalSignatureFalseByDefault(t *testing.T) {
	pkg := Create(&Options{})
	assert.False(t, pkg.HasDigitalSignature())
	_, err := pkg.DigitalSignature()
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
