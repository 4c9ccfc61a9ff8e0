// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnTypeWidth(t *testing.T) {
	assert.Equal(t, 2, Int16Type.width(false))
	assert.Equal(t, 4, Int32Type.width(false))
	assert.Equal(t, 2, StrType(10).width(false))
	assert.Equal(t, 3, StrType(10).width(true))
}

func TestColumnTypeBitfieldRoundTrip(t *testing.T) {
	assert.Equal(t, Int16Type, columnTypeFromBitfield(Int16Type.bitfield()))
	assert.Equal(t, Int32Type, columnTypeFromBitfield(Int32Type.bitfield()))
	assert.Equal(t, StrType(20), columnTypeFromBitfield(StrType(20).bitfield()))
}

func TestColumnTypeFieldSizeOneIsInt16(t *testing.T) {
	assert.Equal(t, Int16Type, columnTypeFromBitfield(1))
}

func TestColumnTypeReadWriteInt16(t *testing.T) {
	buf, err := Int16Type.writeValue(intValueRef(5), false)
	require.NoError(t, err)
	v, n, err := Int16Type.readValue(buf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, intValueRef(5), v)

	negBuf, err := Int16Type.writeValue(intValueRef(-5), false)
	require.NoError(t, err)
	neg, _, err := Int16Type.readValue(negBuf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, intValueRef(-5), neg)

	nullBuf, err := Int16Type.writeValue(nullValueRef(), false)
	require.NoError(t, err)
	null, _, err := Int16Type.readValue(nullBuf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, nullValueRef(), null)
}

func TestColumnTypeReadWriteInt32(t *testing.T) {
	buf, err := Int32Type.writeValue(intValueRef(123456), false)
	require.NoError(t, err)
	v, n, err := Int32Type.readValue(buf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, intValueRef(123456), v)

	nullBuf, err := Int32Type.writeValue(nullValueRef(), false)
	require.NoError(t, err)
	null, _, err := Int32Type.readValue(nullBuf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, nullValueRef(), null)
}

func TestColumnTypeReadWriteStrRef(t *testing.T) {
	buf, err := StrType(10).writeValue(strValueRef(stringRef(3)), false)
	require.NoError(t, err)
	v, n, err := StrType(10).readValue(buf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, strValueRef(stringRef(3)), v)

	nullBuf, err := StrType(10).writeValue(nullValueRef(), false)
	require.NoError(t, err)
	null, _, err := StrType(10).readValue(nullBuf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, nullValueRef(), null)
}

func TestColumnBuilderBasic(t *testing.T) {
	col := BuildColumn("Foo").Nullable().PrimaryKey().Int32()
	assert.Equal(t, "Foo", col.Name())
	assert.Equal(t, Int32Type, col.Type())
	assert.True(t, col.IsNullable())
	assert.True(t, col.IsPrimaryKey())
}

func TestColumnBuilderEnumValues(t *testing.T) {
	col := BuildColumn("Bar").EnumValues("A", "B").String(10)
	assert.True(t, col.IsValidValue(StrValue("A")))
	assert.False(t, col.IsValidValue(StrValue("C")))
}

func TestColumnIsValidValueRange(t *testing.T) {
	col := BuildColumn("N").Range(1, 10).Int32()
	assert.True(t, col.IsValidValue(IntValue(5)))
	assert.False(t, col.IsValidValue(IntValue(11)))
	assert.False(t, col.IsValidValue(StrValue("x")))
}

func TestColumnIsValidValueNullability(t *testing.T) {
	required := BuildColumn("N").Int32()
	assert.False(t, required.IsValidValue(NullValue))

	nullable := BuildColumn("N").Nullable().Int32()
	assert.True(t, nullable.IsValidValue(NullValue))
}

func TestColumnIsValidValueStringLength(t *testing.T) {
	col := BuildColumn("S").String(3)
	assert.True(t, col.IsValidValue(StrValue("abc")))
	assert.False(t, col.IsValidValue(StrValue("abcd")))
}

func TestColumnBitfieldIncludesFlags(t *testing.T) {
	col := BuildColumn("N").Nullable().PrimaryKey().Localizable().Int32()
	bits := col.bitfield()
	assert.NotZero(t, bits&colNullableBit)
	assert.NotZero(t, bits&colPrimaryKeyBit)
	assert.NotZero(t, bits&colLocalizableBit)
	assert.NotZero(t, bits&colValidBit)
}

func TestColumnBinaryStreamOmitsNonBinaryBit(t *testing.T) {
	col := BuildColumn("Data").Binary()
	bits := col.bitfield()
	assert.Zero(t, bits&colNonBinaryBit)
}

func TestColumnWithNamePrefix(t *testing.T) {
	col := BuildColumn("Name").Int32()
	prefixed := col.withNamePrefix("Table")
	assert.Equal(t, "Table.Name", prefixed.Name())
	assert.Equal(t, "Name", col.Name(), "original column unaffected")
}

func TestColumnButNullable(t *testing.T) {
	col := BuildColumn("N").Int32()
	assert.False(t, col.IsNullable())
	nullable := col.butNullable()
	assert.True(t, nullable.IsNullable())
	assert.False(t, col.IsNullable(), "original column unaffected")
}

func TestIsValidColumnName(t *testing.T) {
	assert.True(t, isValidColumnName("Foo_Bar"))
	assert.False(t, isValidColumnName(""))
}
