// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"encoding/binary"
	"fmt"
)

// Bitfield flags used in the _Columns table's Type column, mirroring the
// layout Windows Installer itself uses.
const (
	colFieldSizeMask  = 0xff
	colValidBit       = 0x100
	colLocalizableBit = 0x200
	colNonBinaryBit   = 0x400
	colStringBit      = 0x800
	colNullableBit    = 0x1000
	colPrimaryKeyBit  = 0x2000
)

// ColumnType is the storage kind of a column: a 16-bit integer, a 32-bit
// integer, or a string (either an inline-length string or a reference to
// a named binary stream when len is 0 and category is Binary).
type ColumnType struct {
	kind strKindOrInt
	len  int
}

type strKindOrInt int

const (
	typeInt16 strKindOrInt = iota
	typeInt32
	typeStr
)

// Int16Type is a 2-byte signed integer column.
var Int16Type = ColumnType{kind: typeInt16}

// Int32Type is a 4-byte signed integer column.
var Int32Type = ColumnType{kind: typeInt32}

// StrType is a string column whose declared maximum length is len
// characters (0 means unbounded, or a binary-stream reference when
// paired with the Binary category).
func StrType(length int) ColumnType { return ColumnType{kind: typeStr, len: length} }

func (t ColumnType) IsInt() bool { return t.kind == typeInt16 || t.kind == typeInt32 }
func (t ColumnType) IsStr() bool { return t.kind == typeStr }

func (t ColumnType) String() string {
	switch t.kind {
	case typeInt16:
		return "Int16"
	case typeInt32:
		return "Int32"
	default:
		return fmt.Sprintf("Str(%d)", t.len)
	}
}

// width returns the on-disk byte width of a column of this type.
func (t ColumnType) width(longStringRefs bool) int {
	switch t.kind {
	case typeInt16:
		return 2
	case typeInt32:
		return 4
	default:
		if longStringRefs {
			return 3
		}
		return 2
	}
}

// columnTypeFromBitfield decodes a _Columns.Type bitfield into a
// ColumnType, following the historical quirk that a field-size byte of 1
// (as well as 2) denotes Int16.
func columnTypeFromBitfield(bitfield uint16) ColumnType {
	fieldSize := int(bitfield & colFieldSizeMask)
	if bitfield&colStringBit != 0 {
		return StrType(fieldSize)
	}
	if fieldSize == 4 {
		return Int32Type
	}
	return Int16Type
}

func (t ColumnType) bitfield() uint16 {
	switch t.kind {
	case typeInt16:
		return 2
	case typeInt32:
		return 4
	default:
		return colStringBit | uint16(t.len)
	}
}

// readValue decodes a raw column cell at data[offset:] into a valueRef.
func (t ColumnType) readValue(data []byte, offset int, longStringRefs bool) (valueRef, int, error) {
	switch t.kind {
	case typeInt16:
		if offset+2 > len(data) {
			return valueRef{}, 0, ErrOutsideBoundary
		}
		raw := binary.LittleEndian.Uint16(data[offset:])
		if raw == 0 {
			return nullValueRef(), 2, nil
		}
		n := int32(int16(raw ^ 0x8000))
		return intValueRef(n), 2, nil
	case typeInt32:
		if offset+4 > len(data) {
			return valueRef{}, 0, ErrOutsideBoundary
		}
		raw := binary.LittleEndian.Uint32(data[offset:])
		if raw == 0 {
			return nullValueRef(), 4, nil
		}
		n := int32(raw ^ 0x8000_0000)
		return intValueRef(n), 4, nil
	default:
		ref, n, err := readStringRef(data, offset, longStringRefs)
		if err != nil {
			return valueRef{}, 0, err
		}
		if ref == 0 {
			return nullValueRef(), n, nil
		}
		return strValueRef(ref), n, nil
	}
}

// writeValue encodes v as a raw column cell.
func (t ColumnType) writeValue(v valueRef, longStringRefs bool) ([]byte, error) {
	switch t.kind {
	case typeInt16:
		if v.null {
			return []byte{0, 0}, nil
		}
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(int16(v.num))^0x8000)
		return buf, nil
	case typeInt32:
		if v.null {
			return []byte{0, 0, 0, 0}, nil
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.num)^0x8000_0000)
		return buf, nil
	default:
		if v.null {
			return writeStringRef(0, longStringRefs)
		}
		return writeStringRef(v.ref, longStringRefs)
	}
}

// Column describes one column of a Table: its name, storage type, and
// the validation metadata (nullability, primary-key membership,
// category, enum values, range, foreign key) drawn from the _Columns and
// _Validation bootstrap tables.
type Column struct {
	name         string
	coltype      ColumnType
	nullable     bool
	primaryKey   bool
	localizable  bool
	category     ColumnCategory
	hasCategory  bool
	enumValues   []string
	hasRange     bool
	rangeMin     int32
	rangeMax     int32
	foreignTable string
	foreignCol   int
	hasForeign   bool
}

// Name returns the column's name.
func (c *Column) Name() string { return c.name }

// Type returns the column's storage type.
func (c *Column) Type() ColumnType { return c.coltype }

// IsNullable reports whether the column accepts NULL.
func (c *Column) IsNullable() bool { return c.nullable }

// IsPrimaryKey reports whether the column participates in the table's
// primary key.
func (c *Column) IsPrimaryKey() bool { return c.primaryKey }

// IsLocalizable reports whether the column is flagged localizable.
func (c *Column) IsLocalizable() bool { return c.localizable }

// Category returns the column's lexical category, if any.
func (c *Column) Category() (ColumnCategory, bool) { return c.category, c.hasCategory }

// EnumValues returns the fixed set of legal values for the column, if
// any was declared.
func (c *Column) EnumValues() []string { return c.enumValues }

// Range returns the column's declared [min, max] integer range, if any.
func (c *Column) Range() (min, max int32, ok bool) { return c.rangeMin, c.rangeMax, c.hasRange }

// ForeignKey returns the table and 1-based column this column
// references, if it is a foreign key.
func (c *Column) ForeignKey() (table string, column int, ok bool) {
	return c.foreignTable, c.foreignCol, c.hasForeign
}

// withNamePrefix returns a copy of the column renamed to
// "prefix.name", used to disambiguate columns from joined tables.
func (c *Column) withNamePrefix(prefix string) *Column {
	cp := *c
	cp.name = prefix + "." + c.name
	return &cp
}

// butNullable returns a copy of the column forced nullable, used to
// project an all-NULL row for the unmatched side of a left join.
func (c *Column) butNullable() *Column {
	cp := *c
	cp.nullable = true
	return &cp
}

// bitfield computes the _Columns.Type value for this column.
func (c *Column) bitfield() uint16 {
	bits := c.coltype.bitfield() | colValidBit
	if c.localizable {
		bits |= colLocalizableBit
	}
	if c.nullable {
		bits |= colNullableBit
	}
	if c.primaryKey {
		bits |= colPrimaryKeyBit
	}
	isBinaryStream := c.coltype.kind == typeStr && c.coltype.len == 0 && c.hasCategory && c.category == CategoryBinary
	if !isBinaryStream {
		bits |= colNonBinaryBit
	}
	return bits
}

// isValidColumnName reports whether name is legal both as a SQL identifier and
// as a CFB stream-name component.
func isValidColumnName(name string) bool {
	return CategoryIdentifier.Validate(name) && isValidStreamName(name, false)
}

// IsValidValue reports whether v may legally be stored in this column.
func (c *Column) IsValidValue(v Value) bool {
	if v.IsNull() {
		return c.nullable
	}
	if c.coltype.IsInt() {
		if !v.IsInt() {
			return false
		}
		n := v.Int()
		if c.hasRange && (n < c.rangeMin || n > c.rangeMax) {
			return false
		}
		if c.coltype.kind == typeInt16 {
			return n > -0x8000 && n <= 0x7fff
		}
		return n > -0x8000_0000
	}
	if !v.IsStr() {
		return false
	}
	s := v.Str()
	if c.hasCategory && !c.category.Validate(s) {
		return false
	}
	if len(c.enumValues) > 0 {
		found := false
		for _, e := range c.enumValues {
			if e == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.coltype.len > 0 && len([]rune(s)) > c.coltype.len {
		return false
	}
	return true
}

// ColumnBuilder constructs a Column fluently, matching the construction
// style callers use when defining new tables with CreateTable.
type ColumnBuilder struct {
	col Column
}

// BuildColumn starts a ColumnBuilder for a column named name.
func BuildColumn(name string) *ColumnBuilder {
	return &ColumnBuilder{col: Column{name: name}}
}

func (b *ColumnBuilder) Localizable() *ColumnBuilder { b.col.localizable = true; return b }
func (b *ColumnBuilder) Nullable() *ColumnBuilder     { b.col.nullable = true; return b }
func (b *ColumnBuilder) PrimaryKey() *ColumnBuilder   { b.col.primaryKey = true; return b }

func (b *ColumnBuilder) Range(min, max int32) *ColumnBuilder {
	b.col.hasRange = true
	b.col.rangeMin = min
	b.col.rangeMax = max
	return b
}

func (b *ColumnBuilder) ForeignKey(table string, column int) *ColumnBuilder {
	b.col.hasForeign = true
	b.col.foreignTable = table
	b.col.foreignCol = column
	return b
}

func (b *ColumnBuilder) Category(c ColumnCategory) *ColumnBuilder {
	b.col.hasCategory = true
	b.col.category = c
	return b
}

func (b *ColumnBuilder) EnumValues(values ...string) *ColumnBuilder {
	b.col.enumValues = values
	return b
}

func (b *ColumnBuilder) Int16() *Column { b.col.coltype = Int16Type; return b.build() }
func (b *ColumnBuilder) Int32() *Column { b.col.coltype = Int32Type; return b.build() }

func (b *ColumnBuilder) String(length int) *Column {
	b.col.coltype = StrType(length)
	return b.build()
}

// IDString is a shorthand for a string column carrying the Identifier
// category.
func (b *ColumnBuilder) IDString(length int) *Column {
	b.col.hasCategory = true
	b.col.category = CategoryIdentifier
	return b.String(length)
}

// TextString is a shorthand for a string column carrying the Text
// category.
func (b *ColumnBuilder) TextString(length int) *Column {
	b.col.hasCategory = true
	b.col.category = CategoryText
	return b.String(length)
}

// FormattedString is a shorthand for a string column carrying the
// Formatted category.
func (b *ColumnBuilder) FormattedString(length int) *Column {
	b.col.hasCategory = true
	b.col.category = CategoryFormatted
	return b.String(length)
}

// Binary declares a column that references a named binary stream
// instead of storing an inline value.
func (b *ColumnBuilder) Binary() *Column {
	b.col.hasCategory = true
	b.col.category = CategoryBinary
	return b.String(0)
}

func (b *ColumnBuilder) WithType(t ColumnType) *Column {
	b.col.coltype = t
	return b.build()
}

func (b *ColumnBuilder) build() *Column {
	cp := b.col
	return &cp
}
