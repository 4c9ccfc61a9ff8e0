// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

// Reserved stream/table names that the package format bootstraps itself
// with. CreateTable and DropTable refuse the three table names, and
// Package.Tables leaves them out.
const (
	tableNameColumns    = "_Columns"
	tableNameTables     = "_Tables"
	tableNameValidation = "_Validation"
	streamNameStringData = "_StringData"
	streamNameStringPool = "_StringPool"
)

// maxTableColumns is the largest number of columns a single table may
// declare, a limit inherited from the MSI column-bitfield layout.
const maxTableColumns = 32

// isReservedTableName reports whether name is one of the bootstrap
// tables that CreateTable/DropTable must refuse to touch.
func isReservedTableName(name string) bool {
	switch name {
	case tableNameColumns, tableNameTables, tableNameValidation:
		return true
	default:
		return false
	}
}

// makeColumnsTable returns the schema of the bootstrap _Columns table,
// which records every table's column names, types, and ordinal
// positions.
func makeColumnsTable(longStringRefs bool) *Table {
	columns := []*Column{
		BuildColumn("Table").PrimaryKey().String(64),
		BuildColumn("Number").PrimaryKey().Int16(),
		BuildColumn("Name").String(64),
		BuildColumn("Type").Int16(),
	}
	return NewTable(tableNameColumns, columns, longStringRefs)
}

// makeTablesTable returns the schema of the bootstrap _Tables table,
// which records the name of every table in the database.
func makeTablesTable(longStringRefs bool) *Table {
	columns := []*Column{
		BuildColumn("Name").PrimaryKey().IDString(64),
	}
	return NewTable(tableNameTables, columns, longStringRefs)
}

// makeValidationTable returns the schema of the bootstrap _Validation
// table, which records the lexical/range/foreign-key constraints each
// column in the database is validated against.
func makeValidationTable(longStringRefs bool) *Table {
	columns := []*Column{
		BuildColumn("Table").PrimaryKey().IDString(64),
		BuildColumn("Column").PrimaryKey().IDString(64),
		BuildColumn("Nullable").TextString(4).EnumValues("Y", "N"),
		BuildColumn("MinValue").Nullable().Range(-0x7fffffff, 0x7fffffff).Int32(),
		BuildColumn("MaxValue").Nullable().Range(-0x7fffffff, 0x7fffffff).Int32(),
		BuildColumn("KeyTable").Nullable().TextString(255),
		BuildColumn("KeyColumn").Nullable().Range(1, 32).Int16(),
		BuildColumn("Category").Nullable().TextString(32).EnumValues(
			string(CategoryText), string(CategoryUpperCase), string(CategoryLowerCase),
			string(CategoryInteger), string(CategoryDoubleInteger), string(CategoryTimeDate),
			string(CategoryIdentifier), string(CategoryProperty), string(CategoryFilename),
			string(CategoryWildCardFilename), string(CategoryPath), string(CategoryPaths),
			string(CategoryAnyPath), string(CategoryDefaultDir), string(CategoryRegPath),
			string(CategoryFormatted), string(CategoryTemplate), string(CategoryCondition),
			string(CategoryGUID), string(CategoryVersion), string(CategoryLanguage),
			string(CategoryBinary), string(CategoryCustomSource), string(CategoryCabinet),
			string(CategoryShortcut)),
		BuildColumn("Set").Nullable().TextString(255),
		BuildColumn("Description").Nullable().TextString(255),
	}
	return NewTable(tableNameValidation, columns, longStringRefs)
}
