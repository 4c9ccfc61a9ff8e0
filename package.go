// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"errors"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
	"go.mozilla.org/pkcs7"

	"github.com/saferwall/msi/internal/cfb"
)

// Digital-signature stream names, stored under the CFB special-character
// prefix  that marks them as non-data storages/streams.
const (
	digitalSignatureStream   = "DigitalSignature"
	msiDigitalSignatureExStream = "MsiDigitalSignatureEx"
)

// Package is an open Windows Installer database: a compound file
// container holding a relational database of tables, a summary
// information property set, and named binary streams.
type Package struct {
	storage     *cfb.Storage
	packageType PackageType
	summaryInfo *SummaryInfo
	summaryModified bool
	strPool     *StringPool
	tables      map[string]*Table
	logger      *log.Helper
	data        mmap.MMap
	f           *os.File
	opts        *Options
}

// Open reads an existing Windows Installer database from disk.
func Open(name string, opts *Options) (*Package, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	pkg, err := OpenBytes(data, opts)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	pkg.data = data
	pkg.f = f
	return pkg, nil
}

// OpenBytes reads an existing Windows Installer database from an
// in-memory buffer.
func OpenBytes(data []byte, opts *Options) (*Package, error) {
	storage, err := cfb.Open(data)
	if err != nil {
		switch {
		case errors.Is(err, cfb.ErrNotCompoundFile):
			return nil, &InvalidDataError{Reason: "not a valid compound file", Cause: ErrNotCompoundFile}
		case errors.Is(err, cfb.ErrInvalidSectorShift):
			return nil, &InvalidDataError{Reason: "not a valid compound file", Cause: ErrInvalidSectorShift}
		default:
			return nil, &InvalidDataError{Reason: "not a valid compound file", Cause: err}
		}
	}
	return openStorage(storage, opts)
}

func openStorage(storage *cfb.Storage, opts *Options) (*Package, error) {
	pkg := &Package{
		storage:     storage,
		packageType: packageTypeFromCLSID(storage.RootCLSID()),
		tables:      make(map[string]*Table),
		opts:        opts,
		logger:      opts.logger(),
	}

	if storage.HasStream(summaryInfoStreamName) {
		raw, err := storage.ReadStream(summaryInfoStreamName)
		if err != nil {
			return nil, err
		}
		info, err := summaryInfoFromStream(raw)
		if err != nil {
			return nil, err
		}
		pkg.summaryInfo = info
	} else {
		pkg.summaryInfo = newSummaryInfo(pkg.packageType)
	}

	longRefs := false
	var poolData, stringData []byte
	poolStreamName := encodeStreamName(streamNameStringPool, true)
	dataStreamName := encodeStreamName(streamNameStringData, true)
	if storage.HasStream(poolStreamName) {
		poolData, _ = storage.ReadStream(poolStreamName)
		stringData, _ = storage.ReadStream(dataStreamName)
		pool, err := buildStringPoolFromStreams(poolData, stringData)
		if err != nil {
			return nil, err
		}
		pkg.strPool = pool
		longRefs = pool.LongStringRefs()
	} else {
		pkg.strPool = NewStringPool(CodePageWindows1252)
	}

	if err := pkg.loadSchema(longRefs); err != nil {
		return nil, err
	}
	return pkg, nil
}

const summaryInfoStreamName = "SummaryInformation"

// loadSchema reconstructs every user table's schema from the bootstrap
// _Tables, _Columns, and _Validation tables.
func (p *Package) loadSchema(longRefs bool) error {
	tablesTable := makeTablesTable(longRefs)
	columnsTable := makeColumnsTable(longRefs)
	validationTable := makeValidationTable(longRefs)

	p.tables[tableNameTables] = tablesTable
	p.tables[tableNameColumns] = columnsTable
	p.tables[tableNameValidation] = validationTable

	tableRows, err := p.readRawRows(tablesTable)
	if err != nil {
		return err
	}
	columnRows, err := p.readRawRows(columnsTable)
	if err != nil {
		return err
	}
	validationRows, err := p.readRawRows(validationTable)
	if err != nil {
		return err
	}

	type colSpec = struct {
		number int32
		name   string
		typ    uint16
	}
	colsByTable := map[string][]colSpec{}
	for _, row := range columnRows {
		tableName := p.strPool.Get(row[0].ref)
		number := row[1].num
		name := p.strPool.Get(row[2].ref)
		typ := uint16(row[3].num)
		colsByTable[tableName] = append(colsByTable[tableName], colSpec{number: number, name: name, typ: typ})
	}

	type valSpec struct {
		column      string
		nullable    bool
		hasRange    bool
		rangeMin    int32
		rangeMax    int32
		keyTable    string
		hasKeyTable bool
		keyColumn   int32
		category    ColumnCategory
		hasCategory bool
		enumValues  []string
	}
	valByTable := map[string][]valSpec{}
	for _, row := range validationRows {
		tableName := p.strPool.Get(row[0].ref)
		v := valSpec{column: p.strPool.Get(row[1].ref)}
		v.nullable = p.strPool.Get(row[2].ref) == "Y"
		if !row[3].null {
			v.hasRange = true
			v.rangeMin = row[3].num
		}
		if !row[4].null {
			v.hasRange = true
			v.rangeMax = row[4].num
		}
		if !row[5].null {
			v.hasKeyTable = true
			v.keyTable = p.strPool.Get(row[5].ref)
		}
		if !row[6].null {
			v.keyColumn = row[6].num
		}
		if !row[7].null {
			v.hasCategory = true
			v.category = ColumnCategory(p.strPool.Get(row[7].ref))
		}
		if !row[8].null {
			s := p.strPool.Get(row[8].ref)
			if s != "" {
				v.enumValues = splitEnum(s)
			}
		}
		valByTable[tableName] = append(valByTable[tableName], v)
	}

	for _, row := range tableRows {
		name := p.strPool.Get(row[0].ref)
		if isReservedTableName(name) {
			continue
		}
		specs := colsByTable[name]
		sortColSpecs(specs)
		vals := map[string]valSpec{}
		for _, v := range valByTable[name] {
			vals[v.column] = v
		}
		columns := make([]*Column, len(specs))
		for i, spec := range specs {
			ctype := columnTypeFromBitfield(spec.typ)
			c := &Column{
				name:        spec.name,
				coltype:     ctype,
				nullable:    spec.typ&colNullableBit != 0,
				primaryKey:  spec.typ&colPrimaryKeyBit != 0,
				localizable: spec.typ&colLocalizableBit != 0,
			}
			if v, ok := vals[spec.name]; ok {
				if v.hasCategory {
					c.hasCategory = true
					c.category = v.category
				}
				if v.hasRange {
					c.hasRange = true
					c.rangeMin = v.rangeMin
					c.rangeMax = v.rangeMax
				}
				if v.hasKeyTable {
					c.hasForeign = true
					c.foreignTable = v.keyTable
					c.foreignCol = int(v.keyColumn)
				}
				c.enumValues = v.enumValues
			}
			columns[i] = c
		}
		p.tables[name] = NewTable(name, columns, longRefs)
	}
	return nil
}

func sortColSpecs(specs []struct {
	number int32
	name   string
	typ    uint16
}) {
	for i := 1; i < len(specs); i++ {
		for j := i; j > 0 && specs[j-1].number > specs[j].number; j-- {
			specs[j-1], specs[j] = specs[j], specs[j-1]
		}
	}
}

func splitEnum(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ';' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	out = append(out, cur)
	return out
}

// Create makes a brand-new, empty Windows Installer database in memory.
func Create(opts *Options) *Package {
	var pt PackageType
	if opts != nil {
		pt = opts.Package
	}
	storage := cfb.New()
	storage.SetRootCLSID(pt.CLSID())

	pkg := &Package{
		storage:     storage,
		packageType: pt,
		tables:      make(map[string]*Table),
		opts:        opts,
		logger:      opts.logger(),
		strPool:     NewStringPool(CodePageWindows1252),
	}
	pkg.summaryInfo = newSummaryInfo(pt)
	pkg.summaryModified = true

	pkg.tables[tableNameTables] = makeTablesTable(false)
	pkg.tables[tableNameColumns] = makeColumnsTable(false)
	pkg.tables[tableNameValidation] = makeValidationTable(false)
	return pkg
}

// PackageType returns which flavor of package this is.
func (p *Package) PackageType() PackageType { return p.packageType }

// SummaryInfo returns the package's summary information property set.
func (p *Package) SummaryInfo() *SummaryInfo { return p.summaryInfo }

// Tables returns the names of every user table in the database,
// excluding the reserved bootstrap tables.
func (p *Package) Tables() []string {
	userTables := make(map[string]*Table)
	for name, t := range p.tables {
		if !isReservedTableName(name) {
			userTables[name] = t
		}
	}
	return sortedTableNames(userTables)
}

// HasTable reports whether a table with this name exists.
func (p *Package) HasTable(name string) bool {
	_, ok := p.tables[name]
	return ok
}

// Table returns the schema of a table.
func (p *Package) Table(name string) (*Table, bool) {
	t, ok := p.tables[name]
	return t, ok
}

// tableStore interface implementation.

func (p *Package) pool() *StringPool { return p.strPool }
func (p *Package) lookupTable(name string) (*Table, bool) {
	t, ok := p.tables[name]
	return t, ok
}

func (p *Package) readRawRows(t *Table) ([][]valueRef, error) {
	streamName := t.StreamName()
	if !p.storage.HasStream(streamName) {
		return nil, nil
	}
	data, err := p.storage.ReadStream(streamName)
	if err != nil {
		return nil, err
	}
	return t.readRows(data)
}

func (p *Package) writeRawRows(t *Table, rows [][]valueRef) error {
	data, err := t.writeRows(rows)
	if err != nil {
		return err
	}
	p.storage.WriteStream(t.StreamName(), data)
	return nil
}

// CreateTable defines and persists a new table.
func (p *Package) CreateTable(name string, columns []*Column) (*Table, error) {
	if isReservedTableName(name) {
		return nil, ErrReservedTableName
	}
	if !isValidTableName(name) {
		return nil, &InvalidInputError{Reason: "invalid table name: " + name, Cause: ErrInvalidName}
	}
	if _, exists := p.tables[name]; exists {
		return nil, &AlreadyExistsError{Kind: "table", Name: name}
	}
	if len(columns) > maxTableColumns {
		return nil, ErrTooManyColumns
	}
	hasPK := false
	seen := map[string]bool{}
	for _, c := range columns {
		if !isValidColumnName(c.Name()) {
			return nil, &InvalidInputError{Reason: "invalid column name: " + c.Name(), Cause: ErrInvalidName}
		}
		if seen[c.Name()] {
			return nil, ErrDuplicateColumn
		}
		seen[c.Name()] = true
		if c.IsPrimaryKey() {
			hasPK = true
		}
	}
	if !hasPK {
		return nil, ErrNoPrimaryKey
	}

	t := NewTable(name, columns, p.strPool.LongStringRefs())
	p.tables[name] = t

	if err := p.insertBootstrapRows(t); err != nil {
		delete(p.tables, name)
		return nil, err
	}
	return t, nil
}

func (p *Package) insertBootstrapRows(t *Table) error {
	tablesTable := p.tables[tableNameTables]
	tablesIns := &Insert{Table: tableNameTables, Columns: []string{"Name"}, Rows: [][]Value{{StrValue(t.Name())}}}
	if err := tablesIns.Exec(p); err != nil {
		return err
	}
	_ = tablesTable

	for i, c := range t.columns {
		row := []Value{StrValue(t.Name()), IntValue(int32(i + 1)), StrValue(c.Name()), IntValue(int32(c.bitfield()))}
		ins := &Insert{Table: tableNameColumns, Columns: []string{"Table", "Number", "Name", "Type"}, Rows: [][]Value{row}}
		if err := ins.Exec(p); err != nil {
			return err
		}

		nullable := "N"
		if c.IsNullable() {
			nullable = "Y"
		}
		minV, maxV := NullValue, NullValue
		if min, max, ok := c.Range(); ok {
			minV, maxV = IntValue(min), IntValue(max)
		}
		keyTableV, keyColV := NullValue, NullValue
		if table, col, ok := c.ForeignKey(); ok {
			keyTableV, keyColV = StrValue(table), IntValue(int32(col))
		}
		catV := NullValue
		if cat, ok := c.Category(); ok {
			catV = StrValue(string(cat))
		}
		vrow := []Value{
			StrValue(t.Name()), StrValue(c.Name()), StrValue(nullable),
			minV, maxV, keyTableV, keyColV, catV, NullValue, NullValue,
		}
		vins := &Insert{
			Table: tableNameValidation,
			Columns: []string{"Table", "Column", "Nullable", "MinValue", "MaxValue",
				"KeyTable", "KeyColumn", "Category", "Set", "Description"},
			Rows: [][]Value{vrow},
		}
		if err := vins.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

// DropTable removes a table's stream and schema bookkeeping.
func (p *Package) DropTable(name string) error {
	if isReservedTableName(name) {
		return ErrReservedTableName
	}
	t, ok := p.tables[name]
	if !ok {
		return &NotFoundError{Kind: "table", Name: name}
	}
	p.storage.RemoveStream(t.StreamName())

	del := &Delete{Table: tableNameColumns, Where: BinaryExpr{Op: Eq, Left: ColumnRef{"Table"}, Right: LitStr(name)}}
	if err := del.Exec(p); err != nil {
		return err
	}
	delV := &Delete{Table: tableNameValidation, Where: BinaryExpr{Op: Eq, Left: ColumnRef{"Table"}, Right: LitStr(name)}}
	if err := delV.Exec(p); err != nil {
		return err
	}
	delT := &Delete{Table: tableNameTables, Where: BinaryExpr{Op: Eq, Left: ColumnRef{"Name"}, Right: LitStr(name)}}
	if err := delT.Exec(p); err != nil {
		return err
	}
	delete(p.tables, name)
	return nil
}

// Select runs a query and returns the resulting rows.
func (p *Package) Select(s *Select) (*Rows, error) { return s.Exec(p) }

// InsertRows inserts rows into a table.
func (p *Package) InsertRows(ins *Insert) error { return ins.Exec(p) }

// UpdateRows updates rows in a table.
func (p *Package) UpdateRows(u *Update) error { return u.Exec(p) }

// DeleteRows deletes rows from a table.
func (p *Package) DeleteRows(d *Delete) error { return d.Exec(p) }

// Streams returns the logical names of every user binary stream in the
// package, excluding SummaryInformation, the digital-signature streams,
// table streams, and the string-pool streams.
func (p *Package) Streams() []string {
	var out []string
	for _, name := range p.storage.Streams() {
		switch name {
		case summaryInfoStreamName, digitalSignatureStream, msiDigitalSignatureExStream:
			continue
		}
		logical, isTable := decodeStreamName(name)
		if isTable {
			continue
		}
		if logical == streamNameStringData || logical == streamNameStringPool {
			continue
		}
		out = append(out, logical)
	}
	return out
}

// ReadStream returns the contents of a named binary stream (not a
// table).
func (p *Package) ReadStream(name string) ([]byte, error) {
	if !isValidStreamName(name, false) {
		return nil, &InvalidInputError{Reason: "invalid stream name: " + name}
	}
	return p.storage.ReadStream(encodeStreamName(name, false))
}

// WriteStream creates or overwrites a named binary stream.
func (p *Package) WriteStream(name string, data []byte) error {
	if !isValidStreamName(name, false) {
		return &InvalidInputError{Reason: "invalid stream name: " + name}
	}
	p.storage.WriteStream(encodeStreamName(name, false), data)
	return nil
}

// RemoveStream deletes a named binary stream.
func (p *Package) RemoveStream(name string) error {
	if !isValidStreamName(name, false) {
		return &InvalidInputError{Reason: "invalid stream name: " + name}
	}
	p.storage.RemoveStream(encodeStreamName(name, false))
	return nil
}

// HasDigitalSignature reports whether the package carries an
// Authenticode digital-signature stream.
func (p *Package) HasDigitalSignature() bool {
	return p.storage.HasStream(digitalSignatureStream)
}

// DigitalSignature parses the package's DigitalSignature stream as a
// PKCS#7 SignedData blob, returning the signer certificates Authenticode
// embedded when the package was signed. Returns NotFoundError if the
// package carries no signature stream.
func (p *Package) DigitalSignature() (*pkcs7.PKCS7, error) {
	if !p.HasDigitalSignature() {
		return nil, &NotFoundError{Kind: "stream", Name: digitalSignatureStream}
	}
	raw, err := p.storage.ReadStream(digitalSignatureStream)
	if err != nil {
		return nil, err
	}
	sig, err := pkcs7.Parse(raw)
	if err != nil {
		return nil, &InvalidDataError{Reason: "malformed digital signature blob", Cause: err}
	}
	return sig, nil
}

// RemoveDigitalSignature removes both the primary signature stream and
// its "Ex" companion (which hashes the CFB directory layout itself), as
// real installer tooling must do when re-signing or stripping a
// signature.
func (p *Package) RemoveDigitalSignature() {
	p.storage.RemoveStream(digitalSignatureStream)
	p.storage.RemoveStream(msiDigitalSignatureExStream)
}

// Flush writes any pending SummaryInfo or string-pool changes back to
// their streams. Bytes() and SaveAs() call this implicitly; Close() does
// not.
func (p *Package) Flush() error {
	if p.summaryInfo.isModified() {
		data, err := p.summaryInfo.encode()
		if err != nil {
			return err
		}
		p.storage.WriteStream(summaryInfoStreamName, data)
		p.summaryInfo.markUnmodified()
	}
	if p.strPool.IsModified() {
		poolBytes, err := p.strPool.writePoolStream()
		if err != nil {
			return err
		}
		dataBytes, err := p.strPool.writeDataStream()
		if err != nil {
			return err
		}
		p.storage.WriteStream(encodeStreamName(streamNameStringPool, true), poolBytes)
		p.storage.WriteStream(encodeStreamName(streamNameStringData, true), dataBytes)
		p.strPool.MarkUnmodified()
	}
	return nil
}

// Bytes flushes pending changes and serializes the whole package to a
// byte slice.
func (p *Package) Bytes() ([]byte, error) {
	if err := p.Flush(); err != nil {
		return nil, err
	}
	return p.storage.Bytes()
}

// SaveAs flushes pending changes and writes the whole package to a new
// file.
func (p *Package) SaveAs(name string) error {
	data, err := p.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0644)
}

// Close releases any OS resources (the memory-mapped file handle) held
// by a Package opened with Open. It does not flush pending changes; call
// SaveAs first if they should be persisted.
func (p *Package) Close() error {
	if p.data != nil {
		_ = p.data.Unmap()
	}
	if p.f != nil {
		return p.f.Close()
	}
	return nil
}
