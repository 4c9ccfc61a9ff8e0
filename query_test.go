// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory tableStore implementation used to
// exercise the query engine without any CFB storage underneath.
type fakeStore struct {
	stringPool *StringPool
	tables     map[string]*Table
	rows       map[string][][]valueRef
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stringPool: NewStringPool(CodePageWindows1252),
		tables:     map[string]*Table{},
		rows:       map[string][][]valueRef{},
	}
}

func (s *fakeStore) pool() *StringPool { return s.stringPool }

func (s *fakeStore) lookupTable(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

func (s *fakeStore) readRawRows(t *Table) ([][]valueRef, error) {
	rows := s.rows[t.Name()]
	out := make([][]valueRef, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *fakeStore) writeRawRows(t *Table, rows [][]valueRef) error {
	s.rows[t.Name()] = rows
	return nil
}

func (s *fakeStore) addTable(t *Table) {
	s.tables[t.Name()] = t
	s.rows[t.Name()] = nil
}

func newTestStoreWithUsers() *fakeStore {
	s := newFakeStore()
	users := NewTable("Users", []*Column{
		BuildColumn("ID").PrimaryKey().Int32(),
		BuildColumn("Name").TextString(64),
	}, false)
	s.addTable(users)

	ins := &Insert{
		Table:   "Users",
		Columns: []string{"ID", "Name"},
		Rows: [][]Value{
			{IntValue(2), StrValue("Bob")},
			{IntValue(1), StrValue("Alice")},
		},
	}
	if err := ins.Exec(s); err != nil {
		panic(err)
	}
	return s
}

func TestInsertAndSelectRoundTrip(t *testing.T) {
	s := newTestStoreWithUsers()
	sel := &Select{From: TableJoin{Table: "Users"}}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	require.Equal(t, 2, rows.Len())
}

func TestInsertSortsByPrimaryKey(t *testing.T) {
	s := newTestStoreWithUsers()
	sel := &Select{From: TableJoin{Table: "Users"}}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	assert.Equal(t, StrValue("Alice"), rows.At(0).ValueByName("Users.Name"))
	assert.Equal(t, StrValue("Bob"), rows.At(1).ValueByName("Users.Name"))
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	s := newTestStoreWithUsers()
	ins := &Insert{
		Table:   "Users",
		Columns: []string{"ID", "Name"},
		Rows:    [][]Value{{IntValue(1), StrValue("Eve")}},
	}
	err := ins.Exec(s)
	assert.Error(t, err)
	var already *AlreadyExistsError
	assert.ErrorAs(t, err, &already)
}

func TestInsertRejectsWrongNumberOfValues(t *testing.T) {
	s := newTestStoreWithUsers()
	ins := &Insert{
		Table:   "Users",
		Columns: []string{"ID", "Name"},
		Rows:    [][]Value{{IntValue(3)}},
	}
	err := ins.Exec(s)
	assert.ErrorIs(t, err, ErrWrongNumberOfValues)
}

func TestInsertRejectsDuplicatePrimaryKeyAcrossTombstoneReuse(t *testing.T) {
	s := newFakeStore()
	names := NewTable("Names", []*Column{
		BuildColumn("ID").PrimaryKey().TextString(64),
	}, false)
	s.addTable(names)

	require.NoError(t, (&Insert{
		Table:   "Names",
		Columns: []string{"ID"},
		Rows:    [][]Value{{StrValue("dup")}},
	}).Exec(s))

	// Open a tombstone ahead of the entry the stored row's PK already
	// references, so a fresh Incref of the same text reuses that
	// tombstone (stringpool.go fills the first free slot regardless of
	// its old text) rather than bumping the refcount of the existing
	// "dup" entry. The second insert's row therefore ends up with a
	// different string-pool ref than the first, even though both hold
	// identical PK text.
	pool := s.pool()
	filler := pool.Incref("filler")
	pool.Decref(filler)

	err := (&Insert{
		Table:   "Names",
		Columns: []string{"ID"},
		Rows:    [][]Value{{StrValue("dup")}},
	}).Exec(s)
	assert.Error(t, err)
	var already *AlreadyExistsError
	assert.ErrorAs(t, err, &already)
}

func TestInsertRejectsUnknownColumn(t *testing.T) {
	s := newTestStoreWithUsers()
	ins := &Insert{Table: "Users", Columns: []string{"Bogus"}, Rows: [][]Value{{IntValue(1)}}}
	assert.Error(t, ins.Exec(s))
}

func TestSelectWithWhere(t *testing.T) {
	s := newTestStoreWithUsers()
	sel := &Select{
		From:  TableJoin{Table: "Users"},
		Where: BinaryExpr{Op: Eq, Left: ColumnRef{"Users.ID"}, Right: LitInt(2)},
	}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Equal(t, StrValue("Bob"), rows.At(0).ValueByName("Users.Name"))
}

func TestSelectProjection(t *testing.T) {
	s := newTestStoreWithUsers()
	sel := &Select{From: TableJoin{Table: "Users"}, Columns: []string{"Users.Name"}}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	require.Equal(t, 2, rows.Len())
	assert.Equal(t, 1, rows.At(0).Len())
	assert.Equal(t, StrValue("Alice"), rows.At(0).Value(0))
}

func TestUpdateChangesMatchingRows(t *testing.T) {
	s := newTestStoreWithUsers()
	upd := &Update{
		Table:       "Users",
		Assignments: map[string]Value{"Name": StrValue("Robert")},
		Where:       BinaryExpr{Op: Eq, Left: ColumnRef{"ID"}, Right: LitInt(2)},
	}
	require.NoError(t, upd.Exec(s))

	sel := &Select{From: TableJoin{Table: "Users"}}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	assert.Equal(t, StrValue("Robert"), rows.At(1).ValueByName("Users.Name"))
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	s := newTestStoreWithUsers()
	del := &Delete{
		Table: "Users",
		Where: BinaryExpr{Op: Eq, Left: ColumnRef{"ID"}, Right: LitInt(1)},
	}
	require.NoError(t, del.Exec(s))

	sel := &Select{From: TableJoin{Table: "Users"}}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Equal(t, StrValue("Bob"), rows.At(0).ValueByName("Users.Name"))
}

func TestInnerJoin(t *testing.T) {
	s := newTestStoreWithUsers()
	orders := NewTable("Orders", []*Column{
		BuildColumn("ID").PrimaryKey().Int32(),
		BuildColumn("UserID").Int32(),
	}, false)
	s.addTable(orders)
	ins := &Insert{
		Table:   "Orders",
		Columns: []string{"ID", "UserID"},
		Rows:    [][]Value{{IntValue(100), IntValue(1)}},
	}
	require.NoError(t, ins.Exec(s))

	join := InnerJoin{
		Left:  TableJoin{Table: "Users"},
		Right: TableJoin{Table: "Orders"},
		On:    BinaryExpr{Op: Eq, Left: ColumnRef{"Users.ID"}, Right: ColumnRef{"Orders.UserID"}},
	}
	sel := &Select{From: join}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	require.Equal(t, 1, rows.Len())
	assert.Equal(t, StrValue("Alice"), rows.At(0).ValueByName("Users.Name"))
}

func TestLeftJoinEmitsNullForUnmatched(t *testing.T) {
	s := newTestStoreWithUsers()
	orders := NewTable("Orders", []*Column{
		BuildColumn("ID").PrimaryKey().Int32(),
		BuildColumn("UserID").Int32(),
	}, false)
	s.addTable(orders)

	join := LeftJoin{
		Left:  TableJoin{Table: "Users"},
		Right: TableJoin{Table: "Orders"},
		On:    BinaryExpr{Op: Eq, Left: ColumnRef{"Users.ID"}, Right: ColumnRef{"Orders.UserID"}},
	}
	sel := &Select{From: join}
	rows, err := sel.Exec(s)
	require.NoError(t, err)
	require.Equal(t, 2, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		assert.True(t, rows.At(i).ValueByName("Orders.ID").IsNull())
	}
}

func TestSortedTableNames(t *testing.T) {
	m := map[string]*Table{
		"Zebra": NewTable("Zebra", nil, false),
		"Alpha": NewTable("Alpha", nil, false),
	}
	assert.Equal(t, []string{"Alpha", "Zebra"}, sortedTableNames(m))
}
