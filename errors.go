// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"errors"
	"fmt"
)

// Errors
var (
	// ErrNotCompoundFile is returned when the file does not start with the
	// compound file binary signature.
	ErrNotCompoundFile = errors.New("not a compound file binary")

	// ErrInvalidSectorShift is returned when the header's sector shift is
	// not one of the values the format allows.
	ErrInvalidSectorShift = errors.New("invalid sector shift in compound file header")

	// ErrOutsideBoundary is returned when attempting to read data beyond
	// the bounds of the underlying file.
	ErrOutsideBoundary = errors.New("reading data outside file boundary")

	// ErrStreamNotFound is returned when a named stream does not exist in
	// the compound file.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrReservedTableName is returned when an operation would create or
	// drop one of the bootstrap tables.
	ErrReservedTableName = errors.New("table name is reserved")

	// ErrTableNotFound is returned when a table referenced by a query does
	// not exist in the package's schema.
	ErrTableNotFound = errors.New("table not found")

	// ErrTooManyColumns is returned when a table definition exceeds the
	// maximum number of columns a table may carry.
	ErrTooManyColumns = errors.New("table has too many columns")

	// ErrNoPrimaryKey is returned when a table definition has no primary
	// key columns.
	ErrNoPrimaryKey = errors.New("table has no primary key columns")

	// ErrInvalidName is returned when a table or column name does not
	// satisfy the identifier/stream-name rules.
	ErrInvalidName = errors.New("invalid identifier name")

	// ErrDuplicateColumn is returned when a table definition repeats a
	// column name.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrWrongNumberOfValues is returned when a row does not supply a
	// value for every column in the table.
	ErrWrongNumberOfValues = errors.New("wrong number of values for row")

	// ErrBadPropertySet is returned when a property-set stream does not
	// parse as a valid OLE property set.
	ErrBadPropertySet = errors.New("malformed property set stream")
)

// NotFoundError is returned when a lookup (table, column, row, or stream)
// fails because the named thing does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// Unwrap lets callers match the underlying sentinel with errors.Is.
func (e *NotFoundError) Unwrap() error {
	switch e.Kind {
	case "table":
		return ErrTableNotFound
	case "stream":
		return ErrStreamNotFound
	default:
		return nil
	}
}

// AlreadyExistsError is returned when an insert or create operation
// collides with something that already exists.
type AlreadyExistsError struct {
	Kind string
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

// InvalidInputError is returned when caller-supplied data fails
// validation before any mutation is attempted.
type InvalidInputError struct {
	Reason string
	Cause  error
}

func (e *InvalidInputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return e.Cause }

// InvalidDataError is returned when data read back from the package does
// not satisfy the format's own invariants (a corrupt or foreign file).
type InvalidDataError struct {
	Reason string
	Cause  error
}

func (e *InvalidDataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid data: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid data: %s", e.Reason)
}

func (e *InvalidDataError) Unwrap() error { return e.Cause }
