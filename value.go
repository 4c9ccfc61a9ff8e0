// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import "fmt"

// Value is a single cell's value as exposed to callers of the query
// engine: either SQL NULL, a signed integer, or a string. Binary-stream
// columns surface as Str values holding the stream's logical name.
type Value struct {
	null bool
	str  string
	num  int32
	isInt bool
}

// NullValue is the NULL value.
var NullValue = Value{null: true}

// IntValue wraps an integer cell value.
func IntValue(n int32) Value { return Value{num: n, isInt: true} }

// StrValue wraps a string cell value.
func StrValue(s string) Value { return Value{str: s} }

// IsNull reports whether the value is SQL NULL.
func (v Value) IsNull() bool { return v.null }

// IsInt reports whether the value holds an integer.
func (v Value) IsInt() bool { return v.isInt }

// Int returns the integer value, or 0 if the value is not an integer.
func (v Value) Int() int32 { return v.num }

// IsStr reports whether the value holds a string.
func (v Value) IsStr() bool { return !v.null && !v.isInt }

// Str returns the string value, or "" if the value is not a string.
func (v Value) Str() string {
	if v.isInt || v.null {
		return ""
	}
	return v.str
}

// BoolValue reports a C-style boolean as an integer Value (0 or 1),
// matching how MSI conditions represent truth values.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// Bool interprets the value as a condition-expression boolean: NULL,
// the integer 0, and the empty string are false; everything else
// (nonzero integers, non-empty strings) is true.
func (v Value) Bool() bool {
	switch {
	case v.null:
		return false
	case v.isInt:
		return v.num != 0
	default:
		return v.str != ""
	}
}

func (v Value) String() string {
	switch {
	case v.null:
		return "NULL"
	case v.isInt:
		return fmt.Sprintf("%d", v.num)
	default:
		return v.str
	}
}

// valueRef is the on-disk representation of a cell: either NULL, a raw
// signed integer, or a reference into the package's string pool.
type valueRef struct {
	null bool
	num  int32
	isInt bool
	ref  stringRef
}

func nullValueRef() valueRef { return valueRef{null: true} }

func intValueRef(n int32) valueRef { return valueRef{num: n, isInt: true} }

func strValueRef(r stringRef) valueRef { return valueRef{ref: r} }

// toValue dereferences a valueRef through the string pool into the
// caller-facing Value type.
func (r valueRef) toValue(pool *StringPool) Value {
	switch {
	case r.null:
		return NullValue
	case r.isInt:
		return IntValue(r.num)
	default:
		return StrValue(pool.Get(r.ref))
	}
}
