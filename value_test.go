// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueBool(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", NullValue, false},
		{"zero int", IntValue(0), false},
		{"nonzero int", IntValue(42), true},
		{"negative int", IntValue(-1), true},
		{"empty string", StrValue(""), false},
		{"non-empty string", StrValue("x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Bool())
		})
	}
}

func TestValueAccessors(t *testing.T) {
	assert.True(t, NullValue.IsNull())
	assert.False(t, IntValue(1).IsNull())

	i := IntValue(7)
	assert.True(t, i.IsInt())
	assert.Equal(t, int32(7), i.Int())
	assert.False(t, i.IsStr())
	assert.Equal(t, "", i.Str())

	s := StrValue("hi")
	assert.False(t, s.IsInt())
	assert.True(t, s.IsStr())
	assert.Equal(t, "hi", s.Str())
}

func TestBoolValueRoundtrip(t *testing.T) {
	assert.Equal(t, IntValue(1), BoolValue(true))
	assert.Equal(t, IntValue(0), BoolValue(false))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "NULL", NullValue.String())
	assert.Equal(t, "5", IntValue(5).String())
	assert.Equal(t, "abc", StrValue("abc").String())
}
