// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertySetEncodeParseRoundTrip(t *testing.T) {
	ps := newPropertySet()
	ps.setInt(1, int32(CodePageWindows1252), false) // PROPERTY_CODEPAGE, stored as VT_I2
	ps.setStr(2, "My Installer")
	ps.setInt(14, 5, false)
	when := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	ps.setFiletime(12, when)

	encoded, err := ps.encode()
	require.NoError(t, err)

	decoded, err := parsePropertySet(encoded)
	require.NoError(t, err)

	titleVal, ok := decoded.get(2)
	require.True(t, ok)
	assert.Equal(t, "My Installer", titleVal.s)

	cpVal, ok := decoded.get(1)
	require.True(t, ok)
	assert.Equal(t, int32(CodePageWindows1252), cpVal.i)

	wordsVal, ok := decoded.get(14)
	require.True(t, ok)
	assert.Equal(t, int32(5), wordsVal.i)

	ftVal, ok := decoded.get(12)
	require.True(t, ok)
	assert.Equal(t, timeToFiletime(when), ftVal.ft)
}

func TestPropertySetRemove(t *testing.T) {
	ps := newPropertySet()
	ps.setStr(2, "Title")
	ps.setStr(3, "Subject")
	ps.remove(2)
	_, ok := ps.get(2)
	assert.False(t, ok)
	_, ok = ps.get(3)
	assert.True(t, ok)
	assert.Equal(t, []uint32{3}, ps.order)
}

func TestParsePropertySetRejectsBadBOM(t *testing.T) {
	data := make([]byte, 48)
	_, err := parsePropertySet(data)
	assert.Error(t, err)
}

func TestParsePropertySetRejectsShortData(t *testing.T) {
	_, err := parsePropertySet([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestGUIDReorderRoundTrip(t *testing.T) {
	id := uuid.MustParse("12345678-1234-5678-1234-567812345678")
	le := reorderGUIDToLE(id)
	var arr [16]byte
	copy(arr[:], le)
	back, err := uuid.FromBytes(reorderGUIDFromLE(arr))
	require.NoError(t, err)
	assert.Equal(t, id, back)
}

func TestTrimTrailingNulls(t *testing.T) {
	assert.Equal(t, []byte("abc"), trimTrailingNulls([]byte("abc\x00\x00")))
	assert.Equal(t, []byte{}, trimTrailingNulls([]byte("\x00\x00")))
}

func TestEncodePropertyValuePadsToFourBytes(t *testing.T) {
	v := propValue{kind: vtLpstr, s: "ab"}
	encoded, err := encodePropertyValue(v, CodePageWindows1252)
	require.NoError(t, err)
	assert.Zero(t, len(encoded)%4)
}
