// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryTextAndBinaryAlwaysValid(t *testing.T) {
	assert.True(t, CategoryText.Validate(""))
	assert.True(t, CategoryBinary.Validate("anything at all"))
}

func TestCategoryUpperLowerCase(t *testing.T) {
	assert.True(t, CategoryUpperCase.Validate("ABC123"))
	assert.False(t, CategoryUpperCase.Validate("ABc"))
	assert.True(t, CategoryLowerCase.Validate("abc123"))
	assert.False(t, CategoryLowerCase.Validate("aBc"))
}

func TestCategoryIntegerAndDoubleInteger(t *testing.T) {
	assert.True(t, CategoryInteger.Validate("123"))
	assert.False(t, CategoryInteger.Validate("99999"))
	assert.True(t, CategoryDoubleInteger.Validate("99999"))
	assert.False(t, CategoryDoubleInteger.Validate("not a number"))
}

func TestCategoryIdentifier(t *testing.T) {
	assert.True(t, CategoryIdentifier.Validate("_Foo.Bar1"))
	assert.False(t, CategoryIdentifier.Validate("1Foo"))
	assert.False(t, CategoryIdentifier.Validate(""))
}

func TestCategoryProperty(t *testing.T) {
	assert.True(t, CategoryProperty.Validate("MyProp"))
	assert.True(t, CategoryProperty.Validate("%MyProp"))
	assert.False(t, CategoryProperty.Validate("%1Bad"))
}

func TestCategoryGUID(t *testing.T) {
	assert.True(t, CategoryGUID.Validate("{12345678-1234-1234-1234-1234567890AB}"))
	assert.False(t, CategoryGUID.Validate("{12345678-1234-1234-1234-1234567890ab}"))
	assert.False(t, CategoryGUID.Validate("not a guid"))
}

func TestCategoryVersion(t *testing.T) {
	assert.True(t, CategoryVersion.Validate("1.2.3.4"))
	assert.False(t, CategoryVersion.Validate("1.2.3.4.5"))
	assert.False(t, CategoryVersion.Validate("1.a.3"))
}

func TestCategoryCabinet(t *testing.T) {
	assert.True(t, CategoryCabinet.Validate("disk1.cab"))
	assert.True(t, CategoryCabinet.Validate("#CabStream"))
	assert.False(t, CategoryCabinet.Validate("#1Bad"))
	assert.False(t, CategoryCabinet.Validate("toolongname.cabx"))
}

func TestCategoryDefaultPassesUnknownCategory(t *testing.T) {
	assert.True(t, CategoryShortcut.Validate("whatever"))
}
