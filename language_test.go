// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageTagKnownLCID(t *testing.T) {
	assert.Equal(t, "en-US", LanguageTag(1033))
}

func TestLCIDFromTagRoundTrip(t *testing.T) {
	tag := LanguageTag(1033)
	assert.Equal(t, 1033, LCIDFromTag(tag))
}

func TestLCIDFromTagUnknownFallsBackToZero(t *testing.T) {
	assert.Equal(t, 0, LCIDFromTag("not-a-real-tag-zz-ZZ"))
}

func TestLanguageTagUnknownLCID(t *testing.T) {
	tag := LanguageTag(999999)
	assert.NotEmpty(t, tag)
}
