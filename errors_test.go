// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundErrorMatchesSentinel(t *testing.T) {
	tableErr := &NotFoundError{Kind: "table", Name: "File"}
	assert.True(t, errors.Is(tableErr, ErrTableNotFound))
	assert.Contains(t, tableErr.Error(), "File")

	streamErr := &NotFoundError{Kind: "stream", Name: "DigitalSignature"}
	assert.True(t, errors.Is(streamErr, ErrStreamNotFound))
}

func TestAlreadyExistsErrorMessage(t *testing.T) {
	err := &AlreadyExistsError{Kind: "table", Name: "File"}
	assert.Equal(t, `table "File" already exists`, err.Error())
}

func TestInvalidInputErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &InvalidInputError{Reason: "bad row", Cause: cause}
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "bad row")
	assert.Contains(t, err.Error(), "boom")
}

func TestInvalidDataErrorWithoutCause(t *testing.T) {
	err := &InvalidDataError{Reason: "truncated stream"}
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "invalid data: truncated stream", err.Error())
}
