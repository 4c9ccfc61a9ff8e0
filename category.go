// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"strconv"
	"strings"
)

// ColumnCategory is one of the ~25 lexical validators that the
// _Validation table may attach to a text column, constraining what
// strings are acceptable values.
type ColumnCategory string

// The recognized categories. Most beyond the ones that carry a concrete
// validate() rule below accept every string unvalidated, matching the
// original implementation's own documented shortfall for the long tail
// of categories it never got around to checking strictly.
const (
	CategoryText             ColumnCategory = "Text"
	CategoryUpperCase        ColumnCategory = "UpperCase"
	CategoryLowerCase        ColumnCategory = "LowerCase"
	CategoryInteger          ColumnCategory = "Integer"
	CategoryDoubleInteger    ColumnCategory = "DoubleInteger"
	CategoryTimeDate         ColumnCategory = "TimeDate"
	CategoryIdentifier       ColumnCategory = "Identifier"
	CategoryProperty         ColumnCategory = "Property"
	CategoryFilename         ColumnCategory = "Filename"
	CategoryWildCardFilename ColumnCategory = "WildCardFilename"
	CategoryPath             ColumnCategory = "Path"
	CategoryPaths            ColumnCategory = "Paths"
	CategoryAnyPath          ColumnCategory = "AnyPath"
	CategoryDefaultDir       ColumnCategory = "DefaultDir"
	CategoryRegPath          ColumnCategory = "RegPath"
	CategoryFormatted        ColumnCategory = "Formatted"
	CategoryTemplate         ColumnCategory = "Template"
	CategoryCondition        ColumnCategory = "Condition"
	CategoryGUID             ColumnCategory = "Guid"
	CategoryVersion          ColumnCategory = "Version"
	CategoryLanguage         ColumnCategory = "Language"
	CategoryBinary           ColumnCategory = "Binary"
	CategoryCustomSource     ColumnCategory = "CustomSource"
	CategoryCabinet          ColumnCategory = "Cabinet"
	CategoryShortcut         ColumnCategory = "Shortcut"
)

// Validate reports whether value satisfies this category's lexical rule.
// Categories not listed explicitly below always validate true.
func (c ColumnCategory) Validate(value string) bool {
	switch c {
	case CategoryText, CategoryBinary:
		return true
	case CategoryUpperCase:
		return !strings.ContainsAny(value, "abcdefghijklmnopqrstuvwxyz")
	case CategoryLowerCase:
		return !strings.ContainsAny(value, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	case CategoryInteger:
		_, err := strconv.ParseInt(value, 10, 16)
		return err == nil
	case CategoryDoubleInteger:
		_, err := strconv.ParseInt(value, 10, 32)
		return err == nil
	case CategoryIdentifier:
		return isValidIdentifier(value)
	case CategoryProperty:
		if strings.HasPrefix(value, "%") {
			return isValidIdentifier(value[1:])
		}
		return isValidIdentifier(value)
	case CategoryGUID:
		return isValidGUIDString(value)
	case CategoryVersion:
		return isValidVersionString(value)
	case CategoryCabinet:
		return isValidCabinetString(value)
	default:
		return true
	}
}

func isValidIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	first := s[0]
	if !(first == '_' || (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return false
	}
	for _, r := range s[1:] {
		if r == '_' || r == '.' || (r >= '0' && r <= '9') ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return false
	}
	return true
}

func isValidGUIDString(s string) bool {
	if len(s) != 38 || s[0] != '{' || s[37] != '}' {
		return false
	}
	inner := s[1:37]
	for _, r := range inner {
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return isWellFormedUUID(inner)
}

func isWellFormedUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !isHexDigit(r) {
				return false
			}
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isValidVersionString(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 16); err != nil {
			return false
		}
	}
	return true
}

func isValidCabinetString(s string) bool {
	if strings.HasPrefix(s, "#") {
		return isValidIdentifier(s[1:])
	}
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return len(s) > 0 && len(s) <= 8
	}
	base, ext := s[:dot], s[dot+1:]
	return len(base) > 0 && len(base) <= 8 && len(ext) <= 3
}
