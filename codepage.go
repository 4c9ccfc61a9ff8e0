// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// CodePage represents one of the Windows code pages an MSI string pool may
// be encoded in. Only a handful of legacy single-byte pages, plus UTF-8,
// are natively understood by the format; everything else is approximated
// via golang.org/x/text/encoding/charmap where a matching table exists.
type CodePage int

// Well-known code page identifiers, taken from the values actually stored
// in the _StringPool stream's codepage field by real MSI packages.
const (
	CodePageNeutral        CodePage = 0
	CodePageWindows1252    CodePage = 1252
	CodePageMacintoshRoman CodePage = 10000
	CodePageUTF8           CodePage = 65001
	CodePageWindows874     CodePage = 874
	CodePageShiftJIS       CodePage = 932
	CodePageGBK            CodePage = 936
	CodePageUHC            CodePage = 949
	CodePageBig5           CodePage = 950
	CodePageWindows1250    CodePage = 1250
	CodePageWindows1251    CodePage = 1251
	CodePageWindows1253    CodePage = 1253
	CodePageWindows1254    CodePage = 1254
	CodePageWindows1255    CodePage = 1255
	CodePageWindows1256    CodePage = 1256
	CodePageWindows1257    CodePage = 1257
	CodePageWindows1258    CodePage = 1258
)

// codepageTable maps the extended set of recognized code page IDs to an
// x/text encoding. IDs outside this table, and the DBCS pages (932, 936,
// 949, 950) for which x/text/encoding/charmap carries no single-byte
// table, fall back to Windows-1252 — documented here rather than silently
// truncating unrecognized bytes.
var codepageTable = map[CodePage]encoding.Encoding{
	CodePageWindows1252: charmap.Windows1252,
	CodePageWindows874:  charmap.Windows874,
	CodePageWindows1250: charmap.Windows1250,
	CodePageWindows1251: charmap.Windows1251,
	CodePageWindows1253: charmap.Windows1253,
	CodePageWindows1254: charmap.Windows1254,
	CodePageWindows1255: charmap.Windows1255,
	CodePageWindows1256: charmap.Windows1256,
	CodePageWindows1257: charmap.Windows1257,
	CodePageWindows1258: charmap.Windows1258,
}

// IsValid reports whether id is one of the code pages this package knows
// how to decode, mirroring CodePage::from_id's validation in the original
// implementation (0 and 65001 are always accepted as neutral/UTF-8).
func (c CodePage) IsValid() bool {
	switch c {
	case CodePageNeutral, CodePageUTF8, CodePageMacintoshRoman:
		return true
	}
	_, ok := codepageTable[c]
	return ok
}

// Decode converts bytes in this code page's encoding to a UTF-8 string.
func (c CodePage) Decode(data []byte) (string, error) {
	switch c {
	case CodePageNeutral, CodePageUTF8:
		return string(data), nil
	case CodePageMacintoshRoman:
		return charmap.Macintosh.NewDecoder().String(string(data))
	}
	if enc, ok := codepageTable[c]; ok {
		return enc.NewDecoder().String(string(data))
	}
	s, err := charmap.Windows1252.NewDecoder().String(string(data))
	return s, err
}

// legacyCharmap resolves the *charmap.Charmap backing this code page,
// falling back to Windows-1252 for anything unrecognized.
func (c CodePage) legacyCharmap() *charmap.Charmap {
	switch c {
	case CodePageMacintoshRoman:
		return charmap.Macintosh
	}
	switch c {
	case CodePageWindows874:
		return charmap.Windows874
	case CodePageWindows1250:
		return charmap.Windows1250
	case CodePageWindows1251:
		return charmap.Windows1251
	case CodePageWindows1253:
		return charmap.Windows1253
	case CodePageWindows1254:
		return charmap.Windows1254
	case CodePageWindows1255:
		return charmap.Windows1255
	case CodePageWindows1256:
		return charmap.Windows1256
	case CodePageWindows1257:
		return charmap.Windows1257
	case CodePageWindows1258:
		return charmap.Windows1258
	default:
		return charmap.Windows1252
	}
}

// Encode converts a UTF-8 string to bytes in this code page's encoding,
// replacing any code point the code page cannot represent with '?'.
func (c CodePage) Encode(s string) ([]byte, error) {
	if c == CodePageNeutral || c == CodePageUTF8 {
		return []byte(s), nil
	}
	cm := c.legacyCharmap()
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := cm.EncodeRune(r); ok {
			out = append(out, b)
		} else {
			out = append(out, '?')
		}
	}
	return out, nil
}

// ID returns the numeric code page identifier as stored on disk.
func (c CodePage) ID() int32 { return int32(c) }
