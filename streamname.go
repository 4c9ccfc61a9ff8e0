// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import "strings"

// streamNameAlphabet is the 64-character alphabet MSI packs stream-name
// characters into when they fall outside of the printable range that CFB
// directory entries can carry directly.
const streamNameAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz._"

// Marker code points used by the private-use-area packing scheme: two
// alphabet characters (6 bits each) are folded into one UTF-16 code unit
// in the 0x3800-0x4840 private-use range.
const (
	streamNameMarkerLow  = 0x3800
	streamNameMarkerHigh = 0x4800
	tableNameMarker      = 0x4840
)

func alphabetIndex(r rune) (int, bool) {
	i := strings.IndexRune(streamNameAlphabet, r)
	if i < 0 {
		return 0, false
	}
	return i, true
}

// encodeStreamName converts a logical table or stream name into the
// obfuscated UTF-16 form MSI actually stores as a CFB directory entry
// name. When isTable is true, the literal U+4840 marker is prepended
// ahead of the (otherwise identically encoded) name, so that table
// streams and named binary streams occupying the same identifier space
// never collide.
func encodeStreamName(name string, isTable bool) string {
	runes := []rune(name)
	var out []rune
	if isTable {
		out = append(out, rune(tableNameMarker))
	}
	i := 0
	for i < len(runes) {
		idx1, ok1 := alphabetIndex(runes[i])
		if !ok1 {
			out = append(out, runes[i])
			i++
			continue
		}
		if i+1 < len(runes) {
			if idx2, ok2 := alphabetIndex(runes[i+1]); ok2 {
				out = append(out, rune(streamNameMarkerLow+idx1+(idx2<<6)))
				i += 2
				continue
			}
		}
		out = append(out, rune(streamNameMarkerHigh+idx1))
		i++
	}
	return string(out)
}

// decodeStreamName reverses encodeStreamName, recovering the logical
// table or stream name and the is-table marker from a CFB directory
// entry name.
func decodeStreamName(encoded string) (string, bool) {
	runes := []rune(encoded)
	isTable := false
	if len(runes) > 0 && runes[0] == tableNameMarker {
		isTable = true
		runes = runes[1:]
	}
	var out []rune
	for _, r := range runes {
		switch {
		case r >= streamNameMarkerHigh && r < streamNameMarkerHigh+64:
			out = append(out, rune(streamNameAlphabet[r-streamNameMarkerHigh]))
		case r >= streamNameMarkerLow && r < streamNameMarkerLow+0x1000:
			off := r - streamNameMarkerLow
			idx1 := off & 0x3f
			idx2 := (off >> 6) & 0x3f
			out = append(out, rune(streamNameAlphabet[idx1]))
			if int(idx2) < len(streamNameAlphabet) {
				out = append(out, rune(streamNameAlphabet[idx2]))
			}
		default:
			out = append(out, r)
		}
	}
	return string(out), isTable
}

// isValidStreamName reports whether name is short enough and free of
// control characters to be encoded as a stream or table name. CFB
// directory entry names are limited to 31 UTF-16 code units (62 bytes,
// plus a null terminator), so the limit is applied to the encoded form,
// including the table marker when isTable is true.
func isValidStreamName(name string, isTable bool) bool {
	if len(name) == 0 {
		return false
	}
	if len([]rune(encodeStreamName(name, isTable))) > 31 {
		return false
	}
	for _, r := range name {
		if r < 0x20 {
			return false
		}
	}
	return true
}
