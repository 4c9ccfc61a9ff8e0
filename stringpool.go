// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"encoding/binary"
	"fmt"
)

// maxStringRef is the largest string-pool index that the 3-byte
// string-ref encoding can represent.
const maxStringRef = 0xff_ffff

// longStringRefsBit flags, in the _StringPool stream's codepage word,
// that string references throughout the database are encoded with 3
// bytes instead of 2.
const longStringRefsBit = 0x8000_0000

// stringRef is a 1-based index into a StringPool; zero means "no
// string" (used to represent NULL without a separate null bit).
type stringRef int32

func (r stringRef) number() int32 { return int32(r) }

// index returns the zero-based slice index this ref corresponds to, or
// -1 if the ref is the null reference.
func (r stringRef) index() int {
	if r == 0 {
		return -1
	}
	return int(r) - 1
}

// readStringRef reads a 2- or 3-byte string reference from data at
// offset, depending on longRefs.
func readStringRef(data []byte, offset int, longRefs bool) (stringRef, int, error) {
	if longRefs {
		if offset+3 > len(data) {
			return 0, 0, ErrOutsideBoundary
		}
		n := uint32(data[offset]) | uint32(data[offset+1])<<8 | uint32(data[offset+2])<<16
		return stringRef(n), 3, nil
	}
	if offset+2 > len(data) {
		return 0, 0, ErrOutsideBoundary
	}
	n := binary.LittleEndian.Uint16(data[offset:])
	return stringRef(n), 2, nil
}

// writeStringRef encodes r as a 2- or 3-byte reference, returning an
// error if the value doesn't fit.
func writeStringRef(r stringRef, longRefs bool) ([]byte, error) {
	n := uint32(r)
	if n > maxStringRef {
		return nil, &InvalidDataError{Reason: "string ref exceeds maximum"}
	}
	if longRefs {
		return []byte{byte(n), byte(n >> 8), byte(n >> 16)}, nil
	}
	if n > 0xffff {
		return nil, &InvalidDataError{Reason: "string ref requires long string refs"}
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(n))
	return buf, nil
}

// stringPoolEntry is one slot in the string pool: a string and its
// reference count. A refcount of 0 marks a tombstoned (reusable) slot.
type stringPoolEntry struct {
	value    string
	refcount uint16
}

// StringPool is the database-wide deduplicated table of string values
// that every Str-typed cell references by index, plus the codepage those
// strings are encoded in on disk.
type StringPool struct {
	codepage     CodePage
	entries      []stringPoolEntry
	longRefs     bool
	modified     bool
}

// NewStringPool creates an empty string pool using the given codepage.
func NewStringPool(codepage CodePage) *StringPool {
	return &StringPool{codepage: codepage}
}

// Codepage returns the pool's codepage.
func (p *StringPool) Codepage() CodePage { return p.codepage }

// SetCodepage changes the pool's codepage. It does not re-encode
// existing entries; callers are expected to only do this on an empty
// pool (matching the original implementation, which only exposes this
// on freshly created databases).
func (p *StringPool) SetCodepage(c CodePage) {
	p.codepage = c
	p.modified = true
}

// NumStrings returns the number of slots in the pool, including
// tombstoned ones.
func (p *StringPool) NumStrings() int { return len(p.entries) }

// LongStringRefs reports whether string references in this database use
// the 3-byte encoding.
func (p *StringPool) LongStringRefs() bool { return p.longRefs }

// IsModified reports whether the pool has changed since the last call to
// MarkUnmodified.
func (p *StringPool) IsModified() bool { return p.modified }

// MarkUnmodified clears the modified flag, called after the pool has
// been flushed to its backing streams.
func (p *StringPool) MarkUnmodified() { p.modified = false }

// Get returns the string referenced by ref, or "" for the null ref.
func (p *StringPool) Get(ref stringRef) string {
	idx := ref.index()
	if idx < 0 || idx >= len(p.entries) {
		return ""
	}
	return p.entries[idx].value
}

// Refcount returns the reference count for ref.
func (p *StringPool) Refcount(ref stringRef) uint16 {
	idx := ref.index()
	if idx < 0 || idx >= len(p.entries) {
		return 0
	}
	return p.entries[idx].refcount
}

// Incref records a new use of s, reusing a tombstoned slot or an
// existing identical string where possible, and returns the ref to use.
// Creating a ref past the 2-byte limit upgrades the pool to long string
// refs.
func (p *StringPool) Incref(s string) stringRef {
	for i := range p.entries {
		if p.entries[i].refcount == 0 {
			p.entries[i] = stringPoolEntry{value: s, refcount: 1}
			p.modified = true
			return stringRef(i + 1)
		}
	}
	for i := range p.entries {
		if p.entries[i].value == s && p.entries[i].refcount < 0xffff {
			p.entries[i].refcount++
			p.modified = true
			return stringRef(i + 1)
		}
	}
	p.entries = append(p.entries, stringPoolEntry{value: s, refcount: 1})
	idx := len(p.entries)
	if idx > 0xffff {
		p.longRefs = true
	}
	p.modified = true
	return stringRef(idx)
}

// Decref removes one use of ref, tombstoning the slot once its refcount
// reaches zero. Decref on an already-zero-refcount slot is a bug in the
// caller and panics, matching the original implementation's own
// assertion.
func (p *StringPool) Decref(ref stringRef) {
	idx := ref.index()
	if idx < 0 || idx >= len(p.entries) {
		return
	}
	if p.entries[idx].refcount == 0 {
		panic(fmt.Sprintf("decref of already-zero string ref %d", ref))
	}
	p.entries[idx].refcount--
	if p.entries[idx].refcount == 0 {
		p.entries[idx].value = ""
	}
	p.modified = true
}

// buildStringPoolFromStreams decodes the _StringPool/_StringData stream
// pair into a StringPool. The pool stream is a codepage word followed by
// (length, refcount) uint16 pairs; an overlong string (length that
// doesn't fit in 16 bits) is signalled by a zero length field paired
// with a nonzero refcount field that holds the length's high 16 bits;
// the next uint16 holds its low 16 bits and the one after that the real
// refcount.
func buildStringPoolFromStreams(poolData, stringData []byte) (*StringPool, error) {
	if len(poolData) < 4 {
		return nil, &InvalidDataError{Reason: "string pool stream too short"}
	}
	codepageWord := binary.LittleEndian.Uint32(poolData)
	longRefs := codepageWord&longStringRefsBit != 0
	codepage := CodePage(int32(codepageWord &^ longStringRefsBit))

	pool := &StringPool{codepage: codepage, longRefs: longRefs}
	offset := 4
	dataOffset := 0
	for offset+4 <= len(poolData) {
		length := binary.LittleEndian.Uint16(poolData[offset:])
		refcount := binary.LittleEndian.Uint16(poolData[offset+2:])
		offset += 4
		strLen := int(length)
		if length == 0 && refcount != 0 {
			if offset+4 > len(poolData) {
				return nil, &InvalidDataError{Reason: "truncated overlong string length"}
			}
			nextU16 := binary.LittleEndian.Uint16(poolData[offset:])
			realRefcount := binary.LittleEndian.Uint16(poolData[offset+2:])
			offset += 4
			strLen = int(uint32(refcount)<<16 | uint32(nextU16))
			refcount = realRefcount
		}
		if dataOffset+strLen > len(stringData) {
			return nil, &InvalidDataError{Reason: "string pool data truncated"}
		}
		raw := stringData[dataOffset : dataOffset+strLen]
		dataOffset += strLen
		s, err := codepage.Decode(raw)
		if err != nil {
			return nil, &InvalidDataError{Reason: "string pool entry has invalid encoding", Cause: err}
		}
		pool.entries = append(pool.entries, stringPoolEntry{value: s, refcount: refcount})
	}
	return pool, nil
}

// writePoolStream encodes the pool's metadata half (the _StringPool
// stream).
func (p *StringPool) writePoolStream() ([]byte, error) {
	buf := make([]byte, 4)
	codepageWord := uint32(uint16(p.codepage))
	if p.longRefs {
		codepageWord |= longStringRefsBit
	}
	binary.LittleEndian.PutUint32(buf, codepageWord)
	for _, e := range p.entries {
		encoded, err := p.codepage.Encode(e.value)
		if err != nil {
			return nil, &InvalidDataError{Reason: "string pool entry cannot be encoded", Cause: err}
		}
		entryBuf := make([]byte, 4)
		if len(encoded) > 0xffff {
			overlong := make([]byte, 8)
			binary.LittleEndian.PutUint16(overlong[0:], 0)
			binary.LittleEndian.PutUint16(overlong[2:], uint16(uint32(len(encoded))>>16))
			binary.LittleEndian.PutUint16(overlong[4:], uint16(uint32(len(encoded))&0xffff))
			binary.LittleEndian.PutUint16(overlong[6:], e.refcount)
			buf = append(buf, overlong...)
			continue
		}
		binary.LittleEndian.PutUint16(entryBuf, uint16(len(encoded)))
		binary.LittleEndian.PutUint16(entryBuf[2:], e.refcount)
		buf = append(buf, entryBuf...)
	}
	return buf, nil
}

// writeDataStream encodes the pool's string bytes half (the
// _StringData stream): every entry's codepage-encoded bytes,
// concatenated with no separators.
func (p *StringPool) writeDataStream() ([]byte, error) {
	var buf []byte
	for _, e := range p.entries {
		encoded, err := p.codepage.Encode(e.value)
		if err != nil {
			return nil, &InvalidDataError{Reason: "string pool entry cannot be encoded", Cause: err}
		}
		buf = append(buf, encoded...)
	}
	return buf, nil
}
