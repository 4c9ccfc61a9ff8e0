// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Property set binary format constants, per the OLE Structured Storage
// Property Set spec as Windows Installer actually writes it.
const (
	propSetByteOrderMark  = 0xfffe
	propSetFormatVersion0 = 0
	propSetFormatVersion1 = 1
	propSetCodepageID     = 1
)

// OS values recorded in the property set header.
const (
	osWin16     = 0
	osMacintosh = 1
	osWin32     = 2
)

// propertyValueKind tags the type of a single property value, per the
// OLE VT_* subset the format actually uses.
type propertyValueKind uint32

const (
	vtEmpty    propertyValueKind = 0
	vtNull     propertyValueKind = 1
	vtI2       propertyValueKind = 2
	vtI4       propertyValueKind = 3
	vtI1       propertyValueKind = 16
	vtLpstr    propertyValueKind = 30
	vtFiletime propertyValueKind = 64
)

// summaryFMTID is the property-set format identifier Windows Installer
// uses for the SummaryInformation stream:
// {F29F85E0-4FF9-1068-AB91-08002B27B3D9}.
var summaryFMTID = [16]byte{
	0xe0, 0x85, 0x9f, 0xf2, 0xf9, 0x4f, 0x68, 0x10,
	0xab, 0x91, 0x08, 0x00, 0x2b, 0x27, 0xb3, 0xd9,
}

// propertySet is the decoded content of a single-section OLE property
// set stream: an ordered map from property id to its raw value.
type propertySet struct {
	osVersion  uint16
	os         uint16
	clsid      uuid.UUID
	codepage   CodePage
	properties map[uint32]propValue
	order      []uint32
}

type propValue struct {
	kind propertyValueKind
	i    int32
	s    string
	ft   uint64
}

func newPropertySet() *propertySet {
	return &propertySet{
		os:         osWin32,
		clsid:      uuid.Nil,
		codepage:   CodePageWindows1252,
		properties: make(map[uint32]propValue),
	}
}

func (p *propertySet) setInt(id uint32, n int32, wide bool) {
	kind := vtI2
	if wide {
		kind = vtI4
	}
	p.setValue(id, propValue{kind: kind, i: n})
}

func (p *propertySet) setStr(id uint32, s string) {
	p.setValue(id, propValue{kind: vtLpstr, s: s})
}

func (p *propertySet) setFiletime(id uint32, t time.Time) {
	p.setValue(id, propValue{kind: vtFiletime, ft: timeToFiletime(t)})
}

func (p *propertySet) setValue(id uint32, v propValue) {
	if _, exists := p.properties[id]; !exists {
		p.order = append(p.order, id)
	}
	p.properties[id] = v
}

func (p *propertySet) remove(id uint32) {
	if _, exists := p.properties[id]; !exists {
		return
	}
	delete(p.properties, id)
	for i, o := range p.order {
		if o == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *propertySet) get(id uint32) (propValue, bool) {
	v, ok := p.properties[id]
	return v, ok
}

// parsePropertySet decodes a full OLE property set stream (header plus
// one section, which is all Windows Installer ever writes).
func parsePropertySet(data []byte) (*propertySet, error) {
	if len(data) < 28 {
		return nil, &InvalidDataError{Reason: "property set stream too short"}
	}
	bom := binary.LittleEndian.Uint16(data[0:])
	if bom != propSetByteOrderMark {
		return nil, ErrBadPropertySet
	}
	version := binary.LittleEndian.Uint16(data[2:])
	osVersion := binary.LittleEndian.Uint16(data[4:])
	os := binary.LittleEndian.Uint16(data[6:])
	var clsidBytes [16]byte
	copy(clsidBytes[:], data[8:24])
	clsid, _ := uuid.FromBytes(reorderGUIDFromLE(clsidBytes))
	reserved := binary.LittleEndian.Uint32(data[24:28])
	if reserved < 1 {
		return nil, ErrBadPropertySet
	}
	if len(data) < 28+20 {
		return nil, &InvalidDataError{Reason: "property set stream missing section header"}
	}
	// fmtid (16) + section_offset (4)
	sectionOffset := binary.LittleEndian.Uint32(data[28+16:])
	if int(sectionOffset) >= len(data) {
		return nil, &InvalidDataError{Reason: "property set section offset out of range"}
	}
	sec := data[sectionOffset:]
	if len(sec) < 8 {
		return nil, &InvalidDataError{Reason: "property set section too short"}
	}
	numProps := binary.LittleEndian.Uint32(sec[4:])
	ps := &propertySet{osVersion: osVersion, os: os, clsid: clsid}
	ps.properties = make(map[uint32]propValue)

	entriesOff := 8

	// The codepage governs how every LPSTR property in the section is
	// decoded, so it must be resolved before any string is read,
	// regardless of where PROPERTY_CODEPAGE falls in the entry table.
	codepage := CodePageWindows1252
	for i := uint32(0); i < numProps; i++ {
		base := entriesOff + int(i)*8
		if base+8 > len(sec) {
			return nil, &InvalidDataError{Reason: "property set entry table truncated"}
		}
		if binary.LittleEndian.Uint32(sec[base:]) != propSetCodepageID {
			continue
		}
		off := binary.LittleEndian.Uint32(sec[base+4:])
		if int(off) >= len(sec) {
			return nil, &InvalidDataError{Reason: "property value offset out of range"}
		}
		v, err := readPropertyValue(sec[off:], codepage)
		if err != nil {
			return nil, err
		}
		if v.kind == vtI2 {
			codepage = CodePage(uint16(v.i))
		}
		break
	}

	for i := uint32(0); i < numProps; i++ {
		base := entriesOff + int(i)*8
		if base+8 > len(sec) {
			return nil, &InvalidDataError{Reason: "property set entry table truncated"}
		}
		id := binary.LittleEndian.Uint32(sec[base:])
		off := binary.LittleEndian.Uint32(sec[base+4:])
		if int(off) >= len(sec) {
			return nil, &InvalidDataError{Reason: "property value offset out of range"}
		}
		v, err := readPropertyValue(sec[off:], codepage)
		if err != nil {
			return nil, err
		}
		ps.setValue(id, v)
	}
	ps.codepage = codepage
	_ = version
	return ps, nil
}

func readPropertyValue(data []byte, codepage CodePage) (propValue, error) {
	if len(data) < 4 {
		return propValue{}, &InvalidDataError{Reason: "truncated property value"}
	}
	kind := propertyValueKind(binary.LittleEndian.Uint32(data))
	rest := data[4:]
	switch kind {
	case vtEmpty, vtNull:
		return propValue{kind: kind}, nil
	case vtI1:
		if len(rest) < 1 {
			return propValue{}, &InvalidDataError{Reason: "truncated I1 property"}
		}
		return propValue{kind: kind, i: int32(int8(rest[0]))}, nil
	case vtI2:
		if len(rest) < 2 {
			return propValue{}, &InvalidDataError{Reason: "truncated I2 property"}
		}
		return propValue{kind: kind, i: int32(int16(binary.LittleEndian.Uint16(rest)))}, nil
	case vtI4:
		if len(rest) < 4 {
			return propValue{}, &InvalidDataError{Reason: "truncated I4 property"}
		}
		return propValue{kind: kind, i: int32(binary.LittleEndian.Uint32(rest))}, nil
	case vtFiletime:
		if len(rest) < 8 {
			return propValue{}, &InvalidDataError{Reason: "truncated FILETIME property"}
		}
		return propValue{kind: kind, ft: binary.LittleEndian.Uint64(rest)}, nil
	case vtLpstr:
		if len(rest) < 4 {
			return propValue{}, &InvalidDataError{Reason: "truncated LPSTR property"}
		}
		length := binary.LittleEndian.Uint32(rest)
		rest = rest[4:]
		if uint32(len(rest)) < length {
			return propValue{}, &InvalidDataError{Reason: "truncated LPSTR property data"}
		}
		raw := rest[:length]
		// length includes the null terminator.
		if length > 0 && raw[length-1] == 0 {
			raw = raw[:length-1]
		}
		s, err := codepage.Decode(trimTrailingNulls(raw))
		if err != nil {
			return propValue{}, &InvalidDataError{Reason: "LPSTR property has invalid encoding", Cause: err}
		}
		return propValue{kind: kind, s: s}, nil
	default:
		return propValue{kind: kind}, nil
	}
}

func trimTrailingNulls(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}

// encode serializes the property set back to its on-disk binary form.
func (p *propertySet) encode() ([]byte, error) {
	version := uint16(propSetFormatVersion0)
	for _, v := range p.properties {
		if v.kind == vtI1 {
			version = propSetFormatVersion1
		}
	}

	header := make([]byte, 28)
	binary.LittleEndian.PutUint16(header[0:], propSetByteOrderMark)
	binary.LittleEndian.PutUint16(header[2:], version)
	binary.LittleEndian.PutUint16(header[4:], p.osVersion)
	binary.LittleEndian.PutUint16(header[6:], p.os)
	copy(header[8:24], reorderGUIDToLE(p.clsid))
	binary.LittleEndian.PutUint32(header[24:], 1)

	sectionHeaderOffset := uint32(len(header))
	fmtidAndOffset := make([]byte, 20)
	copy(fmtidAndOffset[0:16], summaryFMTID[:])
	binary.LittleEndian.PutUint32(fmtidAndOffset[16:], uint32(len(header))+20)

	codepage := p.codepage
	if v, ok := p.properties[propSetCodepageID]; ok && v.kind == vtI2 {
		codepage = CodePage(uint16(v.i))
	}
	if codepage == 0 {
		codepage = CodePageWindows1252
	}

	entries := make([]byte, 0, 8*len(p.order))
	var valuesBuf []byte
	valuesBase := 8 + 8*len(p.order)
	for _, id := range p.order {
		v := p.properties[id]
		offset := valuesBase + len(valuesBuf)
		entry := make([]byte, 8)
		binary.LittleEndian.PutUint32(entry[0:], id)
		binary.LittleEndian.PutUint32(entry[4:], uint32(offset))
		entries = append(entries, entry...)
		encoded, err := encodePropertyValue(v, codepage)
		if err != nil {
			return nil, err
		}
		valuesBuf = append(valuesBuf, encoded...)
	}

	sectionSize := valuesBase + len(valuesBuf)
	section := make([]byte, 8)
	binary.LittleEndian.PutUint32(section[0:], uint32(sectionSize))
	binary.LittleEndian.PutUint32(section[4:], uint32(len(p.order)))
	section = append(section, entries...)
	section = append(section, valuesBuf...)

	_ = sectionHeaderOffset
	out := append([]byte{}, header...)
	out = append(out, fmtidAndOffset...)
	out = append(out, section...)
	return out, nil
}

func encodePropertyValue(v propValue, codepage CodePage) ([]byte, error) {
	head := make([]byte, 4)
	binary.LittleEndian.PutUint32(head, uint32(v.kind))
	var out []byte
	switch v.kind {
	case vtEmpty, vtNull:
		out = head
	case vtI1:
		out = append(head, byte(int8(v.i)))
	case vtI2:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(int16(v.i)))
		out = append(head, buf...)
	case vtI4:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.i))
		out = append(head, buf...)
	case vtFiletime:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, v.ft)
		out = append(head, buf...)
	case vtLpstr:
		encoded, err := codepage.Encode(v.s)
		if err != nil {
			return nil, &InvalidDataError{Reason: "property value cannot be encoded", Cause: err}
		}
		// the stored length is the unpadded length including the null
		// terminator, measured in encoded bytes (not UTF-8 bytes of the
		// source string); padding past it is not reflected in this field.
		unpadded := len(encoded) + 1
		encoded = append(encoded, 0)
		for len(encoded)%4 != 0 {
			encoded = append(encoded, 0)
		}
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(unpadded))
		out = append(head, append(lenBuf, encoded...)...)
	default:
		out = head
	}
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out, nil
}

// reorderGUIDFromLE/ToLE convert between the 16-byte little-endian wire
// form Windows stores a GUID's first three fields in and the canonical
// big-endian byte order google/uuid expects.
func reorderGUIDFromLE(b [16]byte) []byte {
	out := make([]byte, 16)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return out
}

func reorderGUIDToLE(id uuid.UUID) []byte {
	b := id
	out := make([]byte, 16)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return out
}
