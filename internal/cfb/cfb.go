// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package cfb implements the minimum subset of the Microsoft Compound
// File Binary (structured storage, "OLE2") format a Windows Installer
// database needs: reading an existing container's directory and stream
// contents, and serializing an in-memory set of named streams plus a
// root storage CLSID back out to a valid container.
//
// This is a hand-rolled reader/writer rather than a wrapped third-party
// library: no CFB implementation appears anywhere in the retrieved
// reference pack. The fixed-layout header/directory-entry parsing
// follows the structUnpack binary-reading idiom the teacher package
// uses for PE headers; the sector/allocation-table chain walking
// follows the shape of a FAT-style allocation table reader.
package cfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrNotCompoundFile is returned by Open when data does not start with
// the compound file binary signature.
var ErrNotCompoundFile = errors.New("cfb: not a compound file binary")

// ErrInvalidSectorShift is returned by Open when the header's sector
// shift is not one of the two values (9, 12) the format allows.
var ErrInvalidSectorShift = errors.New("cfb: invalid sector shift in header")

const (
	signature = uint64(0xE11AB1A1E011CFD0)

	headerSize  = 512
	numDIFATInHeader = 109

	freeSectorID    = 0xFFFFFFFF
	endOfChainID    = 0xFFFFFFFE
	fatSectorID     = 0xFFFFFFFD
	difatSectorID   = 0xFFFFFFFC

	objTypeUnknown  = 0
	objTypeStorage  = 1
	objTypeStream   = 2
	objTypeRootStorage = 5

	noStream = 0xFFFFFFFF

	miniStreamCutoffDefault = 4096
	miniSectorSize          = 64
)

// header mirrors the 512-byte compound file header, laid out exactly
// as it appears on disk (little-endian throughout).
type header struct {
	Signature          uint64
	CLSID              [16]byte
	MinorVersion       uint16
	MajorVersion       uint16
	ByteOrder          uint16
	SectorShift        uint16
	MiniSectorShift    uint16
	Reserved           [6]byte
	NumDirSectors      uint32
	NumFATSectors      uint32
	FirstDirSector     uint32
	TransactionSig     uint32
	MiniStreamCutoff   uint32
	FirstMiniFATSector uint32
	NumMiniFATSectors  uint32
	FirstDIFATSector   uint32
	NumDIFATSectors    uint32
	DIFAT              [numDIFATInHeader]uint32
}

// dirEntry mirrors the 128-byte directory entry layout.
type dirEntry struct {
	Name        [32]uint16
	NameLen     uint16
	ObjectType  uint8
	ColorFlag   uint8
	LeftSibID   uint32
	RightSibID  uint32
	ChildID     uint32
	CLSID       [16]byte
	StateBits   uint32
	CreateTime  uint64
	ModifyTime  uint64
	StartSector uint32
	StreamSizeLow  uint32
	StreamSizeHigh uint32
}

func (e *dirEntry) name() string {
	n := int(e.NameLen)/2 - 1
	if n <= 0 {
		return ""
	}
	u := make([]uint16, n)
	copy(u, e.Name[:n])
	return utf16ToString(u)
}

func (e *dirEntry) size() uint64 {
	return uint64(e.StreamSizeLow) | uint64(e.StreamSizeHigh)<<32
}

func utf16ToString(u []uint16) string {
	runes := make([]rune, 0, len(u))
	for i := 0; i < len(u); i++ {
		r := rune(u[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u) {
			lo := rune(u[i+1])
			if lo >= 0xDC00 && lo <= 0xDFFF {
				r = ((r - 0xD800) << 10) + (lo - 0xDC00) + 0x10000
				i++
			}
		}
		runes = append(runes, r)
	}
	return string(runes)
}

func stringToUTF16(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

// Storage is an in-memory compound file: a root CLSID plus a set of
// named streams, ordered the way they were encountered (on Open) or
// inserted (via WriteStream). Package holds a *Storage and uses only
// its exported methods.
type Storage struct {
	rootCLSID uuid.UUID
	names     []string
	streams   map[string][]byte
}

// New creates an empty compound file storage.
func New() *Storage {
	return &Storage{streams: make(map[string][]byte)}
}

// RootCLSID returns the class identifier stored on the root storage
// entry.
func (s *Storage) RootCLSID() uuid.UUID { return s.rootCLSID }

// SetRootCLSID sets the root storage's class identifier.
func (s *Storage) SetRootCLSID(id uuid.UUID) { s.rootCLSID = id }

// Streams returns the names of every stream, in a stable order.
func (s *Storage) Streams() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// HasStream reports whether a stream with the given name exists.
func (s *Storage) HasStream(name string) bool {
	_, ok := s.streams[name]
	return ok
}

// ReadStream returns the bytes of a stream, or an error if it does not
// exist.
func (s *Storage) ReadStream(name string) ([]byte, error) {
	data, ok := s.streams[name]
	if !ok {
		return nil, fmt.Errorf("cfb: stream %q not found", name)
	}
	return data, nil
}

// WriteStream creates or overwrites a stream's contents.
func (s *Storage) WriteStream(name string, data []byte) {
	if _, exists := s.streams[name]; !exists {
		s.names = append(s.names, name)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.streams[name] = cp
}

// RemoveStream deletes a stream if present.
func (s *Storage) RemoveStream(name string) {
	if _, exists := s.streams[name]; !exists {
		return
	}
	delete(s.streams, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
}

// Open parses an existing compound file binary image, returning a
// Storage with every stream's contents already extracted into memory.
func Open(data []byte) (*Storage, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("cfb: file too small to contain a header")
	}
	var h header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if h.Signature != signature {
		return nil, ErrNotCompoundFile
	}
	if h.SectorShift != 9 && h.SectorShift != 12 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSectorShift, h.SectorShift)
	}
	sectorSize := 1 << h.SectorShift
	numSectors := (len(data) - headerSize) / sectorSize

	readSector := func(id uint32) []byte {
		start := headerSize + int(id)*sectorSize
		end := start + sectorSize
		if start < 0 || end > len(data) {
			return nil
		}
		return data[start:end]
	}

	// Build the FAT from the header's inline DIFAT entries plus any
	// DIFAT sectors.
	var fat []uint32
	for _, id := range h.DIFAT {
		if id == freeSectorID {
			continue
		}
		sec := readSector(id)
		if sec == nil {
			continue
		}
		fat = append(fat, decodeUint32Array(sec)...)
	}
	difatSector := h.FirstDIFATSector
	for i := uint32(0); i < h.NumDIFATSectors && difatSector != endOfChainID; i++ {
		sec := readSector(difatSector)
		if sec == nil {
			break
		}
		entries := decodeUint32Array(sec)
		if len(entries) == 0 {
			break
		}
		next := entries[len(entries)-1]
		for _, id := range entries[:len(entries)-1] {
			if id != freeSectorID {
				fat = append(fat, id)
			}
		}
		difatSector = next
	}
	if numSectors >= 0 && len(fat) > numSectors+8 {
		fat = fat[:numSectors+8]
	}

	readChain := func(start uint32, size uint64) []byte {
		if start == endOfChainID || start == freeSectorID {
			return nil
		}
		var out []byte
		id := start
		seen := make(map[uint32]bool)
		for id != endOfChainID && !seen[id] {
			seen[id] = true
			sec := readSector(id)
			if sec == nil {
				break
			}
			out = append(out, sec...)
			if int(id) >= len(fat) {
				break
			}
			id = fat[id]
		}
		if size > 0 && uint64(len(out)) > size {
			out = out[:size]
		}
		return out
	}

	// Directory entries.
	dirData := readChain(h.FirstDirSector, 0)
	numEntries := len(dirData) / 128
	entries := make([]dirEntry, numEntries)
	for i := 0; i < numEntries; i++ {
		r := bytes.NewReader(dirData[i*128 : (i+1)*128])
		if err := binary.Read(r, binary.LittleEndian, &entries[i]); err != nil {
			return nil, err
		}
	}
	if numEntries == 0 {
		return nil, fmt.Errorf("cfb: empty directory")
	}

	root := &entries[0]
	rootCLSID := guidFromLE(root.CLSID)

	// MiniFAT and ministream (the root entry's stream).
	miniFATData := readChain(h.FirstMiniFATSector, 0)
	miniFAT := decodeUint32Array(miniFATData)
	ministream := readChain(root.StartSector, root.size())

	readMiniChain := func(start uint32, size uint64) []byte {
		if start == endOfChainID || start == freeSectorID {
			return nil
		}
		var out []byte
		id := start
		seen := make(map[uint32]bool)
		for id != endOfChainID && !seen[id] {
			seen[id] = true
			off := int(id) * miniSectorSize
			if off+miniSectorSize > len(ministream) {
				break
			}
			out = append(out, ministream[off:off+miniSectorSize]...)
			if int(id) >= len(miniFAT) {
				break
			}
			id = miniFAT[id]
		}
		if size > 0 && uint64(len(out)) > size {
			out = out[:size]
		}
		return out
	}

	cutoff := h.MiniStreamCutoff
	if cutoff == 0 {
		cutoff = miniStreamCutoffDefault
	}

	st := New()
	st.rootCLSID = rootCLSID

	var walk func(id uint32)
	walk = func(id uint32) {
		if id == noStream || int(id) >= len(entries) {
			return
		}
		e := &entries[id]
		walk(e.LeftSibID)
		if e.ObjectType == objTypeStream {
			name := e.name()
			var contents []byte
			if e.size() < uint64(cutoff) {
				contents = readMiniChain(e.StartSector, e.size())
			} else {
				contents = readChain(e.StartSector, e.size())
			}
			st.WriteStream(name, contents)
		} else if e.ObjectType == objTypeStorage {
			walk(e.ChildID)
		}
		walk(e.RightSibID)
	}
	walk(root.ChildID)

	return st, nil
}

func decodeUint32Array(b []byte) []uint32 {
	n := len(b) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

func guidFromLE(b [16]byte) uuid.UUID {
	var out [16]byte
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	id, _ := uuid.FromBytes(out[:])
	return id
}

func guidToLE(id uuid.UUID) [16]byte {
	var out [16]byte
	b := id
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return out
}

// cfbNameLess implements the ordering CFB directory entries must be
// sorted in: shorter names first, then case-insensitive ordinal
// comparison.
func cfbNameLess(a, b string) bool {
	ua, ub := stringToUTF16(a), stringToUTF16(b)
	if len(ua) != len(ub) {
		return len(ua) < len(ub)
	}
	for i := range ua {
		ca, cb := upperUTF16(ua[i]), upperUTF16(ub[i])
		if ca != cb {
			return ca < cb
		}
	}
	return false
}

func upperUTF16(u uint16) uint16 {
	if u >= 'a' && u <= 'z' {
		return u - 'a' + 'A'
	}
	return u
}

// Bytes serializes the storage to a fresh, valid compound file image.
// Rather than maintaining an incremental red-black tree across
// mutations, every Bytes call rebuilds the container from scratch: this
// matches the package façade, which rewrites a whole table stream on
// every mutation and whole string-pool streams on every flush.
func (s *Storage) Bytes() ([]byte, error) {
	const sectorSize = 512
	sectorShift := uint16(9)

	names := append([]string{}, s.names...)
	sort.Slice(names, func(i, j int) bool { return cfbNameLess(names[i], names[j]) })

	cutoff := uint32(miniStreamCutoffDefault)

	var miniStreamData []byte
	var miniFAT []uint32
	type placement struct {
		name        string
		startSector uint32
		size        uint64
		mini        bool
	}
	var placements []placement

	var regularData []byte
	var regularFAT []uint32
	appendRegularChain := func(data []byte) uint32 {
		if len(data) == 0 {
			return endOfChainID
		}
		first := uint32(len(regularData) / sectorSize)
		padded := padTo(data, sectorSize)
		numSecs := len(padded) / sectorSize
		for i := 0; i < numSecs; i++ {
			if i == numSecs-1 {
				regularFAT = append(regularFAT, endOfChainID)
			} else {
				regularFAT = append(regularFAT, uint32(len(regularFAT)+1))
			}
		}
		regularData = append(regularData, padded...)
		return first
	}
	appendMiniChain := func(data []byte) uint32 {
		if len(data) == 0 {
			return endOfChainID
		}
		first := uint32(len(miniStreamData) / miniSectorSize)
		padded := padTo(data, miniSectorSize)
		numSecs := len(padded) / miniSectorSize
		for i := 0; i < numSecs; i++ {
			if i == numSecs-1 {
				miniFAT = append(miniFAT, endOfChainID)
			} else {
				miniFAT = append(miniFAT, uint32(len(miniFAT)+1))
			}
		}
		miniStreamData = append(miniStreamData, padded...)
		return first
	}

	for _, name := range names {
		data := s.streams[name]
		if uint32(len(data)) < cutoff {
			start := appendMiniChain(data)
			placements = append(placements, placement{name: name, startSector: start, size: uint64(len(data)), mini: true})
		} else {
			start := appendRegularChain(data)
			placements = append(placements, placement{name: name, startSector: start, size: uint64(len(data))})
		}
	}

	// The ministream itself lives in regular sectors, referenced by the
	// root directory entry.
	miniStreamStart := appendRegularChain(miniStreamData)

	// MiniFAT also lives in regular sectors.
	miniFATBytes := encodeUint32Array(miniFAT)
	miniFATStart := appendRegularChain(miniFATBytes)
	numMiniFATSectors := (len(padTo(miniFATBytes, sectorSize))) / sectorSize
	if len(miniFATBytes) == 0 {
		numMiniFATSectors = 0
	}

	// Build directory entries: root + one per stream, linked as a
	// (degenerate but valid) sorted binary search tree hanging off the
	// root's child pointer.
	entries := make([]dirEntry, 1+len(names))
	rootNameUTF16 := stringToUTF16("Root Entry")
	copy(entries[0].Name[:], rootNameUTF16)
	entries[0].NameLen = uint16((len(rootNameUTF16) + 1) * 2)
	entries[0].ObjectType = objTypeRootStorage
	entries[0].ColorFlag = 1
	entries[0].LeftSibID = noStream
	entries[0].RightSibID = noStream
	entries[0].CLSID = guidToLE(s.rootCLSID)
	entries[0].StartSector = miniStreamStart
	entries[0].StreamSizeLow = uint32(len(miniStreamData))
	entries[0].StreamSizeHigh = uint32(uint64(len(miniStreamData)) >> 32)

	if len(names) == 0 {
		entries[0].ChildID = noStream
	} else {
		entries[0].ChildID = 1
	}

	for i, p := range placements {
		e := &entries[i+1]
		nameUTF16 := stringToUTF16(p.name)
		copy(e.Name[:], nameUTF16)
		e.NameLen = uint16((len(nameUTF16) + 1) * 2)
		e.ObjectType = objTypeStream
		e.ColorFlag = 1
		e.LeftSibID = noStream
		e.RightSibID = noStream
		if i+1 < len(names) {
			e.RightSibID = uint32(i + 2)
		}
		e.ChildID = noStream
		e.StartSector = p.startSector
		e.StreamSizeLow = uint32(p.size)
		e.StreamSizeHigh = uint32(p.size >> 32)
	}

	dirBytes := make([]byte, 0, len(entries)*128)
	for i := range entries {
		buf := &bytes.Buffer{}
		binary.Write(buf, binary.LittleEndian, &entries[i])
		dirBytes = append(dirBytes, buf.Bytes()...)
	}
	dirStart := appendRegularChain(dirBytes)
	numDirSectors := len(padTo(dirBytes, sectorSize)) / sectorSize

	// Now that every data/MiniFAT/directory sector is placed, append the
	// FAT itself (one or more sectors) and wire up the header's DIFAT.
	numDataSectors := len(regularFAT)
	fatEntriesPerSector := sectorSize / 4
	numFATSectors := (numDataSectors + fatEntriesPerSector - 1) / fatEntriesPerSector
	if numFATSectors == 0 {
		numFATSectors = 1
	}
	fatStart := uint32(numDataSectors)
	for i := 0; i < numFATSectors; i++ {
		regularFAT = append(regularFAT, fatSectorID)
	}
	fatBytes := encodeUint32Array(regularFAT)
	fatBytes = padTo(fatBytes, sectorSize)

	h := header{
		Signature:          signature,
		MinorVersion:       0x3e,
		MajorVersion:       3,
		ByteOrder:          0xFFFE,
		SectorShift:        sectorShift,
		MiniSectorShift:    6,
		NumDirSectors:      0,
		NumFATSectors:      uint32(numFATSectors),
		FirstDirSector:     dirStart,
		MiniStreamCutoff:   cutoff,
		FirstMiniFATSector: miniFATStart,
		NumMiniFATSectors:  uint32(numMiniFATSectors),
		FirstDIFATSector:   endOfChainID,
		NumDIFATSectors:    0,
	}
	h.CLSID = guidToLE(uuid.Nil)
	for i := range h.DIFAT {
		h.DIFAT[i] = freeSectorID
	}
	for i := 0; i < numFATSectors && i < numDIFATInHeader; i++ {
		h.DIFAT[i] = fatStart + uint32(i)
	}
	_ = numDirSectors

	headerBuf := &bytes.Buffer{}
	binary.Write(headerBuf, binary.LittleEndian, &h)

	out := append([]byte{}, headerBuf.Bytes()...)
	out = append(out, regularData...)
	out = append(out, fatBytes...)
	return out, nil
}

func padTo(data []byte, align int) []byte {
	if len(data) == 0 {
		return data
	}
	rem := len(data) % align
	if rem == 0 {
		return data
	}
	return append(append([]byte{}, data...), make([]byte, align-rem)...)
}

func encodeUint32Array(a []uint32) []byte {
	out := make([]byte, len(a)*4)
	for i, v := range a {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}
